package channel

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/observability"
	"github.com/wanderio/concierge/internal/provider"
)

// Channel names used in logs, metrics and session tokens.
const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
)

// Options tunes the messaging adapter.
type Options struct {
	DefaultCountryCode string
	MaxBodyLength      int
}

// WhatsAppAdapter delivers composed replies over the asynchronous
// messaging transport. Delivery happens after the turn is committed; a
// send failure is logged and counted but never mutates the turn.
type WhatsAppAdapter struct {
	transport provider.MessageTransport
	metrics   *observability.Metrics
	opts      Options
}

// NewWhatsAppAdapter creates the messaging-channel adapter.
func NewWhatsAppAdapter(transport provider.MessageTransport, metrics *observability.Metrics, opts Options) *WhatsAppAdapter {
	if opts.DefaultCountryCode == "" {
		opts.DefaultCountryCode = "91"
	}
	if opts.MaxBodyLength <= 0 {
		opts.MaxBodyLength = 4096
	}
	return &WhatsAppAdapter{
		transport: transport,
		metrics:   metrics,
		opts:      opts,
	}
}

// Ready reports whether the transport can actually send.
func (a *WhatsAppAdapter) Ready() bool {
	return a.transport != nil && a.transport.IsConfigured()
}

// Deliver normalizes the destination and pushes the reply, splitting text
// that exceeds the transport's body limit. Interactive elements ride on
// the final chunk only, so they arrive with the end of the message.
func (a *WhatsAppAdapter) Deliver(ctx context.Context, rawPhone string, reply domain.Reply) error {
	to, err := NormalizePhone(rawPhone, a.opts.DefaultCountryCode)
	if err != nil {
		a.observe("rejected")
		return err
	}

	chunks := splitBody(reply.Text, a.opts.MaxBodyLength)
	for i, chunk := range chunks {
		msg := provider.OutboundMessage{To: to, Text: chunk}
		if i == len(chunks)-1 {
			msg.QuickReplies = reply.QuickReplies
			msg.Buttons = reply.Buttons
		}
		if err := a.transport.Send(ctx, msg); err != nil {
			a.observe("failed")
			log.Error().Err(err).Str("to", to).Int("chunk", i).Msg("whatsapp delivery failed")
			return err
		}
	}
	a.observe("delivered")
	return nil
}

func (a *WhatsAppAdapter) observe(outcome string) {
	if a.metrics != nil {
		a.metrics.Deliveries.WithLabelValues(ChannelWhatsApp, outcome).Inc()
	}
}

// NormalizePhone canonicalizes a phone number to digits-only E.164 form
// without the plus sign. Numbers with no country code get the configured
// default prepended. Anything outside 10 to 15 digits after normalization
// is rejected before the transport is ever called.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	hadPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")

	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	if len(number) == 10 && !hadPlus {
		number = defaultCountryCode + number
	}
	if len(number) < 10 || len(number) > 15 {
		return "", &domain.ValidationError{
			Field:   "phone",
			Message: fmt.Sprintf("phone number must normalize to 10-15 digits, got %d", len(number)),
		}
	}
	return number, nil
}

// SessionIDForPhone maps a normalized phone number onto a stable session
// id, so every message from the same number lands in the same thread.
func SessionIDForPhone(phone string) string {
	return "wa:" + phone
}

// splitBody cuts text into chunks of at most limit bytes, preferring to
// break on line boundaries, then on spaces.
func splitBody(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut < limit/2 {
			cut = strings.LastIndexByte(text[:limit], ' ')
		}
		if cut < limit/2 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
