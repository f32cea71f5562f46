package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

// Transport implements provider.MessageTransport against a WhatsApp-style
// cloud messaging API. It is stateless with respect to session data.
type Transport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTransport creates a new messaging transport
func NewTransport(baseURL, token string) *Transport {
	return &Transport{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Name returns the provider identifier
func (t *Transport) Name() string {
	return "whatsapp"
}

// IsConfigured checks if the transport has valid credentials
func (t *Transport) IsConfigured() bool {
	return t.baseURL != "" && t.token != ""
}

type outboundPayload struct {
	To      string        `json:"to"`
	Type    string        `json:"type"`
	Text    textBody      `json:"text"`
	Replies []replyOption `json:"replies,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type replyOption struct {
	Title  string `json:"title"`
	Action string `json:"action,omitempty"`
}

// Send delivers a message to a normalized destination address. Address
// validation happens in the channel adapter before this is reached.
func (t *Transport) Send(ctx context.Context, msg provider.OutboundMessage) error {
	payload := outboundPayload{
		To:   msg.To,
		Type: "text",
		Text: textBody{Body: msg.Text},
	}
	for _, qr := range msg.QuickReplies {
		payload.Replies = append(payload.Replies, replyOption{Title: qr})
	}
	for _, b := range msg.Buttons {
		payload.Replies = append(payload.Replies, replyOption{Title: b.Label, Action: b.Action})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.NewRetryableProviderError(t.Name(), err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return provider.ClassifyStatus(t.Name(), resp.StatusCode, string(bytes.TrimSpace(b)))
	}
	return nil
}
