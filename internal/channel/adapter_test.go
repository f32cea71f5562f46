package channel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

type fakeTransport struct {
	sent       []provider.OutboundMessage
	failAfter  int
	configured bool
}

func (f *fakeTransport) Name() string       { return "whatsapp" }
func (f *fakeTransport) IsConfigured() bool { return f.configured }

func (f *fakeTransport) Send(ctx context.Context, msg provider.OutboundMessage) error {
	if f.failAfter > 0 && len(f.sent) >= f.failAfter {
		return errors.New("transport unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"ten digits gets default country code", "9876543210", "919876543210", false},
		{"plus prefix stripped", "+14155550123", "14155550123", false},
		{"formatting characters stripped", "+91 98765-43210", "919876543210", false},
		{"parenthesized us number", "(415) 555-0123", "914155550123", false},
		{"too short", "123", "", true},
		{"too long", "12345678901234567890", "", true},
		{"empty", "", "", true},
		{"letters only", "call me maybe", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, "91")
			if tt.wantErr {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "phone", ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeliver_RejectsBadPhoneBeforeTransport(t *testing.T) {
	transport := &fakeTransport{configured: true}
	a := NewWhatsAppAdapter(transport, nil, Options{})

	err := a.Deliver(context.Background(), "123", domain.Reply{Text: "hello"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	// The transport never saw the message.
	assert.Empty(t, transport.sent)
}

func TestDeliver_SingleMessage(t *testing.T) {
	transport := &fakeTransport{configured: true}
	a := NewWhatsAppAdapter(transport, nil, Options{})

	reply := domain.Reply{
		Text:         "your booking is confirmed",
		QuickReplies: []string{"Show details"},
		Buttons:      []domain.Button{{Label: "Pay now", Action: "pay:order_1"}},
	}
	require.NoError(t, a.Deliver(context.Background(), "+919876543210", reply))

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, "919876543210", msg.To)
	assert.Equal(t, reply.Text, msg.Text)
	assert.Equal(t, reply.QuickReplies, msg.QuickReplies)
	assert.Equal(t, reply.Buttons, msg.Buttons)
}

func TestDeliver_ChunksLongBody(t *testing.T) {
	transport := &fakeTransport{configured: true}
	a := NewWhatsAppAdapter(transport, nil, Options{MaxBodyLength: 40})

	reply := domain.Reply{
		Text:         strings.Repeat("here is a tour option to consider\n", 5),
		QuickReplies: []string{"Book it", "More options"},
	}
	require.NoError(t, a.Deliver(context.Background(), "9876543210", reply))

	require.Greater(t, len(transport.sent), 1)
	for i, msg := range transport.sent {
		assert.LessOrEqual(t, len(msg.Text), 40)
		if i < len(transport.sent)-1 {
			// Interactive elements ride only on the final chunk.
			assert.Empty(t, msg.QuickReplies)
		}
	}
	last := transport.sent[len(transport.sent)-1]
	assert.Equal(t, reply.QuickReplies, last.QuickReplies)
}

func TestDeliver_TransportFailure(t *testing.T) {
	transport := &fakeTransport{configured: true, failAfter: 1}
	a := NewWhatsAppAdapter(transport, nil, Options{MaxBodyLength: 40})

	err := a.Deliver(context.Background(), "9876543210", domain.Reply{
		Text: strings.Repeat("a long message body to split apart ", 4),
	})
	require.Error(t, err)
	assert.Len(t, transport.sent, 1)
}

func TestReady(t *testing.T) {
	assert.False(t, NewWhatsAppAdapter(nil, nil, Options{}).Ready())
	assert.False(t, NewWhatsAppAdapter(&fakeTransport{}, nil, Options{}).Ready())
	assert.True(t, NewWhatsAppAdapter(&fakeTransport{configured: true}, nil, Options{}).Ready())
}

func TestSessionIDForPhone(t *testing.T) {
	assert.Equal(t, "wa:919876543210", SessionIDForPhone("919876543210"))
}

func TestSplitBody(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitBody("short", 100))

	chunks := splitBody("first line\nsecond line\nthird line", 14)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 14)
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, "first line second line third line", strings.Join(chunks, " "))

	// Text with no break points falls back to hard cuts.
	hard := splitBody(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, hard)
}
