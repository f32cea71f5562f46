package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderio/concierge/internal/domain"
)

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestCompose_DeclineOffersCapabilities(t *testing.T) {
	c := NewComposer()
	reply := c.Compose(&domain.Turn{
		Intent:   &domain.Intent{Type: domain.IntentUnknown},
		Decision: domain.DecisionDecline,
	}, "en")

	assert.NotEmpty(t, reply.Text)
	assert.LessOrEqual(t, len(reply.QuickReplies), domain.MaxQuickReplies)
	assert.NotEmpty(t, reply.QuickReplies)
}

func TestCompose_QuickRepliesNeverExceedLimit(t *testing.T) {
	reply := domain.Reply{Text: "x"}.WithQuickReplies("a", "b", "c", "d", "e")
	assert.Len(t, reply.QuickReplies, domain.MaxQuickReplies)
}

func TestCompose_ConfirmStatesTheAction(t *testing.T) {
	c := NewComposer()
	turn := &domain.Turn{
		Intent: &domain.Intent{
			Type: domain.IntentBookTour,
			BookTour: &domain.BookTourSlots{
				TourName:   "sunset catamaran",
				Date:       "2026-09-01",
				GuestCount: 2,
			},
		},
		Decision: domain.DecisionConfirm,
	}
	reply := c.Compose(turn, "en")

	assert.Contains(t, reply.Text, "sunset catamaran")
	assert.Contains(t, reply.Text, "2026-09-01")
	assert.Contains(t, reply.QuickReplies, "Yes, go ahead")
	assert.Contains(t, reply.QuickReplies, "Cancel")
}

func TestCompose_ConfirmAsksForMissingSlots(t *testing.T) {
	c := NewComposer()
	turn := &domain.Turn{
		Intent: &domain.Intent{
			Type:         domain.IntentBookTour,
			BookTour:     &domain.BookTourSlots{TourName: "reef"},
			MissingSlots: []string{"date", "guest_count"},
		},
		Decision: domain.DecisionConfirm,
	}
	reply := c.Compose(turn, "en")

	assert.Contains(t, reply.Text, "the date")
	assert.Contains(t, reply.Text, "how many guests")
}

func TestCompose_PartialFailureSeparatesOutcomes(t *testing.T) {
	c := NewComposer()
	turn := &domain.Turn{
		Intent: &domain.Intent{Type: domain.IntentBookTour, BookTour: &domain.BookTourSlots{TourID: "tour_1"}},
		ToolCalls: []domain.ToolCall{
			{
				Provider: "booking", Operation: "book", Status: domain.ToolCallSuccess,
				Result: mustRaw(t, map[string]any{"booking_id": "bk_1", "confirmation_code": "CONF1"}),
			},
			{
				Provider: "payment", Operation: "create_order", Status: domain.ToolCallFatalFailure,
				Error: "payment provider error (fatal): status 401",
			},
		},
		Decision: domain.DecisionExecute,
	}
	reply := c.Compose(turn, "en")

	// The booking success and the payment failure must both be visible,
	// with remediation offered.
	assert.Contains(t, reply.Text, "CONF1")
	assert.Contains(t, reply.Text, "status 401")
	assert.Contains(t, reply.QuickReplies, "Retry payment")
	assert.Contains(t, reply.QuickReplies, "Cancel booking")
}

func TestCompose_FullChainIncludesPayButton(t *testing.T) {
	c := NewComposer()
	turn := &domain.Turn{
		Intent: &domain.Intent{Type: domain.IntentBookTour, BookTour: &domain.BookTourSlots{TourID: "tour_1"}},
		ToolCalls: []domain.ToolCall{
			{Provider: "booking", Status: domain.ToolCallSuccess,
				Result: mustRaw(t, map[string]any{"confirmation_code": "CONF1"})},
			{Provider: "payment", Status: domain.ToolCallSuccess,
				Result: mustRaw(t, map[string]any{"order_id": "order_1", "amount": 500000, "currency": "INR"})},
		},
		Decision: domain.DecisionExecute,
	}
	reply := c.Compose(turn, "en")

	assert.Contains(t, reply.Text, "CONF1")
	assert.Contains(t, reply.Text, "INR 5000.00")
	require.Len(t, reply.Buttons, 1)
	assert.Equal(t, "pay:order_1", reply.Buttons[0].Action)
}

func TestCompose_RejectedVerificationNeverOffersRetry(t *testing.T) {
	c := NewComposer()
	turn := &domain.Turn{
		Intent: &domain.Intent{Type: domain.IntentVerifyPayment, VerifyPayment: &domain.VerifyPaymentSlots{}},
		ToolCalls: []domain.ToolCall{
			{Provider: "payment", Operation: "verify", Status: domain.ToolCallFatalFailure, Error: "payment signature mismatch"},
		},
		Decision: domain.DecisionExecute,
	}
	reply := c.Compose(turn, "en")

	assert.NotContains(t, reply.QuickReplies, "Try again")
	assert.Contains(t, reply.QuickReplies, "Contact support")
	// The reply must not read as a success.
	assert.NotContains(t, reply.Text, "all set")
	assert.Contains(t, reply.Text, "could not be verified")
}

func TestCompose_Localized(t *testing.T) {
	c := NewComposer()
	turn := &domain.Turn{
		Intent:   &domain.Intent{Type: domain.IntentGeneralChat},
		Decision: domain.DecisionExecute,
	}

	en := c.Compose(turn, "en")
	es := c.Compose(turn, "es")
	id := c.Compose(turn, "id")
	fallback := c.Compose(turn, "fr")

	assert.NotEqual(t, en.Text, es.Text)
	assert.NotEqual(t, en.Text, id.Text)
	assert.Equal(t, en.Text, fallback.Text)
}

func TestCompose_Timeout(t *testing.T) {
	c := NewComposer()
	reply := c.Timeout("en")
	assert.Contains(t, reply.Text, "cancelled")
	assert.Contains(t, reply.QuickReplies, "Try again")
}
