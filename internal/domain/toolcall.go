package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ToolCallStatus classifies the outcome of a single provider invocation.
type ToolCallStatus string

const (
	ToolCallSuccess          ToolCallStatus = "success"
	ToolCallRetryableFailure ToolCallStatus = "retryable_failure"
	ToolCallFatalFailure     ToolCallStatus = "fatal_failure"
)

// ToolCall records one invocation against a capability provider, including
// the idempotency key it was issued with and its final outcome after retries.
type ToolCall struct {
	Provider       string          `json:"provider"`
	Operation      string          `json:"operation"`
	IdempotencyKey string          `json:"idempotency_key"`
	Request        json.RawMessage `json:"request,omitempty"`
	Status         ToolCallStatus  `json:"status"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	Attempts       int             `json:"attempts"`
	LatencyMs      int64           `json:"latency_ms"`
}

// Succeeded reports whether the call completed without failure.
func (c *ToolCall) Succeeded() bool {
	return c.Status == ToolCallSuccess
}

// IdempotencyKey derives a deterministic key from the session, the intent
// type and its slot values. A retried or duplicated call with identical
// inputs hashes to the same key, so providers see one logical operation.
func IdempotencyKey(sessionID string, intent *Intent) string {
	parts := []string{sessionID, string(intent.Type)}
	parts = append(parts, slotPairs(intent)...)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// slotPairs flattens the populated slot set into sorted key=value strings.
func slotPairs(intent *Intent) []string {
	var pairs []string
	add := func(k string, v any) {
		switch val := v.(type) {
		case string:
			if val != "" {
				pairs = append(pairs, fmt.Sprintf("%s=%s", k, val))
			}
		case int:
			if val != 0 {
				pairs = append(pairs, fmt.Sprintf("%s=%d", k, val))
			}
		case int64:
			if val != 0 {
				pairs = append(pairs, fmt.Sprintf("%s=%d", k, val))
			}
		}
	}

	switch {
	case intent.BookTour != nil:
		s := intent.BookTour
		add("tour_id", s.TourID)
		add("tour_name", s.TourName)
		add("date", s.Date)
		add("guest_count", s.GuestCount)
		add("contact_phone", s.ContactPhone)
	case intent.PaymentOrder != nil:
		s := intent.PaymentOrder
		add("amount", s.Amount)
		add("currency", s.Currency)
		add("receipt", s.Receipt)
	case intent.VerifyPayment != nil:
		s := intent.VerifyPayment
		add("order_id", s.OrderID)
		add("payment_id", s.PaymentID)
		add("signature", s.Signature)
	case intent.Weather != nil:
		add("destination", intent.Weather.Destination)
	case intent.Navigation != nil:
		add("destination", intent.Navigation.Destination)
	}

	sort.Strings(pairs)
	return pairs
}
