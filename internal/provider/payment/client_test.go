package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

func signFor(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	const secret = "test_secret"
	sig := signFor("order_1", "pay_1", secret)

	if !VerifySignature("order_1", "pay_1", sig, secret) {
		t.Fatal("expected valid signature to verify")
	}

	// Deterministic: repeated verification of the same inputs agrees.
	for i := 0; i < 3; i++ {
		if !VerifySignature("order_1", "pay_1", sig, secret) {
			t.Fatalf("verification flapped on attempt %d", i)
		}
	}
}

func TestVerifySignature_AnyMutationFails(t *testing.T) {
	const secret = "test_secret"
	sig := signFor("order_1", "pay_1", secret)

	cases := []struct {
		name               string
		orderID, paymentID string
		signature, secret  string
	}{
		{"wrong order", "order_2", "pay_1", sig, secret},
		{"wrong payment", "order_1", "pay_2", sig, secret},
		{"wrong secret", "order_1", "pay_1", sig, "other_secret"},
		{"truncated signature", "order_1", "pay_1", sig[:len(sig)-1], secret},
	}
	for _, tc := range cases {
		if VerifySignature(tc.orderID, tc.paymentID, tc.signature, tc.secret) {
			t.Errorf("%s: expected verification to fail", tc.name)
		}
	}

	// Flipping any single byte of the signature must flip the result.
	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		mutated[i] ^= 0x01
		if VerifySignature("order_1", "pay_1", string(mutated), secret) {
			t.Fatalf("mutated byte %d still verified", i)
		}
	}
}

func TestVerifySignature_EmptyInputs(t *testing.T) {
	const secret = "test_secret"
	sig := signFor("order_1", "pay_1", secret)

	if VerifySignature("", "pay_1", sig, secret) {
		t.Error("empty order id verified")
	}
	if VerifySignature("order_1", "", sig, secret) {
		t.Error("empty payment id verified")
	}
	if VerifySignature("order_1", "pay_1", "", secret) {
		t.Error("empty signature verified")
	}
	if VerifySignature("order_1", "pay_1", sig, "") {
		t.Error("empty secret verified")
	}
}

func TestClient_CreateOrder(t *testing.T) {
	var gotIdempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("missing basic auth")
		}
		gotIdempotencyKey = r.Header.Get("X-Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"order_live_1","amount":500000,"currency":"INR"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_id", "key_secret")
	order, err := c.CreateOrder(context.Background(), provider.OrderRequest{
		Amount:         500000,
		Currency:       "INR",
		Receipt:        "bk_1",
		IdempotencyKey: "idem_1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderID != "order_live_1" || order.Amount != 500000 || order.Currency != "INR" {
		t.Fatalf("unexpected order %+v", order)
	}
	if gotIdempotencyKey != "idem_1" {
		t.Fatalf("idempotency key not forwarded, got %q", gotIdempotencyKey)
	}
}

func TestClient_CreateOrderErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
		{http.StatusUnprocessableEntity, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewClient(srv.URL, "key_id", "key_secret")
		_, err := c.CreateOrder(context.Background(), provider.OrderRequest{Amount: 100, Currency: "INR"})
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if domain.IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, domain.IsRetryable(err), tt.retryable)
		}
	}
}

func TestClient_IsConfigured(t *testing.T) {
	if NewClient("http://x", "", "").IsConfigured() {
		t.Error("client without credentials reported configured")
	}
	if !NewClient("http://x", "key", "secret").IsConfigured() {
		t.Error("client with credentials reported unconfigured")
	}
}
