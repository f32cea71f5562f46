package security_test

import (
	"testing"
	"time"

	"github.com/wanderio/concierge/internal/security"
)

func TestTokenManager_IssueAndValidate(t *testing.T) {
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	token, err := manager.IssueSessionToken("sess_1", "web")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if token == "" {
		t.Error("token is empty")
	}

	claims, err := manager.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	if claims.SessionID != "sess_1" {
		t.Errorf("session ID mismatch: got %q, want %q", claims.SessionID, "sess_1")
	}
	if claims.Channel != "web" {
		t.Errorf("channel mismatch: got %q, want %q", claims.Channel, "web")
	}
	if claims.Subject != "sess_1" {
		t.Errorf("subject mismatch: got %q, want %q", claims.Subject, "sess_1")
	}
	if claims.Issuer != "concierge" {
		t.Errorf("issuer mismatch: got %q, want %q", claims.Issuer, "concierge")
	}
}

func TestTokenManager_ScopedToOneSession(t *testing.T) {
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	token, err := manager.IssueSessionToken("sess_1", "web")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	claims, err := manager.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}

	// The claims carry the binding the middleware checks against the URL.
	if claims.SessionID == "sess_2" {
		t.Error("token bound to the wrong session")
	}
	if claims.SessionID != "sess_1" {
		t.Errorf("token lost its session binding: got %q", claims.SessionID)
	}
}

func TestTokenManager_InvalidToken(t *testing.T) {
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", 15*time.Minute)

	// Invalid token format
	if _, err := manager.ValidateSessionToken("invalid-token"); err == nil {
		t.Error("expected error for invalid token, got nil")
	}

	// Empty token
	if _, err := manager.ValidateSessionToken(""); err == nil {
		t.Error("expected error for empty token, got nil")
	}

	// Token signed with different secret
	otherManager := security.NewTokenManager("different-secret-key-32-chars!!", 15*time.Minute)
	token, _ := otherManager.IssueSessionToken("sess_1", "web")

	if _, err := manager.ValidateSessionToken(token); err == nil {
		t.Error("expected error for token signed with different secret, got nil")
	}
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", -time.Minute)

	token, err := manager.IssueSessionToken("sess_1", "web")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if _, err := manager.ValidateSessionToken(token); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestTokenManager_TokenTTL(t *testing.T) {
	ttl := 30 * time.Minute
	manager := security.NewTokenManager("test-secret-key-with-32-chars!!", ttl)

	if manager.TokenTTL() != ttl {
		t.Errorf("token TTL mismatch: got %v, want %v", manager.TokenTTL(), ttl)
	}
}
