package domain

import (
	"errors"
	"fmt"
)

// ErrSessionBusy is returned when the per-session lock cannot be acquired
// before the configured timeout. Callers surface it as "try again shortly"
// rather than processing the message unsynchronized.
var ErrSessionBusy = errors.New("session busy, retry shortly")

// ErrSessionNotFound is returned for lookups of unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// ValidationError reports malformed or missing required input. No turn
// side effects are attempted once one is raised.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a field-scoped validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ProviderError is a failure from a capability provider. Retryable errors
// are retried by the dispatcher with bounded backoff; fatal ones surface
// immediately with no retry prompt.
type ProviderError struct {
	Provider  string
	Reason    string
	Retryable bool
}

func (e *ProviderError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s provider error (%s): %s", e.Provider, kind, e.Reason)
}

// NewRetryableProviderError marks a transient upstream failure.
func NewRetryableProviderError(provider, reason string) *ProviderError {
	return &ProviderError{Provider: provider, Reason: reason, Retryable: true}
}

// NewFatalProviderError marks a non-retryable upstream rejection.
func NewFatalProviderError(provider, reason string) *ProviderError {
	return &ProviderError{Provider: provider, Reason: reason, Retryable: false}
}

// IsRetryable reports whether err is a provider error worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}
