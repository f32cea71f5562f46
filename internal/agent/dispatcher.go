package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

// IdempotencyCache remembers the outcome of side-effecting tool calls by
// their idempotency key, so a duplicated intent returns the cached result
// instead of producing a second booking or charge.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*domain.ToolCall, error)
	Put(ctx context.Context, key string, call *domain.ToolCall) error
}

// DispatcherOptions tunes retry behavior.
type DispatcherOptions struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Currency    string
}

// Dispatcher executes the ordered tool-call chain for an approved intent.
// Provider errors never escape it: every failure is folded into a
// ToolCall record for the turn.
type Dispatcher struct {
	providers *provider.Registry
	cache     IdempotencyCache
	opts      DispatcherOptions

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a tool dispatcher.
func NewDispatcher(providers *provider.Registry, cache IdempotencyCache, opts DispatcherOptions) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 200 * time.Millisecond
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 2 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &Dispatcher{
		providers: providers,
		cache:     cache,
		opts:      opts,
		sleep:     sleepCtx,
	}
}

// Execute maps an approved intent onto its provider calls. A failed step
// never rolls back earlier successes; partial completion is recorded in
// the returned chain so the composer can surface exactly which sub-steps
// succeeded.
func (d *Dispatcher) Execute(ctx context.Context, sessionID string, intent *domain.Intent) []domain.ToolCall {
	switch intent.Type {
	case domain.IntentBookTour:
		return d.executeBookTour(ctx, sessionID, intent)
	case domain.IntentCreatePaymentOrder:
		return d.executePaymentOrder(ctx, sessionID, intent)
	case domain.IntentVerifyPayment:
		return []domain.ToolCall{d.verifyPayment(intent)}
	case domain.IntentGetWeather:
		return []domain.ToolCall{d.getWeather(ctx, sessionID, intent)}
	case domain.IntentGetNavigation:
		return []domain.ToolCall{d.getNavigation(ctx, sessionID, intent)}
	default:
		return nil
	}
}

func (d *Dispatcher) executeBookTour(ctx context.Context, sessionID string, intent *domain.Intent) []domain.ToolCall {
	slots := intent.BookTour
	key := domain.IdempotencyKey(sessionID, intent)

	bookingReq := provider.BookingRequest{
		OfferingID:     slots.TourID,
		Date:           slots.Date,
		GuestCount:     slots.GuestCount,
		ContactName:    slots.ContactName,
		ContactPhone:   slots.ContactPhone,
		IdempotencyKey: key,
	}
	if bookingReq.OfferingID == "" {
		id, err := d.resolveOffering(ctx, slots)
		if err != nil {
			call := newCall("booking", "book", key, bookingReq)
			failCall(&call, err)
			return []domain.ToolCall{call}
		}
		bookingReq.OfferingID = id
	}

	bookCall := d.sideEffecting(ctx, "booking", "book", key, bookingReq, func(ctx context.Context) (any, error) {
		return d.providers.Booking.Book(ctx, bookingReq)
	})
	calls := []domain.ToolCall{bookCall}
	if !bookCall.Succeeded() {
		return calls
	}

	var booked provider.BookingResult
	if err := json.Unmarshal(bookCall.Result, &booked); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to decode booking result")
		return calls
	}

	orderReq := provider.OrderRequest{
		Amount:         booked.Amount,
		Currency:       orDefault(booked.Currency, d.opts.Currency),
		Receipt:        booked.BookingID,
		IdempotencyKey: key + ":payment",
	}
	orderCall := d.sideEffecting(ctx, "payment", "create_order", orderReq.IdempotencyKey, orderReq, func(ctx context.Context) (any, error) {
		return d.providers.Payment.CreateOrder(ctx, orderReq)
	})
	return append(calls, orderCall)
}

func (d *Dispatcher) executePaymentOrder(ctx context.Context, sessionID string, intent *domain.Intent) []domain.ToolCall {
	slots := intent.PaymentOrder
	key := domain.IdempotencyKey(sessionID, intent)

	orderReq := provider.OrderRequest{
		Amount:         slots.Amount,
		Currency:       orDefault(slots.Currency, d.opts.Currency),
		Receipt:        orDefault(slots.Receipt, "session-"+sessionID),
		IdempotencyKey: key,
	}
	call := d.sideEffecting(ctx, "payment", "create_order", key, orderReq, func(ctx context.Context) (any, error) {
		return d.providers.Payment.CreateOrder(ctx, orderReq)
	})
	return []domain.ToolCall{call}
}

// verifyPayment is synchronous and deterministic; a signature mismatch is
// fatal and never retried.
func (d *Dispatcher) verifyPayment(intent *domain.Intent) domain.ToolCall {
	slots := intent.VerifyPayment
	call := newCall("payment", "verify", "", map[string]string{
		"order_id":   slots.OrderID,
		"payment_id": slots.PaymentID,
	})
	call.Attempts = 1

	if d.providers.Payment.VerifySignature(slots.OrderID, slots.PaymentID, slots.Signature) {
		call.Status = domain.ToolCallSuccess
		call.Result = mustJSON(map[string]bool{"valid": true})
		return call
	}
	call.Status = domain.ToolCallFatalFailure
	call.Error = "payment signature mismatch"
	return call
}

func (d *Dispatcher) getWeather(ctx context.Context, sessionID string, intent *domain.Intent) domain.ToolCall {
	slots := intent.Weather
	q := provider.WeatherQuery{Destination: slots.Destination, Location: slots.Location}
	call := newCall("weather", "current", domain.IdempotencyKey(sessionID, intent), q)

	if d.providers.Weather == nil || !d.providers.Weather.IsConfigured() {
		failCall(&call, domain.NewFatalProviderError("weather", "provider not configured"))
		return call
	}
	result, err := d.withRetry(ctx, &call, func(ctx context.Context) (any, error) {
		return d.providers.Weather.Current(ctx, q)
	})
	finishCall(&call, result, err)
	return call
}

func (d *Dispatcher) getNavigation(ctx context.Context, sessionID string, intent *domain.Intent) domain.ToolCall {
	slots := intent.Navigation
	q := provider.RouteQuery{Destination: slots.Destination, Origin: slots.Origin}
	call := newCall("navigation", "route", domain.IdempotencyKey(sessionID, intent), q)

	if d.providers.Navigation == nil || !d.providers.Navigation.IsConfigured() {
		failCall(&call, domain.NewFatalProviderError("navigation", "provider not configured"))
		return call
	}
	result, err := d.withRetry(ctx, &call, func(ctx context.Context) (any, error) {
		return d.providers.Navigation.Route(ctx, q)
	})
	finishCall(&call, result, err)
	return call
}

// resolveOffering searches the booking catalog to turn a spoken tour name
// into an offering id.
func (d *Dispatcher) resolveOffering(ctx context.Context, slots *domain.BookTourSlots) (string, error) {
	offerings, err := d.providers.Booking.Search(ctx, provider.SearchFilters{
		Query:      slots.TourName,
		Date:       slots.Date,
		GuestCount: slots.GuestCount,
	})
	if err != nil {
		return "", err
	}
	if len(offerings) == 0 {
		return "", domain.NewFatalProviderError("booking", fmt.Sprintf("no offering matches %q", slots.TourName))
	}
	return offerings[0].ID, nil
}

// sideEffecting consults the idempotency cache before calling and records
// the outcome after, so a duplicated intent replays the stored result.
func (d *Dispatcher) sideEffecting(ctx context.Context, providerName, operation, key string, req any, fn func(ctx context.Context) (any, error)) domain.ToolCall {
	if d.cache != nil {
		if cached, err := d.cache.Get(ctx, key); err == nil && cached != nil {
			log.Debug().Str("provider", providerName).Str("idempotency_key", key).Msg("replaying cached tool call")
			return *cached
		}
	}

	call := newCall(providerName, operation, key, req)
	result, err := d.withRetry(ctx, &call, fn)
	finishCall(&call, result, err)

	if call.Succeeded() && d.cache != nil {
		if err := d.cache.Put(ctx, key, &call); err != nil {
			log.Error().Err(err).Str("idempotency_key", key).Msg("failed to cache tool call result")
		}
	}
	return call
}

// withRetry runs fn up to MaxAttempts times with capped exponential
// backoff, retrying only retryable provider errors.
func (d *Dispatcher) withRetry(ctx context.Context, call *domain.ToolCall, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	defer func() { call.LatencyMs = time.Since(start).Milliseconds() }()

	var lastErr error
	for attempt := 0; attempt < d.opts.MaxAttempts; attempt++ {
		call.Attempts = attempt + 1
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !domain.IsRetryable(err) || errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, err
		}
		log.Warn().Err(err).
			Str("provider", call.Provider).
			Int("attempt", call.Attempts).
			Msg("retryable provider failure")
		if attempt < d.opts.MaxAttempts-1 {
			if err := d.sleep(ctx, backoff(attempt, d.opts.BackoffBase, d.opts.BackoffCap)); err != nil {
				return nil, lastErr
			}
		}
	}
	// Retries exhausted: surface as fatal so the caller stops the chain.
	var pe *domain.ProviderError
	if errors.As(lastErr, &pe) {
		return nil, domain.NewFatalProviderError(pe.Provider, "retries exhausted: "+pe.Reason)
	}
	return nil, lastErr
}

// backoff computes a deterministic capped exponential backoff.
func backoff(attempt int, base, cap time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newCall(providerName, operation, key string, req any) domain.ToolCall {
	return domain.ToolCall{
		Provider:       providerName,
		Operation:      operation,
		IdempotencyKey: key,
		Request:        mustJSON(req),
	}
}

func finishCall(call *domain.ToolCall, result any, err error) {
	if err == nil {
		call.Status = domain.ToolCallSuccess
		call.Result = mustJSON(result)
		return
	}
	failCall(call, err)
}

func failCall(call *domain.ToolCall, err error) {
	call.Error = err.Error()
	if domain.IsRetryable(err) {
		call.Status = domain.ToolCallRetryableFailure
		return
	}
	call.Status = domain.ToolCallFatalFailure
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
