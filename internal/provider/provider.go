package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/wanderio/concierge/internal/domain"
)

// Offering is a bookable tour or activity returned by a search.
type Offering struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Amount      int64  `json:"amount"` // smallest currency unit
	Currency    string `json:"currency"`
}

// SearchFilters narrows a booking search.
type SearchFilters struct {
	Query      string `json:"query,omitempty"`
	Date       string `json:"date,omitempty"`
	GuestCount int    `json:"guest_count,omitempty"`
}

// BookingRequest creates a booking against an offering.
type BookingRequest struct {
	OfferingID     string `json:"offering_id"`
	Date           string `json:"date"`
	GuestCount     int    `json:"guest_count"`
	ContactName    string `json:"contact_name,omitempty"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	IdempotencyKey string `json:"-"`
}

// BookingResult is the provider's view of a created booking.
type BookingResult struct {
	BookingID        string `json:"booking_id"`
	ConfirmationCode string `json:"confirmation_code"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
}

// OrderRequest creates a payment order.
type OrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	IdempotencyKey string `json:"-"`
}

// Order is a created payment order awaiting capture.
type Order struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// WeatherQuery asks for current conditions at a place or coordinate.
type WeatherQuery struct {
	Destination string
	Location    *domain.Location
}

// WeatherReport is a read-only weather payload.
type WeatherReport struct {
	Place       string  `json:"place"`
	TempC       float64 `json:"temp_c"`
	Condition   string  `json:"condition"`
	Humidity    int     `json:"humidity,omitempty"`
	WindKph     float64 `json:"wind_kph,omitempty"`
	Description string  `json:"description,omitempty"`
}

// RouteQuery asks for directions to a destination.
type RouteQuery struct {
	Destination string
	Origin      *domain.Location
}

// Route is a read-only navigation payload.
type Route struct {
	Destination string  `json:"destination"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin int     `json:"duration_min"`
	Summary     string  `json:"summary,omitempty"`
	MapURL      string  `json:"map_url,omitempty"`
}

// OutboundMessage is a composed reply addressed to a messaging destination.
type OutboundMessage struct {
	To           string          `json:"to"`
	Text         string          `json:"text"`
	QuickReplies []string        `json:"quick_replies,omitempty"`
	Buttons      []domain.Button `json:"buttons,omitempty"`
}

// BookingProvider creates and confirms tour bookings.
type BookingProvider interface {
	Name() string
	IsConfigured() bool
	Search(ctx context.Context, filters SearchFilters) ([]Offering, error)
	Book(ctx context.Context, req BookingRequest) (*BookingResult, error)
}

// PaymentProvider creates orders and verifies payment signatures.
type PaymentProvider interface {
	Name() string
	IsConfigured() bool
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// VerifySignature is synchronous and deterministic. Any mismatch is a
	// fatal, non-retryable condition.
	VerifySignature(orderID, paymentID, signature string) bool
}

// WeatherProvider is a read-only lookup, safe to retry freely.
type WeatherProvider interface {
	Name() string
	IsConfigured() bool
	Current(ctx context.Context, q WeatherQuery) (*WeatherReport, error)
}

// NavigationProvider is a read-only lookup, safe to retry freely.
type NavigationProvider interface {
	Name() string
	IsConfigured() bool
	Route(ctx context.Context, q RouteQuery) (*Route, error)
}

// MessageTransport delivers a composed message to a destination address.
type MessageTransport interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, msg OutboundMessage) error
}

// ConfigError reports a provider that is registered but missing credentials.
type ConfigError struct {
	Provider string
	Missing  []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %s not configured: missing %s", e.Provider, strings.Join(e.Missing, ", "))
}

// Registry holds the constructor-injected capability provider handles. The
// orchestrator owns one registry for its whole lifetime; no per-request
// client construction.
type Registry struct {
	Booking    BookingProvider
	Payment    PaymentProvider
	Weather    WeatherProvider
	Navigation NavigationProvider
	Transport  MessageTransport
}

// Readiness checks every registered provider once. Booking and payment are
// required; the read-only providers and the transport may be absent, in
// which case the matching intents degrade to a decline reply.
func (r *Registry) Readiness() error {
	if r.Booking == nil || !r.Booking.IsConfigured() {
		return &ConfigError{Provider: "booking", Missing: []string{"base_url", "api_key"}}
	}
	if r.Payment == nil || !r.Payment.IsConfigured() {
		return &ConfigError{Provider: "payment", Missing: []string{"key_id", "key_secret"}}
	}
	return nil
}

// ClassifyStatus maps an HTTP status from a provider into the error
// taxonomy: 429 and 5xx are retryable, everything else non-2xx is fatal.
func ClassifyStatus(provider string, code int, body string) error {
	if code >= 200 && code < 300 {
		return nil
	}
	reason := fmt.Sprintf("status %d", code)
	if body != "" {
		reason = fmt.Sprintf("status %d: %s", code, body)
	}
	switch code {
	case 429, 500, 502, 503, 504:
		return domain.NewRetryableProviderError(provider, reason)
	default:
		return domain.NewFatalProviderError(provider, reason)
	}
}
