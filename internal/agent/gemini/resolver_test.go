package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderio/concierge/internal/agent"
	"github.com/wanderio/concierge/internal/domain"
)

func TestParseClassification_BookTour(t *testing.T) {
	raw := `{"intent":"book_tour","slots":{"tour_name":"sunset catamaran","date":"2026-09-01","guest_count":2},"missing":[]}`

	intent, err := parseClassification(raw, agent.ResolveContext{})
	require.NoError(t, err)
	require.Equal(t, domain.IntentBookTour, intent.Type)
	require.NotNil(t, intent.BookTour)
	assert.Equal(t, "sunset catamaran", intent.BookTour.TourName)
	assert.Equal(t, "2026-09-01", intent.BookTour.Date)
	assert.Equal(t, 2, intent.BookTour.GuestCount)
	assert.Empty(t, intent.MissingSlots)
}

func TestParseClassification_MissingSlotsCarryThrough(t *testing.T) {
	raw := `{"intent":"book_tour","slots":{"tour_name":"reef trip"},"missing":["date","guest_count"]}`

	intent, err := parseClassification(raw, agent.ResolveContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "guest_count"}, intent.MissingSlots)
	assert.False(t, intent.FullySpecified())
}

func TestParseClassification_GuestCountAsString(t *testing.T) {
	raw := `{"intent":"book_tour","slots":{"tour_name":"reef trip","date":"2026-09-01","guest_count":"4"}}`

	intent, err := parseClassification(raw, agent.ResolveContext{})
	require.NoError(t, err)
	assert.Equal(t, 4, intent.BookTour.GuestCount)
}

func TestParseClassification_ToleratesMarkdownFences(t *testing.T) {
	raw := "```json\n{\"intent\":\"general_chat\",\"slots\":{}}\n```"

	intent, err := parseClassification(raw, agent.ResolveContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentGeneralChat, intent.Type)
}

func TestParseClassification_WeatherFallsBackToLocation(t *testing.T) {
	loc := &domain.Location{Lat: -8.5, Lng: 115.26}
	raw := `{"intent":"get_weather","slots":{},"missing":["destination"]}`

	intent, err := parseClassification(raw, agent.ResolveContext{Location: loc})
	require.NoError(t, err)
	require.Equal(t, domain.IntentGetWeather, intent.Type)
	assert.Equal(t, loc, intent.Weather.Location)
	// The location substitutes for the missing destination.
	assert.NotContains(t, intent.MissingSlots, "destination")
}

func TestParseClassification_PaymentOrder(t *testing.T) {
	raw := `{"intent":"create_payment_order","slots":{"amount":150000,"currency":"INR","receipt":"bk_1"}}`

	intent, err := parseClassification(raw, agent.ResolveContext{})
	require.NoError(t, err)
	require.NotNil(t, intent.PaymentOrder)
	assert.Equal(t, int64(150000), intent.PaymentOrder.Amount)
	assert.Equal(t, "INR", intent.PaymentOrder.Currency)
}

func TestParseClassification_Rejects(t *testing.T) {
	_, err := parseClassification(`{"intent":"launch_rocket","slots":{}}`, agent.ResolveContext{})
	assert.Error(t, err)

	_, err = parseClassification("not json at all", agent.ResolveContext{})
	assert.Error(t, err)
}

func TestResolver_UnconfiguredUsesFallback(t *testing.T) {
	rules := agent.NewRuleResolver()
	r := NewResolver("", "", rules)

	require.False(t, r.IsConfigured())
	intent, err := r.Resolve(context.Background(), "what's the weather in ubud", agent.ResolveContext{Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentGetWeather, intent.Type)
}

func TestNewResolver_DefaultModel(t *testing.T) {
	r := NewResolver("key", "", agent.NewRuleResolver())
	assert.Equal(t, "gemini-2.0-flash", r.model)
	assert.Equal(t, "gemini", r.Name())
}
