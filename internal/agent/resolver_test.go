package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderio/concierge/internal/domain"
)

func fixedClockResolver(t *testing.T) *RuleResolver {
	t.Helper()
	r := NewRuleResolver()
	// Wednesday
	r.now = func() time.Time { return time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) }
	return r
}

func resolveText(t *testing.T, r *RuleResolver, text string) *domain.Intent {
	t.Helper()
	intent, err := r.Resolve(context.Background(), text, ResolveContext{SessionID: "s1", Language: "en"})
	require.NoError(t, err)
	require.NotNil(t, intent)
	return intent
}

func TestRuleResolver_BookTour(t *testing.T) {
	r := fixedClockResolver(t)

	intent := resolveText(t, r, "Book the sunset catamaran tour for 2 guests on 2026-09-01")
	require.Equal(t, domain.IntentBookTour, intent.Type)
	require.NotNil(t, intent.BookTour)
	assert.Equal(t, "sunset catamaran", intent.BookTour.TourName)
	assert.Equal(t, 2, intent.BookTour.GuestCount)
	assert.Equal(t, "2026-09-01", intent.BookTour.Date)
	assert.True(t, intent.FullySpecified())
}

func TestRuleResolver_BookTourMissingSlots(t *testing.T) {
	r := fixedClockResolver(t)

	intent := resolveText(t, r, "I want to book something")
	require.Equal(t, domain.IntentBookTour, intent.Type)
	assert.ElementsMatch(t, []string{"tour", "date", "guest_count"}, intent.MissingSlots)
	assert.False(t, intent.FullySpecified())
}

func TestRuleResolver_RelativeDates(t *testing.T) {
	r := fixedClockResolver(t)

	tests := []struct {
		text string
		want string
	}{
		{"book the reef trip for 2 people tomorrow", "2026-08-27"},
		{"book the reef trip for 2 people today", "2026-08-26"},
		{"book the reef trip for 2 people day after tomorrow", "2026-08-28"},
		{"book the reef trip for 2 people on friday", "2026-08-28"},
		{"book the reef trip for 2 people next wednesday", "2026-09-02"},
	}
	for _, tt := range tests {
		intent := resolveText(t, r, tt.text)
		require.Equal(t, domain.IntentBookTour, intent.Type, tt.text)
		assert.Equal(t, tt.want, intent.BookTour.Date, tt.text)
	}
}

func TestRuleResolver_PaymentOrder(t *testing.T) {
	r := fixedClockResolver(t)

	intent := resolveText(t, r, "create order for ₹1,500")
	require.Equal(t, domain.IntentCreatePaymentOrder, intent.Type)
	require.NotNil(t, intent.PaymentOrder)
	// Major units in text become minor units on the wire.
	assert.Equal(t, int64(150000), intent.PaymentOrder.Amount)
	assert.True(t, intent.FullySpecified())
}

func TestRuleResolver_VerifyPayment(t *testing.T) {
	r := fixedClockResolver(t)
	sig := "a3f1b2c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f1a2"

	intent := resolveText(t, r, "verify payment order_Abc123 pay_Xyz789 "+sig)
	require.Equal(t, domain.IntentVerifyPayment, intent.Type)
	require.NotNil(t, intent.VerifyPayment)
	assert.Equal(t, "order_Abc123", intent.VerifyPayment.OrderID)
	assert.Equal(t, "pay_Xyz789", intent.VerifyPayment.PaymentID)
	assert.Equal(t, sig, intent.VerifyPayment.Signature)
	assert.True(t, intent.FullySpecified())
}

func TestRuleResolver_Weather(t *testing.T) {
	r := fixedClockResolver(t)

	intent := resolveText(t, r, "what's the weather in ubud today")
	require.Equal(t, domain.IntentGetWeather, intent.Type)
	assert.Equal(t, "ubud", intent.Weather.Destination)

	// No destination but a known location falls back to it.
	loc := &domain.Location{Lat: -8.5, Lng: 115.26}
	intent, err := r.Resolve(context.Background(), "how hot is it", ResolveContext{Location: loc})
	require.NoError(t, err)
	require.Equal(t, domain.IntentGetWeather, intent.Type)
	assert.Equal(t, loc, intent.Weather.Location)
	assert.True(t, intent.FullySpecified())
}

func TestRuleResolver_Navigation(t *testing.T) {
	r := fixedClockResolver(t)

	intent := resolveText(t, r, "directions to tanah lot")
	require.Equal(t, domain.IntentGetNavigation, intent.Type)
	assert.Equal(t, "tanah lot", intent.Navigation.Destination)
}

func TestRuleResolver_ChatAndUnknown(t *testing.T) {
	r := fixedClockResolver(t)

	assert.Equal(t, domain.IntentGeneralChat, resolveText(t, r, "hello there").Type)
	assert.Equal(t, domain.IntentGeneralChat, resolveText(t, r, "can you recommend a beach").Type)
	assert.Equal(t, domain.IntentUnknown, resolveText(t, r, "qwxz zzgh").Type)
	assert.Equal(t, domain.IntentUnknown, resolveText(t, r, "   ").Type)
}

func TestRuleResolver_GreetingNeedsWholeWord(t *testing.T) {
	r := fixedClockResolver(t)

	assert.Equal(t, domain.IntentGeneralChat, resolveText(t, r, "hi there").Type)
	assert.Equal(t, domain.IntentGeneralChat, resolveText(t, r, "oh hey, good morning").Type)
	// "matching" and "they" carry greeting substrings but are not greetings.
	assert.Equal(t, domain.IntentUnknown, resolveText(t, r, "matching schedules").Type)
	assert.Equal(t, domain.IntentUnknown, resolveText(t, r, "they arrived late").Type)
}

func TestAffirmativeNegative(t *testing.T) {
	assert.True(t, IsAffirmative("yes"))
	assert.True(t, IsAffirmative("Yes, go ahead"))
	assert.True(t, IsAffirmative("confirm booking"))
	assert.True(t, IsAffirmative("retry payment"))
	assert.False(t, IsAffirmative("yesterday was fun"))

	assert.True(t, IsNegative("no"))
	assert.True(t, IsNegative("cancel"))
	assert.True(t, IsNegative("never mind"))
	assert.False(t, IsNegative("note that down"))
}
