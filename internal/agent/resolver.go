package agent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/wanderio/concierge/internal/domain"
)

// ResolveContext is the slice of session state a resolver may consult.
type ResolveContext struct {
	SessionID string
	Language  string
	Location  *domain.Location
}

// Resolver turns raw text plus context into a typed intent. Resolving has
// no side effects and is deterministic for a given classifier version.
// Unparseable input resolves to Unknown or GeneralChat, never an error.
type Resolver interface {
	Resolve(ctx context.Context, text string, rc ResolveContext) (*domain.Intent, error)
}

// RuleResolver is the default deterministic classifier: keyword and
// pattern matching with regex slot extraction. The LLM-backed resolver in
// the gemini subpackage implements the same contract.
type RuleResolver struct {
	now func() time.Time
}

// NewRuleResolver creates the default rule-based resolver.
func NewRuleResolver() *RuleResolver {
	return &RuleResolver{now: time.Now}
}

var (
	guestCountRe = regexp.MustCompile(`(\d+)\s*(?:guests?|people|persons?|pax|adults?|travellers?|travelers?)`)
	amountRe     = regexp.MustCompile(`(?:₹|rs\.?\s*|inr\s*|\$|usd\s*)(\d+(?:,\d{3})*)`)
	bareNumberRe = regexp.MustCompile(`\b(\d{2,7})\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	phoneRe      = regexp.MustCompile(`\+?\d[\d\s-]{8,14}\d`)
	orderIDRe    = regexp.MustCompile(`\border_[A-Za-z0-9]+\b`)
	paymentIDRe  = regexp.MustCompile(`\bpay_[A-Za-z0-9]+\b`)
	signatureRe  = regexp.MustCompile(`\b[a-f0-9]{64}\b`)
	tourNameRe   = regexp.MustCompile(`(?:book|reserve|join)\s+(?:the\s+)?([a-z0-9' ]+?)\s+(?:tour|trip|cruise|trek|safari|excursion)`)
	weatherInRe  = regexp.MustCompile(`(?:weather|forecast|temperature|rain(?:ing)?)\s+(?:in|at|for)\s+([a-z' ]+?)(?:\s+(?:today|tomorrow|now))?$`)
	navToRe      = regexp.MustCompile(`(?:directions?|navigate|route|way|get)\s+to\s+([a-z' ]+?)(?:\s+from\b.*)?$`)
)

// Resolve classifies the text. Recognition order matters: payment
// verification before order creation, both before booking, so the most
// specific pattern wins.
func (r *RuleResolver) Resolve(_ context.Context, text string, rc ResolveContext) (*domain.Intent, error) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return &domain.Intent{Type: domain.IntentUnknown}, nil
	}

	switch {
	case containsAny(lowered, "verify payment", "payment verify", "check my payment", "payment signature", "did my payment"):
		// Extract from the original text: order and payment ids are
		// case-sensitive.
		return r.resolveVerifyPayment(text), nil
	case containsAny(lowered, "payment order", "create order", "pay for", "make a payment", "pay now"):
		return r.resolvePaymentOrder(lowered), nil
	case containsAny(lowered, "book", "reserve", "reservation", "booking"):
		return r.resolveBookTour(lowered), nil
	case containsAny(lowered, "weather", "forecast", "temperature", "raining", "rain today", "how hot", "how cold"):
		return r.resolveWeather(lowered, rc), nil
	case containsAny(lowered, "directions", "direction to", "navigate", "how do i get", "how to get", "route to", "way to"):
		return r.resolveNavigation(lowered, rc), nil
	case looksLikeGreeting(lowered):
		return &domain.Intent{Type: domain.IntentGeneralChat}, nil
	}

	// Anything conversational falls through to general chat; only text with
	// no recognizable vocabulary at all is Unknown.
	if looksConversational(lowered) {
		return &domain.Intent{Type: domain.IntentGeneralChat}, nil
	}
	return &domain.Intent{Type: domain.IntentUnknown}, nil
}

func (r *RuleResolver) resolveBookTour(text string) *domain.Intent {
	slots := &domain.BookTourSlots{}

	if m := tourNameRe.FindStringSubmatch(text); len(m) == 2 {
		slots.TourName = strings.TrimSpace(m[1])
	}
	if m := guestCountRe.FindStringSubmatch(text); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			slots.GuestCount = n
		}
	}
	slots.Date = r.extractDate(text)
	if m := phoneRe.FindString(text); m != "" {
		slots.ContactPhone = m
	}

	intent := &domain.Intent{Type: domain.IntentBookTour, BookTour: slots}
	if slots.TourID == "" && slots.TourName == "" {
		intent.MissingSlots = append(intent.MissingSlots, "tour")
	}
	if slots.Date == "" {
		intent.MissingSlots = append(intent.MissingSlots, "date")
	}
	if slots.GuestCount <= 0 {
		intent.MissingSlots = append(intent.MissingSlots, "guest_count")
	}
	return intent
}

func (r *RuleResolver) resolvePaymentOrder(text string) *domain.Intent {
	slots := &domain.PaymentOrderSlots{}

	if m := amountRe.FindStringSubmatch(text); len(m) == 2 {
		raw := strings.ReplaceAll(m[1], ",", "")
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			slots.Amount = n * 100 // major units in text, minor units on the wire
		}
	} else if m := bareNumberRe.FindStringSubmatch(text); len(m) == 2 {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			slots.Amount = n * 100
		}
	}

	intent := &domain.Intent{Type: domain.IntentCreatePaymentOrder, PaymentOrder: slots}
	if slots.Amount <= 0 {
		intent.MissingSlots = append(intent.MissingSlots, "amount")
	}
	return intent
}

func (r *RuleResolver) resolveVerifyPayment(text string) *domain.Intent {
	slots := &domain.VerifyPaymentSlots{
		OrderID:   orderIDRe.FindString(text),
		PaymentID: paymentIDRe.FindString(text),
		Signature: signatureRe.FindString(text),
	}

	intent := &domain.Intent{Type: domain.IntentVerifyPayment, VerifyPayment: slots}
	if slots.OrderID == "" {
		intent.MissingSlots = append(intent.MissingSlots, "order_id")
	}
	if slots.PaymentID == "" {
		intent.MissingSlots = append(intent.MissingSlots, "payment_id")
	}
	if slots.Signature == "" {
		intent.MissingSlots = append(intent.MissingSlots, "signature")
	}
	return intent
}

func (r *RuleResolver) resolveWeather(text string, rc ResolveContext) *domain.Intent {
	slots := &domain.WeatherSlots{}
	if m := weatherInRe.FindStringSubmatch(text); len(m) == 2 {
		slots.Destination = strings.TrimSpace(m[1])
	}
	if slots.Destination == "" && rc.Location != nil {
		slots.Location = rc.Location
	}

	intent := &domain.Intent{Type: domain.IntentGetWeather, Weather: slots}
	if slots.Destination == "" && slots.Location == nil {
		intent.MissingSlots = append(intent.MissingSlots, "destination")
	}
	return intent
}

func (r *RuleResolver) resolveNavigation(text string, rc ResolveContext) *domain.Intent {
	slots := &domain.NavigationSlots{Origin: rc.Location}
	if m := navToRe.FindStringSubmatch(text); len(m) >= 2 {
		slots.Destination = strings.TrimSpace(m[1])
	}

	intent := &domain.Intent{Type: domain.IntentGetNavigation, Navigation: slots}
	if slots.Destination == "" {
		intent.MissingSlots = append(intent.MissingSlots, "destination")
	}
	return intent
}

// extractDate handles ISO dates plus the relative phrases travellers
// actually type. Returns ISO 8601 or "".
func (r *RuleResolver) extractDate(text string) string {
	if m := isoDateRe.FindString(text); m != "" {
		return m
	}
	today := r.now().UTC().Truncate(24 * time.Hour)
	switch {
	case strings.Contains(text, "day after tomorrow"):
		return today.AddDate(0, 0, 2).Format("2006-01-02")
	case strings.Contains(text, "tomorrow"):
		return today.AddDate(0, 0, 1).Format("2006-01-02")
	case strings.Contains(text, "today"), strings.Contains(text, "tonight"):
		return today.Format("2006-01-02")
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if strings.Contains(text, "on "+name) || strings.Contains(text, "next "+name) {
			days := (int(wd) - int(today.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			return today.AddDate(0, 0, days).Format("2006-01-02")
		}
	}
	return ""
}

var affirmatives = []string{
	"yes", "yep", "yeah", "sure", "ok", "okay", "confirm", "go ahead",
	"do it", "proceed", "sounds good", "si", "sí", "ya", "confirm booking",
	"confirm payment", "retry", "try again", "reintentar", "coba lagi",
	"ulangi",
}

var negatives = []string{
	"no", "nope", "cancel", "stop", "don't", "do not", "nevermind",
	"never mind", "not now", "cancelar", "batal", "batalkan",
}

// IsAffirmative reports whether text reads as a confirmation of the
// pending action (typed or tapped from a quick reply).
func IsAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, a := range affirmatives {
		if t == a || strings.HasPrefix(t, a+" ") || strings.HasPrefix(t, a+",") {
			return true
		}
	}
	return false
}

// IsNegative reports whether text declines the pending action.
func IsNegative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, n := range negatives {
		if t == n || strings.HasPrefix(t, n+" ") || strings.HasPrefix(t, n+",") {
			return true
		}
	}
	return false
}

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "help": true,
}

var greetingPhrases = []string{
	"thank you", "what can you do", "good morning", "good evening",
}

// looksLikeGreeting matches greeting vocabulary on word boundaries only;
// a substring match would read "matching" or "they" as a salutation.
func looksLikeGreeting(text string) bool {
	for _, p := range greetingPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if greetingWords[w] {
			return true
		}
	}
	return false
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

var conversationalWords = []string{
	"you", "i ", "my", "we", "please", "can", "what", "where", "when",
	"how", "recommend", "suggest", "tell", "show", "trip", "travel",
	"hotel", "beach", "visit",
}

func looksConversational(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	for _, w := range conversationalWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
