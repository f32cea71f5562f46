package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/wanderio/concierge/internal/agent"
	"github.com/wanderio/concierge/internal/domain"
)

// Resolver classifies messages with a Gemini model and falls back to the
// deterministic rule resolver when the model is unavailable or returns
// something unparseable. It satisfies the same contract as the rules: no
// side effects, and unparseable input degrades to Unknown rather than an
// error.
type Resolver struct {
	apiKey   string
	model    string
	fallback agent.Resolver
}

// NewResolver creates a Gemini-backed resolver. fallback must not be nil.
func NewResolver(apiKey, model string, fallback agent.Resolver) *Resolver {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Resolver{
		apiKey:   apiKey,
		model:    model,
		fallback: fallback,
	}
}

func (r *Resolver) Name() string {
	return "gemini"
}

func (r *Resolver) IsConfigured() bool {
	return r.apiKey != ""
}

const classifyPrompt = `You are the intent classifier for a travel concierge. Classify the user
message into exactly one intent and extract its slots. Respond with a
single JSON object and nothing else, no markdown fences.

Intents and slots:
- book_tour: tour_name, tour_id, date (ISO 8601), guest_count (int), contact_name, contact_phone
- create_payment_order: amount (integer, minor currency units), currency, receipt
- verify_payment: order_id, payment_id, signature
- get_weather: destination
- get_navigation: destination, origin
- general_chat: no slots
- unknown: no slots

Output shape:
{"intent": "<type>", "slots": {...}, "missing": ["<slot>", ...]}

List in "missing" every slot required to act that the message does not
supply. For book_tour the required slots are tour (name or id), date and
guest_count. Omit slots you did not find.

User language: %s
User message: %s`

type classification struct {
	Intent  string         `json:"intent"`
	Slots   map[string]any `json:"slots"`
	Missing []string       `json:"missing"`
}

// Resolve asks the model for a classification. Any failure along the way
// falls back to the rule resolver so a provider outage never blocks turns.
func (r *Resolver) Resolve(ctx context.Context, text string, rc agent.ResolveContext) (*domain.Intent, error) {
	if !r.IsConfigured() {
		return r.fallback.Resolve(ctx, text, rc)
	}

	out, err := r.generate(ctx, fmt.Sprintf(classifyPrompt, orDefault(rc.Language, "en"), text))
	if err != nil {
		log.Warn().Err(err).Str("session_id", rc.SessionID).Msg("gemini classification failed, using rules")
		return r.fallback.Resolve(ctx, text, rc)
	}

	intent, err := parseClassification(out, rc)
	if err != nil {
		log.Warn().Err(err).Str("session_id", rc.SessionID).Msg("unparseable gemini classification, using rules")
		return r.fallback.Resolve(ctx, text, rc)
	}
	return intent, nil
}

func (r *Resolver) generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(r.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(r.model)
	// Temperature 0 keeps classification deterministic.
	var temperature float32 = 0.0
	model.Temperature = &temperature
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}

func parseClassification(raw string, rc agent.ResolveContext) (*domain.Intent, error) {
	raw = stripFences(raw)

	var c classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}

	intent := &domain.Intent{MissingSlots: c.Missing}
	switch domain.IntentType(c.Intent) {
	case domain.IntentBookTour:
		intent.Type = domain.IntentBookTour
		intent.BookTour = &domain.BookTourSlots{
			TourID:       slotString(c.Slots, "tour_id"),
			TourName:     slotString(c.Slots, "tour_name"),
			Date:         slotString(c.Slots, "date"),
			GuestCount:   slotInt(c.Slots, "guest_count"),
			ContactName:  slotString(c.Slots, "contact_name"),
			ContactPhone: slotString(c.Slots, "contact_phone"),
		}
	case domain.IntentCreatePaymentOrder:
		intent.Type = domain.IntentCreatePaymentOrder
		intent.PaymentOrder = &domain.PaymentOrderSlots{
			Amount:   int64(slotInt(c.Slots, "amount")),
			Currency: slotString(c.Slots, "currency"),
			Receipt:  slotString(c.Slots, "receipt"),
		}
	case domain.IntentVerifyPayment:
		intent.Type = domain.IntentVerifyPayment
		intent.VerifyPayment = &domain.VerifyPaymentSlots{
			OrderID:   slotString(c.Slots, "order_id"),
			PaymentID: slotString(c.Slots, "payment_id"),
			Signature: slotString(c.Slots, "signature"),
		}
	case domain.IntentGetWeather:
		intent.Type = domain.IntentGetWeather
		intent.Weather = &domain.WeatherSlots{Destination: slotString(c.Slots, "destination")}
		if intent.Weather.Destination == "" && rc.Location != nil {
			intent.Weather.Location = rc.Location
			intent.MissingSlots = removeSlot(intent.MissingSlots, "destination")
		}
	case domain.IntentGetNavigation:
		intent.Type = domain.IntentGetNavigation
		intent.Navigation = &domain.NavigationSlots{
			Destination: slotString(c.Slots, "destination"),
			Origin:      rc.Location,
		}
	case domain.IntentGeneralChat:
		intent.Type = domain.IntentGeneralChat
	case domain.IntentUnknown:
		intent.Type = domain.IntentUnknown
	default:
		return nil, fmt.Errorf("unrecognized intent %q", c.Intent)
	}
	return intent, nil
}

// stripFences tolerates models that wrap JSON in markdown fences despite
// the instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func slotString(slots map[string]any, key string) string {
	if v, ok := slots[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func slotInt(slots map[string]any, key string) int {
	switch v := slots[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}

func removeSlot(slots []string, name string) []string {
	out := slots[:0]
	for _, s := range slots {
		if s != name {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
