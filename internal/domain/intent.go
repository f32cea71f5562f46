package domain

// IntentType identifies one variant of the closed intent set. The autonomy
// policy switches exhaustively over these values; adding a type here means
// extending the policy table and the dispatcher chain map.
type IntentType string

const (
	IntentBookTour           IntentType = "book_tour"
	IntentCreatePaymentOrder IntentType = "create_payment_order"
	IntentVerifyPayment      IntentType = "verify_payment"
	IntentGetWeather         IntentType = "get_weather"
	IntentGetNavigation      IntentType = "get_navigation"
	IntentGeneralChat        IntentType = "general_chat"
	IntentUnknown            IntentType = "unknown"
)

// BookTourSlots carries the extracted parameters for a tour booking.
type BookTourSlots struct {
	TourID       string `json:"tour_id,omitempty"`
	TourName     string `json:"tour_name,omitempty"`
	Date         string `json:"date,omitempty"` // ISO 8601 date
	GuestCount   int    `json:"guest_count,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// PaymentOrderSlots carries the parameters for creating a payment order.
type PaymentOrderSlots struct {
	Amount   int64  `json:"amount,omitempty"` // smallest currency unit
	Currency string `json:"currency,omitempty"`
	Receipt  string `json:"receipt,omitempty"`
}

// VerifyPaymentSlots carries the parameters for a payment signature check.
type VerifyPaymentSlots struct {
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// WeatherSlots carries the parameters for a weather lookup.
type WeatherSlots struct {
	Destination string    `json:"destination,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

// NavigationSlots carries the parameters for a navigation lookup.
type NavigationSlots struct {
	Destination string    `json:"destination,omitempty"`
	Origin      *Location `json:"origin,omitempty"`
}

// Intent is the typed result of resolving a free-text message. Exactly one
// slot set is populated, matching Type; Unknown and GeneralChat carry none.
type Intent struct {
	Type          IntentType          `json:"type"`
	BookTour      *BookTourSlots      `json:"book_tour,omitempty"`
	PaymentOrder  *PaymentOrderSlots  `json:"payment_order,omitempty"`
	VerifyPayment *VerifyPaymentSlots `json:"verify_payment,omitempty"`
	Weather       *WeatherSlots       `json:"weather,omitempty"`
	Navigation    *NavigationSlots    `json:"navigation,omitempty"`

	// MissingSlots lists required slots the resolver recognized but could
	// not extract. A non-empty list forces a CONFIRM decision.
	MissingSlots []string `json:"missing_slots,omitempty"`
}

// HasSideEffects reports whether executing the intent can change external
// state (create a booking, move money).
func (i *Intent) HasSideEffects() bool {
	switch i.Type {
	case IntentBookTour, IntentCreatePaymentOrder, IntentVerifyPayment:
		return true
	}
	return false
}

// PaymentBearing reports whether the intent touches money directly.
func (i *Intent) PaymentBearing() bool {
	switch i.Type {
	case IntentCreatePaymentOrder, IntentVerifyPayment:
		return true
	case IntentBookTour:
		// A booking chain ends in a payment order.
		return false
	}
	return false
}

// FullySpecified reports whether all required slots were extracted.
func (i *Intent) FullySpecified() bool {
	return len(i.MissingSlots) == 0
}
