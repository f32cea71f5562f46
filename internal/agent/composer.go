package agent

import (
	"encoding/json"
	"fmt"

	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/provider"
)

// Composer builds the channel-neutral reply for a turn from the policy
// decision and the tool-call results. It never talks to a channel; payload
// limits are the channel adapter's problem.
type Composer struct{}

// NewComposer creates a response composer.
func NewComposer() *Composer {
	return &Composer{}
}

// capabilities is the static top-level menu offered on declines and greetings.
var capabilities = []string{"Book a tour", "Check weather", "Get directions"}

// Compose turns a processed turn into a reply, localized to lang.
func (c *Composer) Compose(turn *domain.Turn, lang string) domain.Reply {
	t := catalogFor(lang)

	switch turn.Decision {
	case domain.DecisionDecline:
		return domain.Reply{Text: t.decline}.WithQuickReplies(capabilities...)
	case domain.DecisionConfirm:
		return c.composeConfirm(turn, t)
	default:
		return c.composeExecuted(turn, t)
	}
}

// Timeout is the reply committed for a turn cancelled by its deadline.
func (c *Composer) Timeout(lang string) domain.Reply {
	t := catalogFor(lang)
	return domain.Reply{Text: t.timeout}.WithQuickReplies(t.retry)
}

// composeConfirm states exactly what will happen if confirmed, or asks for
// the slots still missing.
func (c *Composer) composeConfirm(turn *domain.Turn, t catalog) domain.Reply {
	intent := turn.Intent
	if intent == nil {
		return domain.Reply{Text: t.decline}.WithQuickReplies(capabilities...)
	}

	if !intent.FullySpecified() {
		return domain.Reply{
			Text: fmt.Sprintf(t.askMissing, missingSlotList(intent, t)),
		}.WithQuickReplies(t.cancel)
	}

	switch intent.Type {
	case domain.IntentBookTour:
		s := intent.BookTour
		name := s.TourName
		if name == "" {
			name = s.TourID
		}
		return domain.Reply{
			Text: fmt.Sprintf(t.confirmBooking, name, s.GuestCount, s.Date),
		}.WithQuickReplies(t.confirmYes, t.cancel)
	case domain.IntentCreatePaymentOrder:
		s := intent.PaymentOrder
		return domain.Reply{
			Text: fmt.Sprintf(t.confirmPayment, formatAmount(s.Amount, s.Currency)),
		}.WithQuickReplies(t.confirmYes, t.cancel)
	case domain.IntentVerifyPayment:
		return domain.Reply{
			Text: t.confirmVerify,
		}.WithQuickReplies(t.confirmYes, t.cancel)
	default:
		return domain.Reply{Text: t.decline}.WithQuickReplies(capabilities...)
	}
}

// composeExecuted surfaces tool-call outcomes. For partial-failure chains
// the reply enumerates which steps succeeded and which failed, and offers
// a remediation quick reply; it never claims success for a failed payment.
func (c *Composer) composeExecuted(turn *domain.Turn, t catalog) domain.Reply {
	intent := turn.Intent
	if intent == nil {
		return domain.Reply{Text: t.chat}.WithQuickReplies(capabilities...)
	}

	switch intent.Type {
	case domain.IntentGeneralChat:
		return domain.Reply{Text: t.chat}.WithQuickReplies(capabilities...)
	case domain.IntentGetWeather:
		return c.composeWeather(turn, t)
	case domain.IntentGetNavigation:
		return c.composeNavigation(turn, t)
	case domain.IntentBookTour:
		return c.composeBookingChain(turn, t)
	case domain.IntentCreatePaymentOrder:
		return c.composeOrder(turn, t)
	case domain.IntentVerifyPayment:
		return c.composeVerification(turn, t)
	default:
		return domain.Reply{Text: t.decline}.WithQuickReplies(capabilities...)
	}
}

func (c *Composer) composeWeather(turn *domain.Turn, t catalog) domain.Reply {
	call := firstCall(turn)
	if call == nil || !call.Succeeded() {
		return failureReply(call, t)
	}
	var report provider.WeatherReport
	if err := json.Unmarshal(call.Result, &report); err != nil {
		return failureReply(call, t)
	}
	return domain.Reply{
		Text: fmt.Sprintf(t.weather, report.Place, report.TempC, report.Condition),
	}
}

func (c *Composer) composeNavigation(turn *domain.Turn, t catalog) domain.Reply {
	call := firstCall(turn)
	if call == nil || !call.Succeeded() {
		return failureReply(call, t)
	}
	var route provider.Route
	if err := json.Unmarshal(call.Result, &route); err != nil {
		return failureReply(call, t)
	}
	reply := domain.Reply{
		Text: fmt.Sprintf(t.navigation, route.Destination, route.DistanceKm, route.DurationMin),
	}
	if route.MapURL != "" {
		reply.Buttons = []domain.Button{{Label: t.openMap, Action: route.MapURL}}
	}
	return reply
}

func (c *Composer) composeBookingChain(turn *domain.Turn, t catalog) domain.Reply {
	if len(turn.ToolCalls) == 0 {
		return domain.Reply{Text: t.genericFailure}.WithQuickReplies(t.retry)
	}

	bookCall := &turn.ToolCalls[0]
	if !bookCall.Succeeded() {
		reply := domain.Reply{Text: fmt.Sprintf(t.bookingFailed, bookCall.Error)}
		if bookCall.Status == domain.ToolCallRetryableFailure {
			return reply.WithQuickReplies(t.retry)
		}
		return reply.WithQuickReplies(capabilities[0])
	}

	var booked provider.BookingResult
	_ = json.Unmarshal(bookCall.Result, &booked)

	if len(turn.ToolCalls) < 2 || !turn.ToolCalls[1].Succeeded() {
		// Booking went through, payment did not. Keep the two outcomes
		// visibly separate and propose remediation.
		reason := t.genericFailure
		if len(turn.ToolCalls) >= 2 {
			reason = turn.ToolCalls[1].Error
		}
		return domain.Reply{
			Text: fmt.Sprintf(t.bookingPaidPartial, booked.ConfirmationCode, reason),
		}.WithQuickReplies(t.retryPayment, t.cancelBooking)
	}

	var order provider.Order
	_ = json.Unmarshal(turn.ToolCalls[1].Result, &order)
	return domain.Reply{
		Text: fmt.Sprintf(t.bookingComplete, booked.ConfirmationCode, order.OrderID, formatAmount(order.Amount, order.Currency)),
		Buttons: []domain.Button{
			{Label: t.payNow, Action: "pay:" + order.OrderID},
		},
	}
}

func (c *Composer) composeOrder(turn *domain.Turn, t catalog) domain.Reply {
	call := firstCall(turn)
	if call == nil || !call.Succeeded() {
		return failureReply(call, t)
	}
	var order provider.Order
	if err := json.Unmarshal(call.Result, &order); err != nil {
		return failureReply(call, t)
	}
	return domain.Reply{
		Text: fmt.Sprintf(t.orderCreated, order.OrderID, formatAmount(order.Amount, order.Currency)),
		Buttons: []domain.Button{
			{Label: t.payNow, Action: "pay:" + order.OrderID},
		},
	}
}

func (c *Composer) composeVerification(turn *domain.Turn, t catalog) domain.Reply {
	call := firstCall(turn)
	if call != nil && call.Succeeded() {
		return domain.Reply{Text: t.paymentVerified}
	}
	// A signature mismatch is final; never offer a retry for it.
	return domain.Reply{Text: t.paymentRejected}.WithQuickReplies(t.contactSupport)
}

func firstCall(turn *domain.Turn) *domain.ToolCall {
	if len(turn.ToolCalls) == 0 {
		return nil
	}
	return &turn.ToolCalls[0]
}

func failureReply(call *domain.ToolCall, t catalog) domain.Reply {
	if call == nil {
		return domain.Reply{Text: t.genericFailure}.WithQuickReplies(t.retry)
	}
	reply := domain.Reply{Text: fmt.Sprintf(t.lookupFailed, call.Error)}
	if call.Status == domain.ToolCallRetryableFailure {
		return reply.WithQuickReplies(t.retry)
	}
	return reply.WithQuickReplies(capabilities...)
}

func missingSlotList(intent *domain.Intent, t catalog) string {
	out := ""
	for i, slot := range intent.MissingSlots {
		if i > 0 {
			out += ", "
		}
		if label, ok := t.slotLabels[slot]; ok {
			out += label
		} else {
			out += slot
		}
	}
	return out
}

func formatAmount(amount int64, currency string) string {
	if currency == "" {
		currency = "INR"
	}
	return fmt.Sprintf("%s %d.%02d", currency, amount/100, amount%100)
}

// catalog holds the per-language message strings. Keys with fmt verbs are
// documented at their en entry.
type catalog struct {
	decline            string
	chat               string
	askMissing         string // %s = comma-separated slot labels
	confirmBooking     string // %s tour, %d guests, %s date
	confirmPayment     string // %s amount
	confirmVerify      string
	confirmYes         string
	cancel             string
	retry              string
	retryPayment       string
	cancelBooking      string
	payNow             string
	openMap            string
	contactSupport     string
	weather            string // %s place, %.0f temp, %s condition
	navigation         string // %s destination, %.1f km, %d minutes
	bookingComplete    string // %s confirmation, %s order id, %s amount
	bookingPaidPartial string // %s confirmation, %s payment error
	bookingFailed      string // %s error
	orderCreated       string // %s order id, %s amount
	paymentVerified    string
	paymentRejected    string
	lookupFailed       string // %s error
	genericFailure     string
	timeout            string
	slotLabels         map[string]string
}

var catalogs = map[string]catalog{
	"en": {
		decline:            "I didn't catch that. Here's what I can help with:",
		chat:               "Happy to help plan your trip! What would you like to do?",
		askMissing:         "I can set that up — I just need a few details: %s.",
		confirmBooking:     "I'll book the %s for %d guest(s) on %s and create the payment order. Shall I go ahead?",
		confirmPayment:     "I'll create a payment order for %s. Shall I go ahead?",
		confirmVerify:      "I'll verify that payment signature now. Shall I go ahead?",
		confirmYes:         "Yes, go ahead",
		cancel:             "Cancel",
		retry:              "Try again",
		retryPayment:       "Retry payment",
		cancelBooking:      "Cancel booking",
		payNow:             "Pay now",
		openMap:            "Open map",
		contactSupport:     "Contact support",
		weather:            "Weather in %s: %.0f°C, %s.",
		navigation:         "Route to %s: %.1f km, about %d minutes.",
		bookingComplete:    "Booked! Confirmation code %s. Payment order %s for %s is ready.",
		bookingPaidPartial: "Your booking is confirmed (code %s), but the payment step failed: %s. The booking is held without payment.",
		bookingFailed:      "I couldn't complete the booking: %s",
		orderCreated:       "Payment order %s for %s is ready.",
		paymentVerified:    "Payment verified — you're all set.",
		paymentRejected:    "That payment could not be verified. No charge has been confirmed.",
		lookupFailed:       "I couldn't fetch that right now: %s",
		genericFailure:     "Something went wrong on my side.",
		timeout:            "That took longer than expected and was cancelled. Nothing was changed.",
		slotLabels: map[string]string{
			"tour":        "which tour",
			"date":        "the date",
			"guest_count": "how many guests",
			"amount":      "the amount",
			"destination": "the destination",
			"order_id":    "the order id",
			"payment_id":  "the payment id",
			"signature":   "the payment signature",
		},
	},
	"es": {
		decline:            "No entendí eso. Esto es lo que puedo hacer:",
		chat:               "¡Encantado de ayudarte con tu viaje! ¿Qué te gustaría hacer?",
		askMissing:         "Puedo organizarlo — solo necesito algunos datos: %s.",
		confirmBooking:     "Reservaré el %s para %d persona(s) el %s y crearé la orden de pago. ¿Procedo?",
		confirmPayment:     "Crearé una orden de pago por %s. ¿Procedo?",
		confirmVerify:      "Verificaré esa firma de pago ahora. ¿Procedo?",
		confirmYes:         "Sí, adelante",
		cancel:             "Cancelar",
		retry:              "Reintentar",
		retryPayment:       "Reintentar pago",
		cancelBooking:      "Cancelar reserva",
		payNow:             "Pagar ahora",
		openMap:            "Abrir mapa",
		contactSupport:     "Contactar soporte",
		weather:            "Clima en %s: %.0f°C, %s.",
		navigation:         "Ruta a %s: %.1f km, unos %d minutos.",
		bookingComplete:    "¡Reservado! Código de confirmación %s. La orden de pago %s por %s está lista.",
		bookingPaidPartial: "Tu reserva está confirmada (código %s), pero el pago falló: %s. La reserva queda sin pagar.",
		bookingFailed:      "No pude completar la reserva: %s",
		orderCreated:       "La orden de pago %s por %s está lista.",
		paymentVerified:    "Pago verificado — todo listo.",
		paymentRejected:    "No se pudo verificar ese pago. No se ha confirmado ningún cargo.",
		lookupFailed:       "No pude consultarlo ahora: %s",
		genericFailure:     "Algo salió mal de mi lado.",
		timeout:            "Tardó demasiado y fue cancelado. No se cambió nada.",
		slotLabels: map[string]string{
			"tour":        "qué tour",
			"date":        "la fecha",
			"guest_count": "cuántas personas",
			"amount":      "el monto",
			"destination": "el destino",
			"order_id":    "el id de la orden",
			"payment_id":  "el id del pago",
			"signature":   "la firma del pago",
		},
	},
	"id": {
		decline:            "Maaf, saya kurang paham. Ini yang bisa saya bantu:",
		chat:               "Senang membantu rencana perjalananmu! Mau apa hari ini?",
		askMissing:         "Bisa saya atur — saya hanya perlu beberapa detail: %s.",
		confirmBooking:     "Saya akan memesan %s untuk %d tamu pada %s dan membuat order pembayaran. Lanjutkan?",
		confirmPayment:     "Saya akan membuat order pembayaran sebesar %s. Lanjutkan?",
		confirmVerify:      "Saya akan memverifikasi tanda tangan pembayaran itu. Lanjutkan?",
		confirmYes:         "Ya, lanjutkan",
		cancel:             "Batal",
		retry:              "Coba lagi",
		retryPayment:       "Ulangi pembayaran",
		cancelBooking:      "Batalkan pesanan",
		payNow:             "Bayar sekarang",
		openMap:            "Buka peta",
		contactSupport:     "Hubungi dukungan",
		weather:            "Cuaca di %s: %.0f°C, %s.",
		navigation:         "Rute ke %s: %.1f km, sekitar %d menit.",
		bookingComplete:    "Berhasil dipesan! Kode konfirmasi %s. Order pembayaran %s sebesar %s sudah siap.",
		bookingPaidPartial: "Pesananmu terkonfirmasi (kode %s), tapi pembayaran gagal: %s. Pesanan ditahan tanpa pembayaran.",
		bookingFailed:      "Pemesanan gagal: %s",
		orderCreated:       "Order pembayaran %s sebesar %s sudah siap.",
		paymentVerified:    "Pembayaran terverifikasi — semua beres.",
		paymentRejected:    "Pembayaran itu tidak dapat diverifikasi. Tidak ada tagihan yang dikonfirmasi.",
		lookupFailed:       "Tidak bisa mengambil data itu sekarang: %s",
		genericFailure:     "Ada masalah di sisi saya.",
		timeout:            "Prosesnya terlalu lama dan dibatalkan. Tidak ada yang berubah.",
		slotLabels: map[string]string{
			"tour":        "tur yang mana",
			"date":        "tanggalnya",
			"guest_count": "jumlah tamu",
			"amount":      "jumlahnya",
			"destination": "tujuannya",
			"order_id":    "id order",
			"payment_id":  "id pembayaran",
			"signature":   "tanda tangan pembayaran",
		},
	},
}

func catalogFor(lang string) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs["en"]
}
