package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wanderio/concierge/internal/agent"
	"github.com/wanderio/concierge/internal/api/response"
	"github.com/wanderio/concierge/internal/channel"
)

// WebhookHandler handles the asynchronous messaging channel. The webhook
// acknowledges receipt immediately; the composed reply is pushed back
// through the transport once the turn commits.
type WebhookHandler struct {
	orchestrator *agent.Orchestrator
	adapter      *channel.WhatsAppAdapter
	countryCode  string
	turnTimeout  time.Duration
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(orchestrator *agent.Orchestrator, adapter *channel.WhatsAppAdapter, countryCode string, turnTimeout time.Duration) *WebhookHandler {
	if turnTimeout <= 0 {
		turnTimeout = 45 * time.Second
	}
	return &WebhookHandler{
		orchestrator: orchestrator,
		adapter:      adapter,
		countryCode:  countryCode,
		turnTimeout:  turnTimeout,
	}
}

type inboundMessage struct {
	From string `json:"from" validate:"required"`
	Body string `json:"body" validate:"required,max=4096"`
}

// Receive validates the inbound message, acknowledges it, and processes
// the turn in the background. A malformed sender number is rejected here,
// before any session or provider work happens.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var msg inboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(msg); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	phone, err := channel.NormalizePhone(msg.From, h.countryCode)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if !h.adapter.Ready() {
		response.Error(w, http.StatusServiceUnavailable, "messaging transport not configured")
		return
	}

	go h.process(phone, msg.Body)

	response.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// process runs the turn and delivers the reply. It gets its own context;
// the webhook request is long gone by the time the turn commits.
func (h *WebhookHandler) process(phone, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.turnTimeout)
	defer cancel()

	result, err := h.orchestrator.ProcessMessage(ctx, agent.MessageRequest{
		Text:      body,
		SessionID: channel.SessionIDForPhone(phone),
	})
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("webhook turn failed")
		return
	}

	if err := h.adapter.Deliver(ctx, phone, result.Reply); err != nil {
		// The turn is already committed; delivery failure is logged only.
		log.Error().Err(err).Str("session_id", result.SessionID).Msg("reply delivery failed")
	}
}
