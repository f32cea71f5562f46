package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/wanderio/concierge/internal/agent"
	"github.com/wanderio/concierge/internal/api/response"
	"github.com/wanderio/concierge/internal/channel"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/security"
)

var validate = validator.New()

// MessageHandler handles the synchronous web channel
type MessageHandler struct {
	orchestrator *agent.Orchestrator
	tokens       *security.TokenManager
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(orchestrator *agent.Orchestrator, tokens *security.TokenManager) *MessageHandler {
	return &MessageHandler{orchestrator: orchestrator, tokens: tokens}
}

type sendMessageRequest struct {
	SessionID string           `json:"session_id"`
	Text      string           `json:"text" validate:"required,max=4096"`
	Language  string           `json:"language" validate:"omitempty,min=2,max=8"`
	Autonomy  string           `json:"autonomy_level" validate:"omitempty,oneof=manual assisted autonomous"`
	Location  *domain.Location `json:"location"`
}

type sendMessageResponse struct {
	*agent.MessageResult
	SessionToken string `json:"session_token,omitempty"`
}

// Send processes one message and returns the composed reply in the HTTP
// response. The reply includes a session token the client can use for the
// session info and history endpoints.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.orchestrator.ProcessMessage(r.Context(), agent.MessageRequest{
		Text:      req.Text,
		SessionID: req.SessionID,
		Language:  req.Language,
		Autonomy:  domain.AutonomyLevel(req.Autonomy),
		Location:  req.Location,
	})
	if err != nil {
		writeAgentError(w, err)
		return
	}

	resp := sendMessageResponse{MessageResult: result}
	if token, err := h.tokens.IssueSessionToken(result.SessionID, channel.ChannelWeb); err == nil {
		resp.SessionToken = token
	}
	response.OK(w, resp)
}

// writeAgentError maps orchestrator errors onto HTTP statuses.
func writeAgentError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrSessionBusy):
		response.Error(w, http.StatusConflict, "a message is already being processed for this session")
	case errors.Is(err, domain.ErrSessionNotFound):
		response.NotFound(w, "session not found")
	case errors.As(err, &ve):
		response.BadRequest(w, ve.Error())
	default:
		response.InternalError(w, err.Error())
	}
}
