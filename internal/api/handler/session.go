package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wanderio/concierge/internal/agent"
	"github.com/wanderio/concierge/internal/api/response"
	"github.com/wanderio/concierge/internal/domain"
)

// SessionHandler serves session info and turn history
type SessionHandler struct {
	orchestrator *agent.Orchestrator
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(orchestrator *agent.Orchestrator) *SessionHandler {
	return &SessionHandler{orchestrator: orchestrator}
}

// Get returns the session's autonomy level, language and capabilities
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	info, err := h.orchestrator.SessionInfo(r.Context(), sessionID)
	if err != nil {
		writeAgentError(w, err)
		return
	}
	response.OK(w, info)
}

// ListTurns returns the committed turn history, newest last
func (h *SessionHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.orchestrator.SessionTurns(r.Context(), sessionID)
	if err != nil {
		writeAgentError(w, err)
		return
	}

	// Optional tail limit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(turns) {
			turns = turns[len(turns)-limit:]
		}
	}

	response.OK(w, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
	})
}

type setAutonomyRequest struct {
	Autonomy string `json:"autonomy_level" validate:"required,oneof=manual assisted autonomous"`
}

// SetAutonomy changes the session's autonomy level
func (h *SessionHandler) SetAutonomy(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req setAutonomyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.orchestrator.SetAutonomy(r.Context(), sessionID, domain.AutonomyLevel(req.Autonomy)); err != nil {
		writeAgentError(w, err)
		return
	}
	response.OK(w, map[string]string{
		"session_id":     sessionID,
		"autonomy_level": req.Autonomy,
	})
}
