package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/observability"
	"github.com/wanderio/concierge/internal/session"
)

// MessageRequest is one inbound user message, already validated.
type MessageRequest struct {
	Text      string
	SessionID string
	Location  *domain.Location
	Language  string
	Autonomy  domain.AutonomyLevel // optional override, empty keeps current
}

// MessageResult is the outcome of a processed turn.
type MessageResult struct {
	SessionID string               `json:"session_id"`
	Reply     domain.Reply         `json:"reply"`
	Autonomy  domain.AutonomyLevel `json:"autonomy_level"`
	Timestamp time.Time            `json:"timestamp"`
}

// Options tunes the orchestrator.
type Options struct {
	TurnTimeout time.Duration
}

// Orchestrator runs the full pipeline for an inbound message: session
// lock, intent resolution, autonomy decision, tool dispatch, reply
// composition, turn commit. It owns the capability provider handles for
// its whole lifetime.
type Orchestrator struct {
	store      *session.Store
	resolver   Resolver
	dispatcher *Dispatcher
	composer   *Composer
	metrics    *observability.Metrics
	opts       Options
}

// NewOrchestrator wires the orchestrator core.
func NewOrchestrator(store *session.Store, resolver Resolver, dispatcher *Dispatcher, composer *Composer, metrics *observability.Metrics, opts Options) *Orchestrator {
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		composer:   composer,
		metrics:    metrics,
		opts:       opts,
	}
}

// ProcessMessage handles one inbound message end to end. Every path that
// enters the critical section commits exactly one turn, even on provider
// failure or turn timeout; only lock contention rejects the message.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req MessageRequest) (*MessageResult, error) {
	start := time.Now()
	var result *MessageResult

	sess, err := o.store.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	sessionID := sess.ID

	err = o.store.WithLock(ctx, sessionID, func(sess *domain.Session) error {
		applyOverrides(sess, req)

		turn := domain.Turn{
			ID:        uuid.New(),
			SessionID: sess.ID,
			Input:     req.Text,
			CreatedAt: time.Now().UTC(),
		}

		intent, resumed := o.resolveTurn(ctx, req.Text, sess)
		turn.Intent = intent

		if resumed {
			// An affirmative reply to a pending confirmation resumes
			// execution without a second pass through the policy table.
			turn.Decision = domain.DecisionExecute
			sess.PendingIntent = nil
		} else {
			turn.Decision = Decide(intent, sess.AutonomyLevel)
		}

		switch turn.Decision {
		case domain.DecisionExecute:
			turnCtx, cancel := context.WithTimeout(ctx, o.opts.TurnTimeout)
			turn.ToolCalls = o.dispatcher.Execute(turnCtx, sess.ID, intent)
			timedOut := turnCtx.Err() != nil
			cancel()

			if timedOut {
				turn.TimedOut = true
				turn.Reply = o.composer.Timeout(sess.Language)
			} else {
				turn.Reply = o.composer.Compose(&turn, sess.Language)
			}

			if timedOut || retryOffered(turn.ToolCalls) {
				// The reply proposes retrying, so the intent stays pending
				// for the next affirmative turn. Steps that already
				// succeeded replay from the idempotency cache instead of
				// running twice.
				sess.PendingIntent = intent
			}
		case domain.DecisionConfirm:
			// Cache the pending intent so the next affirmative turn can
			// resume without re-resolving from scratch.
			sess.PendingIntent = intent
			turn.Reply = o.composer.Compose(&turn, sess.Language)
		default:
			turn.Reply = o.composer.Compose(&turn, sess.Language)
		}

		sess.Turns = append(sess.Turns, turn)

		result = &MessageResult{
			SessionID: sess.ID,
			Reply:     turn.Reply,
			Autonomy:  sess.AutonomyLevel,
			Timestamp: turn.CreatedAt,
		}

		o.observeTurn(&turn, time.Since(start))
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionBusy) {
			log.Warn().Str("session_id", sessionID).Msg("session lock contention")
		}
		return nil, err
	}
	return result, nil
}

// resolveTurn picks the intent for this turn, honoring a pending
// confirmation first. The second return is true when a pending intent is
// being resumed for execution.
func (o *Orchestrator) resolveTurn(ctx context.Context, text string, sess *domain.Session) (*domain.Intent, bool) {
	rc := ResolveContext{
		SessionID: sess.ID,
		Language:  sess.Language,
		Location:  sess.Location,
	}

	if sess.PendingIntent != nil {
		pending := sess.PendingIntent
		if pending.FullySpecified() && IsAffirmative(text) {
			return pending, true
		}
		if IsNegative(text) {
			sess.PendingIntent = nil
			return &domain.Intent{Type: domain.IntentGeneralChat}, false
		}

		fresh := o.resolve(ctx, text, rc)
		if fresh.Type == pending.Type {
			// A follow-up supplying the missing details merges into the
			// pending intent rather than starting over.
			merged := mergeIntents(pending, fresh)
			sess.PendingIntent = nil
			return merged, false
		}
		// Changed topic: the pending action is abandoned.
		sess.PendingIntent = nil
		return fresh, false
	}

	return o.resolve(ctx, text, rc), false
}

// resolve never lets a resolver failure surface as a hard error; a broken
// classifier degrades to Unknown, which declines with a clarifying reply.
func (o *Orchestrator) resolve(ctx context.Context, text string, rc ResolveContext) *domain.Intent {
	intent, err := o.resolver.Resolve(ctx, text, rc)
	if err != nil || intent == nil {
		log.Error().Err(err).Str("session_id", rc.SessionID).Msg("intent resolution failed")
		return &domain.Intent{Type: domain.IntentUnknown}
	}
	return intent
}

// SetAutonomy changes the session's autonomy level through the same
// locked path as message processing, so a level change can never race an
// in-flight turn.
func (o *Orchestrator) SetAutonomy(ctx context.Context, sessionID string, level domain.AutonomyLevel) error {
	if !level.Valid() {
		return &domain.ValidationError{Field: "autonomy_level", Message: "must be manual, assisted or autonomous"}
	}
	return o.store.WithLock(ctx, sessionID, func(sess *domain.Session) error {
		sess.AutonomyLevel = level
		return nil
	})
}

// SessionInfo returns the session's autonomy level and the static
// capability list advertised by the agent.
func (o *Orchestrator) SessionInfo(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		SessionID:    sess.ID,
		Autonomy:     sess.AutonomyLevel,
		Language:     sess.Language,
		TurnCount:    len(sess.Turns),
		Capabilities: Capabilities(),
		CreatedAt:    sess.CreatedAt,
	}, nil
}

// SessionTurns returns the committed turn history for a session.
func (o *Orchestrator) SessionTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	sess, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

// SessionInfo is the session/agent info query payload.
type SessionInfo struct {
	SessionID    string               `json:"session_id"`
	Autonomy     domain.AutonomyLevel `json:"autonomy_level"`
	Language     string               `json:"language"`
	TurnCount    int                  `json:"turn_count"`
	Capabilities []string             `json:"capabilities"`
	CreatedAt    time.Time            `json:"created_at"`
}

// Capabilities is the static feature list the agent advertises.
func Capabilities() []string {
	return []string{
		"book_tour",
		"create_payment_order",
		"verify_payment",
		"get_weather",
		"get_navigation",
		"general_chat",
	}
}

// applyOverrides folds per-message overrides into session state. The
// autonomy level changes only inside the locked turn path, never through
// a side channel, so a level change cannot race an in-flight message.
func applyOverrides(sess *domain.Session, req MessageRequest) {
	if req.Language != "" {
		sess.Language = req.Language
	}
	if req.Location != nil {
		loc := *req.Location
		sess.Location = &loc
	}
	if req.Autonomy != "" && req.Autonomy.Valid() {
		sess.AutonomyLevel = req.Autonomy
	}
}

// mergeIntents fills the pending intent's missing slots from a fresh
// resolution of the same type and recomputes what is still missing.
func mergeIntents(pending, fresh *domain.Intent) *domain.Intent {
	merged := *pending
	merged.MissingSlots = nil

	switch merged.Type {
	case domain.IntentBookTour:
		p, f := cloneBookTour(pending.BookTour), fresh.BookTour
		if f != nil {
			if p.TourID == "" {
				p.TourID = f.TourID
			}
			if p.TourName == "" {
				p.TourName = f.TourName
			}
			if p.Date == "" {
				p.Date = f.Date
			}
			if p.GuestCount == 0 {
				p.GuestCount = f.GuestCount
			}
			if p.ContactPhone == "" {
				p.ContactPhone = f.ContactPhone
			}
		}
		merged.BookTour = p
		if p.TourID == "" && p.TourName == "" {
			merged.MissingSlots = append(merged.MissingSlots, "tour")
		}
		if p.Date == "" {
			merged.MissingSlots = append(merged.MissingSlots, "date")
		}
		if p.GuestCount <= 0 {
			merged.MissingSlots = append(merged.MissingSlots, "guest_count")
		}
	default:
		// Other intents re-resolve cleanly; prefer the fresh extraction.
		return fresh
	}
	return &merged
}

// retryOffered mirrors the composer's remediation choices: a multi-step
// chain that stopped partway always offers a retry of the failed step,
// a single call only when its failure was retryable. A lone fatal
// failure (a rejected signature, an unknown tour) gets no retry and
// leaves nothing pending.
func retryOffered(calls []domain.ToolCall) bool {
	switch len(calls) {
	case 0:
		return false
	case 1:
		return calls[0].Status == domain.ToolCallRetryableFailure
	default:
		return !calls[len(calls)-1].Succeeded()
	}
}

func cloneBookTour(s *domain.BookTourSlots) *domain.BookTourSlots {
	if s == nil {
		return &domain.BookTourSlots{}
	}
	c := *s
	return &c
}

func (o *Orchestrator) observeTurn(turn *domain.Turn, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	intentType := "none"
	if turn.Intent != nil {
		intentType = string(turn.Intent.Type)
	}
	o.metrics.Turns.WithLabelValues(intentType, string(turn.Decision)).Inc()
	o.metrics.TurnLatency.Observe(elapsed.Seconds())
	o.metrics.ActiveSessions.Set(float64(o.store.ActiveCount()))
	for _, call := range turn.ToolCalls {
		if !call.Succeeded() {
			o.metrics.ProviderErrors.WithLabelValues(call.Provider, string(call.Status)).Inc()
		}
	}
}
