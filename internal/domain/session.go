package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AutonomyLevel controls how much confirmation is required before an
// action with side effects executes.
type AutonomyLevel string

const (
	AutonomyManual     AutonomyLevel = "manual"
	AutonomyAssisted   AutonomyLevel = "assisted"
	AutonomyAutonomous AutonomyLevel = "autonomous"
)

// Valid reports whether l is one of the three known levels.
func (l AutonomyLevel) Valid() bool {
	switch l {
	case AutonomyManual, AutonomyAssisted, AutonomyAutonomous:
		return true
	}
	return false
}

// Location is the last known user position.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Session is a single conversation thread. The session store exclusively
// owns Session values; every other component receives a copy or an append
// request, never shared mutable state.
type Session struct {
	ID             string        `json:"id"`
	AutonomyLevel  AutonomyLevel `json:"autonomy_level"`
	Language       string        `json:"language"`
	Location       *Location     `json:"location,omitempty"`
	PendingIntent  *Intent       `json:"pending_intent,omitempty"`
	Turns          []Turn        `json:"turns"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
}

// Decision is the autonomy policy outcome for a resolved intent.
type Decision string

const (
	DecisionExecute Decision = "execute"
	DecisionConfirm Decision = "confirm"
	DecisionDecline Decision = "decline"
)

// Turn is one complete request/response exchange. Immutable once appended
// to a session.
type Turn struct {
	ID        uuid.UUID  `json:"id"`
	SessionID string     `json:"session_id"`
	Input     string     `json:"input"`
	Intent    *Intent    `json:"intent,omitempty"`
	Decision  Decision   `json:"decision"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Reply     Reply      `json:"reply"`
	TimedOut  bool       `json:"timed_out,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SessionRepository is the durable store behind the in-memory session cache.
type SessionRepository interface {
	Upsert(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// TurnRepository persists the append-only turn log.
type TurnRepository interface {
	Append(ctx context.Context, turn *Turn) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}
