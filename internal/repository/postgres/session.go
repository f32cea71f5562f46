package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wanderio/concierge/internal/domain"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Upsert writes the session header. Turns live in their own append-only
// table and are never part of the session row.
func (r *SessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	location, err := marshalNullable(session.Location)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}
	pending, err := marshalNullable(session.PendingIntent)
	if err != nil {
		return fmt.Errorf("failed to marshal pending intent: %w", err)
	}

	query := `
		INSERT INTO sessions (id, autonomy_level, language, location, pending_intent, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET autonomy_level = EXCLUDED.autonomy_level,
		    language = EXCLUDED.language,
		    location = EXCLUDED.location,
		    pending_intent = EXCLUDED.pending_intent,
		    last_activity_at = EXCLUDED.last_activity_at
	`
	_, err = r.pool.Exec(ctx, query,
		session.ID,
		string(session.AutonomyLevel),
		session.Language,
		location,
		pending,
		session.CreatedAt,
		session.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, autonomy_level, language, location, pending_intent, created_at, last_activity_at
		FROM sessions
		WHERE id = $1
	`
	var (
		s        domain.Session
		level    string
		location []byte
		pending  []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&level,
		&s.Language,
		&location,
		&pending,
		&s.CreatedAt,
		&s.LastActivityAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.AutonomyLevel = domain.AutonomyLevel(level)
	if err := unmarshalNullable(location, &s.Location); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location: %w", err)
	}
	if err := unmarshalNullable(pending, &s.PendingIntent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending intent: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case *domain.Location:
		if t == nil {
			return nil, nil
		}
	case *domain.Intent:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte, target **T) error {
	if len(data) == 0 {
		*target = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*target = &v
	return nil
}
