package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wanderio/concierge/internal/domain"
	"github.com/wanderio/concierge/internal/security"
)

// TurnRepository implements domain.TurnRepository. The intent payload and
// the tool-call chain both carry contact details (the booking request
// repeats the contact phone), so both are encrypted at rest when an
// encryptor is configured; replies are stored as plain JSONB.
type TurnRepository struct {
	pool      *pgxpool.Pool
	encryptor *security.Encryptor
}

// NewTurnRepository creates a new turn repository. encryptor may be nil,
// in which case the payloads are stored unencrypted.
func NewTurnRepository(pool *pgxpool.Pool, encryptor *security.Encryptor) *TurnRepository {
	return &TurnRepository{pool: pool, encryptor: encryptor}
}

// Append inserts one committed turn. Turns are immutable; there is no
// update path.
func (r *TurnRepository) Append(ctx context.Context, turn *domain.Turn) error {
	intentData, err := r.encodeIntent(turn.Intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	toolCalls, err := r.encodeCalls(turn.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to encode tool calls: %w", err)
	}
	reply, err := json.Marshal(turn.Reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}

	query := `
		INSERT INTO turns (id, session_id, input, intent_data, decision, tool_calls, reply, timed_out, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		turn.ID,
		turn.SessionID,
		turn.Input,
		intentData,
		string(turn.Decision),
		toolCalls,
		reply,
		turn.TimedOut,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// ListBySession returns turns in commit order. limit <= 0 returns all.
func (r *TurnRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	query := `
		SELECT id, session_id, input, intent_data, decision, tool_calls, reply, timed_out, created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var (
			t          domain.Turn
			intentData []byte
			toolCalls  []byte
			reply      []byte
			decision   string
		)
		if err := rows.Scan(
			&t.ID,
			&t.SessionID,
			&t.Input,
			&intentData,
			&decision,
			&toolCalls,
			&reply,
			&t.TimedOut,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Decision = domain.Decision(decision)
		if t.Intent, err = r.decodeIntent(intentData); err != nil {
			return nil, fmt.Errorf("failed to decode intent: %w", err)
		}
		if t.ToolCalls, err = r.decodeCalls(toolCalls); err != nil {
			return nil, fmt.Errorf("failed to decode tool calls: %w", err)
		}
		if len(reply) > 0 {
			if err := json.Unmarshal(reply, &t.Reply); err != nil {
				return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (r *TurnRepository) encodeIntent(intent *domain.Intent) ([]byte, error) {
	if intent == nil {
		return nil, nil
	}
	if r.encryptor != nil {
		return r.encryptor.EncryptJSON(intent)
	}
	return json.Marshal(intent)
}

func (r *TurnRepository) encodeCalls(calls []domain.ToolCall) ([]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	if r.encryptor != nil {
		return r.encryptor.EncryptJSON(calls)
	}
	return json.Marshal(calls)
}

func (r *TurnRepository) decodeCalls(data []byte) ([]domain.ToolCall, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var calls []domain.ToolCall
	if r.encryptor != nil {
		if err := r.encryptor.DecryptJSON(data, &calls); err != nil {
			return nil, err
		}
		return calls, nil
	}
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

func (r *TurnRepository) decodeIntent(data []byte) (*domain.Intent, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var intent domain.Intent
	if r.encryptor != nil {
		if err := r.encryptor.DecryptJSON(data, &intent); err != nil {
			return nil, err
		}
		return &intent, nil
	}
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}
