package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wanderio/concierge/internal/domain"
)

const (
	idempotencyPrefix = "toolcall:"
	idempotencyTTL    = 24 * time.Hour
)

// IdempotencyStore remembers completed side-effecting tool calls by their
// idempotency key, so a duplicated booking or payment intent replays the
// stored outcome instead of calling the provider again.
type IdempotencyStore struct {
	client *Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a tool-call result cache.
func NewIdempotencyStore(client *Client) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: idempotencyTTL}
}

// Get retrieves a cached tool call. A miss returns (nil, nil).
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.ToolCall, error) {
	data, err := s.client.rdb.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var call domain.ToolCall
	if err := json.Unmarshal(data, &call); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool call: %w", err)
	}
	return &call, nil
}

// Put caches the outcome of a completed tool call.
func (s *IdempotencyStore) Put(ctx context.Context, key string, call *domain.ToolCall) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal tool call: %w", err)
	}
	return s.client.rdb.Set(ctx, idempotencyPrefix+key, data, s.ttl).Err()
}

// Invalidate removes a cached tool call, letting the operation run fresh.
func (s *IdempotencyStore) Invalidate(ctx context.Context, key string) error {
	return s.client.rdb.Del(ctx, idempotencyPrefix+key).Err()
}
