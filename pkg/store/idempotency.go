package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyTTL is how long a completed response stays replayable.
const DefaultIdempotencyTTL = 10 * time.Minute

// inFlightMarker occupies the key while the first request is still being
// processed.
const inFlightMarker = "\x00inflight"

// IdempotencyStore deduplicates requests by idempotency key. The first
// request plants an in-flight marker, then overwrites it with the final
// response; duplicates either replay the stored response byte for byte or
// fail with ErrInFlight while the original is still running.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotencyStore creates an idempotency store. A zero TTL falls back
// to DefaultIdempotencyTTL.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "idempotency_store"),
	}
}

func idempotencyKey(key string) string {
	return "idem:" + key
}

// Begin claims the key. It returns (nil, nil) when this request is the
// first and should proceed, the stored response when a duplicate arrives
// after completion, or ErrInFlight while the original is still running.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) ([]byte, error) {
	claimed, err := s.client.SetNX(ctx, idempotencyKey(key), inFlightMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	stored, err := s.client.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SetNX and Get, treat as fresh
		return s.Begin(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if stored == inFlightMarker {
		return nil, ErrInFlight
	}
	s.logger.Info("idempotent replay", "key", key)
	return []byte(stored), nil
}

// Record stores the final response for replay within the TTL.
func (s *IdempotencyStore) Record(ctx context.Context, key string, response []byte) error {
	if err := s.client.Set(ctx, idempotencyKey(key), response, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record idempotent response: %w", err)
	}
	return nil
}

// Forget drops the claim so a failed request can be retried by the client.
func (s *IdempotencyStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to forget idempotency key: %w", err)
	}
	return nil
}
