package store

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLockLease bounds how long a turn may hold the session lock
	// before it expires on its own.
	DefaultLockLease = 10 * time.Second

	// lockAttempts bounds acquisition retries before giving up with
	// ErrLockDenied.
	lockAttempts = 3

	lockRetryBase = 150 * time.Millisecond
)

// releaseScript deletes the lock only when still owned by the caller.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lease only when still owned by the caller.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// LockStore serializes turns per session with Redis SET NX leases.
type LockStore struct {
	client *redis.Client
	lease  time.Duration
	logger *slog.Logger
}

// NewLockStore creates a lock store with the given lease duration. A zero
// lease falls back to DefaultLockLease.
func NewLockStore(client *redis.Client, lease time.Duration, logger *slog.Logger) *LockStore {
	if lease <= 0 {
		lease = DefaultLockLease
	}
	return &LockStore{
		client: client,
		lease:  lease,
		logger: logger.With("component", "lock_store"),
	}
}

func lockKey(sessionID string) string {
	return "lock:session:" + sessionID
}

// Acquire takes the session lock, retrying with jittered backoff. It
// returns an owner token for Release and Renew, or ErrLockDenied when the
// session stays busy.
func (s *LockStore) Acquire(ctx context.Context, sessionID string) (string, error) {
	token := uuid.NewString()
	key := lockKey(sessionID)

	for attempt := 1; attempt <= lockAttempts; attempt++ {
		ok, err := s.client.SetNX(ctx, key, token, s.lease).Result()
		if err != nil {
			return "", fmt.Errorf("failed to acquire lock for %s: %w", sessionID, err)
		}
		if ok {
			return token, nil
		}
		if attempt == lockAttempts {
			break
		}
		delay := time.Duration(attempt)*lockRetryBase + time.Duration(rand.Int63n(int64(lockRetryBase)))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	s.logger.Warn("session lock denied", "session_id", sessionID)
	return "", ErrLockDenied
}

// Release frees the lock when the token still owns it.
func (s *LockStore) Release(ctx context.Context, sessionID, token string) error {
	deleted, err := releaseScript.Run(ctx, s.client, []string{lockKey(sessionID)}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock for %s: %w", sessionID, err)
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Renew extends the lease when the token still owns the lock.
func (s *LockStore) Renew(ctx context.Context, sessionID, token string) error {
	renewed, err := renewScript.Run(ctx, s.client,
		[]string{lockKey(sessionID)}, token, s.lease.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to renew lock for %s: %w", sessionID, err)
	}
	if renewed == 0 {
		return ErrLockNotHeld
	}
	return nil
}
