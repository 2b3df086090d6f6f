// Package store implements persistence for sessions, pending actions and
// conversation history on PostgreSQL, plus session locks and idempotency
// records on Redis.
package store

import "errors"

var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrConcurrentModification is returned when optimistic locking fails
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrLockDenied is returned when the session lock could not be acquired
	// within the configured attempts
	ErrLockDenied = errors.New("session lock denied")

	// ErrLockNotHeld is returned when releasing or renewing a lock the
	// caller no longer owns
	ErrLockNotHeld = errors.New("session lock not held")

	// ErrInFlight is returned when an idempotency key is already being
	// processed by another request
	ErrInFlight = errors.New("request already in flight")

	// ErrInvalidTransition is returned for illegal pending-action status
	// transitions
	ErrInvalidTransition = errors.New("invalid pending action transition")
)
