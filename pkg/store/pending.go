package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitalis-care/plantao/pkg/models"
)

// PendingStore keeps the audit trail of staged actions. The live pending
// action travels inside the session document; every lifecycle transition is
// mirrored here for traceability.
type PendingStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPendingStore creates a pending action audit store.
func NewPendingStore(db *sql.DB, logger *slog.Logger) *PendingStore {
	return &PendingStore{
		db:     db,
		logger: logger.With("component", "pending_store"),
	}
}

// legalTransitions encodes the staged->confirmed->executed and
// staged->cancelled lifecycle.
var legalTransitions = map[string][]string{
	models.PendingStaged:    {models.PendingConfirmed, models.PendingCancelled},
	models.PendingConfirmed: {models.PendingExecuted, models.PendingCancelled},
}

func transitionAllowed(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Record inserts a freshly staged action.
func (s *PendingStore) Record(ctx context.Context, sessionID string, action *models.PendingAction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_actions
		 (action_id, session_id, flow, status, payload, description, created_at, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		action.ActionID, sessionID, action.Flow, action.Status,
		[]byte(action.Payload), action.Description,
		action.CreatedAt, action.ExpiresAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record pending action %s: %w", action.ActionID, err)
	}
	return nil
}

// Transition moves an action to a new status, rejecting anything outside
// the legal lifecycle.
func (s *PendingStore) Transition(ctx context.Context, actionID, toStatus string) error {
	var current string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM pending_actions WHERE action_id = $1`, actionID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load pending action %s: %w", actionID, err)
	}

	if !transitionAllowed(current, toStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, toStatus)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_actions SET status = $1, updated_at = $2
		 WHERE action_id = $3 AND status = $4`,
		toStatus, time.Now().UTC(), actionID, current,
	)
	if err != nil {
		return fmt.Errorf("failed to transition pending action %s: %w", actionID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to transition pending action %s: %w", actionID, err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}

	s.logger.Info("pending action transitioned",
		"action_id", actionID,
		"from", current,
		"to", toStatus)
	return nil
}

// Get returns the audit record for an action.
func (s *PendingStore) Get(ctx context.Context, actionID string) (*models.PendingAction, string, error) {
	var (
		action    models.PendingAction
		sessionID string
		payload   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT action_id, session_id, flow, status, payload, description, created_at, expires_at
		 FROM pending_actions WHERE action_id = $1`, actionID,
	).Scan(&action.ActionID, &sessionID, &action.Flow, &action.Status,
		&payload, &action.Description, &action.CreatedAt, &action.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load pending action %s: %w", actionID, err)
	}
	action.Payload = payload
	return &action, sessionID, nil
}

// CancelExpired marks staged actions past their expiry as cancelled and
// returns how many rows changed. The cleanup sweeper calls this.
func (s *PendingStore) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_actions SET status = $1, updated_at = $2
		 WHERE status = $3 AND expires_at < $4`,
		models.PendingCancelled, now.UTC(), models.PendingStaged, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel expired pending actions: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to cancel expired pending actions: %w", err)
	}
	return rows, nil
}
