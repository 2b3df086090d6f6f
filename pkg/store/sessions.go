package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitalis-care/plantao/pkg/models"
)

// SessionStore persists session documents with optimistic concurrency.
// Version 0 means the session was never saved; the first save inserts with
// version 1, every later save requires the loaded version to still match.
type SessionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionStore creates a session store backed by the given connection pool.
func NewSessionStore(db *sql.DB, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		db:     db,
		logger: logger.With("component", "session_store"),
	}
}

// Load returns the session document, or a fresh default state at version 0
// when the session was never persisted.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*models.SessionState, error) {
	var (
		doc       []byte
		version   int64
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version, updated_at FROM sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&doc, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewSessionState(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var state models.SessionState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	state.Version = version
	state.UpdatedAt = updatedAt
	return &state, nil
}

// Save writes the document conditionally on the version it was loaded at.
// On success the in-memory version is bumped to the stored one. A mismatch
// returns ErrConcurrentModification and leaves the row untouched.
func (s *SessionStore) Save(ctx context.Context, state *models.SessionState) error {
	loadedVersion := state.Version
	state.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}

	if loadedVersion == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (session_id, state, version, updated_at)
			 VALUES ($1, $2, 1, $3)
			 ON CONFLICT (session_id) DO NOTHING`,
			state.SessionID, doc, state.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session %s: %w", state.SessionID, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to insert session %s: %w", state.SessionID, err)
		}
		if rows == 0 {
			return ErrConcurrentModification
		}
		state.Version = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = $1, version = version + 1, updated_at = $2
		 WHERE session_id = $3 AND version = $4`,
		doc, state.UpdatedAt, state.SessionID, loadedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", state.SessionID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", state.SessionID, err)
	}
	if rows == 0 {
		s.logger.Warn("session version conflict",
			"session_id", state.SessionID,
			"loaded_version", loadedVersion)
		return ErrConcurrentModification
	}
	state.Version = loadedVersion + 1
	return nil
}

// Delete removes the session document. Missing sessions return ErrNotFound.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
