package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitalis-care/plantao/pkg/models"
)

// BufferStore persists the per-session conversation history.
type BufferStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewBufferStore creates a conversation buffer store.
func NewBufferStore(db *sql.DB, logger *slog.Logger) *BufferStore {
	return &BufferStore{
		db:     db,
		logger: logger.With("component", "buffer_store"),
	}
}

// Append stores one message.
func (s *BufferStore) Append(ctx context.Context, entry models.BufferEntry) error {
	var meta []byte
	if len(entry.Meta) > 0 {
		var err error
		meta, err = json.Marshal(entry.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode buffer meta: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_buffer
		 (session_id, created_at_epoch, direction, text, message_id, meta)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.SessionID, entry.CreatedAtEpoch, entry.Direction,
		entry.Text, entry.MessageID, meta,
	)
	if err != nil {
		return fmt.Errorf("failed to append buffer entry: %w", err)
	}
	return nil
}

// Recent returns up to limit messages for a session, oldest first.
func (s *BufferStore) Recent(ctx context.Context, sessionID string, limit int) ([]models.BufferEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, created_at_epoch, direction, text, message_id, meta
		 FROM (
		     SELECT session_id, created_at_epoch, direction, text, message_id, meta
		     FROM conversation_buffer
		     WHERE session_id = $1
		     ORDER BY created_at_epoch DESC
		     LIMIT $2
		 ) latest
		 ORDER BY created_at_epoch ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation buffer: %w", err)
	}
	defer rows.Close()

	var entries []models.BufferEntry
	for rows.Next() {
		var (
			entry models.BufferEntry
			meta  []byte
		)
		if err := rows.Scan(&entry.SessionID, &entry.CreatedAtEpoch,
			&entry.Direction, &entry.Text, &entry.MessageID, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan buffer entry: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Meta); err != nil {
				return nil, fmt.Errorf("failed to decode buffer meta: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation buffer: %w", err)
	}
	return entries, nil
}

// DeleteOlderThan removes history past the retention window and returns the
// number of rows deleted. The cleanup sweeper calls this.
func (s *BufferStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_buffer WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old buffer entries: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete old buffer entries: %w", err)
	}
	if rows > 0 {
		s.logger.Info("conversation buffer trimmed", "deleted", rows, "cutoff", cutoff)
	}
	return rows, nil
}
