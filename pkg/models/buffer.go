package models

import "time"

// Message directions for conversation buffer entries.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// DefaultBufferRetention bounds how long conversation history is kept
// before the cleanup sweeper removes it.
const DefaultBufferRetention = 7 * 24 * time.Hour

// BufferEntry is one message of the per-session conversation history.
// CreatedAtEpoch is milliseconds since the Unix epoch and doubles as the
// sort key within a session.
type BufferEntry struct {
	SessionID      string            `json:"sessionId"`
	CreatedAtEpoch int64             `json:"createdAtEpoch"`
	Direction      string            `json:"direction"`
	Text           string            `json:"text"`
	MessageID      string            `json:"messageId,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// NewBufferEntry builds an entry stamped with the current time.
func NewBufferEntry(sessionID, direction, text, messageID string) BufferEntry {
	return BufferEntry{
		SessionID:      sessionID,
		CreatedAtEpoch: time.Now().UnixMilli(),
		Direction:      direction,
		Text:           text,
		MessageID:      messageID,
	}
}
