package models

import (
	"encoding/json"
	"time"
)

// Pending action flows. Each names the commit a staged action executes once
// the caregiver confirms it.
const (
	FlowEscalaCommit   = "escala_commit"
	FlowClinicalCommit = "clinical_commit"
	FlowFinalizeCommit = "finalize_commit"
)

// Pending action lifecycle. Legal transitions are staged→confirmed→executed
// and staged→cancelled; the store rejects everything else.
const (
	PendingStaged    = "staged"
	PendingConfirmed = "confirmed"
	PendingExecuted  = "executed"
	PendingCancelled = "cancelled"
)

// DefaultPendingTTL bounds how long a staged action waits for the
// caregiver's confirmation before the router treats it as absent.
const DefaultPendingTTL = 10 * time.Minute

// PendingAction is the staged half of the local two-phase commit: the
// payload is built and described to the caregiver, and executed only after
// an explicit "sim".
type PendingAction struct {
	ActionID    string          `json:"action_id"`
	Flow        string          `json:"flow"`
	Payload     json.RawMessage `json:"payload"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// Expired reports whether the confirmation window has elapsed.
func (p *PendingAction) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
