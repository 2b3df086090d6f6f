package engine

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/models"
)

// stagePending builds a staged action, attaches it to the session and
// records it in the audit trail. Audit failures are logged and never block
// the turn.
func (e *Engine) stagePending(ctx context.Context, state *models.SessionState, flow string, payload any, description string) *models.PendingAction {
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("failed to encode pending payload",
			"session_id", state.SessionID, "flow", flow, "error", err)
	}

	now := e.now()
	action := &models.PendingAction{
		ActionID:    uuid.NewString(),
		Flow:        flow,
		Payload:     raw,
		Description: description,
		Status:      models.PendingStaged,
		CreatedAt:   now,
		ExpiresAt:   now.Add(models.DefaultPendingTTL),
	}
	state.Pending = action

	if err := e.pending.Record(ctx, state.SessionID, action); err != nil {
		e.logger.Warn("failed to record pending action",
			"session_id", state.SessionID, "action_id", action.ActionID, "error", err)
	}
	return action
}

func (e *Engine) transitionPending(ctx context.Context, actionID, toStatus string) {
	if err := e.pending.Transition(ctx, actionID, toStatus); err != nil {
		e.logger.Warn("failed to transition pending action",
			"action_id", actionID, "to", toStatus, "error", err)
	}
}

// transientCommitFailure reports whether a failed commit is worth a
// user-driven retry: the staged action survives and the next "sim" runs it
// again. Permanent failures clear the staging instead.
func transientCommitFailure(err error) bool {
	backendErr := backend.AsError(err)
	if backendErr == nil {
		return false
	}
	switch backendErr.Kind {
	case backend.KindTimeout, backend.KindTransient, backend.KindCircuitOpen:
		return true
	default:
		return false
	}
}

// expirePending drops a staged action whose confirmation window elapsed so
// the router never resurrects it.
func (e *Engine) expirePending(ctx context.Context, state *models.SessionState) {
	p := state.Pending
	if p == nil || p.Status != models.PendingStaged || !p.Expired(e.now()) {
		return
	}
	e.logger.Info("pending action expired",
		"session_id", state.SessionID, "action_id", p.ActionID, "flow", p.Flow)
	e.transitionPending(ctx, p.ActionID, models.PendingCancelled)
	state.Pending = nil
}
