package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
)

// escalaPayload is the staged attendance answer, replayed verbatim to the
// backend once confirmed.
type escalaPayload struct {
	ScheduleID    string `json:"scheduleIdentifier"`
	ResponseValue string `json:"responseValue"`
}

// runEscala handles attendance confirmation: the caregiver states whether
// they are at the shift, the answer is staged and executed only after an
// explicit "sim".
func (e *Engine) runEscala(ctx context.Context, state *models.SessionState, turn *turnContext) (string, string) {
	if staged := state.StagedPending(turn.now); staged != nil && staged.Flow == models.FlowEscalaCommit {
		return e.resolveEscalaPending(ctx, state, staged, turn)
	}

	if state.ScheduleID == "" || !state.AttendancePending() {
		return models.OutcomeEscalaInfo, ""
	}

	// clinical content sent before the presence answer is buffered now and
	// picked up by the clinical flow right after the commit
	e.bufferEarlyClinical(ctx, state, turn)

	switch e.classifyConfirmation(ctx, turn.text) {
	case llm.ConfirmYes:
		payload := escalaPayload{ScheduleID: state.ScheduleID, ResponseValue: models.ResponseConfirmed}
		description := fmt.Sprintf("Confirmar sua presença no plantão com %s", displayName(state.PatientName))
		e.stagePending(ctx, state, models.FlowEscalaCommit, payload, description)
		return models.OutcomeEscalaStaged, ""
	case llm.ConfirmNo, llm.ConfirmCancel:
		payload := escalaPayload{ScheduleID: state.ScheduleID, ResponseValue: models.ResponseCancelled}
		description := "Registrar sua ausência no plantão e avisar a equipe de escala"
		e.stagePending(ctx, state, models.FlowEscalaCommit, payload, description)
		return models.OutcomeEscalaStaged, ""
	default:
		return models.OutcomeEscalaInfo, ""
	}
}

func (e *Engine) resolveEscalaPending(ctx context.Context, state *models.SessionState, staged *models.PendingAction, turn *turnContext) (string, string) {
	switch e.classifyConfirmation(ctx, turn.text) {
	case llm.ConfirmYes:
		var payload escalaPayload
		if err := json.Unmarshal(staged.Payload, &payload); err != nil {
			e.logger.Error("corrupt attendance payload",
				"session_id", state.SessionID, "action_id", staged.ActionID, "error", err)
			e.transitionPending(ctx, staged.ActionID, models.PendingCancelled)
			state.Pending = nil
			return models.OutcomeEscalaCommitFailed, ""
		}

		e.transitionPending(ctx, staged.ActionID, models.PendingConfirmed)
		if err := e.backend.UpdateWorkScheduleResponse(ctx, staged.ActionID, payload.ScheduleID, payload.ResponseValue); err != nil {
			e.logger.Error("attendance commit failed",
				"session_id", state.SessionID, "action_id", staged.ActionID, "error", err)
			if !transientCommitFailure(err) {
				state.Pending = nil
			}
			return models.OutcomeEscalaCommitFailed, ""
		}
		e.transitionPending(ctx, staged.ActionID, models.PendingExecuted)
		state.Pending = nil
		state.Response = payload.ResponseValue

		if payload.ResponseValue != models.ResponseConfirmed {
			return models.OutcomeEscalaCancelled, ""
		}
		if resume := state.ResumeAfter; resume != nil && resume.Flow == models.SubgraphClinico {
			state.ResumeAfter = nil
			return models.OutcomeEscalaConfirmed, models.SubgraphClinico
		}
		return models.OutcomeEscalaConfirmed, ""

	case llm.ConfirmNo, llm.ConfirmCancel:
		e.transitionPending(ctx, staged.ActionID, models.PendingCancelled)
		state.Pending = nil
		return models.OutcomePendingCancelled, ""

	default:
		return models.OutcomeEscalaStaged, ""
	}
}

// bufferEarlyClinical extracts vitals out of an attendance-gate message so
// nothing the caregiver typed is lost. The extraction only runs when the
// text plausibly carries readings.
func (e *Engine) bufferEarlyClinical(ctx context.Context, state *models.SessionState, turn *turnContext) {
	if !strings.ContainsAny(turn.text, "0123456789") {
		return
	}
	ext, err := e.model.ClinicalExtract(ctx, turn.text)
	if err != nil || ext.Empty() {
		return
	}
	e.mergeExtraction(state, ext)
	state.ResumeAfter = &models.ResumeAfter{
		Flow:   models.SubgraphClinico,
		Reason: "clinical_before_attendance",
	}
	e.logger.Info("buffered clinical content before attendance confirmation",
		"session_id", state.SessionID)
}
