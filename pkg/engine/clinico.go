package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/clinical"
	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
)

// runClinico collects vitals incrementally into the session buffer and
// stages a commit once the measurement is complete. The first measurement
// of a shift must carry the full tuple plus respiratory mode and a note;
// after that a standalone note commits on its own.
func (e *Engine) runClinico(ctx context.Context, state *models.SessionState, turn *turnContext) (string, string) {
	if staged := state.StagedPending(turn.now); staged != nil && staged.Flow == models.FlowClinicalCommit {
		return e.resolveClinicalPending(ctx, state, staged, turn)
	}

	if turn.text != "" {
		ext, err := e.model.ClinicalExtract(ctx, turn.text)
		if err != nil {
			e.logger.Warn("clinical extraction failed",
				"session_id", state.SessionID, "error", err)
			return models.OutcomeClinicalMissing, ""
		}
		e.mergeExtraction(state, ext)
	}

	readiness := clinical.Evaluate(state)
	switch {
	case readiness.NoteOnly:
		return e.commitNoteOnly(ctx, state)
	case readiness.Ready:
		record := e.buildClinicalRecord(state)
		e.stagePending(ctx, state, models.FlowClinicalCommit, record, describeClinicalCommit(state))
		return models.OutcomeClinicalStaged, ""
	case !state.FirstMeasurementDone && state.Vitals.Empty() && state.ClinicalNote != nil:
		// a note alone cannot open the shift's clinical record
		return models.OutcomeClinicalRejectedIncompleteFirst, ""
	default:
		return models.OutcomeClinicalMissing, ""
	}
}

func (e *Engine) resolveClinicalPending(ctx context.Context, state *models.SessionState, staged *models.PendingAction, turn *turnContext) (string, string) {
	switch e.classifyConfirmation(ctx, turn.text) {
	case llm.ConfirmYes:
		var record backend.ClinicalRecord
		if err := json.Unmarshal(staged.Payload, &record); err != nil {
			e.logger.Error("corrupt clinical payload",
				"session_id", state.SessionID, "action_id", staged.ActionID, "error", err)
			e.transitionPending(ctx, staged.ActionID, models.PendingCancelled)
			state.Pending = nil
			return models.OutcomeClinicalCommitFailed, ""
		}
		record.ActionID = staged.ActionID

		e.transitionPending(ctx, staged.ActionID, models.PendingConfirmed)
		if err := e.backend.UpdateClinicalData(ctx, record); err != nil {
			e.logger.Error("clinical commit failed",
				"session_id", state.SessionID, "action_id", staged.ActionID, "error", err)
			if !transientCommitFailure(err) {
				state.Pending = nil
			}
			return models.OutcomeClinicalCommitFailed, ""
		}
		if err := e.backend.PostClinicalWebhook(ctx, record); err != nil {
			e.logger.Warn("clinical webhook delivery failed",
				"session_id", state.SessionID, "action_id", staged.ActionID, "error", err)
		}
		e.transitionPending(ctx, staged.ActionID, models.PendingExecuted)
		state.Pending = nil
		state.FirstMeasurementDone = true
		state.ClearClinicalBuffer()
		return models.OutcomeClinicalCommitted, ""

	case llm.ConfirmNo, llm.ConfirmCancel:
		e.transitionPending(ctx, staged.ActionID, models.PendingCancelled)
		state.Pending = nil
		// corrected readings come as a fresh measurement
		state.ClearClinicalBuffer()
		return models.OutcomePendingCancelled, ""

	default:
		return models.OutcomeClinicalStaged, ""
	}
}

// commitNoteOnly records a standalone note directly, without the
// confirmation round trip. Backend and webhook both receive the note, the
// same pair a confirmed measurement goes through.
func (e *Engine) commitNoteOnly(ctx context.Context, state *models.SessionState) (string, string) {
	record := e.buildClinicalRecord(state)
	if err := e.backend.UpdateClinicalData(ctx, record); err != nil {
		e.logger.Error("note-only commit failed",
			"session_id", state.SessionID, "error", err)
		return models.OutcomeClinicalCommitFailed, ""
	}
	if err := e.backend.PostClinicalWebhook(ctx, record); err != nil {
		e.logger.Warn("note-only webhook delivery failed",
			"session_id", state.SessionID, "error", err)
	}
	state.ClinicalNote = nil
	return models.OutcomeClinicalNoteOnlyCommitted, ""
}

func (e *Engine) mergeExtraction(state *models.SessionState, ext models.ClinicalExtraction) {
	state.Vitals.Merge(ext.Vitals)
	if state.RespiratoryMode == models.RespiratoryNone {
		state.RespiratoryMode = ext.RespiratoryMode
	}
	if state.ClinicalNote == nil && ext.ClinicalNote != nil {
		state.ClinicalNote = ext.ClinicalNote
	}
	if len(ext.Warnings) > 0 {
		e.logger.Info("clinical extraction warnings",
			"session_id", state.SessionID, "warnings", ext.Warnings)
	}
}

func (e *Engine) buildClinicalRecord(state *models.SessionState) backend.ClinicalRecord {
	record := backend.ClinicalRecord{
		ReportID:      state.ReportID,
		ReportDate:    state.ReportDate,
		ScheduleID:    state.ScheduleID,
		PatientID:     state.PatientID,
		CaregiverID:   state.CaregiverID,
		SessionID:     state.SessionID,
		BloodPressure: state.Vitals.PA,
		HeartRate:     state.Vitals.HR,
		RespRate:      state.Vitals.RR,
		SaturationO2:  state.Vitals.SatO2,
		Temperature:   state.Vitals.Temp,
	}
	if !state.Vitals.Empty() {
		record.ClinicalNote = clinical.CommitNote(state)
	} else if state.ClinicalNote != nil {
		record.ClinicalNote = *state.ClinicalNote
	}
	if state.RespiratoryMode != models.RespiratoryNone {
		mode := string(state.RespiratoryMode)
		record.SupplementaryOxygen = &mode
	}
	return record
}

// describeClinicalCommit renders the staged measurement for the
// confirmation question.
func describeClinicalCommit(state *models.SessionState) string {
	var parts []string
	if state.Vitals.PA != nil {
		parts = append(parts, "PA "+*state.Vitals.PA)
	}
	if state.Vitals.HR != nil {
		parts = append(parts, fmt.Sprintf("FC %d bpm", *state.Vitals.HR))
	}
	if state.Vitals.RR != nil {
		parts = append(parts, fmt.Sprintf("FR %d irpm", *state.Vitals.RR))
	}
	if state.Vitals.SatO2 != nil {
		parts = append(parts, fmt.Sprintf("Sat %d%%", *state.Vitals.SatO2))
	}
	if state.Vitals.Temp != nil {
		parts = append(parts, fmt.Sprintf("Temp %.1f°C", *state.Vitals.Temp))
	}
	switch state.RespiratoryMode {
	case models.RespiratoryAmbient:
		parts = append(parts, "ar ambiente")
	case models.RespiratorySupplement:
		parts = append(parts, "O2 suplementar")
	case models.RespiratoryVentilation:
		parts = append(parts, "ventilação mecânica")
	}
	description := "Registrar sinais vitais: " + strings.Join(parts, ", ")
	if state.ClinicalNote != nil {
		description += ". Observação: " + *state.ClinicalNote
	}
	return description
}
