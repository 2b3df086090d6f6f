package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
)

// runFinalizar collects the eight closing-report topics and stages the
// summary commit once all of them are answered. Each newly collected topic
// is also pushed individually to the workflow webhook so the platform sees
// the report build up in real time.
func (e *Engine) runFinalizar(ctx context.Context, state *models.SessionState, turn *turnContext) (string, string) {
	// closing only starts after the platform fires the finish reminder
	if !state.FinishReminderSent {
		return models.OutcomeHelpContext, ""
	}

	if staged := state.StagedPending(turn.now); staged != nil && staged.Flow == models.FlowFinalizeCommit {
		return e.resolveFinalizePending(ctx, state, staged, turn)
	}

	e.seedExistingNotes(ctx, state)

	if turn.text != "" {
		filled, err := e.model.FinalizationTopicExtract(ctx, turn.text, &state.Finalization, state.ExistingNotes)
		if err != nil {
			e.logger.Warn("finalization extraction failed",
				"session_id", state.SessionID, "error", err)
		} else {
			for _, topic := range models.TopicOrder {
				value, ok := filled[topic]
				if !ok {
					continue
				}
				if state.Finalization.Set(topic, value) {
					e.pushTopicNote(ctx, state, topic, value)
				}
			}
		}
	}

	if state.Finalization.Complete() {
		payload := buildSummaryPayload(state)
		e.stagePending(ctx, state, models.FlowFinalizeCommit, payload,
			"Encerrar o relatório do plantão com os tópicos informados")
		return models.OutcomeFinalizeStaged, ""
	}
	return models.OutcomeFinalizeTopicCollected, ""
}

func (e *Engine) resolveFinalizePending(ctx context.Context, state *models.SessionState, staged *models.PendingAction, turn *turnContext) (string, string) {
	switch e.classifyConfirmation(ctx, turn.text) {
	case llm.ConfirmYes:
		var payload backend.SummaryPayload
		if err := json.Unmarshal(staged.Payload, &payload); err != nil {
			e.logger.Error("corrupt summary payload",
				"session_id", state.SessionID, "action_id", staged.ActionID, "error", err)
			e.transitionPending(ctx, staged.ActionID, models.PendingCancelled)
			state.Pending = nil
			return models.OutcomeFinalizeCommitFailed, ""
		}
		payload.ActionID = staged.ActionID

		e.transitionPending(ctx, staged.ActionID, models.PendingConfirmed)
		if err := e.backend.UpdateReportSummary(ctx, payload); err != nil {
			e.logger.Error("finalize commit failed",
				"session_id", state.SessionID, "action_id", staged.ActionID, "error", err)
			if !transientCommitFailure(err) {
				state.Pending = nil
			}
			return models.OutcomeFinalizeCommitFailed, ""
		}
		e.transitionPending(ctx, staged.ActionID, models.PendingExecuted)
		e.logger.Info("shift report closed",
			"session_id", state.SessionID, "report_id", payload.ReportID)
		state.ResetAfterFinalize()
		return models.OutcomeFinalizeCommitted, ""

	case llm.ConfirmNo, llm.ConfirmCancel:
		e.transitionPending(ctx, staged.ActionID, models.PendingCancelled)
		state.Pending = nil
		return models.OutcomePendingCancelled, ""

	default:
		return models.OutcomeFinalizeStaged, ""
	}
}

// seedExistingNotes fetches the notes already attached to the report so the
// extractor avoids asking for information the caregiver reported earlier in
// the shift. Fetch failures are tolerated.
func (e *Engine) seedExistingNotes(ctx context.Context, state *models.SessionState) {
	if state.ExistingNotes != nil || state.ReportID == "" {
		return
	}
	notes, err := e.backend.GetNoteReport(ctx, state.ReportID, state.ReportDate)
	if err != nil {
		e.logger.Warn("failed to fetch report notes",
			"session_id", state.SessionID, "report_id", state.ReportID, "error", err)
		return
	}
	if notes == nil {
		notes = []string{}
	}
	state.ExistingNotes = notes
}

// pushTopicNote mirrors one collected topic to the workflow webhook.
// Delivery failures are logged; the topic stays collected either way.
func (e *Engine) pushTopicNote(ctx context.Context, state *models.SessionState, topic, value string) {
	hook := backend.WebhookNote{
		ReportID:     state.ReportID,
		ReportDate:   state.ReportDate,
		ScheduleID:   state.ScheduleID,
		PatientID:    state.PatientID,
		CaregiverID:  state.CaregiverID,
		SessionID:    state.SessionID,
		ClinicalNote: fmt.Sprintf("[%s] %s", models.TopicLabels[topic], value),
		NoteType:     "finalization",
		Topic:        topic,
	}
	if err := e.backend.PostWorkflowWebhook(ctx, hook); err != nil {
		e.logger.Warn("finalization topic delivery failed",
			"session_id", state.SessionID, "topic", topic, "error", err)
	}
}

func buildSummaryPayload(state *models.SessionState) backend.SummaryPayload {
	f := &state.Finalization
	return backend.SummaryPayload{
		ReportID:    state.ReportID,
		ReportDate:  state.ReportDate,
		ScheduleID:  state.ScheduleID,
		CaregiverID: state.CaregiverID,
		PatientID:   state.PatientID,

		FoodHydrationSpecification:         f.ValueOrDefault(models.TopicAlimentacao),
		StoolUrineSpecification:            f.ValueOrDefault(models.TopicEvacuacoes),
		SleepSpecification:                 f.ValueOrDefault(models.TopicSono),
		MoodSpecification:                  f.ValueOrDefault(models.TopicHumor),
		MedicationsSpecification:           f.ValueOrDefault(models.TopicMedicacoes),
		ActivitiesSpecification:            f.ValueOrDefault(models.TopicAtividades),
		AdditionalInformationSpecification: f.ValueOrDefault(models.TopicAdicionalClinico),
		AdministrativeInfo:                 f.ValueOrDefault(models.TopicAdicionalAdministrativo),
	}
}
