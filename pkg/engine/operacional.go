package engine

import (
	"context"
	"strings"

	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
)

// runOperacional forwards an operational notice to the workflow webhook.
// The flow never stages anything: a pending action from another flow stays
// staged and is resumed on the next message.
func (e *Engine) runOperacional(ctx context.Context, state *models.SessionState, turn *turnContext) (string, string) {
	note := turn.text
	urgency := llm.UrgencyNormal
	if detection := e.detectOperational(ctx, turn); detection != nil {
		note = detection.note
		if detection.urgency != "" {
			urgency = detection.urgency
		}
	}
	if strings.TrimSpace(note) == "" {
		return models.OutcomeHelpContext, ""
	}

	// a save conflict replays the turn; the webhook already accepted the
	// note and must not receive it twice
	if turn.operationalDelivered {
		return models.OutcomeOperationalDelivered, ""
	}

	hook := backend.WebhookNote{
		ReportID:     state.ReportID,
		ReportDate:   state.ReportDate,
		ScheduleID:   state.ScheduleID,
		PatientID:    state.PatientID,
		CaregiverID:  state.CaregiverID,
		SessionID:    state.SessionID,
		ClinicalNote: note,
		NoteType:     "operational",
		Urgency:      urgency,
	}
	if err := e.backend.PostWorkflowWebhook(ctx, hook); err != nil {
		e.logger.Error("operational note delivery failed",
			"session_id", state.SessionID, "urgency", urgency, "error", err)
		return models.OutcomeOperationalDeliveryFailed, ""
	}

	turn.operationalDelivered = true
	e.logger.Info("operational note delivered",
		"session_id", state.SessionID, "urgency", urgency)
	return models.OutcomeOperationalDelivered, ""
}
