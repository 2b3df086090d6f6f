package engine

import (
	"context"

	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
)

// SessionStore loads and conditionally saves session documents.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*models.SessionState, error)
	Save(ctx context.Context, state *models.SessionState) error
}

// PendingAudit mirrors pending action transitions into the audit trail.
type PendingAudit interface {
	Record(ctx context.Context, sessionID string, action *models.PendingAction) error
	Transition(ctx context.Context, actionID, toStatus string) error
}

// BufferStore appends to and reads the conversation history.
type BufferStore interface {
	Append(ctx context.Context, entry models.BufferEntry) error
	Recent(ctx context.Context, sessionID string, limit int) ([]models.BufferEntry, error)
}

// LockStore serializes turns per session.
type LockStore interface {
	Acquire(ctx context.Context, sessionID string) (string, error)
	Release(ctx context.Context, sessionID, token string) error
}

// IdempotencyStore deduplicates inbound deliveries.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) ([]byte, error)
	Record(ctx context.Context, key string, response []byte) error
	Forget(ctx context.Context, key string) error
}

// Model is the typed LLM surface the engine consumes.
type Model interface {
	IntentClassify(ctx context.Context, text, compactState string) (llm.Intent, error)
	ConfirmationClassify(ctx context.Context, text string) (string, error)
	OperationalNoteDetect(ctx context.Context, text string) (llm.OperationalNote, error)
	ClinicalExtract(ctx context.Context, text string) (models.ClinicalExtraction, error)
	FinalizationTopicExtract(ctx context.Context, text string, collected *models.FinalizationTopics, existingNotes []string) (map[string]string, error)
	GenerateReply(ctx context.Context, compactState, userText, outcomeCode string, finishReminderSent bool) (string, error)
}

// Backend is the scheduling platform surface the engine consumes.
type Backend interface {
	GetScheduleStarted(ctx context.Context, phoneNumber string) (*backend.ScheduleInfo, error)
	UpdateWorkScheduleResponse(ctx context.Context, actionID, scheduleID, responseValue string) error
	UpdateClinicalData(ctx context.Context, record backend.ClinicalRecord) error
	UpdateReportSummary(ctx context.Context, payload backend.SummaryPayload) error
	GetNoteReport(ctx context.Context, reportID, reportDate string) ([]string, error)
	PostWorkflowWebhook(ctx context.Context, note backend.WebhookNote) error
	PostClinicalWebhook(ctx context.Context, record backend.ClinicalRecord) error
}
