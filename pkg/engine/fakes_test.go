package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
	"github.com/vitalis-care/plantao/pkg/store"
)

const testPhone = "+55 11 98888-7777"

var testSessionID = models.CanonicalPhone(testPhone)

type fakeModel struct {
	intent         llm.Intent
	intentErr      error
	confirmation   string
	confirmErr     error
	operational    llm.OperationalNote
	operationalErr error
	extraction     models.ClinicalExtraction
	extractErr     error
	topics         map[string]string
	topicsErr      error
	reply          string
	replyErr       error

	intentCalls   int
	extractCalls  int
	replyOutcomes []string
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		intent:       llm.Intent{Subgraph: llm.IntentUndefined},
		confirmation: llm.ConfirmUnclear,
		reply:        "ok",
	}
}

func (m *fakeModel) IntentClassify(_ context.Context, _, _ string) (llm.Intent, error) {
	m.intentCalls++
	return m.intent, m.intentErr
}

func (m *fakeModel) ConfirmationClassify(_ context.Context, _ string) (string, error) {
	return m.confirmation, m.confirmErr
}

func (m *fakeModel) OperationalNoteDetect(_ context.Context, _ string) (llm.OperationalNote, error) {
	return m.operational, m.operationalErr
}

func (m *fakeModel) ClinicalExtract(_ context.Context, _ string) (models.ClinicalExtraction, error) {
	m.extractCalls++
	return m.extraction, m.extractErr
}

func (m *fakeModel) FinalizationTopicExtract(_ context.Context, _ string, _ *models.FinalizationTopics, _ []string) (map[string]string, error) {
	return m.topics, m.topicsErr
}

func (m *fakeModel) GenerateReply(_ context.Context, _, _, outcomeCode string, _ bool) (string, error) {
	m.replyOutcomes = append(m.replyOutcomes, outcomeCode)
	return m.reply, m.replyErr
}

type attendanceCall struct {
	actionID      string
	scheduleID    string
	responseValue string
}

type fakeBackend struct {
	schedule    *backend.ScheduleInfo
	scheduleErr error

	attendanceErr error
	clinicalErr   error
	summaryErr    error
	webhookErr    error
	notes         []string
	notesErr      error

	scheduleCalls int
	attendance    []attendanceCall
	clinical      []backend.ClinicalRecord
	summaries     []backend.SummaryPayload
	webhooks      []backend.WebhookNote
	clinicalHooks []backend.ClinicalRecord
	noteFetches   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		schedule: &backend.ScheduleInfo{
			CaregiverID:     "cg-1",
			CaregiverName:   "Ana",
			ScheduleID:      "sch-1",
			PatientID:       "pat-1",
			PatientName:     "Seu José",
			ReportID:        "rep-1",
			ReportDate:      "2026-08-26",
			ShiftDay:        "terça-feira",
			ShiftStart:      "07:00",
			ShiftEnd:        "19:00",
			ShiftAllow:      true,
			ScheduleStarted: true,
			Response:        models.ResponseWaiting,
		},
	}
}

func (b *fakeBackend) GetScheduleStarted(_ context.Context, _ string) (*backend.ScheduleInfo, error) {
	b.scheduleCalls++
	return b.schedule, b.scheduleErr
}

func (b *fakeBackend) UpdateWorkScheduleResponse(_ context.Context, actionID, scheduleID, responseValue string) error {
	if b.attendanceErr != nil {
		return b.attendanceErr
	}
	b.attendance = append(b.attendance, attendanceCall{actionID, scheduleID, responseValue})
	return nil
}

func (b *fakeBackend) UpdateClinicalData(_ context.Context, record backend.ClinicalRecord) error {
	if b.clinicalErr != nil {
		return b.clinicalErr
	}
	b.clinical = append(b.clinical, record)
	return nil
}

func (b *fakeBackend) UpdateReportSummary(_ context.Context, payload backend.SummaryPayload) error {
	if b.summaryErr != nil {
		return b.summaryErr
	}
	b.summaries = append(b.summaries, payload)
	return nil
}

func (b *fakeBackend) GetNoteReport(_ context.Context, _, _ string) ([]string, error) {
	b.noteFetches++
	return b.notes, b.notesErr
}

func (b *fakeBackend) PostWorkflowWebhook(_ context.Context, note backend.WebhookNote) error {
	if b.webhookErr != nil {
		return b.webhookErr
	}
	b.webhooks = append(b.webhooks, note)
	return nil
}

func (b *fakeBackend) PostClinicalWebhook(_ context.Context, record backend.ClinicalRecord) error {
	b.clinicalHooks = append(b.clinicalHooks, record)
	return nil
}

// memSessions mirrors the optimistic concurrency of the SQL store.
type memSessions struct {
	states    map[string]*models.SessionState
	conflicts int
	saves     int
}

func cloneState(state *models.SessionState) *models.SessionState {
	doc, err := json.Marshal(state)
	if err != nil {
		panic(err)
	}
	var clone models.SessionState
	if err := json.Unmarshal(doc, &clone); err != nil {
		panic(err)
	}
	clone.Version = state.Version
	return &clone
}

func (m *memSessions) Load(_ context.Context, sessionID string) (*models.SessionState, error) {
	if s, ok := m.states[sessionID]; ok {
		return cloneState(s), nil
	}
	return models.NewSessionState(sessionID), nil
}

func (m *memSessions) Save(_ context.Context, state *models.SessionState) error {
	m.saves++
	if m.conflicts > 0 {
		m.conflicts--
		if cur, ok := m.states[state.SessionID]; ok {
			cur.Version++
		}
		return store.ErrConcurrentModification
	}
	cur := m.states[state.SessionID]
	if state.Version == 0 {
		if cur != nil {
			return store.ErrConcurrentModification
		}
	} else if cur == nil || cur.Version != state.Version {
		return store.ErrConcurrentModification
	}
	clone := cloneState(state)
	clone.Version = state.Version + 1
	m.states[state.SessionID] = clone
	state.Version = clone.Version
	return nil
}

type auditEvent struct {
	actionID string
	status   string
}

type memPending struct {
	events []auditEvent
}

func (m *memPending) Record(_ context.Context, _ string, action *models.PendingAction) error {
	m.events = append(m.events, auditEvent{action.ActionID, action.Status})
	return nil
}

func (m *memPending) Transition(_ context.Context, actionID, toStatus string) error {
	m.events = append(m.events, auditEvent{actionID, toStatus})
	return nil
}

func (m *memPending) statuses(actionID string) []string {
	var out []string
	for _, ev := range m.events {
		if ev.actionID == actionID {
			out = append(out, ev.status)
		}
	}
	return out
}

type memBuffer struct {
	entries []models.BufferEntry
}

func (m *memBuffer) Append(_ context.Context, entry models.BufferEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memBuffer) Recent(_ context.Context, sessionID string, limit int) ([]models.BufferEntry, error) {
	var out []models.BufferEntry
	for _, e := range m.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type memLocks struct {
	denied   bool
	acquired int
	released int
}

func (m *memLocks) Acquire(_ context.Context, _ string) (string, error) {
	if m.denied {
		return "", store.ErrLockDenied
	}
	m.acquired++
	return "token", nil
}

func (m *memLocks) Release(_ context.Context, _, _ string) error {
	m.released++
	return nil
}

type memIdem struct {
	responses map[string][]byte
	inflight  map[string]bool
	forgets   int
}

func newMemIdem() *memIdem {
	return &memIdem{responses: map[string][]byte{}, inflight: map[string]bool{}}
}

func (m *memIdem) Begin(_ context.Context, key string) ([]byte, error) {
	if stored, ok := m.responses[key]; ok {
		return stored, nil
	}
	if m.inflight[key] {
		return nil, store.ErrInFlight
	}
	m.inflight[key] = true
	return nil, nil
}

func (m *memIdem) Record(_ context.Context, key string, response []byte) error {
	delete(m.inflight, key)
	m.responses[key] = response
	return nil
}

func (m *memIdem) Forget(_ context.Context, key string) error {
	delete(m.inflight, key)
	delete(m.responses, key)
	m.forgets++
	return nil
}

type testEnv struct {
	eng      *Engine
	model    *fakeModel
	backend  *fakeBackend
	sessions *memSessions
	pending  *memPending
	buffer   *memBuffer
	locks    *memLocks
	idem     *memIdem
	now      time.Time
	msgSeq   int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		model:    newFakeModel(),
		backend:  newFakeBackend(),
		sessions: &memSessions{states: map[string]*models.SessionState{}},
		pending:  &memPending{},
		buffer:   &memBuffer{},
		locks:    &memLocks{},
		idem:     newMemIdem(),
		now:      time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
	}
	env.eng = New(env.sessions, env.pending, env.buffer, env.locks, env.idem,
		env.model, env.backend, slog.Default())
	env.eng.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) handle(t *testing.T, text string) *Result {
	t.Helper()
	env.msgSeq++
	result, err := env.eng.Handle(context.Background(), Inbound{
		PhoneNumber: testPhone,
		Text:        text,
		MessageID:   fmt.Sprintf("msg-%d", env.msgSeq),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

// seed installs a session at version 1, as if a previous turn saved it.
func (env *testEnv) seed(state *models.SessionState) {
	state.SessionID = testSessionID
	state.PhoneNumber = testSessionID
	state.Version = 1
	env.sessions.states[testSessionID] = state
}

func (env *testEnv) state(t *testing.T) *models.SessionState {
	t.Helper()
	state, ok := env.sessions.states[testSessionID]
	require.True(t, ok, "session was never saved")
	return state
}

// confirmedShiftState is a hydrated session with attendance already
// confirmed, the usual starting point for clinical turns.
func confirmedShiftState() *models.SessionState {
	return &models.SessionState{
		CaregiverID:     "cg-1",
		CaregiverName:   "Ana",
		ScheduleID:      "sch-1",
		PatientID:       "pat-1",
		PatientName:     "Seu José",
		ReportID:        "rep-1",
		ReportDate:      "2026-08-26",
		ShiftAllow:      true,
		ScheduleStarted: true,
		Response:        models.ResponseConfirmed,
	}
}

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
