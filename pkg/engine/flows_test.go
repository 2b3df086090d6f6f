package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalis-care/plantao/pkg/backend"
	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
)

func stagedAction(flow string, payload string, now testEnv) *models.PendingAction {
	return &models.PendingAction{
		ActionID:  "act-1",
		Flow:      flow,
		Payload:   []byte(payload),
		Status:    models.PendingStaged,
		CreatedAt: now.now,
		ExpiresAt: now.now.Add(models.DefaultPendingTTL),
	}
}

func TestEscalaStagesAttendanceConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.model.confirmation = llm.ConfirmYes

	result := env.handle(t, "cheguei, estou no plantão")

	assert.Equal(t, models.OutcomeEscalaStaged, result.OutcomeCode)
	state := env.state(t)
	require.NotNil(t, state.Pending)
	assert.Equal(t, models.FlowEscalaCommit, state.Pending.Flow)
	assert.Equal(t, models.PendingStaged, state.Pending.Status)
	assert.Contains(t, state.Pending.Description, "presença")
	// nothing hit the backend yet
	assert.Empty(t, env.backend.attendance)
}

func TestEscalaConfirmExecutesCommit(t *testing.T) {
	env := newTestEnv(t)
	env.model.confirmation = llm.ConfirmYes

	env.handle(t, "estou no plantão")
	actionID := env.state(t).Pending.ActionID

	result := env.handle(t, "sim")

	assert.Equal(t, models.OutcomeEscalaConfirmed, result.OutcomeCode)
	require.Len(t, env.backend.attendance, 1)
	call := env.backend.attendance[0]
	assert.Equal(t, actionID, call.actionID)
	assert.Equal(t, "sch-1", call.scheduleID)
	assert.Equal(t, models.ResponseConfirmed, call.responseValue)

	state := env.state(t)
	assert.Nil(t, state.Pending)
	assert.Equal(t, models.ResponseConfirmed, state.Response)
	assert.False(t, state.AttendancePending())
	assert.Equal(t, []string{
		models.PendingStaged, models.PendingConfirmed, models.PendingExecuted,
	}, env.pending.statuses(actionID))
}

func TestEscalaAbsenceStagesCancellation(t *testing.T) {
	env := newTestEnv(t)
	env.model.confirmation = llm.ConfirmNo

	env.handle(t, "não vou conseguir ir hoje")
	state := env.state(t)
	require.NotNil(t, state.Pending)

	env.model.confirmation = llm.ConfirmYes
	result := env.handle(t, "sim, pode avisar")

	assert.Equal(t, models.OutcomeEscalaCancelled, result.OutcomeCode)
	require.Len(t, env.backend.attendance, 1)
	assert.Equal(t, models.ResponseCancelled, env.backend.attendance[0].responseValue)
	assert.Equal(t, models.ResponseCancelled, env.state(t).Response)
}

func TestEscalaDeclineCancelsPendingWithoutCommit(t *testing.T) {
	env := newTestEnv(t)
	env.model.confirmation = llm.ConfirmYes
	env.handle(t, "estou no plantão")
	actionID := env.state(t).Pending.ActionID

	env.model.confirmation = llm.ConfirmNo
	result := env.handle(t, "não, espera")

	assert.Equal(t, models.OutcomePendingCancelled, result.OutcomeCode)
	assert.Nil(t, env.state(t).Pending)
	assert.Empty(t, env.backend.attendance)
	assert.Contains(t, env.pending.statuses(actionID), models.PendingCancelled)
}

func TestEscalaCommitFailureKeepsSessionUsable(t *testing.T) {
	env := newTestEnv(t)
	env.model.confirmation = llm.ConfirmYes
	env.handle(t, "estou no plantão")

	env.backend.attendanceErr = assert.AnError
	result := env.handle(t, "sim")

	assert.Equal(t, models.OutcomeEscalaCommitFailed, result.OutcomeCode)
	state := env.state(t)
	assert.Nil(t, state.Pending)
	// presence is still unconfirmed, the next message restarts the flow
	assert.True(t, state.AttendancePending())
}

func TestEscalaTransientCommitFailureKeepsPendingStaged(t *testing.T) {
	env := newTestEnv(t)
	env.model.confirmation = llm.ConfirmYes
	env.handle(t, "estou no plantão")

	env.backend.attendanceErr = &backend.Error{
		Endpoint: "update-schedule", Kind: backend.KindTransient, StatusCode: 502,
	}
	result := env.handle(t, "sim")

	assert.Equal(t, models.OutcomeEscalaCommitFailed, result.OutcomeCode)
	state := env.state(t)
	require.NotNil(t, state.Pending)
	assert.Equal(t, models.PendingStaged, state.Pending.Status)

	// the same answer retries the commit once the backend recovers
	env.backend.attendanceErr = nil
	result = env.handle(t, "sim")

	assert.Equal(t, models.OutcomeEscalaConfirmed, result.OutcomeCode)
	require.Len(t, env.backend.attendance, 1)
	assert.Nil(t, env.state(t).Pending)
}

func TestEscalaBuffersEarlyVitalsAndResumes(t *testing.T) {
	env := newTestEnv(t)
	env.model.confirmation = llm.ConfirmYes
	env.model.extraction = models.ClinicalExtraction{
		Vitals: models.Vitals{PA: strPtr("120x80")},
	}

	env.handle(t, "cheguei sim, PA 120x80")
	state := env.state(t)
	require.NotNil(t, state.ResumeAfter)
	assert.Equal(t, models.SubgraphClinico, state.ResumeAfter.Flow)
	require.NotNil(t, state.Vitals.PA)

	// confirming presence hops straight into the clinical flow, which asks
	// for the readings still missing
	result := env.handle(t, "sim")
	assert.Equal(t, models.OutcomeClinicalMissing, result.OutcomeCode)

	state = env.state(t)
	assert.Nil(t, state.ResumeAfter)
	assert.Equal(t, models.ResponseConfirmed, state.Response)
	assert.Equal(t, "120x80", *state.Vitals.PA)
	require.Len(t, env.backend.attendance, 1)
}

func TestClinicoCollectsIncrementally(t *testing.T) {
	env := newTestEnv(t)
	env.seed(confirmedShiftState())
	env.model.intent = llm.Intent{Subgraph: models.SubgraphClinico, Confidence: 0.9}

	env.model.extraction = models.ClinicalExtraction{
		Vitals: models.Vitals{PA: strPtr("120x80"), HR: intPtr(80)},
	}
	result := env.handle(t, "PA 120x80, FC 80")
	assert.Equal(t, models.OutcomeClinicalMissing, result.OutcomeCode)

	state := env.state(t)
	assert.Equal(t, []string{"FR", "Sat", "Temp"}, state.Vitals.Missing())
	assert.Nil(t, state.Pending)

	env.model.extraction = models.ClinicalExtraction{
		Vitals:          models.Vitals{RR: intPtr(16), SatO2: intPtr(97), Temp: floatPtr(36.5)},
		RespiratoryMode: models.RespiratoryAmbient,
		ClinicalNote:    strPtr("paciente tranquilo"),
	}
	result = env.handle(t, "FR 16, sat 97, temp 36.5, ar ambiente, tranquilo")
	assert.Equal(t, models.OutcomeClinicalStaged, result.OutcomeCode)

	state = env.state(t)
	require.NotNil(t, state.Pending)
	assert.Equal(t, models.FlowClinicalCommit, state.Pending.Flow)
	assert.Contains(t, state.Pending.Description, "PA 120x80")
	assert.Contains(t, state.Pending.Description, "paciente tranquilo")
}

func TestClinicoConfirmCommitsAndClearsBuffer(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.Vitals = models.Vitals{
		PA: strPtr("120x80"), HR: intPtr(80), RR: intPtr(16),
		SatO2: intPtr(97), Temp: floatPtr(36.5),
	}
	state.RespiratoryMode = models.RespiratoryAmbient
	state.ClinicalNote = strPtr("paciente tranquilo")
	env.seed(state)
	env.model.intent = llm.Intent{Subgraph: models.SubgraphClinico}

	// an empty extraction: the buffer is already complete
	env.handle(t, "pode registrar")
	require.NotNil(t, env.state(t).Pending)

	env.model.confirmation = llm.ConfirmYes
	result := env.handle(t, "sim")

	assert.Equal(t, models.OutcomeClinicalCommitted, result.OutcomeCode)
	require.Len(t, env.backend.clinical, 1)
	record := env.backend.clinical[0]
	assert.Equal(t, "120x80", *record.BloodPressure)
	assert.Equal(t, 80, *record.HeartRate)
	assert.Equal(t, 16, *record.RespRate)
	assert.Equal(t, 97, *record.SaturationO2)
	assert.InDelta(t, 36.5, *record.Temperature, 0.001)
	require.NotNil(t, record.SupplementaryOxygen)
	assert.Equal(t, string(models.RespiratoryAmbient), *record.SupplementaryOxygen)
	assert.Equal(t, "paciente tranquilo", record.ClinicalNote)
	assert.Equal(t, "rep-1", record.ReportID)
	require.Len(t, env.backend.clinicalHooks, 1)

	after := env.state(t)
	assert.Nil(t, after.Pending)
	assert.True(t, after.FirstMeasurementDone)
	assert.True(t, after.Vitals.Empty())
	assert.Nil(t, after.ClinicalNote)
}

func TestClinicoNoteDefaultsAfterFirstMeasurement(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.FirstMeasurementDone = true
	state.Vitals = models.Vitals{
		PA: strPtr("110x70"), HR: intPtr(72), RR: intPtr(14),
		SatO2: intPtr(98), Temp: floatPtr(36.2),
	}
	state.RespiratoryMode = models.RespiratoryAmbient
	env.seed(state)
	env.model.intent = llm.Intent{Subgraph: models.SubgraphClinico}

	env.handle(t, "segunda medição completa")
	env.model.confirmation = llm.ConfirmYes
	env.handle(t, "sim")

	require.Len(t, env.backend.clinical, 1)
	assert.Equal(t, "sem alterações", env.backend.clinical[0].ClinicalNote)
}

func TestClinicoNoteOnlyRejectedBeforeFirstMeasurement(t *testing.T) {
	env := newTestEnv(t)
	env.seed(confirmedShiftState())
	env.model.intent = llm.Intent{Subgraph: models.SubgraphClinico}
	env.model.extraction = models.ClinicalExtraction{
		ClinicalNote: strPtr("paciente dormiu bem"),
	}

	result := env.handle(t, "paciente dormiu bem")

	assert.Equal(t, models.OutcomeClinicalRejectedIncompleteFirst, result.OutcomeCode)
	assert.Empty(t, env.backend.clinical)
}

func TestClinicoNoteOnlyCommitsDirectlyAfterFirstMeasurement(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.FirstMeasurementDone = true
	env.seed(state)
	env.model.intent = llm.Intent{Subgraph: models.SubgraphClinico}
	env.model.extraction = models.ClinicalExtraction{
		ClinicalNote: strPtr("paciente almoçou bem"),
	}

	result := env.handle(t, "paciente almoçou bem")

	assert.Equal(t, models.OutcomeClinicalNoteOnlyCommitted, result.OutcomeCode)
	require.Len(t, env.backend.clinical, 1)
	assert.Equal(t, "paciente almoçou bem", env.backend.clinical[0].ClinicalNote)
	// the note takes the same backend-plus-webhook pair as a confirmed commit
	require.Len(t, env.backend.clinicalHooks, 1)
	assert.Equal(t, "paciente almoçou bem", env.backend.clinicalHooks[0].ClinicalNote)
	// no confirmation round trip for standalone notes
	assert.Nil(t, env.state(t).Pending)
	assert.Nil(t, env.state(t).ClinicalNote)
}

func TestClinicoTransientCommitFailureKeepsPendingStaged(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.Pending = stagedAction(models.FlowClinicalCommit, `{"clinicalNote":"tudo certo"}`, *env)
	env.seed(state)
	env.model.confirmation = llm.ConfirmYes

	env.backend.clinicalErr = &backend.Error{
		Endpoint: "update-clinical", Kind: backend.KindTimeout,
	}
	result := env.handle(t, "sim")

	assert.Equal(t, models.OutcomeClinicalCommitFailed, result.OutcomeCode)
	require.NotNil(t, env.state(t).Pending)

	env.backend.clinicalErr = nil
	result = env.handle(t, "sim")

	assert.Equal(t, models.OutcomeClinicalCommitted, result.OutcomeCode)
	require.Len(t, env.backend.clinical, 1)
	assert.Nil(t, env.state(t).Pending)
}

func TestClinicoPermanentCommitFailureClearsPending(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.Pending = stagedAction(models.FlowClinicalCommit, `{}`, *env)
	env.seed(state)
	env.model.confirmation = llm.ConfirmYes
	env.backend.clinicalErr = &backend.Error{
		Endpoint: "update-clinical", Kind: backend.KindPermanent4xx, StatusCode: 422,
	}

	result := env.handle(t, "sim")

	assert.Equal(t, models.OutcomeClinicalCommitFailed, result.OutcomeCode)
	assert.Nil(t, env.state(t).Pending)
}

func TestClinicoDeclineClearsBuffer(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.Vitals = models.Vitals{
		PA: strPtr("300x200"), HR: intPtr(80), RR: intPtr(16),
		SatO2: intPtr(97), Temp: floatPtr(36.5),
	}
	state.RespiratoryMode = models.RespiratoryAmbient
	state.ClinicalNote = strPtr("nota")
	env.seed(state)
	env.model.intent = llm.Intent{Subgraph: models.SubgraphClinico}

	env.handle(t, "registra")
	env.model.confirmation = llm.ConfirmNo
	result := env.handle(t, "não, digitei errado")

	assert.Equal(t, models.OutcomePendingCancelled, result.OutcomeCode)
	after := env.state(t)
	assert.Nil(t, after.Pending)
	assert.True(t, after.Vitals.Empty())
	assert.Empty(t, env.backend.clinical)
}

func TestClinicoMergeNeverOverwritesBufferedValues(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.Vitals = models.Vitals{PA: strPtr("120x80")}
	env.seed(state)
	env.model.intent = llm.Intent{Subgraph: models.SubgraphClinico}
	env.model.extraction = models.ClinicalExtraction{
		Vitals: models.Vitals{PA: strPtr("999x999"), HR: intPtr(80)},
	}

	env.handle(t, "PA 999x999, FC 80")

	after := env.state(t)
	assert.Equal(t, "120x80", *after.Vitals.PA)
	assert.Equal(t, 80, *after.Vitals.HR)
}

func TestOperacionalDeliversNote(t *testing.T) {
	env := newTestEnv(t)
	env.seed(confirmedShiftState())
	env.model.operational = llm.OperationalNote{
		IsOperational: true,
		Note:          "acabou a fralda G",
		Urgency:       llm.UrgencyNormal,
	}

	result := env.handle(t, "acabou a fralda G, precisa repor")

	assert.Equal(t, models.OutcomeOperationalDelivered, result.OutcomeCode)
	require.Len(t, env.backend.webhooks, 1)
	hook := env.backend.webhooks[0]
	assert.Equal(t, "acabou a fralda G", hook.ClinicalNote)
	assert.Equal(t, "operational", hook.NoteType)
	assert.Equal(t, llm.UrgencyNormal, hook.Urgency)
	assert.Equal(t, "rep-1", hook.ReportID)
}

func TestOperacionalUrgentDivertsWithoutDroppingPending(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.Pending = stagedAction(models.FlowClinicalCommit, `{}`, *env)
	env.seed(state)
	env.model.operational = llm.OperationalNote{
		IsOperational: true,
		Note:          "paciente caiu da cama",
		Urgency:       llm.UrgencyHigh,
	}

	result := env.handle(t, "socorro, o paciente caiu da cama")

	assert.Equal(t, models.OutcomeOperationalDelivered, result.OutcomeCode)
	require.Len(t, env.backend.webhooks, 1)
	assert.Equal(t, llm.UrgencyHigh, env.backend.webhooks[0].Urgency)

	// the staged commit is still waiting for its answer
	after := env.state(t)
	require.NotNil(t, after.Pending)
	assert.Equal(t, models.PendingStaged, after.Pending.Status)
}

func TestOperacionalNonUrgentDoesNotPreemptPending(t *testing.T) {
	env := newTestEnv(t)
	state := confirmedShiftState()
	state.Pending = stagedAction(models.FlowClinicalCommit, `{}`, *env)
	env.seed(state)
	env.model.operational = llm.OperationalNote{
		IsOperational: true,
		Note:          "faltou papel toalha",
		Urgency:       llm.UrgencyLow,
	}

	// the pending confirmation keeps priority; unclear answer re-asks
	result := env.handle(t, "faltou papel toalha")

	assert.Equal(t, models.OutcomeClinicalStaged, result.OutcomeCode)
	assert.Empty(t, env.backend.webhooks)
	require.NotNil(t, env.state(t).Pending)
}

func TestOperacionalDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(confirmedShiftState())
	env.model.operational = llm.OperationalNote{IsOperational: true, Note: "aviso", Urgency: llm.UrgencyNormal}
	env.backend.webhookErr = assert.AnError

	result := env.handle(t, "aviso")

	assert.Equal(t, models.OutcomeOperationalDeliveryFailed, result.OutcomeCode)
}

func TestIntentRoutingFallsBackToHelp(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(env *testEnv)
		want    string
	}{
		{
			name:    "undefined intent",
			prepare: func(env *testEnv) { env.model.intent = llm.Intent{Subgraph: llm.IntentUndefined} },
			want:    models.OutcomeHelpContext,
		},
		{
			name:    "unknown subgraph name",
			prepare: func(env *testEnv) { env.model.intent = llm.Intent{Subgraph: "pedidos"} },
			want:    models.OutcomeHelpContext,
		},
		{
			name:    "classifier failure",
			prepare: func(env *testEnv) { env.model.intentErr = assert.AnError },
			want:    models.OutcomeHelpContext,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seed(confirmedShiftState())
			tt.prepare(env)

			result := env.handle(t, "hmm")
			assert.Equal(t, tt.want, result.OutcomeCode)
		})
	}
}
