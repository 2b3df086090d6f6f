package engine

import (
	"context"

	"github.com/vitalis-care/plantao/pkg/models"
)

// bootstrap hydrates the shift context from the scheduling backend on cold
// sessions, including after a finalize reset. Hydration failures never
// block the turn; the session just keeps operating without shift context.
func (e *Engine) bootstrap(ctx context.Context, state *models.SessionState) {
	if state.ScheduleID != "" {
		return
	}

	info, err := e.backend.GetScheduleStarted(ctx, state.PhoneNumber)
	if err != nil {
		e.logger.Warn("shift context hydration failed",
			"session_id", state.SessionID, "error", err)
		return
	}
	if info == nil || info.ScheduleID == "" {
		return
	}

	state.CaregiverID = info.CaregiverID
	state.CaregiverName = info.CaregiverName
	state.Company = info.Company
	state.Cooperative = info.Cooperative
	state.ScheduleID = info.ScheduleID
	state.PatientID = info.PatientID
	state.PatientName = info.PatientName
	state.ReportID = info.ReportID
	state.ReportDate = info.ReportDate
	state.ShiftDay = info.ShiftDay
	state.ShiftStart = info.ShiftStart
	state.ShiftEnd = info.ShiftEnd
	state.ShiftAllow = info.ShiftAllow
	state.ScheduleStarted = info.ScheduleStarted
	state.Response = info.Response

	e.logger.Info("shift context hydrated",
		"session_id", state.SessionID,
		"schedule_id", state.ScheduleID,
		"shift_allow", state.ShiftAllow,
		"response", state.Response)
}
