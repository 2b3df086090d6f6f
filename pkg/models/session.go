// Package models defines the canonical session state and the records shared
// by the stores, the engine and the API layer.
package models

import (
	"strings"
	"time"
)

// Shift response values as reported by the scheduling backend.
const (
	ResponseNone      = ""
	ResponseConfirmed = "confirmado"
	ResponseWaiting   = "aguardando resposta"
	ResponseCancelled = "cancelado"
)

// RespiratoryMode is the normalized respiratory condition of the patient.
type RespiratoryMode string

const (
	RespiratoryNone        RespiratoryMode = ""
	RespiratoryAmbient     RespiratoryMode = "ambient"
	RespiratorySupplement  RespiratoryMode = "supplemental_o2"
	RespiratoryVentilation RespiratoryMode = "mechanical_ventilation"
)

// Vitals is the clinical buffer of the five monitored vital signs. A nil
// field means the value has not been collected yet.
type Vitals struct {
	PA    *string  `json:"pa,omitempty"` // normalized "SSSxDDD"
	HR    *int     `json:"hr,omitempty"`
	RR    *int     `json:"rr,omitempty"`
	SatO2 *int     `json:"sat_o2,omitempty"`
	Temp  *float64 `json:"temp,omitempty"`
}

// Missing returns the labels of the vitals still absent, in collection order.
func (v Vitals) Missing() []string {
	var missing []string
	if v.PA == nil {
		missing = append(missing, "PA")
	}
	if v.HR == nil {
		missing = append(missing, "FC")
	}
	if v.RR == nil {
		missing = append(missing, "FR")
	}
	if v.SatO2 == nil {
		missing = append(missing, "Sat")
	}
	if v.Temp == nil {
		missing = append(missing, "Temp")
	}
	return missing
}

// Complete reports whether the full five-value tuple is present.
func (v Vitals) Complete() bool {
	return v.PA != nil && v.HR != nil && v.RR != nil && v.SatO2 != nil && v.Temp != nil
}

// Empty reports whether no vital has been collected.
func (v Vitals) Empty() bool {
	return v.PA == nil && v.HR == nil && v.RR == nil && v.SatO2 == nil && v.Temp == nil
}

// Merge copies non-nil values of other into v without overwriting values
// already present. New readings never replace values staged for commit.
func (v *Vitals) Merge(other Vitals) {
	if v.PA == nil && other.PA != nil {
		v.PA = other.PA
	}
	if v.HR == nil && other.HR != nil {
		v.HR = other.HR
	}
	if v.RR == nil && other.RR != nil {
		v.RR = other.RR
	}
	if v.SatO2 == nil && other.SatO2 != nil {
		v.SatO2 = other.SatO2
	}
	if v.Temp == nil && other.Temp != nil {
		v.Temp = other.Temp
	}
}

// ResumeAfter records a flow to resume once a prerequisite flow completes,
// e.g. vitals received before attendance was confirmed.
type ResumeAfter struct {
	Flow   string `json:"flow"`
	Reason string `json:"reason"`
}

// SessionState is the canonical per-caregiver session document. It is loaded
// and written as a whole under the session lock; Version implements
// optimistic concurrency in the store.
type SessionState struct {
	SessionID     string `json:"session_id"`
	PhoneNumber   string `json:"phone_number"`
	CaregiverID   string `json:"caregiver_id,omitempty"`
	CaregiverName string `json:"caregiver_name,omitempty"`
	Company       string `json:"company,omitempty"`
	Cooperative   string `json:"cooperative,omitempty"`

	// Shift context, hydrated from getScheduleStarted.
	ScheduleID         string `json:"schedule_id,omitempty"`
	PatientID          string `json:"patient_id,omitempty"`
	PatientName        string `json:"patient_name,omitempty"`
	ShiftDay           string `json:"shift_day,omitempty"`
	ShiftStart         string `json:"shift_start,omitempty"`
	ShiftEnd           string `json:"shift_end,omitempty"`
	ReportID           string `json:"report_id,omitempty"`
	ReportDate         string `json:"report_date,omitempty"`
	ShiftAllow         bool   `json:"shift_allow"`
	Response           string `json:"response"`
	ScheduleStarted    bool   `json:"schedule_started"`
	FinishReminderSent bool   `json:"finish_reminder_sent"`

	// Clinical buffer.
	Vitals               Vitals          `json:"vitals"`
	RespiratoryMode      RespiratoryMode `json:"respiratory_mode,omitempty"`
	ClinicalNote         *string         `json:"clinical_note,omitempty"`
	FirstMeasurementDone bool            `json:"first_measurement_done"`

	// Finalization buffer.
	Finalization      FinalizationTopics `json:"finalization"`
	ExistingNotes     []string           `json:"existing_notes,omitempty"`
	MissingTopicsHint []string           `json:"missing_topics_hint,omitempty"`

	// Control.
	Pending       *PendingAction `json:"pending,omitempty"`
	ResumeAfter   *ResumeAfter   `json:"resume_after,omitempty"`
	LastUserText  string         `json:"last_user_text,omitempty"`
	LastReplyCode string         `json:"last_reply_code,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState returns the default state for a session that has never
// been persisted. Version 0 signals the store that the first save must be
// an insert.
func NewSessionState(phoneNumber string) *SessionState {
	phone := CanonicalPhone(phoneNumber)
	return &SessionState{
		SessionID:   phone,
		PhoneNumber: phone,
	}
}

// AttendancePending reports whether the attendance gate must capture the
// conversation: the shift exists but presence was not confirmed yet.
func (s *SessionState) AttendancePending() bool {
	return s.ShiftAllow && s.Response != ResponseConfirmed
}

// StagedPending returns the pending action when it is staged and not
// expired, nil otherwise.
func (s *SessionState) StagedPending(now time.Time) *PendingAction {
	if s.Pending == nil || s.Pending.Status != PendingStaged {
		return nil
	}
	if s.Pending.Expired(now) {
		return nil
	}
	return s.Pending
}

// ClearClinicalBuffer resets the in-flight measurement while preserving the
// first-measurement flag.
func (s *SessionState) ClearClinicalBuffer() {
	s.Vitals = Vitals{}
	s.RespiratoryMode = RespiratoryNone
	s.ClinicalNote = nil
}

// ResetAfterFinalize clears everything the finalize commit consumes. The
// identity fields stay; the shift context is re-seeded by the next
// bootstrap.
func (s *SessionState) ResetAfterFinalize() {
	s.ClearClinicalBuffer()
	s.FirstMeasurementDone = false
	s.Finalization = FinalizationTopics{}
	s.ExistingNotes = nil
	s.MissingTopicsHint = nil
	s.Pending = nil
	s.ResumeAfter = nil
	s.FinishReminderSent = false
	s.ScheduleID = ""
	s.ReportID = ""
	s.ReportDate = ""
	s.ScheduleStarted = false
	s.Response = ResponseNone
	s.ShiftAllow = false
}

// CanonicalPhone normalizes a phone number to digits only, dropping the
// leading "+" and any separators. The result keys the session.
func CanonicalPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
