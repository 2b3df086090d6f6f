package backend

// ScheduleInfo is the shift context returned by getScheduleStarted.
type ScheduleInfo struct {
	CaregiverID     string `json:"caregiverID"`
	CaregiverName   string `json:"caregiverFirstName"`
	ScheduleID      string `json:"scheduleID"`
	PatientID       string `json:"patientID"`
	PatientName     string `json:"patientFirstName"`
	ReportID        string `json:"reportID"`
	ReportDate      string `json:"reportDate"`
	ShiftDay        string `json:"shiftDay"`
	ShiftStart      string `json:"shiftStart"`
	ShiftEnd        string `json:"shiftEnd"`
	ShiftAllow      bool   `json:"shiftAllow"`
	ScheduleStarted bool   `json:"scheduleStarted"`
	Company         string `json:"company"`
	Cooperative     string `json:"cooperative"`
	Response        string `json:"response"`
	Message         string `json:"message"`
}

// scheduleEnvelope unwraps the Lambda-style {"body": {...}} response.
type scheduleEnvelope struct {
	Body *ScheduleInfo `json:"body"`
	ScheduleInfo
}

// ClinicalRecord is the canonical clinical commit payload pushed to both
// updateClinicalData and the workflow webhook.
type ClinicalRecord struct {
	ActionID      string   `json:"actionID,omitempty"`
	ReportID      string   `json:"reportID"`
	ReportDate    string   `json:"reportDate"`
	ScheduleID    string   `json:"scheduleID"`
	PatientID     string   `json:"patientIdentifier"`
	CaregiverID   string   `json:"caregiverIdentifier"`
	SessionID     string   `json:"sessionID"`
	Scenario      string   `json:"scenario,omitempty"`
	BloodPressure *string  `json:"bloodPressure,omitempty"`
	HeartRate     *int     `json:"heartRate,omitempty"`
	RespRate      *int     `json:"respRate,omitempty"`
	SaturationO2  *int     `json:"saturationO2,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`

	// SupplementaryOxygen carries the normalized respiratory mode;
	// volume and concentrator are collected downstream.
	SupplementaryOxygen *string `json:"supplementaryOxygen"`
	OxygenVolume        *string `json:"oxygenVolume"`
	OxygenConcentrator  *string `json:"oxygenConcentrator"`
	ClinicalNote        string  `json:"clinicalNote"`
}

// WebhookNote is a free-standing note pushed to the workflow webhook, used
// by the operational flow and per-topic finalization pushes.
type WebhookNote struct {
	ActionID     string `json:"actionID,omitempty"`
	ReportID     string `json:"reportID"`
	ReportDate   string `json:"reportDate"`
	ScheduleID   string `json:"scheduleID"`
	PatientID    string `json:"patientIdentifier,omitempty"`
	CaregiverID  string `json:"caregiverIdentifier,omitempty"`
	SessionID    string `json:"sessionID"`
	ClinicalNote string `json:"clinicalNote"`
	NoteType     string `json:"noteType,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Urgency      string `json:"urgency,omitempty"`
}

// SummaryPayload closes the shift report via updatereportsummaryad. One
// specification field per finalization topic, defaulted upstream.
type SummaryPayload struct {
	ActionID    string `json:"actionID,omitempty"`
	ReportID    string `json:"reportID"`
	ReportDate  string `json:"reportDate"`
	ScheduleID  string `json:"scheduleID"`
	CaregiverID string `json:"caregiverID"`
	PatientID   string `json:"patientID"`

	FoodHydrationSpecification         string `json:"foodHydrationSpecification"`
	StoolUrineSpecification            string `json:"stoolUrineSpecification"`
	SleepSpecification                 string `json:"sleepSpecification"`
	MoodSpecification                  string `json:"moodSpecification"`
	MedicationsSpecification           string `json:"medicationsSpecification"`
	ActivitiesSpecification            string `json:"activitiesSpecification"`
	AdditionalInformationSpecification string `json:"additionalInformationSpecification"`
	AdministrativeInfo                 string `json:"administrativeInfo"`
}

// noteReportResponse is the getNoteReport wire shape.
type noteReportResponse struct {
	Notes []struct {
		NoteDescAI string `json:"noteDescAI"`
	} `json:"notes"`
}
