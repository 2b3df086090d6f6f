package models

// ClinicalExtraction is the validated result of reading vitals and notes
// out of a caregiver message. Out-of-range values arrive as nil with a
// warning code.
type ClinicalExtraction struct {
	Vitals          Vitals          `json:"vitals"`
	RespiratoryMode RespiratoryMode `json:"respiratory_mode,omitempty"`
	ClinicalNote    *string         `json:"clinical_note,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// Empty reports whether the extraction carries no usable information.
func (e ClinicalExtraction) Empty() bool {
	return e.Vitals.Empty() && e.RespiratoryMode == RespiratoryNone && e.ClinicalNote == nil
}
