package backend

// Clinical commit scenarios understood by updateClinicalData.
const (
	ScenarioVitalsNoteSymptoms = "VITAL_SIGNS_NOTE_SYMPTOMS"
	ScenarioVitalsSymptoms     = "VITAL_SIGNS_SYMPTOMS"
	ScenarioVitalsNote         = "VITAL_SIGNS_NOTE"
	ScenarioVitalsOnly         = "VITAL_SIGNS_ONLY"
	ScenarioNoteSymptoms       = "NOTE_SYMPTOMS"
	ScenarioSymptomsOnly       = "SYMPTOMS_ONLY"
	ScenarioNoteOnly           = "NOTE_ONLY"
)

// DetermineScenario picks the updateClinicalData scenario from what the
// commit carries. An empty commit degrades to VITAL_SIGNS_ONLY.
func DetermineScenario(hasVitals, hasNote, hasSymptoms bool) string {
	switch {
	case hasVitals && hasNote && hasSymptoms:
		return ScenarioVitalsNoteSymptoms
	case hasVitals && hasSymptoms:
		return ScenarioVitalsSymptoms
	case hasVitals && hasNote:
		return ScenarioVitalsNote
	case hasVitals:
		return ScenarioVitalsOnly
	case hasNote && hasSymptoms:
		return ScenarioNoteSymptoms
	case hasSymptoms:
		return ScenarioSymptomsOnly
	case hasNote:
		return ScenarioNoteOnly
	}
	return ScenarioVitalsOnly
}
