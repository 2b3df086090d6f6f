// Package clinical validates and normalizes vital sign extractions and owns
// the first-complete-measurement commit rule.
package clinical

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vitalis-care/plantao/pkg/models"
)

// Warning codes attached when a value is dropped during validation.
const (
	WarnPAAmbiguous    = "PA_ambigua"
	WarnPAInvalid      = "PA_invalida"
	WarnPAOutOfRange   = "PA_fora_faixa"
	WarnHROutOfRange   = "FC_fora_faixa"
	WarnRROutOfRange   = "FR_fora_faixa"
	WarnSatOutOfRange  = "SAT_fora_faixa"
	WarnTempOutOfRange = "TEMP_fora_faixa"
)

// Safety ranges. Values outside these are never committed.
const (
	minHR    = 20
	maxHR    = 220
	minRR    = 5
	maxRR    = 50
	minSat   = 50
	maxSat   = 100
	minTemp  = 30.0
	maxTemp  = 43.0
	minPASys = 70
	maxPASys = 260
	minPADia = 40
	maxPADia = 160
)

// DefaultNote is used when a post-first commit arrives without a note.
const DefaultNote = "sem alterações"

var paPattern = regexp.MustCompile(`^\s*(\d{1,3})\s*[xX/\\-]\s*(\d{1,3})\s*$`)

// NormalizePA parses a blood pressure reading into the canonical "SSSxDDD"
// form. Shorthand like "12/8" is ambiguous and dropped with a warning
// rather than guessed at.
func NormalizePA(raw string) (*string, []string) {
	m := paPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, []string{WarnPAInvalid}
	}
	sys, _ := strconv.Atoi(m[1])
	dia, _ := strconv.Atoi(m[2])

	// "12/8" style shorthand: both numbers an order of magnitude below any
	// plausible reading
	if sys < minPASys && dia < minPADia {
		return nil, []string{WarnPAAmbiguous}
	}
	if sys < minPASys || sys > maxPASys || dia < minPADia || dia > maxPADia {
		return nil, []string{WarnPAOutOfRange}
	}
	normalized := fmt.Sprintf("%dx%d", sys, dia)
	return &normalized, nil
}

// MapRespiratory maps free-text respiratory descriptors to the enum.
// Unrecognized text maps to RespiratoryNone.
func MapRespiratory(raw string) models.RespiratoryMode {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch text {
	case "", "nao informado", "não informado":
		return models.RespiratoryNone
	case string(models.RespiratoryAmbient), string(models.RespiratorySupplement), string(models.RespiratoryVentilation):
		return models.RespiratoryMode(text)
	}
	switch {
	case strings.Contains(text, "ventila") || strings.Contains(text, "intub") ||
		strings.Contains(text, "traqueo") || text == "vm" || text == "vmi":
		return models.RespiratoryVentilation
	case strings.Contains(text, "cateter") || strings.Contains(text, "catéter") ||
		strings.Contains(text, "oxig") || strings.Contains(text, "o2") ||
		strings.Contains(text, "suplement") || strings.Contains(text, "mascara") ||
		strings.Contains(text, "máscara"):
		return models.RespiratorySupplement
	case strings.Contains(text, "ambiente") || strings.Contains(text, "ar amb") ||
		text == "aa" || strings.Contains(text, "espontane") || strings.Contains(text, "espontâne"):
		return models.RespiratoryAmbient
	}
	return models.RespiratoryNone
}

// ValidateVitals re-enforces the safety ranges, dropping out-of-range
// values with a warning code each.
func ValidateVitals(v models.Vitals) (models.Vitals, []string) {
	var warnings []string

	if v.PA != nil {
		normalized, paWarnings := NormalizePA(*v.PA)
		v.PA = normalized
		warnings = append(warnings, paWarnings...)
	}
	if v.HR != nil && (*v.HR < minHR || *v.HR > maxHR) {
		v.HR = nil
		warnings = append(warnings, WarnHROutOfRange)
	}
	if v.RR != nil && (*v.RR < minRR || *v.RR > maxRR) {
		v.RR = nil
		warnings = append(warnings, WarnRROutOfRange)
	}
	if v.SatO2 != nil && (*v.SatO2 < minSat || *v.SatO2 > maxSat) {
		v.SatO2 = nil
		warnings = append(warnings, WarnSatOutOfRange)
	}
	if v.Temp != nil && (*v.Temp < minTemp || *v.Temp > maxTemp) {
		v.Temp = nil
		warnings = append(warnings, WarnTempOutOfRange)
	}
	return v, warnings
}

// Sanitize post-validates a raw extraction: ranges enforced again, PA
// normalized, note trimmed. Warnings accumulate on top of whatever the
// extractor already flagged.
func Sanitize(ext models.ClinicalExtraction) models.ClinicalExtraction {
	vitals, warnings := ValidateVitals(ext.Vitals)
	ext.Vitals = vitals
	ext.Warnings = append(ext.Warnings, warnings...)

	if ext.ClinicalNote != nil {
		trimmed := strings.TrimSpace(*ext.ClinicalNote)
		if trimmed == "" {
			ext.ClinicalNote = nil
		} else {
			ext.ClinicalNote = &trimmed
		}
	}
	return ext
}

// Readiness describes whether the clinical buffer can be committed.
type Readiness struct {
	// Ready means a full commit can be staged now.
	Ready bool
	// NoteOnly means the message carries only a note and may be committed
	// directly, without the two-phase flow.
	NoteOnly bool
	// MissingVitals lists the absent vitals by label.
	MissingVitals []string
	// NeedsRespiratory and NeedsNote flag the extra first-measurement
	// requirements still unmet.
	NeedsRespiratory bool
	NeedsNote        bool
}

// Evaluate applies the first-complete-measurement rule to the session's
// clinical buffer. Until the first full measurement is committed, the
// five-value tuple plus respiratory mode plus a note are all required.
// Afterwards the note becomes optional and a standalone note commits on
// its own.
func Evaluate(state *models.SessionState) Readiness {
	r := Readiness{
		MissingVitals:    state.Vitals.Missing(),
		NeedsRespiratory: state.RespiratoryMode == models.RespiratoryNone,
	}

	if state.FirstMeasurementDone {
		if state.Vitals.Empty() && state.ClinicalNote != nil {
			r.NoteOnly = true
			r.Ready = true
			return r
		}
		r.Ready = state.Vitals.Complete() && !r.NeedsRespiratory
		return r
	}

	r.NeedsNote = state.ClinicalNote == nil
	r.Ready = state.Vitals.Complete() && !r.NeedsRespiratory && !r.NeedsNote
	return r
}

// CommitNote returns the note to send with a full commit, defaulting when
// the caregiver left it empty after the first measurement.
func CommitNote(state *models.SessionState) string {
	if state.ClinicalNote != nil {
		return *state.ClinicalNote
	}
	return DefaultNote
}
