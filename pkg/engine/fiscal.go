package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vitalis-care/plantao/pkg/models"
)

// forbiddenLexicon guards replies generated before the finish reminder: the
// assistant must never steer the caregiver toward closing the shift early.
var forbiddenLexicon = []string{"finaliz", "encerr"}

// Fiscal consolidates the turn outcome into the single reply sent back to
// the caregiver. Generation goes through the model; a deterministic
// template covers model failures and guardrail violations.
type Fiscal struct {
	model  Model
	logger *slog.Logger
}

func NewFiscal(model Model, logger *slog.Logger) *Fiscal {
	return &Fiscal{model: model, logger: logger.With("component", "fiscal")}
}

// Consolidate produces the reply for one finished turn. now is the
// engine's turn clock, used to render pending-action expiry.
func (f *Fiscal) Consolidate(ctx context.Context, state *models.SessionState, userText, outcome string, now time.Time) string {
	compact := CompactState(state, now)
	reply, err := f.model.GenerateReply(ctx, compact, userText, outcome, state.FinishReminderSent)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			f.logger.Warn("reply generation failed, using template",
				"session_id", state.SessionID, "outcome", outcome, "error", err)
		}
		return fallbackReply(state, outcome)
	}
	if !state.FinishReminderSent && mentionsFinish(reply) {
		f.logger.Warn("generated reply mentioned shift closing before the reminder, using template",
			"session_id", state.SessionID, "outcome", outcome)
		return fallbackReply(state, outcome)
	}
	return strings.TrimSpace(reply)
}

func mentionsFinish(reply string) bool {
	lower := strings.ToLower(reply)
	for _, term := range forbiddenLexicon {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// CompactState summarizes the session for the model prompts: identity,
// shift window, what is still missing and what is waiting for confirmation.
func CompactState(state *models.SessionState, now time.Time) string {
	summary := map[string]any{
		"caregiver_name":         state.CaregiverName,
		"patient_name":           state.PatientName,
		"shift_day":              state.ShiftDay,
		"shift_start":            state.ShiftStart,
		"shift_end":              state.ShiftEnd,
		"attendance_response":    state.Response,
		"attendance_pending":     state.AttendancePending(),
		"finish_reminder_sent":   state.FinishReminderSent,
		"first_measurement_done": state.FirstMeasurementDone,
		"missing_vitals":         state.Vitals.Missing(),
		"respiratory_informed":   state.RespiratoryMode != models.RespiratoryNone,
		"has_clinical_note":      state.ClinicalNote != nil,
		"last_reply_code":        state.LastReplyCode,
	}
	if state.FinishReminderSent {
		summary["missing_topics"] = state.Finalization.Missing()
	}
	if len(state.MissingTopicsHint) > 0 {
		summary["requested_fields_hint"] = state.MissingTopicsHint
	}
	if staged := state.StagedPending(now); staged != nil {
		summary["pending"] = map[string]any{
			"flow":               staged.Flow,
			"description":        staged.Description,
			"expires_in_seconds": int(staged.ExpiresAt.Sub(now).Seconds()),
		}
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// fallbackReply maps every outcome to a fixed pt-BR reply. Closing-report
// wording only appears on outcomes the finalization flow produces, so the
// templates honor the finish guardrail by construction.
func fallbackReply(state *models.SessionState, outcome string) string {
	switch outcome {
	case models.OutcomeEscalaStaged, models.OutcomeClinicalStaged, models.OutcomeFinalizeStaged:
		if state.Pending != nil {
			return state.Pending.Description + ". Posso confirmar? Responda \"sim\" para confirmar ou \"não\" para cancelar."
		}
		return "Posso confirmar? Responda \"sim\" para confirmar ou \"não\" para cancelar."

	case models.OutcomeEscalaConfirmed:
		return "Presença confirmada. Bom plantão! Pode me enviar os sinais vitais assim que fizer a primeira medição."
	case models.OutcomeEscalaCancelled:
		return "Entendido, registrei que você não está no plantão e a equipe de escala foi avisada."
	case models.OutcomeEscalaInfo:
		if state.AttendancePending() {
			return fmt.Sprintf("Você está no plantão com %s? Responda \"sim\" para confirmar sua presença.", displayName(state.PatientName))
		}
		return "Estou acompanhando seu plantão. Pode me enviar sinais vitais, anotações clínicas ou avisos quando precisar."

	case models.OutcomeEscalaCommitFailed,
		models.OutcomeClinicalCommitFailed,
		models.OutcomeFinalizeCommitFailed:
		return "Não consegui registrar agora por uma falha no sistema. Pode tentar novamente em alguns minutos?"

	case models.OutcomeClinicalMissing:
		if missing := state.Vitals.Missing(); len(missing) > 0 {
			return "Ainda faltam alguns sinais vitais: " + strings.Join(missing, ", ") + ". Pode me enviar?"
		}
		if state.RespiratoryMode == models.RespiratoryNone {
			return "Como está a respiração do paciente? Ar ambiente, O2 suplementar ou ventilação mecânica?"
		}
		return "Para completar a medição, me envie também uma observação sobre o estado do paciente."
	case models.OutcomeClinicalCommitted:
		return "Sinais vitais registrados com sucesso. Obrigado!"
	case models.OutcomeClinicalNoteOnlyCommitted:
		return "Anotação registrada com sucesso. Obrigado!"
	case models.OutcomeClinicalRejectedIncompleteFirst:
		return "Para a primeira medição do plantão preciso dos cinco sinais vitais completos (PA, FC, FR, saturação e temperatura), da condição respiratória e de uma observação sobre o paciente."

	case models.OutcomeOperationalDelivered:
		return "Aviso encaminhado para a equipe responsável. Obrigado por avisar!"
	case models.OutcomeOperationalDeliveryFailed:
		return "Não consegui encaminhar seu aviso agora. Pode tentar novamente em alguns minutos?"

	case models.OutcomeFinalizeTopicCollected:
		if topic := nextMissingTopic(state); topic != "" {
			return fmt.Sprintf("Anotado. Agora me conte sobre: %s.", models.TopicLabels[topic])
		}
		return "Anotado. Vamos seguir com o relatório do plantão."
	case models.OutcomeFinalizeCommitted:
		return "Relatório do plantão encerrado com sucesso. Obrigado pelo cuidado e bom descanso!"

	case models.OutcomePendingCancelled:
		return "Tudo bem, cancelei a ação pendente. Como posso ajudar?"
	case models.OutcomePendingExpired:
		return "O tempo da confirmação anterior expirou, então cancelei a ação. Pode me enviar as informações novamente."

	case models.OutcomeHelpContext:
		return "Posso registrar sinais vitais, anotações clínicas e avisos operacionais do seu plantão. O que você precisa?"
	default:
		return "Olá! Sou a assistente de plantões. Posso ajudar com presença, sinais vitais e avisos sobre o seu plantão."
	}
}

func nextMissingTopic(state *models.SessionState) string {
	missing := state.Finalization.Missing()
	if len(missing) == 0 {
		return ""
	}
	return missing[0]
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "o paciente"
	}
	return name
}
