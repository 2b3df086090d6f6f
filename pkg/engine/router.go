package engine

import (
	"context"

	"github.com/vitalis-care/plantao/pkg/llm"
	"github.com/vitalis-care/plantao/pkg/models"
)

// selectSubgraph evaluates the gate ladder in order; the first gate that
// fires wins.
func (e *Engine) selectSubgraph(ctx context.Context, state *models.SessionState, turn *turnContext) string {
	staged := state.StagedPending(turn.now)

	// 1. finish gate
	if state.FinishReminderSent {
		// a staged action for another flow wins only when the text answers
		// its confirmation question
		if staged != nil && staged.Flow != models.FlowFinalizeCommit {
			if answer := e.classifyConfirmation(ctx, turn.text); answer != llm.ConfirmUnclear {
				return subgraphForFlow(staged.Flow)
			}
		}
		return models.SubgraphFinalizar
	}

	// 2. pending confirmation
	if staged != nil {
		// urgent operational content diverts without cancelling the action
		if op := e.detectOperational(ctx, turn); op != nil && op.urgency == llm.UrgencyHigh {
			return models.SubgraphOperacional
		}
		return subgraphForFlow(staged.Flow)
	}

	// 3. operational note
	if op := e.detectOperational(ctx, turn); op != nil {
		return models.SubgraphOperacional
	}

	// 4. attendance gate
	if state.AttendancePending() {
		return models.SubgraphEscala
	}

	// 5. LLM intent
	intent, err := e.model.IntentClassify(ctx, turn.text, CompactState(state, turn.now))
	if err != nil {
		e.logger.Warn("intent classification failed, falling back to help",
			"session_id", state.SessionID, "error", err)
		return models.SubgraphAuxiliar
	}
	if intent.Subgraph == llm.IntentUndefined || !models.KnownSubgraph(intent.Subgraph) {
		return models.SubgraphAuxiliar
	}
	return intent.Subgraph
}

// detectOperational runs operational detection once per turn and caches
// the result. A failed detection never blocks routing.
func (e *Engine) detectOperational(ctx context.Context, turn *turnContext) *operationalDetection {
	if turn.text == "" {
		return nil
	}
	if turn.operational != nil {
		if turn.operational.note == "" {
			return nil
		}
		return turn.operational
	}

	detection, err := e.model.OperationalNoteDetect(ctx, turn.text)
	if err != nil || !detection.IsOperational {
		turn.operational = &operationalDetection{}
		return nil
	}
	turn.operational = &operationalDetection{note: detection.Note, urgency: detection.Urgency}
	return turn.operational
}

// classifyConfirmation tolerates model failures by reporting unclear.
func (e *Engine) classifyConfirmation(ctx context.Context, text string) string {
	if text == "" {
		return llm.ConfirmUnclear
	}
	answer, err := e.model.ConfirmationClassify(ctx, text)
	if err != nil {
		return llm.ConfirmUnclear
	}
	return answer
}

func subgraphForFlow(flow string) string {
	switch flow {
	case models.FlowEscalaCommit:
		return models.SubgraphEscala
	case models.FlowClinicalCommit:
		return models.SubgraphClinico
	case models.FlowFinalizeCommit:
		return models.SubgraphFinalizar
	}
	return models.SubgraphAuxiliar
}
