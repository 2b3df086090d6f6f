package engine

import (
	"context"

	"github.com/vitalis-care/plantao/pkg/models"
)

// runAuxiliar answers everything the other flows do not claim: greetings,
// questions about what the assistant can do, and messages the intent
// classifier could not place.
func (e *Engine) runAuxiliar(_ context.Context, state *models.SessionState, _ *turnContext) (string, string) {
	if state.ScheduleID != "" {
		return models.OutcomeHelpContext, ""
	}
	return models.OutcomeHelpGeneric, ""
}
