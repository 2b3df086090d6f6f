package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitalis-care/plantao/pkg/models"
	"github.com/vitalis-care/plantao/pkg/store"
)

// TemplateEvent is the gateway's notification that a proactive WhatsApp
// template went out to the caregiver.
type TemplateEvent struct {
	Template           string
	FinishReminderSent bool
	ShiftDay           string
	MissingFieldsHint  []string
}

// ApplyTemplateEvent merges a template-fired notification into the session
// under the lock. FinishReminderSent is only raised when the event carries
// it; hint-only events never flip the session into the finalization gate.
func (e *Engine) ApplyTemplateEvent(ctx context.Context, phoneNumber string, event TemplateEvent) error {
	sessionID := models.CanonicalPhone(phoneNumber)
	if sessionID == "" {
		return fmt.Errorf("missing phone number")
	}

	token, err := e.locks.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.locks.Release(context.WithoutCancel(ctx), sessionID, token); err != nil {
			e.logger.Warn("failed to release session lock", "session_id", sessionID, "error", err)
		}
	}()

	for attempt := 1; attempt <= saveAttempts; attempt++ {
		state, err := e.sessions.Load(ctx, sessionID)
		if err != nil {
			return err
		}

		changed := false
		if event.FinishReminderSent && !state.FinishReminderSent {
			state.FinishReminderSent = true
			changed = true
		}
		if event.ShiftDay != "" && state.ShiftDay != event.ShiftDay {
			state.ShiftDay = event.ShiftDay
			changed = true
		}
		if len(event.MissingFieldsHint) > 0 {
			state.MissingTopicsHint = event.MissingFieldsHint
			changed = true
		}
		if !changed {
			return nil
		}

		err = e.sessions.Save(ctx, state)
		if err == nil {
			e.logger.Info("template event merged",
				"session_id", sessionID,
				"template", event.Template,
				"finish_reminder", event.FinishReminderSent)
			return nil
		}
		if !errors.Is(err, store.ErrConcurrentModification) {
			return err
		}
	}
	return store.ErrConcurrentModification
}
