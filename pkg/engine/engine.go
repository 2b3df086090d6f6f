// Package engine orchestrates one conversational turn per inbound message:
// idempotency, locking, state load, routing, subgraph execution, reply
// consolidation and conditional save.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vitalis-care/plantao/pkg/models"
	"github.com/vitalis-care/plantao/pkg/store"
)

const (
	// defaultTurnDeadline bounds one full turn end to end.
	defaultTurnDeadline = 45 * time.Second

	// saveAttempts bounds reload-and-replay cycles after version conflicts.
	saveAttempts = 3

	// maxHops bounds subgraph continuation within a turn.
	maxHops = 1

	replayRetryBase = 50 * time.Millisecond
)

// Inbound is one user message entering the engine.
type Inbound struct {
	PhoneNumber    string
	Text           string
	MessageID      string
	IdempotencyKey string
	Meta           map[string]string
}

// Result is the consolidated turn output.
type Result struct {
	Reply       string `json:"reply"`
	SessionID   string `json:"sessionId"`
	OutcomeCode string `json:"outcomeCode"`
	Replayed    bool   `json:"-"`
}

// Engine wires the stores, the model and the backend into the turn
// pipeline.
type Engine struct {
	sessions SessionStore
	pending  PendingAudit
	buffer   BufferStore
	locks    LockStore
	idem     IdempotencyStore
	model    Model
	backend  Backend
	fiscal   *Fiscal
	logger   *slog.Logger

	turnDeadline time.Duration
	now          func() time.Time
}

// New creates an engine.
func New(sessions SessionStore, pending PendingAudit, buffer BufferStore,
	locks LockStore, idem IdempotencyStore, model Model, backendClient Backend,
	logger *slog.Logger) *Engine {
	return &Engine{
		sessions:     sessions,
		pending:      pending,
		buffer:       buffer,
		locks:        locks,
		idem:         idem,
		model:        model,
		backend:      backendClient,
		fiscal:       NewFiscal(model, logger),
		logger:       logger.With("component", "engine"),
		turnDeadline: defaultTurnDeadline,
		now:          time.Now,
	}
}

// Handle runs the full turn pipeline for one inbound message.
func (e *Engine) Handle(ctx context.Context, in Inbound) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.turnDeadline)
	defer cancel()

	sessionID := models.CanonicalPhone(in.PhoneNumber)
	if sessionID == "" {
		return nil, fmt.Errorf("missing phone number")
	}

	key := in.IdempotencyKey
	if key == "" {
		key = in.MessageID
	}

	if key != "" {
		cached, err := e.idem.Begin(ctx, key)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			var result Result
			if err := json.Unmarshal(cached, &result); err != nil {
				return nil, fmt.Errorf("corrupt idempotent record: %w", err)
			}
			result.Replayed = true
			return &result, nil
		}
	}

	token, err := e.locks.Acquire(ctx, sessionID)
	if err != nil {
		if key != "" {
			_ = e.idem.Forget(context.WithoutCancel(ctx), key)
		}
		return nil, err
	}
	defer func() {
		if err := e.locks.Release(context.WithoutCancel(ctx), sessionID, token); err != nil {
			e.logger.Warn("failed to release session lock", "session_id", sessionID, "error", err)
		}
	}()

	result, err := e.runTurn(ctx, sessionID, in)
	if err != nil {
		if key != "" {
			_ = e.idem.Forget(context.WithoutCancel(ctx), key)
		}
		return nil, err
	}

	e.appendBuffer(ctx, sessionID, in, result)

	if key != "" {
		encoded, err := json.Marshal(result)
		if err == nil {
			if err := e.idem.Record(ctx, key, encoded); err != nil {
				e.logger.Warn("failed to record idempotent response", "session_id", sessionID, "error", err)
			}
		}
	}

	return result, nil
}

// runTurn loads, routes, executes and saves, replaying the whole turn on a
// version conflict up to saveAttempts times. The turn context survives
// replays so side effects already delivered are not repeated.
func (e *Engine) runTurn(ctx context.Context, sessionID string, in Inbound) (*Result, error) {
	turn := &turnContext{now: e.now()}

	var lastErr error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		state, err := e.sessions.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		e.bootstrap(ctx, state)
		e.expirePending(ctx, state)

		turn.resetForAttempt(in.Text)
		outcome := e.route(ctx, state, turn)
		state.LastUserText = in.Text
		state.LastReplyCode = outcome

		reply := e.fiscal.Consolidate(ctx, state, in.Text, outcome, turn.now)

		if err := e.sessions.Save(ctx, state); err != nil {
			if errors.Is(err, store.ErrConcurrentModification) {
				e.logger.Warn("turn replay after version conflict",
					"session_id", sessionID, "attempt", attempt)
				lastErr = err
				if attempt < saveAttempts {
					delay := time.Duration(attempt)*replayRetryBase + time.Duration(rand.Int63n(int64(replayRetryBase)))
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(delay):
					}
				}
				continue
			}
			return nil, err
		}

		return &Result{
			Reply:       reply,
			SessionID:   sessionID,
			OutcomeCode: outcome,
		}, nil
	}
	return nil, lastErr
}

// route runs the gate ladder and the selected subgraph, following at most
// one continuation hop.
func (e *Engine) route(ctx context.Context, state *models.SessionState, turn *turnContext) string {
	target := e.selectSubgraph(ctx, state, turn)
	for hop := 0; ; hop++ {
		outcome, next := e.runSubgraph(ctx, target, state, turn)
		if next == "" || hop >= maxHops {
			return outcome
		}
		e.logger.Info("turn continuation", "from", target, "to", next)
		target = next
		turn.text = ""
		turn.operational = nil
	}
}

func (e *Engine) runSubgraph(ctx context.Context, name string, state *models.SessionState, turn *turnContext) (outcome, next string) {
	switch name {
	case models.SubgraphEscala:
		return e.runEscala(ctx, state, turn)
	case models.SubgraphClinico:
		return e.runClinico(ctx, state, turn)
	case models.SubgraphOperacional:
		return e.runOperacional(ctx, state, turn)
	case models.SubgraphFinalizar:
		return e.runFinalizar(ctx, state, turn)
	default:
		return e.runAuxiliar(ctx, state, turn)
	}
}

func (e *Engine) appendBuffer(ctx context.Context, sessionID string, in Inbound, result *Result) {
	inEntry := models.NewBufferEntry(sessionID, models.DirectionIn, in.Text, in.MessageID)
	inEntry.Meta = in.Meta
	if err := e.buffer.Append(ctx, inEntry); err != nil {
		e.logger.Warn("failed to append inbound buffer entry", "session_id", sessionID, "error", err)
	}

	outEntry := models.NewBufferEntry(sessionID, models.DirectionOut, result.Reply, "")
	outEntry.CreatedAtEpoch = inEntry.CreatedAtEpoch + 1
	outEntry.Meta = map[string]string{"outcome_code": result.OutcomeCode}
	if err := e.buffer.Append(ctx, outEntry); err != nil {
		e.logger.Warn("failed to append outbound buffer entry", "session_id", sessionID, "error", err)
	}
}

// turnContext carries per-turn routing byproducts between the ladder and
// the subgraphs so LLM calls are not repeated. It lives across OCC replay
// attempts: operationalDelivered records a workflow-webhook delivery that
// already happened this turn, which a replay must not repeat.
type turnContext struct {
	text                 string
	now                  time.Time
	operational          *operationalDetection
	operationalDelivered bool
}

// resetForAttempt restores the per-attempt fields a continuation hop may
// have cleared, keeping the delivery memo.
func (t *turnContext) resetForAttempt(text string) {
	t.text = text
	t.operational = nil
}

type operationalDetection struct {
	note    string
	urgency string
}
