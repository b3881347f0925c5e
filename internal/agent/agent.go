// Package agent implements the bounded decision loop: one user request is
// driven through decide/dispatch turns until the model produces a terminal
// answer or the turn budget runs out. Every step is appended to the trace
// store; the loop is the sole writer of events for its session.
package agent

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/oracle"
	"github.com/ashita-ai/hyoka/internal/storage"
	"github.com/ashita-ai/hyoka/internal/telemetry"
	"github.com/ashita-ai/hyoka/internal/tools"
)

// ErrTurnBudgetExceeded is returned when the loop exhausts its turns without
// a terminal answer. The session trace still records everything that
// happened; the failure is surfaced, never swallowed.
var ErrTurnBudgetExceeded = errors.New("agent: turn budget exceeded")

// DefaultTurnBudget bounds the decide/dispatch cycle per session.
const DefaultTurnBudget = 5

// Result is the outcome of one completed session.
type Result struct {
	SessionID string
	Answer    string
	Turns     int
}

// Loop drives user requests through the decision cycle. Safe for concurrent
// use: per-session state (history, turn counter) lives in Run's stack.
type Loop struct {
	completer  oracle.Completer
	registry   *tools.Registry
	traces     storage.TraceStore
	logger     *slog.Logger
	turnBudget int

	turnCounter  metric.Int64Counter
	eventCounter metric.Int64Counter
}

// New creates a decision loop. A turnBudget of zero or less falls back to
// DefaultTurnBudget.
func New(completer oracle.Completer, registry *tools.Registry, traces storage.TraceStore, logger *slog.Logger, turnBudget int) *Loop {
	if turnBudget <= 0 {
		turnBudget = DefaultTurnBudget
	}

	meter := telemetry.Meter("hyoka/agent")
	turnCounter, _ := meter.Int64Counter("agent.turns",
		metric.WithDescription("Decision loop turns consumed"))
	eventCounter, _ := meter.Int64Counter("agent.events_appended",
		metric.WithDescription("Trace events appended"))

	return &Loop{
		completer:    completer,
		registry:     registry,
		traces:       traces,
		logger:       logger,
		turnBudget:   turnBudget,
		turnCounter:  turnCounter,
		eventCounter: eventCounter,
	}
}

// NewSessionID generates an opaque session token.
func NewSessionID() string {
	u := uuid.New()
	return "sess_" + hex.EncodeToString(u[:])[:8]
}

// Run executes one user request to completion. It returns the terminal
// answer (which may be a refusal) or ErrTurnBudgetExceeded when the model
// never reaches one within budget.
func (l *Loop) Run(ctx context.Context, userQuestion string) (Result, error) {
	sessionID := NewSessionID()
	log := l.logger.With("session_id", sessionID)
	log.Info("session started", "question", userQuestion)

	l.append(ctx, log, model.Event{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Type:      model.EventUserInput,
		Content:   userQuestion,
	})

	messages := []oracle.Message{
		{Role: oracle.RoleSystem, Content: l.registry.SystemPrompt()},
		{Role: oracle.RoleUser, Content: userQuestion},
	}

	for turn := 1; turn <= l.turnBudget; turn++ {
		l.turnCounter.Add(ctx, 1)

		started := time.Now()
		raw, err := l.completer.Complete(ctx, messages)
		elapsed := time.Since(started).Milliseconds()
		if err != nil {
			// Transient oracle failure: record it and spend the turn on a retry.
			log.Warn("oracle call failed", "turn", turn, "error", err)
			l.append(ctx, log, model.Event{
				Timestamp: time.Now().UTC(),
				SessionID: sessionID,
				Type:      model.EventError,
				Content:   err.Error(),
			})
			continue
		}

		l.append(ctx, log, model.Event{
			Timestamp: time.Now().UTC(),
			SessionID: sessionID,
			Type:      model.EventDecision,
			Content:   raw,
			LatencyMS: elapsed,
		})

		decision, err := parseDecision(raw)
		if err != nil {
			log.Warn("malformed decision", "turn", turn, "error", err)
			l.append(ctx, log, model.Event{
				Timestamp: time.Now().UTC(),
				SessionID: sessionID,
				Type:      model.EventError,
				Content:   err.Error(),
			})
			continue
		}

		if decision.Tool == "" {
			// Terminal answer or refusal: both end the session the same way.
			l.append(ctx, log, model.Event{
				Timestamp: time.Now().UTC(),
				SessionID: sessionID,
				Type:      model.EventLLMEnd,
				Content:   decision.Message,
				LatencyMS: elapsed,
			})
			l.append(ctx, log, model.Event{
				Timestamp: time.Now().UTC(),
				SessionID: sessionID,
				Type:      model.EventFinalAnswer,
				Content:   decision.Message,
			})
			log.Info("session done", "turns", turn)
			return Result{SessionID: sessionID, Answer: decision.Message, Turns: turn}, nil
		}

		l.append(ctx, log, model.Event{
			Timestamp: time.Now().UTC(),
			SessionID: sessionID,
			Type:      model.EventToolStart,
			Content:   decision.RawArguments,
			ToolName:  decision.Tool,
		})

		dispatchStarted := time.Now()
		observation := l.registry.Dispatch(ctx, decision.Tool, decision.Arguments)
		l.append(ctx, log, model.Event{
			Timestamp: time.Now().UTC(),
			SessionID: sessionID,
			Type:      model.EventToolEnd,
			Content:   observation,
			ToolName:  decision.Tool,
			LatencyMS: time.Since(dispatchStarted).Milliseconds(),
		})
		log.Debug("tool dispatched", "turn", turn, "tool", decision.Tool, "observation", observation)

		// Feed the observation back, preserving the assistant/user
		// alternation the chat API expects.
		messages = append(messages,
			oracle.Message{Role: oracle.RoleAssistant, Content: raw},
			oracle.Message{Role: oracle.RoleUser, Content: "Observation: " + observation},
		)
	}

	log.Error("session failed", "turns", l.turnBudget)
	return Result{SessionID: sessionID, Turns: l.turnBudget},
		fmt.Errorf("%w after %d turns", ErrTurnBudgetExceeded, l.turnBudget)
}

// append writes one event, logging rather than failing the session when the
// store rejects it. A lost event degrades the trace; it must not eat the
// user's answer.
func (l *Loop) append(ctx context.Context, log *slog.Logger, event model.Event) {
	if err := l.traces.AppendEvent(ctx, event); err != nil {
		log.Error("append event failed", "event_type", event.Type, "error", err)
		return
	}
	l.eventCounter.Add(ctx, 1)
}
