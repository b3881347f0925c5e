// Package storage defines the trace and score store contracts shared by all
// backends.
//
// Two append-only stores coordinate the whole pipeline: the decision loop is
// the sole writer of trace events, the evaluator is the sole writer of
// scores, and the session id is the join key between them. A session is
// "graded" as soon as at least one score row exists for it — that anti-join
// (UngradedSessions) is what makes repeated evaluator runs incremental.
package storage

import (
	"context"
	"errors"

	"github.com/ashita-ai/hyoka/internal/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// SessionTrace is one session's events, ordered by timestamp ascending with
// ties broken by insertion order.
type SessionTrace struct {
	SessionID string
	Events    []model.Event
}

// TraceStore is the append side of the trace log, used by the decision loop.
// Implementations must support concurrent appends from multiple loop
// instances without interleaving events across sessions (events carry their
// session id; ordering only matters within a session).
type TraceStore interface {
	AppendEvent(ctx context.Context, event model.Event) error
}

// EvalStore is the grading side, used by the evaluator.
type EvalStore interface {
	// UngradedSessions returns up to limit sessions that have trace events
	// but no score rows at all, oldest first. A session with any score row
	// — even a partial set of metrics — is considered handled and is never
	// returned again.
	UngradedSessions(ctx context.Context, limit int) ([]SessionTrace, error)

	// InsertScores writes all scores for one session atomically: either
	// every row is persisted or none is, so a failed write leaves the
	// session visible to future UngradedSessions calls.
	InsertScores(ctx context.Context, sessionID string, scores []model.Score) error
}

// Store is a full trace+score backend.
type Store interface {
	TraceStore
	EvalStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
