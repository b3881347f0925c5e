package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hyoka/internal/model"
)

func event(session string, typ model.EventType, content string, at time.Time) model.Event {
	return model.Event{Timestamp: at, SessionID: session, Type: typ, Content: content}
}

func TestUngradedSessionsAntiJoin(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	require.NoError(t, s.AppendEvent(ctx, event("sess_a", model.EventUserInput, "q1", now)))
	require.NoError(t, s.AppendEvent(ctx, event("sess_b", model.EventUserInput, "q2", now.Add(time.Second))))
	require.NoError(t, s.AppendEvent(ctx, event("sess_a", model.EventLLMEnd, "a1", now.Add(2*time.Second))))

	sessions, err := s.UngradedSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "sess_a", sessions[0].SessionID)
	require.Len(t, sessions[0].Events, 2)

	// A single score row hides the session from future runs.
	require.NoError(t, s.InsertScores(ctx, "sess_a", []model.Score{
		{Timestamp: now, SessionID: "sess_a", Metric: model.MetricURLValidity, Score: 1.0, Reason: "no links"},
	}))

	sessions, err = s.UngradedSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "sess_b", sessions[0].SessionID)
}

func TestUngradedSessionsLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	for _, id := range []string{"sess_1", "sess_2", "sess_3"} {
		require.NoError(t, s.AppendEvent(ctx, event(id, model.EventUserInput, "q", now)))
	}

	sessions, err := s.UngradedSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "sess_1", sessions[0].SessionID)
	require.Equal(t, "sess_2", sessions[1].SessionID)
}

func TestUngradedSessionsOrdersEventsByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	require.NoError(t, s.AppendEvent(ctx, event("sess_a", model.EventLLMEnd, "late", now.Add(time.Minute))))
	require.NoError(t, s.AppendEvent(ctx, event("sess_a", model.EventUserInput, "early", now)))

	sessions, err := s.UngradedSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "early", sessions[0].Events[0].Content)
	require.Equal(t, "late", sessions[0].Events[1].Content)
}

func TestInsertScoresEmptyIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	require.NoError(t, s.AppendEvent(ctx, event("sess_a", model.EventUserInput, "q", now)))
	require.NoError(t, s.InsertScores(ctx, "sess_a", nil))

	sessions, err := s.UngradedSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1, "empty insert must not mark the session graded")
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close(ctx))

	err := s.AppendEvent(ctx, event("sess_a", model.EventUserInput, "q", time.Now()))
	require.Error(t, err)
	require.Error(t, s.Ping(ctx))
}
