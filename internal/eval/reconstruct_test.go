package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/storage"
)

func trace(sessionID string, events ...model.Event) storage.SessionTrace {
	base := time.Now().UTC()
	for i := range events {
		events[i].SessionID = sessionID
		events[i].Timestamp = base.Add(time.Duration(i) * time.Second)
	}
	return storage.SessionTrace{SessionID: sessionID, Events: events}
}

func TestReconstructRoundTrip(t *testing.T) {
	conv, err := Reconstruct(trace("sess_rt",
		model.Event{Type: model.EventUserInput, Content: "Q"},
		model.Event{Type: model.EventToolStart, Content: "{}", ToolName: "multiply"},
		model.Event{Type: model.EventToolEnd, Content: "R", ToolName: "multiply"},
		model.Event{Type: model.EventLLMEnd, Content: "A"},
	))
	require.NoError(t, err)
	assert.Equal(t, "Q", conv.UserQuestion)
	assert.Equal(t, "A", conv.FinalAnswer)
	assert.Equal(t, "R", conv.ToolContext)
}

func TestReconstructUsesLastLLMEnd(t *testing.T) {
	conv, err := Reconstruct(trace("sess_last",
		model.Event{Type: model.EventUserInput, Content: "Q"},
		model.Event{Type: model.EventLLMEnd, Content: "draft"},
		model.Event{Type: model.EventLLMEnd, Content: "final"},
	))
	require.NoError(t, err)
	assert.Equal(t, "final", conv.FinalAnswer)
}

func TestReconstructFallsBackToLastToolEnd(t *testing.T) {
	conv, err := Reconstruct(trace("sess_tool",
		model.Event{Type: model.EventUserInput, Content: "Q"},
		model.Event{Type: model.EventToolEnd, Content: "first"},
		model.Event{Type: model.EventToolEnd, Content: "second"},
	))
	require.NoError(t, err)
	assert.Equal(t, "second", conv.FinalAnswer)
	assert.Equal(t, "first | second", conv.ToolContext)
}

func TestReconstructNoAnswer(t *testing.T) {
	conv, err := Reconstruct(trace("sess_none",
		model.Event{Type: model.EventUserInput, Content: "Q"},
		model.Event{Type: model.EventError, Content: "oracle timeout"},
	))
	require.NoError(t, err)
	assert.Equal(t, "No Answer", conv.FinalAnswer)
	assert.Empty(t, conv.ToolContext)
}

func TestReconstructRequiresUserInput(t *testing.T) {
	_, err := Reconstruct(trace("sess_partial",
		model.Event{Type: model.EventLLMEnd, Content: "orphan answer"},
	))
	assert.ErrorIs(t, err, ErrNoUserInput)
}

func TestReconstructUsesFirstUserInput(t *testing.T) {
	conv, err := Reconstruct(trace("sess_multi",
		model.Event{Type: model.EventUserInput, Content: "first question"},
		model.Event{Type: model.EventUserInput, Content: "Observation: 100"},
		model.Event{Type: model.EventLLMEnd, Content: "A"},
	))
	require.NoError(t, err)
	assert.Equal(t, "first question", conv.UserQuestion)
}
