package model

import (
	"time"
)

// EventType represents the category of a trace event.
type EventType string

const (
	// EventUserInput records the question that started a session.
	EventUserInput EventType = "user_input"

	// Tool dispatch events.
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"

	// EventDecision records the raw structured output of one deciding turn.
	EventDecision EventType = "decision"

	// EventLLMEnd records a textual model output. The last llm_end of a
	// session is its final answer.
	EventLLMEnd EventType = "llm_end"

	// EventFinalAnswer duplicates the terminal llm_end content so terminal
	// lookups don't need reconstruction.
	EventFinalAnswer EventType = "final_answer"

	// EventError records a recovered failure (oracle, parse, or tool).
	EventError EventType = "error"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventUserInput, EventToolStart, EventToolEnd, EventDecision,
		EventLLMEnd, EventFinalAnswer, EventError:
		return true
	}
	return false
}

// Event is an append-only fact in the trace log.
// Source of truth. Never mutated or deleted.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"event_type"`
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
}
