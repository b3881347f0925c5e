package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decision is one parsed oracle output: either a tool call or a terminal
// message. Tool is empty for the terminal shape.
type Decision struct {
	Tool         string
	Arguments    map[string]any
	RawArguments string
	Message      string
}

// rawDecision mirrors the JSON protocol the system prompt demands.
type rawDecision struct {
	Tool      *string         `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Message   string          `json:"message"`
}

// parseDecision extracts a Decision from the model's raw output. Models wrap
// JSON in markdown fences often enough that stripping them is part of the
// protocol.
func parseDecision(raw string) (Decision, error) {
	text := stripFences(raw)

	var rd rawDecision
	if err := json.Unmarshal([]byte(text), &rd); err != nil {
		return Decision{}, fmt.Errorf("agent: parse decision: %w", err)
	}

	if rd.Tool == nil || *rd.Tool == "" {
		if rd.Message == "" {
			return Decision{}, fmt.Errorf("agent: decision has neither tool nor message")
		}
		return Decision{Message: rd.Message}, nil
	}

	args := map[string]any{}
	if len(rd.Arguments) > 0 {
		if err := json.Unmarshal(rd.Arguments, &args); err != nil {
			return Decision{}, fmt.Errorf("agent: parse arguments for %s: %w", *rd.Tool, err)
		}
	}
	return Decision{
		Tool:         *rd.Tool,
		Arguments:    args,
		RawArguments: string(rd.Arguments),
	}, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
