// Package eval implements the offline evaluator: it drains ungraded sessions
// from the trace store, reconstructs each conversation from its events, runs
// the grading metrics, and persists one batch of scores per session.
package eval

import (
	"errors"
	"strings"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/storage"
)

// ErrNoUserInput marks a session that cannot be graded because its trace
// never recorded the user's question. Such sessions are skipped and stay
// visible to future runs.
var ErrNoUserInput = errors.New("eval: trace has no user_input event")

// noAnswer is the fallback when a session produced neither a model answer
// nor a tool result.
const noAnswer = "No Answer"

// toolContextSeparator joins tool outputs into the judge's context string.
const toolContextSeparator = " | "

// Reconstruct folds a session's events into a gradable conversation:
//
//   - user question: the first user_input event
//   - final answer: the last llm_end, else the last tool_end, else "No Answer"
//   - tool context: every tool_end content, joined in trace order
//
// Events must already be ordered by timestamp with insertion-order ties,
// which the stores guarantee.
func Reconstruct(trace storage.SessionTrace) (model.Conversation, error) {
	conv := model.Conversation{SessionID: trace.SessionID}

	var (
		haveQuestion bool
		lastLLMEnd   string
		haveLLMEnd   bool
		toolOutputs  []string
	)
	for _, e := range trace.Events {
		switch e.Type {
		case model.EventUserInput:
			if !haveQuestion {
				conv.UserQuestion = e.Content
				haveQuestion = true
			}
		case model.EventLLMEnd:
			lastLLMEnd = e.Content
			haveLLMEnd = true
		case model.EventToolEnd:
			toolOutputs = append(toolOutputs, e.Content)
		}
	}

	if !haveQuestion {
		return model.Conversation{}, ErrNoUserInput
	}

	switch {
	case haveLLMEnd:
		conv.FinalAnswer = lastLLMEnd
	case len(toolOutputs) > 0:
		conv.FinalAnswer = toolOutputs[len(toolOutputs)-1]
	default:
		conv.FinalAnswer = noAnswer
	}

	conv.ToolContext = strings.Join(toolOutputs, toolContextSeparator)
	return conv, nil
}
