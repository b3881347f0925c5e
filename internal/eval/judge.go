package eval

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/hyoka/internal/oracle"
)

// Grading tasks given to the judge. Faithfulness asks the hallucination
// question, so its verdict is inverted before storage; relevance is stored
// as answered.
const (
	faithfulnessTask = "Does the Agent Answer contain specific facts or numbers NOT found in the Context/Tool Outputs? " +
		"Answer '1' if it Hallucinated (contains outside info). Answer '0' if it stayed Faithful (only used context)."

	relevanceTask = "Does the Agent Answer directly address the User Question? " +
		"Answer '1' for Yes (Relevant). Answer '0' for No (Irrelevant)."
)

// judgePrompt is the fixed auditor rubric. The data section is filled per
// session; the instruction block pins the output to a single digit.
const judgePrompt = `You are an impartial AI QA Auditor.

TASK: %s

DATA TO EVALUATE:
User Question: "%s"
Agent Answer: "%s"
Context (Tool Outputs): "%s"

INSTRUCTIONS:
- Analyze strictly based on the provided Data.
- Output ONLY the digit '1' for YES or '0' for NO.
- Do not write any other words.`

// Verdict is one binary judge decision plus the raw response it was parsed
// from. Callers get the failure case as an explicit error, not a default.
type Verdict struct {
	Value float64
	Raw   string
}

// Judge grades conversations with a completion oracle. ReasonTag labels the
// stored score rows with the grader's identity.
type Judge struct {
	completer oracle.Completer
	reasonTag string
}

// NewJudge creates a judge. model is only used for the reason tag.
func NewJudge(completer oracle.Completer, model string) *Judge {
	tag := "Auto-graded"
	if model != "" {
		tag = "Auto-graded by " + model
	}
	return &Judge{completer: completer, reasonTag: tag}
}

// ReasonTag returns the reason string written alongside judge-backed scores.
func (j *Judge) ReasonTag() string {
	return j.reasonTag
}

// Ask runs one grading task over a conversation and parses the binary
// verdict. Any response containing the digit '1' is a yes; everything else,
// including chatter around the digit '0', is a no.
func (j *Judge) Ask(ctx context.Context, task, question, answer, toolContext string) (Verdict, error) {
	prompt := fmt.Sprintf(judgePrompt, task, question, answer, toolContext)

	raw, err := j.completer.Complete(ctx, []oracle.Message{
		{Role: oracle.RoleUser, Content: prompt},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("eval: judge call: %w", err)
	}

	verdict := Verdict{Raw: strings.TrimSpace(raw)}
	if strings.Contains(verdict.Raw, "1") {
		verdict.Value = 1.0
	}
	return verdict, nil
}
