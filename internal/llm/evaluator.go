package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

const evaluatorSystemPrompt = `You are a permission evaluator for an automated coding agent. Decide whether a proposed tool call should be allowed to proceed without human intervention.

Guidelines:
- Read-only operations are generally safe.
- Edits confined to the project's own source tree are generally safe.
- Commands that modify the system outside the project, touch credentials, or are irreversible deserve caution.
- Human-defined policies take precedence over your own judgment.
- When in doubt, set confident to false rather than guessing.

Respond with exactly one JSON object: {"allowed": bool, "confident": bool, "reason": string}.`

// Verdict is the tool-call evaluator's tagged output.
type Verdict struct {
	Allowed   bool   `json:"allowed"`
	Confident bool   `json:"confident"`
	Reason    string `json:"reason"`
}

// EvaluateInput bundles the evaluator's request-shaping fields.
type EvaluateInput struct {
	ToolName         string
	ToolInputJSON    string
	RulesContext     string
	EscalationReason string
	PoliciesText     string
}

// Evaluate runs the tool-call evaluator call shape. On any
// parse/API failure it returns the fail-safe {allowed:false, confident:false}
// verdict rather than an error, since every caller must escalate on failure.
func (c *Client) Evaluate(ctx context.Context, in EvaluateInput) Verdict {
	user := fmt.Sprintf(
		"Tool: %s\nTool input: %s\nRules context: %s\nEscalation reason: %s\n%s",
		in.ToolName, in.ToolInputJSON, in.RulesContext, in.EscalationReason, in.PoliciesText,
	)

	text, err := c.call(ctx, evaluatorSystemPrompt, user, 256, "tool-eval")
	if err != nil {
		return Verdict{Allowed: false, Confident: false, Reason: "LLM evaluation error: " + err.Error()}
	}

	obj, ok := extractJSONObject(text)
	if !ok {
		return Verdict{Allowed: false, Confident: false, Reason: "LLM response unparseable"}
	}
	var v Verdict
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return Verdict{Allowed: false, Confident: false, Reason: "LLM response unparseable"}
	}
	return v
}
