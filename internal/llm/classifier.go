package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Intent is the reply classifier's tagged verdict.
type Intent string

const (
	IntentApprove   Intent = "approve"
	IntentDeny      Intent = "deny"
	IntentForward   Intent = "forward"
	IntentAddPolicy Intent = "add_policy"
	IntentAddRule   Intent = "add_rule"
)

// ReplyEvaluation is the reply classifier's output.
type ReplyEvaluation struct {
	Intent      Intent `json:"intent"`
	ForwardText string `json:"forwardText,omitempty"`
	PolicyText  string `json:"policyText,omitempty"`
	RuleYAML    string `json:"ruleYaml,omitempty"`
}

const replyClassifierSystemPrompt = `You are classifying a human's free-text reply to a pending tool-approval request from an automated coding agent.

Determine the reply's intent:
- "approve": the human is agreeing to let the tool call proceed as-is.
- "deny": the human is refusing the tool call.
- "forward": the human wants a different command or input run instead; extract it into forwardText.
- "add_policy": the human is stating a standing instruction to remember for future similar calls; extract it into policyText.
- "add_rule": the human is dictating a literal rules.yaml rule to add; extract the YAML snippet into ruleYaml.

Respond with exactly one JSON object: {"intent": string, "forwardText"?: string, "policyText"?: string, "ruleYaml"?: string}.`

// ClassifyReply runs the reply-classifier call shape. The returned error is
// non-nil whenever the verdict could not be obtained (API failure, brace
// extraction miss, unmarshal failure, or an empty intent) so callers can
// distinguish "classifier failed" from a genuine {intent:"approve"} verdict
// and fall back accordingly, rather than treating both the same way.
func (c *Client) ClassifyReply(ctx context.Context, text, toolName, label string) (ReplyEvaluation, error) {
	user := fmt.Sprintf("Tool: %s\nSession label: %s\nReply text: %s", toolName, label, text)

	out, err := c.call(ctx, replyClassifierSystemPrompt, user, 512, "reply-eval")
	if err != nil {
		return ReplyEvaluation{}, err
	}
	obj, ok := extractJSONObject(out)
	if !ok {
		return ReplyEvaluation{}, fmt.Errorf("classify reply: no JSON object in response")
	}
	var r ReplyEvaluation
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return ReplyEvaluation{}, fmt.Errorf("classify reply: unmarshal verdict: %w", err)
	}
	if r.Intent == "" {
		return ReplyEvaluation{}, fmt.Errorf("classify reply: empty intent")
	}
	return r, nil
}
