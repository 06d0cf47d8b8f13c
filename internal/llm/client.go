// Package llm implements the tool-call evaluator and reply classifier, both
// backed by the same Anthropic model id, plus the transcript summary call.
// Every call shape is a single-user-message request. The evaluator and the
// classifier parse the first JSON object in the reply as the verdict; the
// summary call uses the reply text as is.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/claudecube/claudecube/internal/audit"
)

// DefaultModel is used when config leaves evaluatorModel unset.
const DefaultModel = "claude-haiku-4-5-20251001"

// Client wraps the Anthropic SDK client with the cost-accounting side effect
// every call must produce.
type Client struct {
	api   anthropic.Client
	model string
	costs *audit.CostSink
}

// New constructs a Client. apiKey empty means "read ANTHROPIC_API_KEY from
// the environment", which the SDK does natively.
func New(apiKey, model string, costs *audit.CostSink) *Client {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: anthropic.NewClient(opts...), model: model, costs: costs}
}

// call issues a single-user-message request and returns the concatenated
// text of the response, recording cost under purpose.
func (c *Client) call(ctx context.Context, system, user string, maxTokens int64, purpose string) (string, error) {
	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if c.costs != nil {
		var inTok, outTok int64
		if resp != nil {
			inTok, outTok = resp.Usage.InputTokens, resp.Usage.OutputTokens
		}
		c.costs.Record(purpose, c.model, inTok, outTok, err)
	}
	if err != nil {
		return "", fmt.Errorf("anthropic call (%s): %w", purpose, err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

var braceScan = regexp.MustCompile(`\{[^{}]*\}`)

// extractJSONObject performs a non-greedy first-{...}-block scan: it does
// not attempt to balance nested braces, which is fine for these flat
// verdict shapes.
func extractJSONObject(text string) (string, bool) {
	m := braceScan.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}
