package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/claudecube/claudecube/internal/transcript"
)

const noTranscriptMessage = "No transcript messages available."

const summarySystemPrompt = `Summarize this coding agent session transcript in 3 to 5 sentences. Cover: the user's goal, what progress has been made, and the current status. Be concise and factual.`

// Summarize produces a 3-5 sentence summary of a transcript excerpt.
// An empty excerpt short-circuits to a literal fallback without calling the
// LLM; any LLM failure is propagated so callers can degrade gracefully.
func (c *Client) Summarize(ctx context.Context, excerpt transcript.Excerpt) (string, error) {
	if len(excerpt.Messages) == 0 {
		return noTranscriptMessage, nil
	}

	user := buildSummaryUserText(excerpt)

	text, err := c.call(ctx, summarySystemPrompt, user, 300, "summary")
	if err != nil {
		return "", fmt.Errorf("summarize transcript: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// buildSummaryUserText renders the excerpt into the summarizer's user
// message, truncating each message to 600 characters and the whole text to
// 8000, so a pathologically long transcript never blows the request budget.
func buildSummaryUserText(excerpt transcript.Excerpt) string {
	var b strings.Builder
	for _, m := range excerpt.Messages {
		text := m.Text
		if len(text) > 600 {
			text = text[:600]
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, text)
		if b.Len() >= 8000 {
			break
		}
	}
	user := b.String()
	if len(user) > 8000 {
		user = user[:8000]
	}
	return user
}
