package llm

import (
	"strings"
	"testing"

	"github.com/claudecube/claudecube/internal/transcript"
)

func TestBuildSummaryUserTextTruncatesPerMessage(t *testing.T) {
	excerpt := transcript.Excerpt{Messages: []transcript.Message{
		{Role: "user", Text: strings.Repeat("a", 1000)},
	}}
	out := buildSummaryUserText(excerpt)
	if !strings.Contains(out, strings.Repeat("a", 600)) {
		t.Fatalf("expected message truncated to 600 chars")
	}
	if strings.Contains(out, strings.Repeat("a", 601)) {
		t.Fatalf("message exceeded the 600 char cap")
	}
}

func TestBuildSummaryUserTextCapsTotalLength(t *testing.T) {
	var messages []transcript.Message
	for i := 0; i < 50; i++ {
		messages = append(messages, transcript.Message{Role: "assistant", Text: strings.Repeat("b", 600)})
	}
	out := buildSummaryUserText(transcript.Excerpt{Messages: messages})
	if len(out) > 8000 {
		t.Fatalf("expected total output capped at 8000 chars, got %d", len(out))
	}
}

func TestBuildSummaryUserTextIncludesRole(t *testing.T) {
	excerpt := transcript.Excerpt{Messages: []transcript.Message{
		{Role: "user", Text: "hello"},
	}}
	out := buildSummaryUserText(excerpt)
	if !strings.Contains(out, "[user] hello") {
		t.Fatalf("expected role-tagged line, got %q", out)
	}
}
