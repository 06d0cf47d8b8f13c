// Package transcript reads a JSONL transcript file and produces short
// human-readable excerpts. The LLM-backed summary is in package llm.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ToolUse is a single tool invocation recorded in a transcript message.
type ToolUse struct {
	Name         string
	InputSummary string
}

// Message is one user/assistant turn kept from the transcript.
type Message struct {
	Role     string
	Text     string
	ToolUses []ToolUse
}

// Excerpt is the reader's output.
type Excerpt struct {
	Messages      []Message
	TotalMessages int
}

type rawLine struct {
	Type    string `json:"type"`
	Message struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Read parses a transcript file, keeping only user/assistant lines. If the
// file cannot be opened or scanned it returns an empty excerpt rather than an
// error; lines that are not valid JSON are skipped. Transcript problems never
// propagate to the decision pipeline.
func Read(path string) Excerpt {
	f, err := os.Open(path)
	if err != nil {
		return Excerpt{}
	}
	defer f.Close()

	var messages []Message
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw rawLine
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		if raw.Type != "user" && raw.Type != "assistant" {
			continue
		}
		msg := Message{Role: raw.Message.Role}
		msg.Text, msg.ToolUses = parseContent(raw.Message.Content)
		messages = append(messages, msg)
	}
	if sc.Err() != nil {
		return Excerpt{}
	}
	return Excerpt{Messages: messages, TotalMessages: len(messages)}
}

func parseContent(raw json.RawMessage) (string, []ToolUse) {
	if len(raw) == 0 {
		return "", nil
	}
	// content may be a bare string...
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	// ...or an array of typed blocks.
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil
	}
	var text strings.Builder
	var tools []ToolUse
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			tools = append(tools, ToolUse{Name: b.Name, InputSummary: truncate(string(b.Input), 120)})
		}
	}
	return text.String(), tools
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// LastN returns the tail of the excerpt's messages, at most n, while
// TotalMessages always reflects the full parsed count.
func (e Excerpt) LastN(n int) Excerpt {
	if n <= 0 || len(e.Messages) <= n {
		return e
	}
	return Excerpt{Messages: e.Messages[len(e.Messages)-n:], TotalMessages: e.TotalMessages}
}

// FormatRecentActivity renders up to maxMessages messages as a short
// human-readable block suitable for inclusion in a chat message.
func FormatRecentActivity(e Excerpt, maxMessages int) string {
	tail := e.LastN(maxMessages)
	if len(tail.Messages) == 0 {
		return "(no recent activity)"
	}
	var b strings.Builder
	for _, m := range tail.Messages {
		text := m.Text
		if len(text) > 200 {
			text = text[:200] + "…"
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExtractRecentTools returns the names of up to maxTools most-recently-used
// tool uses, most recent last. Repeated names are kept, not deduplicated.
func ExtractRecentTools(e Excerpt, maxTools int) []string {
	var tools []string
	for i := len(e.Messages) - 1; i >= 0 && len(tools) < maxTools; i-- {
		for j := len(e.Messages[i].ToolUses) - 1; j >= 0 && len(tools) < maxTools; j-- {
			tools = append(tools, e.Messages[i].ToolUses[j].Name)
		}
	}
	// reverse into chronological order
	for i, j := 0, len(tools)-1; i < j; i, j = i+1, j-1 {
		tools[i], tools[j] = tools[j], tools[i]
	}
	return tools
}
