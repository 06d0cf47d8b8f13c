package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/claudecube/claudecube/internal/transcript"
)

// Details implements approval.DetailsProvider: the Details-button reply
// text, built from the session's transcript.
func (h *Handler) Details(ctx context.Context, sessionID string) (string, error) {
	path, ok := h.sessions.GetTranscriptPath(sessionID)
	if !ok || path == "" {
		return "(no transcript available)", nil
	}

	excerpt := transcript.Read(path).LastN(15)
	activity := transcript.FormatRecentActivity(excerpt, 15)

	summary := ""
	if h.summarizer != nil {
		if s, err := h.summarizer.Summarize(ctx, excerpt); err == nil {
			summary = s
		} else {
			h.log.Warn("details summary failed", "session_id", sessionID, "error", err)
		}
	}
	if summary == "" {
		return activity, nil
	}
	return summary + "\n\n" + activity, nil
}

// AppendRuleYAML implements approval.RuleAppender: appending an add_rule
// reply's YAML snippet to the rules file so the watcher hot-reloads it.
func (h *Handler) AppendRuleYAML(yamlSnippet string) error {
	if h.rulesPath == "" {
		return fmt.Errorf("no rules file path configured")
	}
	f, err := os.OpenFile(h.rulesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open rules file for append: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString("\n" + yamlSnippet + "\n"); err != nil {
		return fmt.Errorf("append rule yaml: %w", err)
	}
	return nil
}
