package audit

import (
	"log/slog"
	"time"
)

// CostEntry is one cost-accounting record (one per LLM call).
type CostEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Purpose      string    `json:"purpose"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	Error        string    `json:"error,omitempty"`
}

// CostSink is the costs-YYYY-MM-DD.jsonl sink, totalled by date by
// virtue of one file per day — summation is a read-side concern left to
// whoever consumes the sink, not tracked in memory here.
type CostSink struct {
	*Sink
}

// NewCostSink opens (lazily) the costs-YYYY-MM-DD.jsonl sink under dir.
func NewCostSink(dir string, log *slog.Logger) *CostSink {
	return &CostSink{Sink: newSink(dir, "costs", log)}
}

// Record appends one cost entry, tagging it with purpose ("tool-eval",
// "reply-eval", "summary") so the two coexisting LLM call shapes remain
// distinguishable in the sink despite sharing a model id.
func (c *CostSink) Record(purpose, model string, inputTokens, outputTokens int64, callErr error) {
	entry := CostEntry{
		Timestamp:    time.Now(),
		Purpose:      purpose,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	c.appendLine(entry)
}
