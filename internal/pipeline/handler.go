package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claudecube/claudecube/internal/approval"
	"github.com/claudecube/claudecube/internal/audit"
	"github.com/claudecube/claudecube/internal/config"
	"github.com/claudecube/claudecube/internal/llm"
	"github.com/claudecube/claudecube/internal/policy"
	"github.com/claudecube/claudecube/internal/rules"
	"github.com/claudecube/claudecube/internal/session"
	"github.com/claudecube/claudecube/internal/transcript"
)

// RuleSource is the minimal capability the pipeline needs from the rules
// watcher: the live, hot-reloadable rule engine, loaded once per request.
type RuleSource interface {
	Current() *rules.Engine
}

// Evaluator is the tool-call evaluator call shape, satisfied by
// *llm.Client.
type Evaluator interface {
	Evaluate(ctx context.Context, in llm.EvaluateInput) llm.Verdict
}

// Summarizer is the transcript-summary call shape, satisfied by
// *llm.Client.
type Summarizer interface {
	Summarize(ctx context.Context, excerpt transcript.Excerpt) (string, error)
}

// ApprovalCoordinator is the minimal capability the pipeline needs from the
// approval broker — injected through this interface so the escalation
// handler and the coordinator avoid owning each other. *approval.Coordinator
// satisfies this directly.
type ApprovalCoordinator interface {
	RequestApproval(ctx context.Context, sessionID, toolName, text, paneID, label string) approval.Resolution
	RequestStopDecision(ctx context.Context, sessionID, text, paneID, label string) approval.Resolution
}

// Notifier is a one-way, non-approval chat notification capability used for
// session lifecycle announcements and the denial-threshold alert.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Handler is the escalation handler and the pre-tool/stop pipelines,
// composed from every other package in this module.
type Handler struct {
	rulesSource RuleSource
	sessions    *session.Registry
	evaluator   Evaluator
	approvals   ApprovalCoordinator // nil disables human escalation
	summarizer  Summarizer          // nil disables stop-pipeline summaries
	auditSink   *audit.Sink
	policies    *policy.Store
	notifier    Notifier // nil disables chat notifications
	rulesPath   string
	cfg         *config.Config
	log         *slog.Logger

	retryMu     sync.Mutex
	retryCounts map[string]int // sessionId -> consecutive error-retry count
}

// New constructs a Handler. cfg must not be nil; pass config.Default() if no
// orchestrator config file is present.
func New(
	rulesSource RuleSource,
	sessions *session.Registry,
	evaluator Evaluator,
	approvals ApprovalCoordinator,
	summarizer Summarizer,
	auditSink *audit.Sink,
	policies *policy.Store,
	notifier Notifier,
	rulesPath string,
	cfg *config.Config,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{
		rulesSource: rulesSource,
		sessions:    sessions,
		evaluator:   evaluator,
		approvals:   approvals,
		summarizer:  summarizer,
		auditSink:   auditSink,
		policies:    policies,
		notifier:    notifier,
		rulesPath:   rulesPath,
		cfg:         cfg,
		log:         log,
		retryCounts: make(map[string]int),
	}
}

func ruleNameOf(result rules.EvaluationResult) string {
	if result.Rule != nil {
		return result.Rule.Name
	}
	return ""
}

func (h *Handler) recordAudit(req PreToolRequest, decision, reason string, decidedBy audit.DecidedBy, ruleName string) {
	if h.auditSink == nil {
		return
	}
	h.auditSink.Append(audit.Entry{
		SessionID: req.SessionID,
		ToolName:  req.ToolName,
		ToolInput: req.ToolInput,
		Decision:  decision,
		Reason:    reason,
		DecidedBy: decidedBy,
		RuleName:  ruleName,
	})
}

// recordDenialAndMaybeNotify increments the session's denial counter and
// fires the denial-threshold alert at most once per session.
func (h *Handler) recordDenialAndMaybeNotify(ctx context.Context, sessionID string) {
	h.sessions.RecordDenial(sessionID)
	if h.notifier == nil {
		return
	}
	threshold := h.cfg.Telegram.DenialAlertThreshold
	if h.sessions.MarkAlertedIfNeeded(sessionID, threshold) {
		if err := h.notifier.Notify(ctx, fmt.Sprintf("Session %s has reached %d denied tool calls.", sessionID, threshold)); err != nil {
			h.log.Warn("denial-threshold notification failed", "session_id", sessionID, "error", err)
		}
	}
}
