package pipeline

import (
	"context"
	"regexp"

	"github.com/claudecube/claudecube/internal/transcript"
)

var (
	stopErrorPattern   = regexp.MustCompile(`(?i)error|failed|cannot|unable|exception|traceback`)
	stopSuccessPattern = regexp.MustCompile(`(?i)successfully|completed|fixed|resolved`)
)

// HandleStop implements the Stop-event state machine
// (S0 precheck -> S1 retry? -> S2 analyse+escalate -> S3 done).
func (h *Handler) HandleStop(ctx context.Context, req StopRequest) StopResponse {
	h.sessions.EnsureRegistered(req.SessionID, req.Cwd, req.TranscriptPath)

	// S0: loop guard, authoritative even though the hook transport also
	// short-circuits on stop_hook_active.
	if req.StopHookActive {
		return StopResponse{}
	}
	if req.LastAssistantMessage == "" {
		return StopResponse{}
	}

	// S1: error-retry heuristic.
	if h.cfg.Stop.RetryOnError &&
		stopErrorPattern.MatchString(req.LastAssistantMessage) &&
		!stopSuccessPattern.MatchString(req.LastAssistantMessage) {

		retries := h.retryCount(req.SessionID)
		if retries < h.cfg.Stop.MaxRetries {
			h.incrementRetry(req.SessionID)
			return StopResponse{
				Decision: "block",
				Reason:   "The previous approach hit an error. Try a different approach to accomplish the task.",
			}
		}
		h.clearRetry(req.SessionID)
		// fall through to S2
	}

	// S2: transcript analysis + chat escalation.
	if h.cfg.Stop.EscalateToTelegram && h.approvals != nil {
		excerpt := transcript.Read(req.TranscriptPath).LastN(15)
		recentTools := transcript.ExtractRecentTools(excerpt, 6)

		summary := ""
		if h.summarizer != nil {
			if s, err := h.summarizer.Summarize(ctx, excerpt); err == nil {
				summary = s
			} else {
				h.log.Warn("stop-pipeline transcript summary failed", "session_id", req.SessionID, "error", err)
			}
		}

		label, _ := h.sessions.GetLabel(req.SessionID)
		paneID, _ := h.sessions.GetPaneID(req.SessionID)
		text := buildStopPrompt(req.LastAssistantMessage, summary, recentTools)

		res := h.approvals.RequestStopDecision(ctx, req.SessionID, text, paneID, label)
		if res.Approved {
			if res.PolicyText != "" {
				return StopResponse{Decision: "block", Reason: "The user answered your question: " + res.PolicyText}
			}
			return StopResponse{Decision: "block", Reason: "The user wants you to continue with the task."}
		}
		return StopResponse{}
	}

	// Fallback: no coordinator configured, or escalation disabled.
	h.clearRetry(req.SessionID)
	return StopResponse{}
}

func buildStopPrompt(lastMessage, summary string, recentTools []string) string {
	text := "Agent wants to stop.\nLast message: " + lastMessage
	if summary != "" {
		text += "\n\nSummary: " + summary
	}
	if len(recentTools) > 0 {
		text += "\n\nRecent tools:"
		for _, t := range recentTools {
			text += " " + t
		}
	}
	return text
}

func (h *Handler) retryCount(sessionID string) int {
	h.retryMu.Lock()
	defer h.retryMu.Unlock()
	return h.retryCounts[sessionID]
}

func (h *Handler) incrementRetry(sessionID string) {
	h.retryMu.Lock()
	defer h.retryMu.Unlock()
	h.retryCounts[sessionID]++
}

func (h *Handler) clearRetry(sessionID string) {
	h.retryMu.Lock()
	defer h.retryMu.Unlock()
	delete(h.retryCounts, sessionID)
}
