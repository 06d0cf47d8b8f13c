package pipeline

import (
	"context"
	"fmt"
)

// HandleSessionStart implements the SessionStart lifecycle hook.
func (h *Handler) HandleSessionStart(ctx context.Context, req LifecycleRequest) LifecycleResponse {
	h.sessions.EnsureRegistered(req.SessionID, req.Cwd, req.TranscriptPath)
	if h.cfg.Telegram.NotifyOnStart && h.notifier != nil {
		label, _ := h.sessions.GetLabel(req.SessionID)
		if err := h.notifier.Notify(ctx, fmt.Sprintf("Session started: %s (%s)", label, req.Cwd)); err != nil {
			h.log.Warn("session-start notification failed", "session_id", req.SessionID, "error", err)
		}
	}
	return LifecycleResponse{}
}

// HandleSessionEnd implements the SessionEnd lifecycle hook.
func (h *Handler) HandleSessionEnd(ctx context.Context, req LifecycleRequest) LifecycleResponse {
	label, _ := h.sessions.GetLabel(req.SessionID)
	h.sessions.Deregister(req.SessionID)
	if h.cfg.Telegram.NotifyOnComplete && h.notifier != nil {
		if err := h.notifier.Notify(ctx, fmt.Sprintf("Session ended: %s", label)); err != nil {
			h.log.Warn("session-end notification failed", "session_id", req.SessionID, "error", err)
		}
	}
	return LifecycleResponse{}
}

// HandleNotification implements the Notification (heartbeat) lifecycle hook:
// it only touches the session's activity timestamp.
func (h *Handler) HandleNotification(ctx context.Context, req LifecycleRequest) LifecycleResponse {
	h.sessions.TouchActivity(req.SessionID)
	return LifecycleResponse{}
}
