package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/claudecube/claudecube/internal/audit"
	"github.com/claudecube/claudecube/internal/llm"
	"github.com/claudecube/claudecube/internal/policy"
	"github.com/claudecube/claudecube/internal/rules"
	"github.com/claudecube/claudecube/internal/session"
)

// HandlePreToolUse implements the pre-tool pipeline.
func (h *Handler) HandlePreToolUse(ctx context.Context, req PreToolRequest) PreToolResponse {
	h.sessions.EnsureRegistered(req.SessionID, req.Cwd, req.TranscriptPath)
	h.sessions.UpdateToolUse(req.SessionID, req.ToolName)
	h.sessions.UpdateState(req.SessionID, session.StatePermissionPending)

	engine := h.rulesSource.Current()
	result := engine.Evaluate(req.ToolName, req.ToolInput)

	var resp PreToolResponse
	switch result.Action {
	case rules.ActionAllow:
		h.recordAudit(req, "allow", result.Reason, audit.DecidedByRule, ruleNameOf(result))
		resp = PreToolResponse{
			HookSpecificOutput: &HookSpecificOutput{
				HookEventName:            "PreToolUse",
				PermissionDecision:       "allow",
				PermissionDecisionReason: result.Reason,
			},
		}
	case rules.ActionDeny:
		h.recordAudit(req, "deny", result.Reason, audit.DecidedByRule, ruleNameOf(result))
		h.recordDenialAndMaybeNotify(ctx, req.SessionID)
		resp = PreToolResponse{
			Decision: "block",
			HookSpecificOutput: &HookSpecificOutput{
				HookEventName:            "PreToolUse",
				PermissionDecision:       "deny",
				PermissionDecisionReason: result.Reason,
			},
		}
	default: // rules.ActionEscalate
		resp = h.escalate(ctx, req, result)
	}

	h.sessions.UpdateState(req.SessionID, session.StateActive)
	return resp
}

// escalate runs the tool-call evaluator, and — unless it confidently
// allows — the human approval channel.
func (h *Handler) escalate(ctx context.Context, req PreToolRequest, result rules.EvaluationResult) PreToolResponse {
	rulesContext := "No rule matched"
	if result.Rule != nil {
		rulesContext = fmt.Sprintf("Matched rule: %s (%s)", result.Rule.Name, result.Action)
	}
	toolInputJSON, _ := json.Marshal(req.ToolInput)
	policiesText := ""
	if h.policies != nil {
		policiesText = policy.FormatForPrompt(h.policies.ForTool(req.ToolName))
	}

	verdict := h.evaluator.Evaluate(ctx, llm.EvaluateInput{
		ToolName:         req.ToolName,
		ToolInputJSON:    string(toolInputJSON),
		RulesContext:     rulesContext,
		EscalationReason: result.Reason,
		PoliciesText:     policiesText,
	})

	var allowed bool
	var decidedBy audit.DecidedBy
	var reason, policyText string

	// a confident-deny or uncertain verdict always escalates further;
	// only confident-allow short-circuits to decidedBy "llm".
	if verdict.Confident && verdict.Allowed {
		allowed = true
		decidedBy = audit.DecidedByLLM
		reason = "LLM: " + verdict.Reason
	} else if h.approvals == nil {
		allowed = false
		decidedBy = audit.DecidedByTimeout
		reason = "LLM uncertain and no Telegram available"
	} else {
		label, _ := h.sessions.GetLabel(req.SessionID)
		paneID, _ := h.sessions.GetPaneID(req.SessionID)
		text := fmt.Sprintf("Approve tool call %s?\nInput: %s\nLLM assessment: %s", req.ToolName, string(toolInputJSON), verdict.Reason)

		res := h.approvals.RequestApproval(ctx, req.SessionID, req.ToolName, text, paneID, label)
		allowed = res.Approved
		reason = res.Reason
		policyText = res.PolicyText
		if strings.Contains(reason, "timed out") {
			decidedBy = audit.DecidedByTimeout
		} else {
			decidedBy = audit.DecidedByTelegram
		}
		if policyText != "" && h.policies != nil {
			if _, err := h.policies.Add(policyText, req.ToolName); err != nil {
				h.log.Warn("failed to persist policy from approval reply", "error", err)
			}
		}
	}

	auditDecision := "deny"
	if allowed {
		auditDecision = "allow"
	}
	h.recordAudit(req, auditDecision, reason, decidedBy, ruleNameOf(result))

	if !allowed {
		h.recordDenialAndMaybeNotify(ctx, req.SessionID)
		// notifyOnError fires exactly here — a deny that the LLM/chat
		// channel produced outright (decidedBy "timeout"), not a rule deny.
		if decidedBy == audit.DecidedByTimeout && h.cfg.Telegram.NotifyOnError && h.notifier != nil {
			if err := h.notifier.Notify(ctx, fmt.Sprintf("Tool call for session %s was denied without human review: %s", req.SessionID, reason)); err != nil {
				h.log.Warn("notifyOnError notification failed", "session_id", req.SessionID, "error", err)
			}
		}
	}

	decision := "block"
	permissionDecision := "deny"
	if allowed {
		decision = "approve"
		permissionDecision = "allow"
	}
	return PreToolResponse{
		Decision: decision,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:            "PreToolUse",
			PermissionDecision:       permissionDecision,
			PermissionDecisionReason: reason,
		},
	}
}
