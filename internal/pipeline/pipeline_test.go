package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claudecube/claudecube/internal/approval"
	"github.com/claudecube/claudecube/internal/audit"
	"github.com/claudecube/claudecube/internal/config"
	"github.com/claudecube/claudecube/internal/llm"
	"github.com/claudecube/claudecube/internal/policy"
	"github.com/claudecube/claudecube/internal/rules"
	"github.com/claudecube/claudecube/internal/session"
)

type fakeRuleSource struct{ engine *rules.Engine }

func (f *fakeRuleSource) Current() *rules.Engine { return f.engine }

type fakeEvaluator struct{ verdict llm.Verdict }

func (f *fakeEvaluator) Evaluate(ctx context.Context, in llm.EvaluateInput) llm.Verdict {
	return f.verdict
}

type fakeApprovals struct {
	resolution approval.Resolution
	called     bool
}

func (f *fakeApprovals) RequestApproval(ctx context.Context, sessionID, toolName, text, paneID, label string) approval.Resolution {
	f.called = true
	return f.resolution
}

func (f *fakeApprovals) RequestStopDecision(ctx context.Context, sessionID, text, paneID, label string) approval.Resolution {
	f.called = true
	return f.resolution
}

func newTestHandler(t *testing.T, engine *rules.Engine, evaluator Evaluator, approvals ApprovalCoordinator, cfg *config.Config) (*Handler, *session.Registry) {
	t.Helper()
	sessions := session.New(nil)
	auditSink := audit.NewAuditSink(t.TempDir(), nil)
	policies, err := policy.Load(filepath.Join(t.TempDir(), "policies.yaml"))
	if err != nil {
		t.Fatalf("load policies: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	h := New(&fakeRuleSource{engine: engine}, sessions, evaluator, approvals, nil, auditSink, policies, nil, filepath.Join(t.TempDir(), "rules.yaml"), cfg, nil)
	return h, sessions
}

// Scenario 1: auto-approve by rule.
func TestPreToolUse_AutoApproveByRule(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	h, _ := newTestHandler(t, engine, nil, nil, nil)

	resp := h.HandlePreToolUse(context.Background(), PreToolRequest{
		ToolName:       "Read",
		ToolInput:      map[string]interface{}{"file_path": "/x"},
		SessionID:      "s1",
		Cwd:            "/p",
		TranscriptPath: "/t",
	})

	if resp.Decision != "" {
		t.Fatalf("expected no top-level decision field, got %q", resp.Decision)
	}
	if resp.HookSpecificOutput == nil || resp.HookSpecificOutput.PermissionDecision != "allow" {
		t.Fatalf("expected allow, got %+v", resp.HookSpecificOutput)
	}
	if resp.HookSpecificOutput.PermissionDecisionReason != "Allowed by rule: Allow read-only tools" {
		t.Fatalf("unexpected reason: %q", resp.HookSpecificOutput.PermissionDecisionReason)
	}
}

// Scenario 2: deny precedence.
func TestPreToolUse_DenyPrecedence(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	h, sessions := newTestHandler(t, engine, nil, nil, nil)

	resp := h.HandlePreToolUse(context.Background(), PreToolRequest{
		ToolName:       "Bash",
		ToolInput:      map[string]interface{}{"command": "rm -rf /"},
		SessionID:      "s1",
		Cwd:            "/p",
		TranscriptPath: "/t",
	})

	if resp.Decision != "block" {
		t.Fatalf("expected block decision, got %q", resp.Decision)
	}
	if resp.HookSpecificOutput.PermissionDecision != "deny" {
		t.Fatalf("expected deny, got %+v", resp.HookSpecificOutput)
	}
	info, ok := sessions.Get("s1")
	if !ok || info.DenialCount != 1 {
		t.Fatalf("expected denial count 1, got %+v", info)
	}
}

// Scenario 3: LLM confident-allow short-circuits, no chat call.
func TestPreToolUse_LLMConfidentAllow(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	approvals := &fakeApprovals{}
	h, _ := newTestHandler(t, engine, &fakeEvaluator{verdict: llm.Verdict{Allowed: true, Confident: true, Reason: "benign git status"}}, approvals, nil)

	resp := h.HandlePreToolUse(context.Background(), PreToolRequest{
		ToolName:  "Bash",
		ToolInput: map[string]interface{}{"command": "git status"},
		SessionID: "s1",
		Cwd:       "/p",
	})

	if resp.Decision != "approve" {
		t.Fatalf("expected approve decision, got %q", resp.Decision)
	}
	if resp.HookSpecificOutput.PermissionDecisionReason != "LLM: benign git status" {
		t.Fatalf("unexpected reason: %q", resp.HookSpecificOutput.PermissionDecisionReason)
	}
	if approvals.called {
		t.Fatalf("chat adapter must never be called on confident-allow")
	}
}

// Scenario 4: LLM confident-deny still escalates; no coordinator configured.
func TestPreToolUse_LLMConfidentDenyNoCoordinator(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	h, _ := newTestHandler(t, engine, &fakeEvaluator{verdict: llm.Verdict{Allowed: false, Confident: true, Reason: "drops DB"}}, nil, nil)

	resp := h.HandlePreToolUse(context.Background(), PreToolRequest{
		ToolName:  "Bash",
		ToolInput: map[string]interface{}{"command": "drop database"},
		SessionID: "s1",
		Cwd:       "/p",
	})

	if resp.Decision != "block" || resp.HookSpecificOutput.PermissionDecision != "deny" {
		t.Fatalf("expected block/deny, got %+v", resp)
	}
	if !strings.Contains(resp.HookSpecificOutput.PermissionDecisionReason, "no Telegram available") {
		t.Fatalf("expected reason to mention no Telegram available, got %q", resp.HookSpecificOutput.PermissionDecisionReason)
	}
}

// Confident-deny with a coordinator present follows the human, never "llm".
func TestPreToolUse_LLMConfidentDenyWithCoordinatorFollowsHuman(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	approvals := &fakeApprovals{resolution: approval.Resolution{Approved: true, Reason: "Approved via Telegram"}}
	h, _ := newTestHandler(t, engine, &fakeEvaluator{verdict: llm.Verdict{Allowed: false, Confident: true, Reason: "drops DB"}}, approvals, nil)

	resp := h.HandlePreToolUse(context.Background(), PreToolRequest{
		ToolName:  "Bash",
		ToolInput: map[string]interface{}{"command": "drop database"},
		SessionID: "s1",
		Cwd:       "/p",
	})

	if !approvals.called {
		t.Fatalf("expected the approval coordinator to be consulted")
	}
	if resp.Decision != "approve" || resp.HookSpecificOutput.PermissionDecision != "allow" {
		t.Fatalf("expected the human's approval to win, got %+v", resp)
	}
}

// Scenario 7: policyText from a resolved approval is persisted.
func TestPreToolUse_PersistsPolicyFromApprovalReply(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	approvals := &fakeApprovals{resolution: approval.Resolution{Approved: true, PolicyText: "always allow npm install"}}
	h, _ := newTestHandler(t, engine, &fakeEvaluator{verdict: llm.Verdict{Allowed: false, Confident: false}}, approvals, nil)

	h.HandlePreToolUse(context.Background(), PreToolRequest{
		ToolName:  "Bash",
		ToolInput: map[string]interface{}{"command": "npm install"},
		SessionID: "s1",
		Cwd:       "/p",
	})

	policies := h.policies.ForTool("Bash")
	if len(policies) != 1 || policies[0].Description != "always allow npm install" {
		t.Fatalf("expected policy to be persisted, got %+v", policies)
	}
}

// Stop_hook_active produces {} and skips analysis.
func TestStop_LoopGuard(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	approvals := &fakeApprovals{}
	h, _ := newTestHandler(t, engine, nil, approvals, nil)

	resp := h.HandleStop(context.Background(), StopRequest{SessionID: "s1", StopHookActive: true, LastAssistantMessage: "error: boom"})
	if resp.Decision != "" || resp.Reason != "" {
		t.Fatalf("expected empty response, got %+v", resp)
	}
	if approvals.called {
		t.Fatalf("expected no chat call on loop guard")
	}
}

// Scenario 5: error-retry then escalate.
func TestStop_ErrorRetryThenEscalate(t *testing.T) {
	engine := rules.NewEngine(rules.Default())
	approvals := &fakeApprovals{resolution: approval.Resolution{Approved: false}}
	cfg := config.Default()
	cfg.Stop.MaxRetries = 1
	h, _ := newTestHandler(t, engine, nil, approvals, cfg)

	first := h.HandleStop(context.Background(), StopRequest{SessionID: "s1", LastAssistantMessage: "Error: disk full"})
	if first.Decision != "block" || first.Reason != "The previous approach hit an error. Try a different approach to accomplish the task." {
		t.Fatalf("unexpected first response: %+v", first)
	}
	if approvals.called {
		t.Fatalf("expected no escalation on first retry")
	}

	second := h.HandleStop(context.Background(), StopRequest{SessionID: "s1", LastAssistantMessage: "Error: disk full"})
	if !approvals.called {
		t.Fatalf("expected escalation once retries are exhausted")
	}
	if second.Decision != "" {
		t.Fatalf("expected let-stop after denied escalation, got %+v", second)
	}
}

