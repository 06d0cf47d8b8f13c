// Package pipeline implements the escalation handler plus the pre-tool
// and stop-decision pipelines, wiring together the rule engine, session
// registry, LLM client, approval coordinator, audit/cost sinks, and policy
// store built by the rest of this module.
package pipeline

// PreToolRequest is the decoded body of POST /hooks/PreToolUse.
type PreToolRequest struct {
	HookEventName  string                 `json:"hook_event_name"`
	ToolName       string                 `json:"tool_name"`
	ToolInput      map[string]interface{} `json:"tool_input"`
	SessionID      string                 `json:"session_id"`
	Cwd            string                 `json:"cwd"`
	TranscriptPath string                 `json:"transcript_path"`
}

// HookSpecificOutput carries the hook-protocol permission verdict.
type HookSpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// PreToolResponse is the JSON response to a PreToolUse hook.
type PreToolResponse struct {
	Decision           string              `json:"decision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// StopRequest is the decoded body of POST /hooks/Stop.
type StopRequest struct {
	SessionID            string `json:"session_id"`
	Cwd                  string `json:"cwd"`
	TranscriptPath       string `json:"transcript_path"`
	StopHookActive       bool   `json:"stop_hook_active"`
	LastAssistantMessage string `json:"last_assistant_message"`
}

// StopResponse is the JSON response to a Stop hook.
type StopResponse struct {
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// LifecycleRequest is the decoded body shared by SessionStart, SessionEnd,
// and Notification hooks.
type LifecycleRequest struct {
	SessionID      string `json:"session_id"`
	Cwd            string `json:"cwd"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	Message        string `json:"message,omitempty"`
	Title          string `json:"title,omitempty"`
}

// LifecycleResponse is always the empty object: lifecycle hooks never
// influence agent control flow.
type LifecycleResponse struct{}
