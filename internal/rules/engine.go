package rules

// EvaluationResult is the pure value an Engine evaluation produces.
type EvaluationResult struct {
	Action Action
	Rule   *Rule
	Reason string
}

// Engine is an immutable, concurrency-safe partitioned rule matcher. It
// holds no mutable state after construction and is safe to share across
// goroutines; hot-reload replaces the *Engine pointer wholesale rather than
// mutating one in place.
type Engine struct {
	deny      []Rule
	allow     []Rule
	escalate  []Rule
	unmatched Action
	version   int
}

// NewEngine partitions cfg.Rules by action, preserving authored order within
// each partition, and compiles nothing further (Config.Validate already
// compiled every pattern).
func NewEngine(cfg *Config) *Engine {
	e := &Engine{unmatched: cfg.Defaults.Unmatched, version: cfg.Version}
	for _, r := range cfg.Rules {
		switch r.Action {
		case ActionDeny:
			e.deny = append(e.deny, r)
		case ActionAllow:
			e.allow = append(e.allow, r)
		case ActionEscalate:
			e.escalate = append(e.escalate, r)
		}
	}
	return e
}

// Version returns the rules document's declared version, surfaced by the
// healthz endpoint so operators can confirm a reload took effect.
func (e *Engine) Version() int {
	return e.version
}

// Evaluate is a pure function of (toolName, toolInput): scan deny, then
// allow, then escalate, in order; first match wins; otherwise the
// configured unmatched default applies.
func (e *Engine) Evaluate(toolName string, toolInput map[string]interface{}) EvaluationResult {
	if r := firstMatch(e.deny, toolName, toolInput); r != nil {
		return EvaluationResult{Action: ActionDeny, Rule: r, Reason: r.reasonOrDefault("Denied")}
	}
	if r := firstMatch(e.allow, toolName, toolInput); r != nil {
		return EvaluationResult{Action: ActionAllow, Rule: r, Reason: r.reasonOrDefault("Allowed")}
	}
	if r := firstMatch(e.escalate, toolName, toolInput); r != nil {
		return EvaluationResult{Action: ActionEscalate, Rule: r, Reason: r.reasonOrDefault("Escalated")}
	}
	return EvaluationResult{
		Action: e.unmatched,
		Reason: "No matching rule; default " + string(e.unmatched),
	}
}

func firstMatch(rs []Rule, toolName string, toolInput map[string]interface{}) *Rule {
	for i := range rs {
		r := &rs[i]
		if r.matchesTool(toolName) && r.matchesInput(toolInput) {
			return r
		}
	}
	return nil
}
