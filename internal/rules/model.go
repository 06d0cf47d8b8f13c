// Package rules implements the deny/allow/escalate rule engine and its YAML
// configuration schema.
package rules

import (
	"fmt"
	"strings"

	"github.com/claudecube/claudecube/internal/pattern"
)

// Action is the verdict a matched rule (or the unmatched default) produces.
type Action string

const (
	ActionDeny     Action = "deny"
	ActionAllow    Action = "allow"
	ActionEscalate Action = "escalate"
)

// MatchEntry is one {pattern, kind} pair inside a rule's match list for a field.
type MatchEntry struct {
	Pattern string       `yaml:"pattern"`
	Kind    pattern.Kind `yaml:"kind"`
}

// Rule is one immutable policy rule as authored in rules.yaml.
type Rule struct {
	Name         string                  `yaml:"name"`
	Action       Action                  `yaml:"action"`
	ToolSelector string                  `yaml:"tool"`
	Match        map[string][]MatchEntry `yaml:"match,omitempty"`
	Reason       string                  `yaml:"reason,omitempty"`

	tools     map[string]bool
	compiled  map[string][]*pattern.Pattern
}

// Defaults is the fallback action applied when no rule matches.
type Defaults struct {
	Unmatched Action `yaml:"unmatched"`
}

// Config is the parsed, validated rules.yaml document.
type Config struct {
	Version  int      `yaml:"version"`
	Defaults Defaults `yaml:"defaults"`
	Rules    []Rule   `yaml:"rules"`
}

// Validate checks structural well-formedness and compiles every pattern,
// failing the load on the first invalid regex/glob.
func (c *Config) Validate() error {
	if c.Defaults.Unmatched == "" {
		c.Defaults.Unmatched = ActionDeny
	}
	switch c.Defaults.Unmatched {
	case ActionDeny, ActionAllow, ActionEscalate:
	default:
		return fmt.Errorf("defaults.unmatched: invalid action %q", c.Defaults.Unmatched)
	}
	for i := range c.Rules {
		if err := c.Rules[i].compile(); err != nil {
			return fmt.Errorf("rule %q: %w", c.Rules[i].Name, err)
		}
	}
	return nil
}

func (r *Rule) compile() error {
	switch r.Action {
	case ActionDeny, ActionAllow, ActionEscalate:
	default:
		return fmt.Errorf("invalid action %q", r.Action)
	}
	if strings.TrimSpace(r.ToolSelector) == "" {
		return fmt.Errorf("tool selector must not be empty")
	}
	r.tools = make(map[string]bool)
	for _, t := range strings.Split(r.ToolSelector, "|") {
		t = strings.TrimSpace(t)
		if t != "" {
			r.tools[t] = true
		}
	}
	if len(r.Match) == 0 {
		return nil
	}
	r.compiled = make(map[string][]*pattern.Pattern, len(r.Match))
	for field, entries := range r.Match {
		compiled := make([]*pattern.Pattern, 0, len(entries))
		for _, e := range entries {
			kind := e.Kind
			if kind == "" {
				kind = pattern.KindLiteral
			}
			p, err := pattern.Compile(kind, e.Pattern)
			if err != nil {
				return fmt.Errorf("field %q: %w", field, err)
			}
			compiled = append(compiled, p)
		}
		r.compiled[field] = compiled
	}
	return nil
}

// matchesTool reports byte-exact tool-name membership in the rule's selector.
func (r *Rule) matchesTool(toolName string) bool {
	return r.tools[toolName]
}

// matchesInput reports field-match semantics: absent when Match is nil,
// otherwise OR-across-fields / OR-within-a-field.
func (r *Rule) matchesInput(toolInput map[string]interface{}) bool {
	if len(r.compiled) == 0 {
		return true
	}
	for field, patterns := range r.compiled {
		v, ok := pattern.ExtractField(toolInput, field)
		if !ok {
			continue
		}
		s, ok := pattern.ToMatchString(v)
		if !ok {
			continue
		}
		for _, p := range patterns {
			if p.Match(s) {
				return true
			}
		}
	}
	return false
}

// reasonOrDefault returns the rule's reason, or a generated default keyed by action verb.
func (r *Rule) reasonOrDefault(verb string) string {
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("%s by rule: %s", verb, r.Name)
}
