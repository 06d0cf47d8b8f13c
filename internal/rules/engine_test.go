package rules

import "testing"

func mustConfig(t *testing.T, cfg *Config) *Config {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}

// Deny precedes allow.
func TestDenyPrecedesAllow(t *testing.T) {
	cfg := mustConfig(t, &Config{
		Defaults: Defaults{Unmatched: ActionEscalate},
		Rules: []Rule{
			{Name: "deny-rm", Action: ActionDeny, ToolSelector: "Bash", Match: map[string][]MatchEntry{
				"command": {{Pattern: "rm", Kind: "literal"}},
			}},
			{Name: "allow-bash", Action: ActionAllow, ToolSelector: "Bash"},
		},
	})
	e := NewEngine(cfg)
	res := e.Evaluate("Bash", map[string]interface{}{"command": "rm"})
	if res.Action != ActionDeny || res.Rule == nil || res.Rule.Name != "deny-rm" {
		t.Fatalf("expected deny by deny-rm, got %+v", res)
	}
}

// Tool selector is byte-exact, pipe-separated.
func TestToolSelectorExactSet(t *testing.T) {
	cfg := mustConfig(t, &Config{
		Defaults: Defaults{Unmatched: ActionEscalate},
		Rules:    []Rule{{Name: "ro", Action: ActionAllow, ToolSelector: "Read|Glob"}},
	})
	e := NewEngine(cfg)
	if e.Evaluate("Read", nil).Action != ActionAllow {
		t.Fatalf("expected Read to match")
	}
	if e.Evaluate("Glob", nil).Action != ActionAllow {
		t.Fatalf("expected Glob to match")
	}
	if e.Evaluate("Grep", nil).Action == ActionAllow {
		t.Fatalf("Grep must not match a Read|Glob selector")
	}
}

// Field logic is OR-across-fields, OR-within-a-field; missing field skips only that field.
func TestFieldLogicOrAcrossAndWithin(t *testing.T) {
	cfg := mustConfig(t, &Config{
		Defaults: Defaults{Unmatched: ActionAllow},
		Rules: []Rule{{
			Name: "multi", Action: ActionDeny, ToolSelector: "Bash",
			Match: map[string][]MatchEntry{
				"f": {{Pattern: "p1", Kind: "literal"}, {Pattern: "p2", Kind: "literal"}},
				"g": {{Pattern: "q", Kind: "literal"}},
			},
		}},
	})
	e := NewEngine(cfg)
	if e.Evaluate("Bash", map[string]interface{}{"f": "p2"}).Action != ActionDeny {
		t.Fatalf("expected match via second pattern in f's list")
	}
	if e.Evaluate("Bash", map[string]interface{}{"g": "q"}).Action != ActionDeny {
		t.Fatalf("expected match via g when f is absent")
	}
	if e.Evaluate("Bash", map[string]interface{}{"other": "x"}).Action == ActionDeny {
		t.Fatalf("expected no match when neither f nor g present")
	}
}

func TestUnmatchedFallsToDefault(t *testing.T) {
	cfg := mustConfig(t, &Config{Defaults: Defaults{Unmatched: ActionEscalate}})
	e := NewEngine(cfg)
	res := e.Evaluate("Anything", nil)
	if res.Action != ActionEscalate || res.Rule != nil {
		t.Fatalf("expected escalate default with no rule, got %+v", res)
	}
}

func TestInvalidRegexFailsValidation(t *testing.T) {
	cfg := &Config{
		Defaults: Defaults{Unmatched: ActionDeny},
		Rules: []Rule{{
			Name: "bad", Action: ActionDeny, ToolSelector: "Bash",
			Match: map[string][]MatchEntry{"command": {{Pattern: "(", Kind: "regex"}}},
		}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for invalid regex")
	}
}
