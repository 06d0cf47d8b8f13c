package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads and validates a rules.yaml document. The watcher
// reparses through this exact function on every reload.
func LoadFromPath(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode rules file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rules file: %w", err)
	}
	return &cfg, nil
}

// Default returns the shipped default rule set (read-only tools allowed,
// destructive commands blocked, everything else escalated) used when no
// rules file exists yet.
func Default() *Config {
	cfg := &Config{
		Version:  1,
		Defaults: Defaults{Unmatched: ActionEscalate},
		Rules: []Rule{
			{
				Name:         "Allow read-only tools",
				Action:       ActionAllow,
				ToolSelector: "Read|Glob|Grep",
			},
			{
				Name:         "Block destructive commands",
				Action:       ActionDeny,
				ToolSelector: "Bash",
				Reason:       "Destructive filesystem command blocked",
				Match: map[string][]MatchEntry{
					"command": {
						{Pattern: `rm\s+-rf\s+/`, Kind: "regex"},
						{Pattern: `mkfs\.`, Kind: "regex"},
						{Pattern: `dd\s+if=.*of=/dev/`, Kind: "regex"},
					},
				},
			},
		},
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default rules config is invalid: %v", err))
	}
	return cfg
}
