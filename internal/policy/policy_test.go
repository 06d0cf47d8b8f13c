package policy

import (
	"path/filepath"
	"testing"
)

func TestAddAssignsSequentialIDs(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "policies.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p0, err := s.Add("always allow npm install", "Bash")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p0.ID != "pol_0" {
		t.Fatalf("expected pol_0, got %s", p0.ID)
	}
	p1, err := s.Add("second policy", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p1.ID != "pol_1" {
		t.Fatalf("expected pol_1, got %s", p1.ID)
	}
}

func TestLoadResumesCounterPastMaxObservedID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	seed, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := seed.Add("first", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := seed.Add("second", ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	p, err := reloaded.Add("third", "")
	if err != nil {
		t.Fatalf("add after reload: %v", err)
	}
	if p.ID != "pol_2" {
		t.Fatalf("expected counter to resume past max observed id, got %s", p.ID)
	}
}

func TestFormatForPromptMatchesScenario7(t *testing.T) {
	policies := []Policy{{ID: "pol_0", Description: "always allow npm install", Tool: "Bash"}}
	got := FormatForPrompt(policies)
	want := "Human-defined policies:\n- [pol_0] always allow npm install (applies to: Bash)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestForToolFiltersByPipeSeparatedSelector(t *testing.T) {
	dir := t.TempDir()
	s, _ := Load(filepath.Join(dir, "policies.yaml"))
	s.Add("scoped", "Bash|Write")
	s.Add("global", "")
	s.Add("unrelated", "Read")

	got := s.ForTool("Bash")
	if len(got) != 2 {
		t.Fatalf("expected 2 applicable policies, got %d", len(got))
	}
}
