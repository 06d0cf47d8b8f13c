package installer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readRawSettings(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal settings: %v", err)
	}
	return m
}

func TestInstallCreatesHooksOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	if err := Install(path, "claudecube", 7080); err != nil {
		t.Fatalf("install: %v", err)
	}

	settings := readRawSettings(t, path)
	hooks, ok := settings["hooks"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected hooks section, got %+v", settings)
	}
	for _, event := range []string{"PreToolUse", "Stop", "SessionStart", "SessionEnd", "Notification"} {
		if _, ok := hooks[event]; !ok {
			t.Fatalf("expected hook registered for %s", event)
		}
	}
}

func TestInstallIsIdempotentAndPreservesForeignHooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	seed := `{
		"hooks": {
			"PreToolUse": [
				{"matcher": "Bash", "hooks": [{"type": "command", "command": "some-other-tool --check"}]}
			]
		}
	}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	if err := Install(path, "claudecube", 7080); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := Install(path, "claudecube", 7080); err != nil {
		t.Fatalf("second install: %v", err)
	}

	settings := readRawSettings(t, path)
	hooks := settings["hooks"].(map[string]interface{})
	preToolRaw, _ := json.Marshal(hooks["PreToolUse"])
	var groups []matcherGroup
	if err := json.Unmarshal(preToolRaw, &groups); err != nil {
		t.Fatalf("decode PreToolUse groups: %v", err)
	}

	var foreignCount, ownedCount int
	for _, g := range groups {
		for _, h := range g.Hooks {
			if isOwned(h) {
				ownedCount++
			} else {
				foreignCount++
			}
		}
	}
	if foreignCount != 1 {
		t.Fatalf("expected the foreign hook to survive, got %d foreign hooks", foreignCount)
	}
	if ownedCount != 1 {
		t.Fatalf("expected install to be idempotent (1 owned hook), got %d", ownedCount)
	}
}

func TestUninstallRemovesOnlyOwnedHooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := Install(path, "claudecube", 7080); err != nil {
		t.Fatalf("install: %v", err)
	}

	settings := readRawSettings(t, path)
	hooks := settings["hooks"].(map[string]interface{})
	raw, _ := json.Marshal(hooks["Stop"])
	var groups []matcherGroup
	_ = json.Unmarshal(raw, &groups)
	groups = append(groups, matcherGroup{Hooks: []hookEntry{{Type: "command", Command: "foreign-tool"}}})
	hooks["Stop"] = groups
	settings["hooks"] = hooks
	b, _ := json.Marshal(settings)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("rewrite settings: %v", err)
	}

	if err := Uninstall(path); err != nil {
		t.Fatalf("uninstall: %v", err)
	}

	final := readRawSettings(t, path)
	finalHooks, _ := final["hooks"].(map[string]interface{})
	if _, ok := finalHooks["PreToolUse"]; ok {
		t.Fatalf("expected PreToolUse removed entirely, got %+v", finalHooks["PreToolUse"])
	}
	stopRaw, _ := json.Marshal(finalHooks["Stop"])
	var stopGroups []matcherGroup
	_ = json.Unmarshal(stopRaw, &stopGroups)
	if len(stopGroups) != 1 || len(stopGroups[0].Hooks) != 1 || stopGroups[0].Hooks[0].Command != "foreign-tool" {
		t.Fatalf("expected only the foreign Stop hook to survive, got %+v", stopGroups)
	}
}

func TestUninstallOnMissingFileWritesEmptySettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := Uninstall(path); err != nil {
		t.Fatalf("uninstall on missing file: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected settings file to be written even if empty: %v", err)
	}
}
