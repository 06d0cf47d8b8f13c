// Package installer patches the agent's settings.json to register (or
// remove) the claudecube hook bridge, idempotently and without disturbing
// hooks owned by other tools.
package installer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ownedCommandSubstring identifies a hook entry's command as belonging to
// claudecube, so re-running --install replaces it instead of duplicating it.
const ownedCommandSubstring = "claudecube"

// hookTimeouts maps each event name to its required timeout, in seconds.
var hookTimeouts = map[string]int{
	"PreToolUse":   120,
	"Stop":         30,
	"SessionStart": 5,
	"SessionEnd":   5,
	"Notification": 5,
}

type hookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

type matcherGroup struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []hookEntry `json:"hooks"`
}

// Install rewrites the hooks section of the settings file at path so that
// every event in hookTimeouts invokes `binary hook <event> --port port`, preserving any
// non-claudecube hooks already registered for those events.
func Install(settingsPath, binary string, port int) error {
	settings, err := readSettings(settingsPath)
	if err != nil {
		return err
	}

	hooksRaw, _ := settings["hooks"].(map[string]interface{})
	if hooksRaw == nil {
		hooksRaw = map[string]interface{}{}
	}

	for event, timeout := range hookTimeouts {
		command := fmt.Sprintf("%s hook %s --port %d", binary, event, port)
		groups := decodeGroups(hooksRaw[event])
		groups = removeOwnedGroups(groups)
		groups = append(groups, matcherGroup{
			Hooks: []hookEntry{{Type: "command", Command: command, Timeout: timeout}},
		})
		hooksRaw[event] = groups
	}

	settings["hooks"] = hooksRaw
	return writeSettings(settingsPath, settings)
}

// Uninstall removes every claudecube-owned hook entry from the settings
// file, leaving foreign hooks and all other settings untouched.
func Uninstall(settingsPath string) error {
	settings, err := readSettings(settingsPath)
	if err != nil {
		return err
	}

	hooksRaw, _ := settings["hooks"].(map[string]interface{})
	if hooksRaw == nil {
		return writeSettings(settingsPath, settings)
	}

	for event := range hookTimeouts {
		raw, ok := hooksRaw[event]
		if !ok {
			continue
		}
		groups := removeOwnedGroups(decodeGroups(raw))
		if len(groups) == 0 {
			delete(hooksRaw, event)
		} else {
			hooksRaw[event] = groups
		}
	}
	if len(hooksRaw) == 0 {
		delete(settings, "hooks")
	} else {
		settings["hooks"] = hooksRaw
	}
	return writeSettings(settingsPath, settings)
}

func decodeGroups(raw interface{}) []matcherGroup {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var groups []matcherGroup
	if err := json.Unmarshal(b, &groups); err != nil {
		return nil
	}
	return groups
}

// removeOwnedGroups strips claudecube-owned hook entries from each group,
// dropping groups that end up empty.
func removeOwnedGroups(groups []matcherGroup) []matcherGroup {
	out := make([]matcherGroup, 0, len(groups))
	for _, g := range groups {
		kept := g.Hooks[:0:0]
		for _, h := range g.Hooks {
			if !isOwned(h) {
				kept = append(kept, h)
			}
		}
		if len(kept) > 0 {
			g.Hooks = kept
			out = append(out, g)
		}
	}
	return out
}

func isOwned(h hookEntry) bool {
	return h.Type == "command" && strings.Contains(h.Command, ownedCommandSubstring)
}

func readSettings(path string) (map[string]interface{}, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	var settings map[string]interface{}
	if err := json.Unmarshal(b, &settings); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	if settings == nil {
		settings = map[string]interface{}{}
	}
	return settings, nil
}

func writeSettings(path string, settings map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir settings dir: %w", err)
	}
	b, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	b = append(b, '\n')

	tmp := path + ".tmp-" + time.Now().UTC().Format("150405.000000000")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
