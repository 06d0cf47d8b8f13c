// Package tmux implements the terminal-multiplexer adapter capability:
// a thin, best-effort wrapper over the tmux CLI.
package tmux

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/claudecube/claudecube/internal/session"
)

// agentCommandSubstring filters listPanes() to panes running the agent CLI.
const agentCommandSubstring = "claude"

// Adapter shells out to the tmux CLI. All operations are best-effort: any
// failure returns empty/false rather than propagating, except SendKeys,
// whose errors the caller (a reply handler) surfaces to the user.
type Adapter struct {
	binary string
}

// New constructs an Adapter using the "tmux" binary on PATH.
func New() *Adapter {
	return &Adapter{binary: "tmux"}
}

const paneFormat = "#{session_name}\t#{window_index}\t#{window_name}\t#{pane_index}\t#{pane_id}\t#{pane_current_path}\t#{pane_current_command}"

// ListPanes returns every pane across every tmux session whose running
// command matches the agent CLI. Failure (e.g. no tmux server running)
// yields an empty slice.
func (a *Adapter) ListPanes() []session.Pane {
	out, err := exec.Command(a.binary, "list-panes", "-a", "-F", paneFormat).Output()
	if err != nil {
		return nil
	}
	return parsePanes(string(out))
}

func parsePanes(out string) []session.Pane {
	var panes []session.Pane
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		if !strings.Contains(fields[6], agentCommandSubstring) {
			continue
		}
		windowIndex, _ := strconv.Atoi(fields[1])
		paneIndex, _ := strconv.Atoi(fields[3])
		panes = append(panes, session.Pane{
			SessionName: fields[0],
			WindowIndex: windowIndex,
			WindowName:  fields[2],
			PaneIndex:   paneIndex,
			PaneID:      fields[4],
			PaneCwd:     fields[5],
			Command:     fields[6],
		})
	}
	return panes
}

// FindPaneForCwd returns the pane id whose current path exactly equals cwd.
func (a *Adapter) FindPaneForCwd(cwd string) (string, bool) {
	for _, p := range a.ListPanes() {
		if p.PaneCwd == cwd {
			return p.PaneID, true
		}
	}
	return "", false
}

// ResolveLabel returns the window name of the pane at cwd, if any.
func (a *Adapter) ResolveLabel(cwd string) (string, bool) {
	for _, p := range a.ListPanes() {
		if p.PaneCwd == cwd {
			return p.WindowName, true
		}
	}
	return "", false
}

// SendKeys appends the given text followed by Enter to the named pane.
// Errors propagate to the caller.
func (a *Adapter) SendKeys(paneID, text string) error {
	cmd := exec.Command(a.binary, "send-keys", "-t", paneID, text, "Enter")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux send-keys to %s: %w", paneID, err)
	}
	return nil
}
