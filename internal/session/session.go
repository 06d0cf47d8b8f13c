// Package session implements the in-memory session registry, including
// synthetic-to-real session merging from a terminal-multiplexer scan.
package session

import (
	"strings"
	"sync"
	"time"
)

// State is a SessionInfo's current lifecycle state.
type State string

const (
	StateActive            State = "active"
	StateIdle               State = "idle"
	StatePermissionPending  State = "permission_pending"
)

// Multiplexer is the minimal terminal-multiplexer capability the registry
// consumes to resolve a session label.
type Multiplexer interface {
	FindPaneForCwd(cwd string) (paneID string, ok bool)
	ResolveLabel(cwd string) (label string, ok bool)
	ListPanes() []Pane
}

// Pane mirrors one row of the multiplexer's listPanes() capability.
type Pane struct {
	SessionName string
	WindowIndex int
	WindowName  string
	PaneIndex   int
	PaneID      string
	PaneCwd     string
	Command     string
}

// Info is the registry's value type for one tracked session.
type Info struct {
	SessionID      string
	Cwd            string
	StartedAt      time.Time
	State          State
	LastToolName   string
	LastActivity   time.Time
	DenialCount    int
	Label          string
	PaneID         string
	TranscriptPath string

	alerted bool // denial-threshold notification already sent this session
}

// Registry is the single owner of the sessionId -> Info table.
type Registry struct {
	mux Multiplexer

	mu       sync.RWMutex
	sessions map[string]*Info
}

// New constructs an empty registry. mux may be nil, in which case label
// resolution always falls back to the sessionId prefix.
func New(mux Multiplexer) *Registry {
	return &Registry{mux: mux, sessions: make(map[string]*Info)}
}

func (r *Registry) resolveLabel(sessionID, cwd string) string {
	if r.mux != nil {
		if label, ok := r.mux.ResolveLabel(cwd); ok && label != "" {
			return label
		}
	}
	if len(sessionID) > 12 {
		return sessionID[:12]
	}
	return sessionID
}

func (r *Registry) resolvePaneID(cwd string) string {
	if r.mux == nil {
		return ""
	}
	paneID, _ := r.mux.FindPaneForCwd(cwd)
	return paneID
}

// Register creates a new session entry unconditionally, resolving its label
// and pane id from the multiplexer.
func (r *Registry) Register(sessionID, cwd, transcriptPath string) *Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(sessionID, cwd, transcriptPath)
}

func (r *Registry) registerLocked(sessionID, cwd, transcriptPath string) *Info {
	info := &Info{
		SessionID:      sessionID,
		Cwd:            cwd,
		StartedAt:      time.Now(),
		State:          StateActive,
		LastActivity:   time.Now(),
		Label:          r.resolveLabel(sessionID, cwd),
		PaneID:         r.resolvePaneID(cwd),
		TranscriptPath: transcriptPath,
	}
	r.sessions[sessionID] = info
	return info
}

// EnsureRegistered implements the no-op / merge / register decision tree.
// It returns the (possibly just-created or just-merged) Info.
func (r *Registry) EnsureRegistered(sessionID, cwd, transcriptPath string) *Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[sessionID]; ok {
		if existing.TranscriptPath == "" && transcriptPath != "" {
			existing.TranscriptPath = transcriptPath
		}
		return existing
	}

	// Look for a synthetic session at the same cwd to merge.
	for id, syn := range r.sessions {
		if strings.HasPrefix(id, "tmux_") && syn.Cwd == cwd {
			merged := &Info{
				SessionID:      sessionID,
				Cwd:            cwd,
				StartedAt:      syn.StartedAt,
				State:          StateActive,
				LastActivity:   time.Now(),
				DenialCount:    syn.DenialCount,
				Label:          syn.Label,
				PaneID:         syn.PaneID,
				TranscriptPath: transcriptPath,
			}
			delete(r.sessions, id)
			r.sessions[sessionID] = merged
			return merged
		}
	}

	return r.registerLocked(sessionID, cwd, transcriptPath)
}

// RegisterFromTmux seeds synthetic sessions ("tmux_<paneId>") for every pane
// running the agent CLI, discovered at startup before any hook has arrived.
func (r *Registry) RegisterFromTmux() {
	if r.mux == nil {
		return
	}
	panes := r.mux.ListPanes()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range panes {
		id := "tmux_" + p.PaneID
		if _, exists := r.sessions[id]; exists {
			continue
		}
		label := p.WindowName
		if label == "" {
			label = id
		}
		r.sessions[id] = &Info{
			SessionID:    id,
			Cwd:          p.PaneCwd,
			StartedAt:    time.Now(),
			State:        StateActive,
			LastActivity: time.Now(),
			Label:        label,
			PaneID:       p.PaneID,
		}
	}
}

// Deregister removes a session entry. No-op on unknown id.
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// UpdateState sets the session's lifecycle state. No-op on unknown id.
func (r *Registry) UpdateState(sessionID string, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.sessions[sessionID]; ok {
		info.State = state
		info.LastActivity = time.Now()
	}
}

// UpdateToolUse records the last tool invoked for a session. No-op on unknown id.
func (r *Registry) UpdateToolUse(sessionID, toolName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.sessions[sessionID]; ok {
		info.LastToolName = toolName
		info.LastActivity = time.Now()
	}
}

// RecordDenial increments the denial counter and returns its new value (0 if
// the session is unknown, in which case the call is a no-op).
func (r *Registry) RecordDenial(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	info.DenialCount++
	return info.DenialCount
}

// MarkAlertedIfNeeded reports whether a denial-threshold alert should fire
// now: true at most once per session, the first time DenialCount reaches
// threshold. threshold<=0 disables alerting.
func (r *Registry) MarkAlertedIfNeeded(sessionID string, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok || info.alerted || info.DenialCount < threshold {
		return false
	}
	info.alerted = true
	return true
}

// TouchActivity updates LastActivity only (Notification hook). No-op on unknown id.
func (r *Registry) TouchActivity(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.sessions[sessionID]; ok {
		info.LastActivity = time.Now()
	}
}

// GetLabel, GetPaneID, GetTranscriptPath are convenience single-field reads.
func (r *Registry) GetLabel(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return info.Label, true
}

func (r *Registry) GetPaneID(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[sessionID]
	if !ok || info.PaneID == "" {
		return "", false
	}
	return info.PaneID, true
}

func (r *Registry) GetTranscriptPath(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[sessionID]
	if !ok || info.TranscriptPath == "" {
		return "", false
	}
	return info.TranscriptPath, true
}

// Get returns a copy of the session's Info.
func (r *Registry) Get(sessionID string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// GetAll returns a snapshot copy of every tracked session.
func (r *Registry) GetAll() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.sessions))
	for _, info := range r.sessions {
		out = append(out, *info)
	}
	return out
}

// FindByCwd returns the session tracked at cwd, if any.
func (r *Registry) FindByCwd(cwd string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, info := range r.sessions {
		if info.Cwd == cwd {
			return *info, true
		}
	}
	return Info{}, false
}
