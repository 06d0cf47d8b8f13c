// Package watcher implements a debounced filesystem watch over the rules
// file that rebuilds and atomically publishes a new *rules.Engine.
package watcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/claudecube/claudecube/internal/rules"
)

const debounceInterval = 500 * time.Millisecond

// Watcher observes a single rules file and republishes a *rules.Engine on
// every valid change. Evaluators read the live engine via Current(), which
// is always either the previous valid engine or the newly published one,
// never a partially constructed one (read-copy-update via atomic.Pointer).
type Watcher struct {
	path   string
	log    *slog.Logger
	engine atomic.Pointer[rules.Engine]

	fsw *fsnotify.Watcher
}

// New loads the initial rules file (or the shipped default if path does not
// exist yet) and prepares a Watcher. It does not start watching until Start
// is called.
func New(path string, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{path: path, log: log}

	cfg, err := rules.LoadFromPath(path)
	if err != nil {
		log.Warn("rules file missing or invalid at startup, using defaults", "path", path, "error", err)
		cfg = rules.Default()
	}
	w.engine.Store(rules.NewEngine(cfg))
	return w, nil
}

// Current returns the live engine. Safe for concurrent use.
func (w *Watcher) Current() *rules.Engine {
	return w.engine.Load()
}

// Start begins watching the rules file for changes until ctx is cancelled.
// Bursts of filesystem events are coalesced by waiting debounceInterval for
// quiescence before reparsing
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	if err := fsw.Add(w.path); err != nil {
		// The file may not exist yet (default engine is already live);
		// watch the parent directory instead so a later create is seen.
		if dirErr := fsw.Add(dirOf(w.path)); dirErr != nil {
			fsw.Close()
			return err
		}
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.fsw.Close()

	var timer *time.Timer
	var pendingReload <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path && dirOf(ev.Name) != dirOf(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounceInterval)
			pendingReload = timer.C
		case <-pendingReload:
			pendingReload = nil
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("rules watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := rules.LoadFromPath(w.path)
	if err != nil {
		w.log.Warn("rules reload failed, keeping previous engine", "path", w.path, "error", err)
		return
	}
	w.engine.Store(rules.NewEngine(cfg))
	w.log.Info("rules reloaded", "path", w.path)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
