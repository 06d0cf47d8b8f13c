// Package audit implements the append-only JSONL audit and cost sinks,
// rolled per calendar date into one file per day.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DecidedBy tags which layer produced the final decision.
type DecidedBy string

const (
	DecidedByRule     DecidedBy = "rule"
	DecidedByLLM      DecidedBy = "llm"
	DecidedByTelegram DecidedBy = "telegram"
	DecidedByTimeout  DecidedBy = "timeout"
)

// Entry is one audit record.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"sessionId"`
	ToolName  string                 `json:"toolName"`
	ToolInput map[string]interface{} `json:"toolInput"`
	Decision  string                 `json:"decision"`
	Reason    string                 `json:"reason"`
	DecidedBy DecidedBy              `json:"decidedBy"`
	RuleName  string                 `json:"ruleName,omitempty"`
}

// Sink appends JSON lines to a date-named file under dir, rolling to a new
// file at UTC midnight. Write failures are logged and swallowed: a decision
// is never blocked on audit I/O.
type Sink struct {
	dir    string
	prefix string
	log    *slog.Logger

	mu      sync.Mutex
	day     string
	file    *os.File
}

func newSink(dir, prefix string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{dir: dir, prefix: prefix, log: log}
}

// NewAuditSink opens (lazily) the audit-YYYY-MM-DD.jsonl sink under dir.
func NewAuditSink(dir string, log *slog.Logger) *Sink {
	return newSink(dir, "audit", log)
}

func (s *Sink) ensureOpenLocked() error {
	day := time.Now().UTC().Format("2006-01-02")
	if s.file != nil && s.day == day {
		return nil
	}
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.jsonl", s.prefix, day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	s.file = f
	s.day = day
	return nil
}

func (s *Sink) appendLine(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		s.log.Warn("audit sink unavailable", "error", err)
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("audit entry marshal failed", "error", err)
		return
	}
	b = append(b, '\n')
	if _, err := s.file.Write(b); err != nil {
		s.log.Warn("audit write failed", "error", err)
	}
}

// Append records one audit entry. Never returns an error: failures are
// logged only.
func (s *Sink) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.appendLine(e)
}

// Close releases the underlying file handle, if open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
