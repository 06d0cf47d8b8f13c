package audit

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendWritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	sink := NewAuditSink(dir, nil)
	defer sink.Close()

	sink.Append(Entry{
		SessionID: "s1",
		ToolName:  "Bash",
		Decision:  "deny",
		Reason:    "blocked",
		DecidedBy: DecidedByRule,
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one audit file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		lines++
	}
	if lines != 1 {
		t.Fatalf("expected 1 line, got %d", lines)
	}
}

func TestAppendNeverPanicsOnUnwritableDir(t *testing.T) {
	sink := NewAuditSink("/nonexistent/\x00bad/path", nil)
	defer sink.Close()
	sink.Append(Entry{SessionID: "s1"})
}

func TestCostSinkRecordsPurposeTag(t *testing.T) {
	dir := t.TempDir()
	sink := NewCostSink(dir, nil)
	defer sink.Close()
	sink.Record("tool-eval", "claude-haiku-4-5-20251001", 120, 40, nil)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one costs file, got %d", len(entries))
	}
}
