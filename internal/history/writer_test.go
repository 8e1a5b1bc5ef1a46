package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "history")
	clock := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(Entry{Role: "system", Text: "first"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(Entry{Role: "user", Text: "second"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(Entry{Role: "system", Text: "third"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	first, err := ReadFile(filepath.Join(dir, "history-2026-03-01-09.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(first) != 2 || first[0].Text != "first" || first[1].Role != "user" {
		t.Fatalf("09h entries: %+v", first)
	}
	if first[0].Time == "" {
		t.Fatalf("entry time not stamped")
	}
	second, err := ReadFile(filepath.Join(dir, "history-2026-03-01-10.jsonl.zst"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(second) != 1 || second[0].Text != "third" {
		t.Fatalf("10h entries: %+v", second)
	}
}

func TestLog_KeepsRecent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "history")
	l := NewLog(w, 2, nil)
	l.Add("system", "a")
	l.Add("system", "b")
	l.Add("user", "c")

	got := l.Recent()
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "c" {
		t.Fatalf("recent: %+v", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "history-*.jsonl.zst"))
	if len(matches) == 0 {
		t.Fatalf("no history file written")
	}
	var total int
	for _, m := range matches {
		es, err := ReadFile(m)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		total += len(es)
	}
	if total != 3 {
		t.Fatalf("persisted %d entries, want 3", total)
	}
}
