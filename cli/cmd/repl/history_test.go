package repl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHistory_AddAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history")

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("expected missing file to load, got %v", err)
	}

	adds := []Entry{
		{Line: "let x = 1;", Mode: ModeEval},
		{Line: "vars", Mode: ModeCommand},
		{Line: "  ", Mode: ModeEval},
		{Line: "x + 1", Mode: ModeEval},
		{Line: "x + 1", Mode: ModeEval},
	}

	for _, e := range adds {
		if err := h.Add(e.Line, e.Mode); err != nil {
			t.Fatalf("add %q: %v", e.Line, err)
		}
	}

	want := []Entry{
		{Line: "let x = 1;", Mode: ModeEval},
		{Line: "vars", Mode: ModeCommand},
		{Line: "x + 1", Mode: ModeEval},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}

	if got, exp := string(data), "E:let x = 1;\nC:vars\nE:x + 1\n"; got != exp {
		t.Errorf("expected file %q, got %q", exp, got)
	}

	loaded := NewHistory(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := loaded.Entries()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestHistory_MovesDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	h := NewHistory(path)

	for _, line := range []string{"a", "b", "a"} {
		if err := h.Add(line, ModeEval); err != nil {
			t.Fatalf("add %q: %v", line, err)
		}
	}

	// Same line in another mode is a distinct entry.
	if err := h.Add("a", ModeCommand); err != nil {
		t.Fatalf("add: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}

	if got, exp := string(data), "E:b\nE:a\nC:a\n"; got != exp {
		t.Errorf("expected file %q, got %q", exp, got)
	}
}

func TestHistory_Decode(t *testing.T) {
	tests := []struct {
		line string
		want Entry
		ok   bool
	}{
		{line: "E:1 + 2", want: Entry{Line: "1 + 2", Mode: ModeEval}, ok: true},
		{line: "C:help", want: Entry{Line: "help", Mode: ModeCommand}, ok: true},
		{line: "legacy", want: Entry{Line: "legacy", Mode: ModeEval}, ok: true},
		{line: "   ", ok: false},
		{line: "C:", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := decodeEntry(tt.line)
			if ok != tt.ok {
				t.Fatalf("expected ok %v, got %v", tt.ok, ok)
			}

			if ok && got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestHistory_Bounds(t *testing.T) {
	h := NewHistory("")

	if err := h.Add("only", ModeEval); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := h.At(1); err != ErrOutOfBounds {
		t.Errorf("expected %v, got %v", ErrOutOfBounds, err)
	}

	if e, err := h.At(0); err != nil || e.Line != "only" {
		t.Errorf("expected entry %q, got %+v (%v)", "only", e, err)
	}
}

func TestHistory_Limit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")

	data := []byte(strings.Repeat("E:x\n", maxHistory+10))

	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	if h.Len() != maxHistory {
		t.Errorf("expected %d entries, got %d", maxHistory, h.Len())
	}
}
