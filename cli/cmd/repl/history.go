package repl

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ardnew/catapillar/pkg"
)

// maxHistory bounds the number of entries kept on disk.
const maxHistory = 1000

// Entry is one submitted line and the mode it was entered in.
type Entry struct {
	Line string
	Mode Mode
}

// History is the list of submitted lines, persisted one per line with a
// mode prefix:
//
//	E:x = 1 + 2
//	C:vars
//
// An empty path keeps history in memory only.
type History struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
}

// NewHistory returns an empty history stored at path.
func NewHistory(path string) *History { return &History{path: path} }

// Load replaces the entries of h with those in its file. A missing file is
// not an error.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil

	if h.path == "" {
		return nil
	}

	f, err := os.Open(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if e, ok := decodeEntry(sc.Text()); ok {
			h.entries = append(h.entries, e)
		}
	}

	if len(h.entries) > maxHistory {
		h.entries = slices.Clone(h.entries[len(h.entries)-maxHistory:])
	}

	return sc.Err()
}

// Add appends line in mode. Blank lines are ignored. An earlier copy of
// the same entry is removed so each entry appears once, most recent last.
func (h *History) Add(line string, mode Mode) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	e := Entry{Line: line, Mode: mode}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.entries); n > 0 && h.entries[n-1] == e {
		return nil
	}

	i := slices.Index(h.entries, e)
	if i >= 0 {
		h.entries = slices.Delete(h.entries, i, i+1)
	}

	h.entries = append(h.entries, e)

	if i >= 0 || len(h.entries) > maxHistory {
		if len(h.entries) > maxHistory {
			h.entries = slices.Delete(h.entries, 0, len(h.entries)-maxHistory)
		}

		return h.rewrite()
	}

	return h.append(e)
}

// At returns the entry at index i, oldest first.
func (h *History) At(i int) (Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.entries) {
		return Entry{}, ErrOutOfBounds
	}

	return h.entries[i], nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.entries)
}

// Entries returns a copy of every entry, oldest first.
func (h *History) Entries() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return slices.Clone(h.entries)
}

// append writes e to the end of the file. h.mu must be held.
func (h *History) append(e Entry) error {
	if h.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(h.path), pkg.DirMode); err != nil {
		return err
	}

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	_, err = f.WriteString(encodeEntry(e))

	return errors.Join(err, f.Close())
}

// rewrite replaces the file with every entry. h.mu must be held.
func (h *History) rewrite() error {
	if h.path == "" {
		return nil
	}

	var b strings.Builder
	for _, e := range h.entries {
		b.WriteString(encodeEntry(e))
	}

	return os.WriteFile(h.path, []byte(b.String()), 0o600)
}

func encodeEntry(e Entry) string {
	prefix := "E:"
	if e.Mode == ModeCommand {
		prefix = "C:"
	}

	return prefix + e.Line + "\n"
}

// decodeEntry parses one history file line. Lines without a mode prefix
// are eval entries.
func decodeEntry(s string) (Entry, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Entry{}, false
	}

	if line, ok := strings.CutPrefix(s, "C:"); ok {
		return Entry{Line: line, Mode: ModeCommand}, line != ""
	}

	line, _ := strings.CutPrefix(s, "E:")

	return Entry{Line: line, Mode: ModeEval}, line != ""
}
