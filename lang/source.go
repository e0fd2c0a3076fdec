package lang

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Position identifies a location in a [Source].
// Line and Column are 1-based; Column counts runes, not bytes.
type Position struct {
	Offset int
	Line   int
	Column int
}

// IsValid reports whether p refers to a location in some source.
func (p Position) IsValid() bool { return p.Line > 0 }

// String returns "line:column", or "-" for the zero Position.
func (p Position) String() string {
	if !p.IsValid() {
		return "-"
	}

	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// Source holds program text and the line bookkeeping needed to translate
// byte offsets into positions.
//
// The text is normalized to Unicode NFC when the Source is created, so
// identifiers written with composed or decomposed characters compare equal.
type Source struct {
	Name  string
	text  string
	lines []int // byte offset of the first byte of each line
}

// NewSource returns a Source with the given name and text.
func NewSource(name, text string) *Source {
	text = norm.NFC.String(text)

	lines := []int{0}

	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}

	return &Source{Name: name, text: text, lines: lines}
}

// ReadSource reads all of r into a new Source.
func ReadSource(name string, r io.Reader) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrReadInput.Wrap(err)
	}

	return NewSource(name, string(data)), nil
}

// Text returns the normalized source text.
func (s *Source) Text() string { return s.text }

// Len returns the length of the source text in bytes.
func (s *Source) Len() int { return len(s.text) }

// Position converts a byte offset into a Position.
// Offsets beyond the end of the text are clamped.
func (s *Source) Position(offset int) Position {
	offset = max(0, min(offset, len(s.text)))

	// The index of the last line starting at or before offset.
	line := sort.Search(len(s.lines), func(i int) bool {
		return s.lines[i] > offset
	}) - 1

	start := s.lines[line]

	return Position{
		Offset: offset,
		Line:   line + 1,
		Column: utf8.RuneCountInString(s.text[start:offset]) + 1,
	}
}

// Line returns the text of the given 1-based line without its newline.
func (s *Source) Line(n int) (string, bool) {
	if n < 1 || n > len(s.lines) {
		return "", false
	}

	start := s.lines[n-1]
	end := len(s.text)

	if n < len(s.lines) {
		end = s.lines[n] - 1
	}

	return strings.TrimSuffix(s.text[start:end], "\r"), true
}

// Excerpt renders the line containing pos with a caret under its column:
//
//	  3 | let x = 1 + ;
//	    |             ^
func (s *Source) Excerpt(pos Position) string {
	text, ok := s.Line(pos.Line)
	if !ok {
		return ""
	}

	num := strconv.Itoa(pos.Line)
	gutter := strings.Repeat(" ", len(num))

	var buf strings.Builder

	fmt.Fprintf(&buf, "  %s | %s\n", num, text)
	fmt.Fprintf(&buf, "  %s | %s^\n", gutter, caretPad(text, pos.Column))

	return buf.String()
}

// caretPad returns whitespace that aligns a caret under the given column,
// preserving tabs so the caret lines up regardless of tab width.
func caretPad(line string, column int) string {
	var buf strings.Builder

	for i, r := range []rune(line) {
		if i >= column-1 {
			break
		}

		if r == '\t' {
			buf.WriteRune('\t')
		} else {
			buf.WriteRune(' ')
		}
	}

	return buf.String()
}
