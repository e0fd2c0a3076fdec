package repl

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/catapillar/lang"
)

// commands are the names accepted in command mode.
var commands = []string{"help", "vars", "edit", "reset", "clear", "quit"}

// isWordRune reports whether r can be part of an identifier or keyword.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) ||
		unicode.In(r, unicode.Mn, unicode.Mc, unicode.Nl)
}

// wordBounds returns the word around byte offset cursor in input and its
// byte range. The word is empty when the cursor is not touching one.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(max(cursor, 0), len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isWordRune(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if !isWordRune(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// runeOffset converts a rune index, as reported by the text input, into a
// byte offset of s.
func runeOffset(s string, runes int) int {
	for i := range s {
		if runes == 0 {
			return i
		}

		runes--
	}

	return len(s)
}

// insideString reports whether byte offset pos of input is within a string
// literal.
func insideString(input string, pos int) bool {
	in, escaped := false, false

	for _, r := range input[:min(pos, len(input))] {
		switch {
		case escaped:
			escaped = false
		case in && r == '\\':
			escaped = true
		case r == '"':
			in = !in
		}
	}

	return in
}

// candidates returns the completion candidates for mode.
func candidates(s *Session, mode Mode) []string {
	if mode == ModeCommand {
		return commands
	}

	names := s.Names()

	if s.in != nil && s.in.Grammar().Lexicon != nil {
		names = append(names, s.in.Grammar().Lexicon.Words()...)
	}

	return dedupe(names)
}

// match ranks candidates against word, best first. An empty word matches
// nothing so the hint line stays visible.
func match(word string, candidates []string) fuzzy.Matches {
	if word == "" || len(candidates) == 0 {
		return nil
	}

	return fuzzy.Find(word, candidates)
}

// callable reports whether name is bound to a function in s.
func callable(s *Session, name string) bool {
	v, ok := s.env.Lookup(name)
	if !ok && s.in != nil && s.in.Registry() != nil {
		_, ok = s.in.Registry().Resolve(name)

		return ok
	}

	if !ok {
		return false
	}

	k := v.Kind()

	return k == lang.KindFunction || k == lang.KindNative
}

// renderCandidates renders matches on one line no wider than width. The
// candidate at selected is highlighted; -1 selects none.
func renderCandidates(
	s *Session,
	matches fuzzy.Matches,
	selected int,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	ellipsis := hintStyle.Render("...")

	var (
		b    strings.Builder
		used int
	)

	for i, m := range matches {
		item := renderCandidate(m, i == selected, callable(s, m.Str))

		w := lipgloss.Width(item)
		if i > 0 {
			w += len(sep)
		}

		if i > 0 && used+w+lipgloss.Width(ellipsis) > width {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(item)

		used += w
	}

	return b.String()
}

// renderCandidate highlights the matched runes of m. Functions get a "()"
// suffix that is not inserted on completion.
func renderCandidate(m fuzzy.Match, selected, function bool) string {
	base, mark := suggestionStyle, matchStyle
	if selected {
		base, mark = selectedStyle, selectedMatchStyle
	}

	hit := make(map[int]bool, len(m.MatchedIndexes))
	for _, i := range m.MatchedIndexes {
		hit[i] = true
	}

	var b strings.Builder

	for i, r := range m.Str {
		if hit[i] {
			b.WriteString(mark.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	if function {
		b.WriteString(base.Render("()"))
	}

	return b.String()
}
