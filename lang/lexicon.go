package lang

import (
	"log/slog"
	"maps"
	"slices"
)

// Canonical keyword spellings.
const (
	KwLet      = "let"
	KwFunction = "function"
	KwReturn   = "return"
	KwIf       = "if"
	KwElif     = "elif"
	KwElse     = "else"
	KwWhile    = "while"
	KwFor      = "for"
	KwIn       = "in"
	KwBreak    = "break"
	KwContinue = "continue"
	KwTrue     = "true"
	KwFalse    = "false"
	KwNull     = "null"
	KwAnd      = "and"
	KwOr       = "or"
	KwNot      = "not"
	KwCall     = "call"
	KwPass     = "pass"
)

// defaultSpellings maps each canonical keyword to its aliases. Operator and
// punctuation entries give word spellings to a symbol.
var defaultSpellings = map[string][]string{
	KwLet:      {"set", "置"},
	KwFunction: {"fn", "def", "定"},
	KwReturn:   {"回"},
	KwIf:       {"若"},
	KwElif:     {"又若"},
	KwElse:     {"否则"},
	KwWhile:    {"当"},
	KwFor:      {"扭扭"},
	KwIn:       nil,
	KwBreak:    {"断"},
	KwContinue: {"续"},
	KwTrue:     {"真"},
	KwFalse:    {"假"},
	KwNull:     nil,
	KwAnd:      {"且"},
	KwOr:       {"或"},
	KwNot:      nil,
	KwCall:     {"调"},
	KwPass:     {"空"},

	"+": {"add", "加"},
	"-": {"sub", "减"},
	"*": {"mul", "乘"},
	"/": {"div", "除"},
	"}": {"end", "结束", "完了", "终"},
}

// defaultLexicon holds the built-in spellings for checks that do not see a
// grammar.
var defaultLexicon = DefaultLexicon()

// Lexicon maps the words of the language to their canonical keyword.
type Lexicon struct {
	words map[string]string // spelling -> canonical
}

// DefaultLexicon returns a Lexicon with every canonical keyword and its
// built-in English and Chinese aliases.
func DefaultLexicon() *Lexicon {
	l := &Lexicon{words: make(map[string]string, 2*len(defaultSpellings))}

	for canon, aliases := range defaultSpellings {
		if isIdentifier(canon) {
			l.words[canon] = canon
		}

		for _, alias := range aliases {
			l.words[alias] = canon
		}
	}

	return l
}

// Clone returns an independent copy of l.
func (l *Lexicon) Clone() *Lexicon {
	return &Lexicon{words: maps.Clone(l.words)}
}

// Alias adds word as an alternative spelling of the canonical keyword canon.
// The word must be shaped like an identifier and must not already spell a
// different keyword.
func (l *Lexicon) Alias(word, canon string) error {
	if _, ok := defaultSpellings[canon]; !ok {
		return ErrInvalidAlias.With(
			slog.String("word", word),
			slog.String("keyword", canon),
			slog.String("reason", "unknown keyword"),
		)
	}

	if !isIdentifier(word) {
		return ErrInvalidAlias.With(
			slog.String("word", word),
			slog.String("reason", "not an identifier"),
		)
	}

	if prev, ok := l.words[word]; ok && prev != canon {
		return ErrInvalidAlias.With(
			slog.String("word", word),
			slog.String("keyword", prev),
			slog.String("reason", "already spells another keyword"),
		)
	}

	l.words[word] = canon

	return nil
}

// Lookup returns the canonical keyword spelled by word.
func (l *Lexicon) Lookup(word string) (string, bool) {
	canon, ok := l.words[word]

	return canon, ok
}

// Spellings returns every spelling of canon in sorted order.
func (l *Lexicon) Spellings(canon string) []string {
	var out []string

	for word, c := range l.words {
		if c == canon {
			out = append(out, word)
		}
	}

	slices.Sort(out)

	return out
}

// Words returns every spelling known to l in sorted order.
func (l *Lexicon) Words() []string {
	return slices.Sorted(maps.Keys(l.words))
}

// isReserved reports whether word is a built-in spelling of a keyword,
// operator or delimiter.
func isReserved(word string) bool {
	_, ok := defaultLexicon.Lookup(word)

	return ok
}

// isStatementKeyword reports whether canon begins a statement, making it a
// synchronization point for error recovery.
func isStatementKeyword(canon string) bool {
	switch canon {
	case KwLet, KwFunction, KwReturn, KwIf, KwWhile, KwFor, KwBreak,
		KwContinue, KwCall, KwPass:
		return true
	}

	return false
}
