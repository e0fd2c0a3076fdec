package lang

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer splits a [Source] into tokens on demand.
//
// A Lexer makes a single forward pass and cannot be restarted. Once the end
// of input is reached, every further call to NextToken returns the same EOF
// token. Malformed input never stops the lexer: it records a LexError and
// produces an error token covering the malformed text.
type Lexer struct {
	src     *Source
	text    string
	offset  int
	grammar Grammar
	symbols []string // punctuation and operator symbols, longest first
	errs    Diagnostics
	eof     *Token
}

// NewLexer returns a Lexer over src using the words and operators of g.
func NewLexer(src *Source, g Grammar) *Lexer {
	g = g.withDefaults()

	symbols := slices.Clone(punctuation)
	for _, sym := range g.Operators.Symbols() {
		if !isIdentifier(sym) {
			symbols = append(symbols, sym)
		}
	}

	slices.SortFunc(symbols, func(a, b string) int {
		return cmp.Or(len(b)-len(a), strings.Compare(a, b))
	})

	l := &Lexer{
		src:     src,
		text:    src.Text(),
		grammar: g,
		symbols: slices.Compact(symbols),
	}

	// Skip a leading byte order mark.
	l.offset = len(l.text) - len(strings.TrimPrefix(l.text, "\ufeff"))

	return l
}

// Tokenize lexes all of src and returns the tokens, including the final
// EOF token, along with any lex errors.
func Tokenize(src *Source, g Grammar) ([]Token, Diagnostics) {
	l := NewLexer(src, g)

	var toks []Token

	for {
		tok := l.NextToken()
		toks = append(toks, tok)

		if tok.Kind == TokenEOF {
			return toks, l.Errors()
		}
	}
}

// Errors returns the lex errors recorded so far, in source order.
func (l *Lexer) Errors() Diagnostics { return l.errs }

// NextToken returns the next token of the input.
func (l *Lexer) NextToken() Token {
	if l.eof != nil {
		return *l.eof
	}

	if start, ok := l.skipWhitespaceAndComments(); !ok {
		return l.invalid(start, "unterminated block comment")
	}

	if l.offset >= len(l.text) {
		tok := Token{Kind: TokenEOF, Pos: l.src.Position(len(l.text))}
		l.eof = &tok

		return tok
	}

	start := l.offset
	r := l.peek()

	switch {
	case isIdentifierStart(r):
		return l.lexWord(start)

	case isDigit(r):
		return l.lexNumber(start)

	case r == '"':
		return l.lexString(start)
	}

	for _, sym := range l.symbols {
		if strings.HasPrefix(l.text[start:], sym) {
			l.offset += len(sym)

			kind := TokenOperator
			if slices.Contains(punctuation, sym) {
				kind = TokenPunctuation
			}

			return l.token(kind, start, sym)
		}
	}

	l.advance()

	return l.invalid(start, fmt.Sprintf("unexpected character %q", r))
}

func (l *Lexer) token(kind TokenKind, start int, canon string) Token {
	return Token{
		Kind:   kind,
		Lexeme: l.text[start:l.offset],
		Canon:  canon,
		Pos:    l.src.Position(start),
	}
}

// invalid records a lex error at start and returns an error token
// spanning the text consumed since start.
func (l *Lexer) invalid(start int, msg string) Token {
	tok := l.token(TokenError, start, "")
	tok.Canon = tok.Lexeme

	diag := newDiagnostic(LexError, l.src, tok.Pos, msg)
	diag.Found = tok.Lexeme
	l.errs = append(l.errs, diag)

	return tok
}

func (l *Lexer) lexWord(start int) Token {
	for l.offset < len(l.text) && isIdentifierContinue(l.peek()) {
		l.advance()
	}

	word := l.text[start:l.offset]

	if canon, ok := l.grammar.Lexicon.Lookup(word); ok {
		switch {
		case l.grammar.Operators.Has(canon):
			return l.token(TokenOperator, start, canon)
		case slices.Contains(punctuation, canon):
			return l.token(TokenPunctuation, start, canon)
		}

		return l.token(TokenKeyword, start, canon)
	}

	if l.grammar.Operators.Has(word) {
		return l.token(TokenOperator, start, word)
	}

	return l.token(TokenIdentifier, start, word)
}

// lexNumber consumes the longest run that could belong to a number literal
// and then validates it as a whole, so "12ab" or "1e" yield one error
// token instead of a number followed by junk.
func (l *Lexer) lexNumber(start int) Token {
	for l.offset < len(l.text) {
		r := l.peek()

		switch {
		case isDigit(r), unicode.IsLetter(r), r == '_':
			l.advance()
		case r == '.':
			l.advance()
		case (r == '+' || r == '-') && l.afterExponent(start):
			l.advance()
		default:
			return l.finishNumber(start)
		}
	}

	return l.finishNumber(start)
}

// afterExponent reports whether the run so far is a decimal number ending
// in an exponent marker, so a following sign belongs to it.
func (l *Lexer) afterExponent(start int) bool {
	run := l.text[start:l.offset]
	if len(run) < 2 || hasRadixPrefix(run) {
		return false
	}

	last := run[len(run)-1]

	return last == 'e' || last == 'E'
}

func (l *Lexer) finishNumber(start int) Token {
	run := l.text[start:l.offset]

	if _, err := parseNumber(run); err != nil {
		return l.invalid(start, err.Error())
	}

	return l.token(TokenNumber, start, run)
}

// parseNumber converts a number literal to its value.
func parseNumber(lit string) (float64, error) {
	if hasRadixPrefix(lit) {
		base := map[byte]int{'x': 16, 'o': 8, 'b': 2}[lit[1]|0x20]

		digits := lit[2:]
		if digits == "" || strings.ContainsRune(digits, '_') {
			return 0, fmt.Errorf("malformed number %q", lit)
		}

		n, err := strconv.ParseUint(digits, base, 64)
		if err != nil {
			if isRangeError(err) {
				return 0, fmt.Errorf("number out of range %q", lit)
			}

			return 0, fmt.Errorf("malformed number %q", lit)
		}

		return float64(n), nil
	}

	if !isDecimalLiteral(lit) {
		return 0, fmt.Errorf("malformed number %q", lit)
	}

	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		if isRangeError(err) {
			return 0, fmt.Errorf("number out of range %q", lit)
		}

		return 0, fmt.Errorf("malformed number %q", lit)
	}

	return f, nil
}

func hasRadixPrefix(lit string) bool {
	if len(lit) < 2 || lit[0] != '0' {
		return false
	}

	switch lit[1] | 0x20 {
	case 'x', 'o', 'b':
		return true
	}

	return false
}

// isDecimalLiteral matches digits ("." digits)? ([eE] [+-]? digits)?.
func isDecimalLiteral(lit string) bool {
	digits := func(s string) (string, bool) {
		i := 0
		for i < len(s) && isDigit(rune(s[i])) {
			i++
		}

		return s[i:], i > 0
	}

	rest, ok := digits(lit)
	if !ok {
		return false
	}

	if strings.HasPrefix(rest, ".") {
		if rest, ok = digits(rest[1:]); !ok {
			return false
		}
	}

	if rest != "" && (rest[0] == 'e' || rest[0] == 'E') {
		rest = rest[1:]
		if rest != "" && (rest[0] == '+' || rest[0] == '-') {
			rest = rest[1:]
		}

		if rest, ok = digits(rest); !ok {
			return false
		}
	}

	return rest == ""
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)

	return ok && ne.Err == strconv.ErrRange
}

// lexString consumes a double-quoted string. An unterminated string ends at
// the end of its line.
func (l *Lexer) lexString(start int) Token {
	l.advance() // opening quote

	for l.offset < len(l.text) {
		switch l.peek() {
		case '\n':
			return l.invalid(start, "unterminated string")

		case '\\':
			l.advance()

			if l.offset < len(l.text) && l.peek() != '\n' {
				l.advance()
			}

		case '"':
			l.advance()

			if _, err := strconv.Unquote(l.text[start:l.offset]); err != nil {
				return l.invalid(start, "invalid escape sequence in string")
			}

			return l.token(TokenString, start, l.text[start:l.offset])

		default:
			l.advance()
		}
	}

	return l.invalid(start, "unterminated string")
}

func (l *Lexer) peek() rune {
	r, _ := utf8.DecodeRuneInString(l.text[l.offset:])

	return r
}

func (l *Lexer) advance() {
	_, size := utf8.DecodeRuneInString(l.text[l.offset:])
	l.offset += max(size, 1)
}

func (l *Lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.text[l.offset:], s)
}

// skipWhitespaceAndComments advances past insignificant text. It reports
// false with the comment's start offset if a block comment is unterminated,
// in which case the rest of the input has been consumed.
func (l *Lexer) skipWhitespaceAndComments() (int, bool) {
	for l.offset < len(l.text) {
		switch r := l.peek(); {
		case unicode.IsSpace(r):
			l.advance()

		case r == '#', l.hasPrefix("//"):
			for l.offset < len(l.text) && l.peek() != '\n' {
				l.advance()
			}

		case l.hasPrefix("/*"):
			start := l.offset

			end := strings.Index(l.text[start+2:], "*/")
			if end < 0 {
				l.offset = len(l.text)

				return start, false
			}

			l.offset = start + 2 + end + 2

		default:
			return l.offset, true
		}
	}

	return l.offset, true
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func isIdentifierStart(r rune) bool {
	return unicode.In(r,
		unicode.L,  // Letter
		unicode.Nl, // Letter, Number
		unicode.Other_ID_Start,
	) || r == '_'
}

func isIdentifierContinue(r rune) bool {
	return isIdentifierStart(r) || unicode.In(r,
		unicode.Mn, // Mark, Nonspacing
		unicode.Mc, // Mark, Spacing Combining
		unicode.Nd, // Number, Decimal Digit
		unicode.Pc, // Punctuation, Connector
		unicode.Other_ID_Continue,
	)
}

// isIdentifier reports whether s is a single identifier-shaped word.
func isIdentifier(s string) bool {
	for i, r := range s {
		if i == 0 && !isIdentifierStart(r) || i > 0 && !isIdentifierContinue(r) {
			return false
		}
	}

	return s != ""
}
