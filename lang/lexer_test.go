package lang

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

type tokenCase struct {
	kind  TokenKind
	canon string
}

func lexAll(t *testing.T, g Grammar, input string) ([]Token, Diagnostics) {
	t.Helper()

	return Tokenize(NewSource("test", input), g)
}

func checkTokens(t *testing.T, got []Token, want []tokenCase) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(got), got)
	}

	for i, w := range want {
		if got[i].Kind != w.kind || got[i].Canon != w.canon {
			t.Errorf("token %d: expected %s %q, got %s %q",
				i, w.kind, w.canon, got[i].Kind, got[i].Canon)
		}
	}
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []tokenCase
	}{
		{
			name:  "let statement",
			input: "let x = 1 + 2.5;",
			want: []tokenCase{
				{TokenKeyword, "let"},
				{TokenIdentifier, "x"},
				{TokenPunctuation, "="},
				{TokenNumber, "1"},
				{TokenOperator, "+"},
				{TokenNumber, "2.5"},
				{TokenPunctuation, ";"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "longest match",
			input: "a<=b==c!=d",
			want: []tokenCase{
				{TokenIdentifier, "a"},
				{TokenOperator, "<="},
				{TokenIdentifier, "b"},
				{TokenOperator, "=="},
				{TokenIdentifier, "c"},
				{TokenOperator, "!="},
				{TokenIdentifier, "d"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "prefix operators",
			input: "!x - -y not z",
			want: []tokenCase{
				{TokenOperator, "!"},
				{TokenIdentifier, "x"},
				{TokenOperator, "-"},
				{TokenOperator, "-"},
				{TokenIdentifier, "y"},
				{TokenOperator, "not"},
				{TokenIdentifier, "z"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "chinese aliases",
			input: "若 真 且 假 或 x",
			want: []tokenCase{
				{TokenKeyword, "if"},
				{TokenKeyword, "true"},
				{TokenOperator, "and"},
				{TokenKeyword, "false"},
				{TokenOperator, "or"},
				{TokenIdentifier, "x"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "comments",
			input: "# hash\n1 // line\n/* block\n comment */ 2",
			want: []tokenCase{
				{TokenNumber, "1"},
				{TokenNumber, "2"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "radix numbers",
			input: "0x1F 0o17 0b101 1e3 1.5e-2",
			want: []tokenCase{
				{TokenNumber, "0x1F"},
				{TokenNumber, "0o17"},
				{TokenNumber, "0b101"},
				{TokenNumber, "1e3"},
				{TokenNumber, "1.5e-2"},
				{TokenEOF, ""},
			},
		},
		{
			name:  "strings",
			input: `"a\nb" "ü"`,
			want: []tokenCase{
				{TokenString, `"a\nb"`},
				{TokenString, `"ü"`},
				{TokenEOF, ""},
			},
		},
		{
			name:  "punctuation",
			input: "f(a, [b], {c: d});",
			want: []tokenCase{
				{TokenIdentifier, "f"},
				{TokenPunctuation, "("},
				{TokenIdentifier, "a"},
				{TokenPunctuation, ","},
				{TokenPunctuation, "["},
				{TokenIdentifier, "b"},
				{TokenPunctuation, "]"},
				{TokenPunctuation, ","},
				{TokenPunctuation, "{"},
				{TokenIdentifier, "c"},
				{TokenPunctuation, ":"},
				{TokenIdentifier, "d"},
				{TokenPunctuation, "}"},
				{TokenPunctuation, ")"},
				{TokenPunctuation, ";"},
				{TokenEOF, ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, diags := lexAll(t, DefaultGrammar(), tt.input)
			if len(diags) != 0 {
				t.Fatalf("expected no lex errors, got %v", diags)
			}

			checkTokens(t, toks, tt.want)
		})
	}
}

func TestLexer_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		lexeme  string
		message string
	}{
		{name: "trailing dot", input: "1.", lexeme: "1.", message: "malformed number"},
		{name: "bare exponent", input: "1e", lexeme: "1e", message: "malformed number"},
		{name: "empty hex", input: "0x", lexeme: "0x", message: "malformed number"},
		{name: "letters", input: "12ab", lexeme: "12ab", message: "malformed number"},
		{name: "underscore", input: "0x_1", lexeme: "0x_1", message: "malformed number"},
		{name: "overflow", input: "1e400", lexeme: "1e400", message: "out of range"},
		{name: "bad digit", input: "0b102", lexeme: "0b102", message: "malformed number"},
		{name: "bad escape", input: `"a\qb"`, lexeme: `"a\qb"`, message: "invalid escape"},
		{name: "unterminated", input: `"open`, lexeme: `"open`, message: "unterminated string"},
		{name: "unknown character", input: "@", lexeme: "@", message: "unexpected character"},
		{name: "unknown operator character", input: "$", lexeme: "$", message: "unexpected character"},
		{name: "open comment", input: "/* never closed", lexeme: "/* never closed", message: "unterminated block comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, diags := lexAll(t, DefaultGrammar(), tt.input)

			checkTokens(t, toks, []tokenCase{
				{TokenError, tt.lexeme},
				{TokenEOF, ""},
			})

			if len(diags) != 1 {
				t.Fatalf("expected 1 lex error, got %d: %v", len(diags), diags)
			}

			d := diags[0]
			if d.Category != LexError {
				t.Errorf("expected category %s, got %s", LexError, d.Category)
			}

			if !strings.Contains(d.Message, tt.message) {
				t.Errorf("expected message containing %q, got %q", tt.message, d.Message)
			}

			if d.Line() != 1 || d.Column() != 1 {
				t.Errorf("expected position 1:1, got %s", d.Pos)
			}
		})
	}
}

func TestLexer_UnterminatedStringStopsAtNewline(t *testing.T) {
	toks, diags := lexAll(t, DefaultGrammar(), "\"open\nx")

	checkTokens(t, toks, []tokenCase{
		{TokenError, `"open`},
		{TokenIdentifier, "x"},
		{TokenEOF, ""},
	})

	if len(diags) != 1 {
		t.Errorf("expected 1 lex error, got %d", len(diags))
	}
}

func TestLexer_EOFIdempotent(t *testing.T) {
	l := NewLexer(NewSource("test", "x"), DefaultGrammar())

	if tok := l.NextToken(); tok.Kind != TokenIdentifier {
		t.Fatalf("expected identifier, got %s", tok)
	}

	first := l.NextToken()
	if first.Kind != TokenEOF {
		t.Fatalf("expected EOF, got %s", first)
	}

	for range 3 {
		if tok := l.NextToken(); tok != first {
			t.Errorf("expected %s, got %s", first, tok)
		}
	}
}

func TestLexer_Positions(t *testing.T) {
	toks, _ := lexAll(t, DefaultGrammar(), "let\n  x = \"π\" + y")

	want := []struct {
		lexeme string
		line   int
		column int
	}{
		{"let", 1, 1},
		{"x", 2, 3},
		{"=", 2, 5},
		{`"π"`, 2, 7},
		{"+", 2, 11},
		{"y", 2, 13},
	}

	for i, w := range want {
		tok := toks[i]
		if tok.Lexeme != w.lexeme || tok.Pos.Line != w.line || tok.Pos.Column != w.column {
			t.Errorf("token %d: expected %q at %d:%d, got %q at %s",
				i, w.lexeme, w.line, w.column, tok.Lexeme, tok.Pos)
		}
	}
}

func TestLexer_HostOperators(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("**", 7, Right, nil); err != nil {
		t.Fatalf("define **: %v", err)
	}

	if err := g.Operators.Define("xor", 2, Left, nil); err != nil {
		t.Fatalf("define xor: %v", err)
	}

	toks, diags := lexAll(t, g, "2 ** 3 xor 4 * 5")
	if len(diags) != 0 {
		t.Fatalf("expected no lex errors, got %v", diags)
	}

	checkTokens(t, toks, []tokenCase{
		{TokenNumber, "2"},
		{TokenOperator, "**"},
		{TokenNumber, "3"},
		{TokenOperator, "xor"},
		{TokenNumber, "4"},
		{TokenOperator, "*"},
		{TokenNumber, "5"},
		{TokenEOF, ""},
	})
}

func TestLexer_Normalization(t *testing.T) {
	composed, _ := lexAll(t, DefaultGrammar(), "café")
	decomposed, _ := lexAll(t, DefaultGrammar(), "café")

	if composed[0].Lexeme != decomposed[0].Lexeme {
		t.Errorf("expected %q, got %q", composed[0].Lexeme, decomposed[0].Lexeme)
	}
}

func TestLexer_WordSymbols(t *testing.T) {
	toks, diags := lexAll(t, DefaultGrammar(), "add 减 end 结束 pass")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}

	tests := []struct {
		kind  TokenKind
		canon string
	}{
		{TokenOperator, "+"},
		{TokenOperator, "-"},
		{TokenPunctuation, "}"},
		{TokenPunctuation, "}"},
		{TokenKeyword, KwPass},
	}

	for i, tt := range tests {
		if !toks[i].Is(tt.kind, tt.canon) {
			t.Errorf("token %d: expected %s %q, got %s", i, tt.kind, tt.canon, toks[i])
		}
	}

	if err := DefaultOperators().Define("add", 5, Left, nil); !errors.Is(err, ErrInvalidOperator) {
		t.Errorf("expected %v, got %v", ErrInvalidOperator, err)
	}
}

func TestLexicon_Alias(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Lexicon.Alias("si", KwIf); err != nil {
		t.Fatalf("alias: %v", err)
	}

	toks, _ := lexAll(t, g, "si")
	if !toks[0].IsKeyword(KwIf) {
		t.Errorf("expected keyword if, got %s", toks[0])
	}

	tests := []struct {
		name  string
		word  string
		canon string
	}{
		{name: "unknown keyword", word: "foo", canon: "unless"},
		{name: "not an identifier", word: "a-b", canon: KwIf},
		{name: "taken", word: "若", canon: KwWhile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Lexicon.Alias(tt.word, tt.canon)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}

			if !errors.Is(err, ErrInvalidAlias) {
				t.Errorf("expected %v, got %v", ErrInvalidAlias, err)
			}
		})
	}
}

func FuzzLexer(f *testing.F) {
	f.Add("let x = 1;")
	f.Add("0x1F 1.5e-3 1. 1e 12ab")
	f.Add(`"string" "bad \q" "open`)
	f.Add("// comment\n# hash\n/* block */")
	f.Add("/* open")
	f.Add("若 x 且 y { 回 真 }")
	f.Add("@$&|^~")

	f.Fuzz(func(t *testing.T, input string) {
		if !utf8.ValidString(input) {
			t.Skip("invalid UTF-8")
		}

		src := NewSource("fuzz", input)
		l := NewLexer(src, DefaultGrammar())

		var (
			last    = -1
			invalid = 0
		)

		// Every token consumes input, so the lexer must finish within
		// len+1 calls.
		for i := 0; ; i++ {
			if i > src.Len()+1 {
				t.Fatalf("lexer did not terminate on %q", input)
			}

			tok := l.NextToken()
			if tok.Pos.Offset < last {
				t.Fatalf("token %s precedes previous offset %d", tok, last)
			}

			last = tok.Pos.Offset

			if tok.Kind == TokenError {
				invalid++
			}

			if tok.Kind == TokenEOF {
				break
			}
		}

		if got := len(l.Errors()); got != invalid {
			t.Errorf("expected %d lex errors, got %d", invalid, got)
		}
	})
}
