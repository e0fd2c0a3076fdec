package lang

import "strconv"

// TokenKind classifies a [Token].
type TokenKind uint8

// Token kinds.
const (
	TokenEOF TokenKind = iota
	TokenIdentifier
	TokenNumber
	TokenString
	TokenOperator
	TokenKeyword
	TokenPunctuation
	TokenError
)

var tokenKindName = [...]string{
	TokenEOF:         "EOF",
	TokenIdentifier:  "Identifier",
	TokenNumber:      "Number",
	TokenString:      "String",
	TokenOperator:    "Operator",
	TokenKeyword:     "Keyword",
	TokenPunctuation: "Punctuation",
	TokenError:       "Error",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindName) {
		return tokenKindName[k]
	}

	return "TokenKind(" + strconv.Itoa(int(k)) + ")"
}

// Token is a classified slice of source text.
//
// Lexeme is the text exactly as written. Canon is the canonical spelling
// used for matching: for keywords and word operators written with an alias
// (e.g. "若" for "if") Canon holds the primary spelling; otherwise it equals
// Lexeme.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Canon  string
	Pos    Position
}

// Is reports whether t has the given kind and canonical spelling.
func (t Token) Is(kind TokenKind, canon string) bool {
	return t.Kind == kind && t.Canon == canon
}

// IsKeyword reports whether t is the keyword with canonical spelling kw.
func (t Token) IsKeyword(kw string) bool { return t.Is(TokenKeyword, kw) }

// IsPunct reports whether t is the given punctuation.
func (t Token) IsPunct(p string) bool { return t.Is(TokenPunctuation, p) }

// describe renders t for "found ..." messages.
func (t Token) describe() string {
	switch t.Kind {
	case TokenEOF:
		return "end of input"
	case TokenError:
		return "invalid token " + strconv.Quote(t.Lexeme)
	case TokenIdentifier:
		return "identifier " + strconv.Quote(t.Lexeme)
	case TokenKeyword:
		return "keyword " + strconv.Quote(t.Lexeme)
	case TokenNumber, TokenString:
		return t.Kind.String() + " " + t.Lexeme
	default:
		return strconv.Quote(t.Lexeme)
	}
}

func (t Token) String() string {
	return t.Pos.String() + " " + t.Kind.String() + " " + strconv.Quote(t.Lexeme)
}
