package lang

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Assoc is the associativity of a binary operator.
type Assoc uint8

// Associativities.
const (
	Left Assoc = iota
	Right
	NonAssoc
)

func (a Assoc) String() string {
	switch a {
	case Left:
		return "left"
	case Right:
		return "right"
	case NonAssoc:
		return "none"
	default:
		return "invalid"
	}
}

// BinaryFunc evaluates a binary operator. Returning an error aborts the run;
// a [*Diagnostic] is reported as is, any other error as a RuntimeError.
type BinaryFunc func(left, right Value) (Value, error)

// UnaryFunc evaluates a prefix operator.
type UnaryFunc func(operand Value) (Value, error)

// BinaryOperator is an entry of an [OperatorTable].
type BinaryOperator struct {
	Symbol     string
	Precedence int
	Assoc      Assoc
	Apply      BinaryFunc
}

// UnaryOperator is a prefix entry of an [OperatorTable].
type UnaryOperator struct {
	Symbol string
	Apply  UnaryFunc
}

// OperatorTable drives operator lexing, precedence climbing, and operator
// evaluation. Higher Precedence binds tighter.
//
// A table must not be modified while a program it belongs to is being
// lexed or parsed.
type OperatorTable struct {
	binary map[string]*BinaryOperator
	unary  map[string]*UnaryOperator
}

// NewOperatorTable returns an empty table.
func NewOperatorTable() *OperatorTable {
	return &OperatorTable{
		binary: make(map[string]*BinaryOperator),
		unary:  make(map[string]*UnaryOperator),
	}
}

// DefaultOperators returns the standard operator table:
//
//	or          1  left
//	and         2  left
//	== !=       3  left
//	< <= > >=   4  left
//	+ -         5  left
//	* / %       6  left
//
// with prefix operators "-", "not", and "!".
func DefaultOperators() *OperatorTable {
	t := NewOperatorTable()

	for _, op := range standardBinary {
		t.binary[op.Symbol] = &BinaryOperator{
			Symbol:     op.Symbol,
			Precedence: op.Precedence,
			Assoc:      Left,
			Apply:      op.Apply,
		}
	}

	for _, op := range standardUnary {
		t.unary[op.Symbol] = &UnaryOperator{Symbol: op.Symbol, Apply: op.Apply}
	}

	return t
}

// Clone returns an independent copy of t.
func (t *OperatorTable) Clone() *OperatorTable {
	c := NewOperatorTable()

	for sym, op := range t.binary {
		dup := *op
		c.binary[sym] = &dup
	}

	for sym, op := range t.unary {
		dup := *op
		c.unary[sym] = &dup
	}

	return c
}

// Define adds or replaces the binary operator symbol.
//
// A symbol is either a word shaped like an identifier ("xor") or a run of
// operator characters ("**", "<>"). It must not collide with punctuation.
// Redefining a standard operator with a nil apply keeps its standard
// implementation.
func (t *OperatorTable) Define(
	symbol string,
	precedence int,
	assoc Assoc,
	apply BinaryFunc,
) error {
	if err := validSymbol(symbol); err != nil {
		return err
	}

	if precedence < 1 {
		return ErrInvalidOperator.With(
			slog.String("symbol", symbol),
			slog.Int("precedence", precedence),
			slog.String("reason", "precedence must be positive"),
		)
	}

	if assoc > NonAssoc {
		return ErrInvalidOperator.With(
			slog.String("symbol", symbol),
			slog.String("reason", "invalid associativity"),
		)
	}

	if apply == nil {
		if prev, ok := t.binary[symbol]; ok {
			apply = prev.Apply
		}
	}

	t.binary[symbol] = &BinaryOperator{
		Symbol:     symbol,
		Precedence: precedence,
		Assoc:      assoc,
		Apply:      apply,
	}

	return nil
}

// DefineUnary adds or replaces a prefix operator.
func (t *OperatorTable) DefineUnary(symbol string, apply UnaryFunc) error {
	if err := validSymbol(symbol); err != nil {
		return err
	}

	if apply == nil {
		prev, ok := t.unary[symbol]
		if !ok {
			return ErrInvalidOperator.With(
				slog.String("symbol", symbol),
				slog.String("reason", "no implementation"),
			)
		}

		apply = prev.Apply
	}

	t.unary[symbol] = &UnaryOperator{Symbol: symbol, Apply: apply}

	return nil
}

// Binary returns the binary operator spelled symbol.
func (t *OperatorTable) Binary(symbol string) (*BinaryOperator, bool) {
	op, ok := t.binary[symbol]

	return op, ok
}

// Unary returns the prefix operator spelled symbol.
func (t *OperatorTable) Unary(symbol string) (*UnaryOperator, bool) {
	op, ok := t.unary[symbol]

	return op, ok
}

// Has reports whether symbol is a binary or prefix operator.
func (t *OperatorTable) Has(symbol string) bool {
	_, bin := t.binary[symbol]
	_, un := t.unary[symbol]

	return bin || un
}

// Symbols returns every operator symbol in sorted order.
func (t *OperatorTable) Symbols() []string {
	set := maps.Clone(t.binary)
	for sym := range t.unary {
		if _, ok := set[sym]; !ok {
			set[sym] = nil
		}
	}

	return slices.Sorted(maps.Keys(set))
}

// Punctuation is reserved by the grammar and cannot be used as an operator.
var punctuation = []string{"(", ")", "{", "}", "[", "]", ",", ";", ":", "="}

const operatorChars = "+-*/%<>=!&|^~?@$."

func isOperatorChar(r rune) bool {
	return r < 0x80 && strings.ContainsRune(operatorChars, r)
}

func isWordOperator(canon string) bool {
	return canon == KwAnd || canon == KwOr || canon == KwNot
}

func validSymbol(symbol string) error {
	reason := ""

	switch {
	case symbol == "":
		reason = "empty symbol"
	case slices.Contains(punctuation, symbol):
		reason = "symbol is punctuation"
	case strings.HasPrefix(symbol, "//"), strings.HasPrefix(symbol, "/*"):
		reason = "symbol starts a comment"
	case isIdentifier(symbol):
		if canon, kw := defaultLexicon.Lookup(symbol); kw && !isWordOperator(canon) {
			reason = "symbol is a keyword"
		}
	case strings.IndexFunc(symbol, func(r rune) bool {
		return !isOperatorChar(r)
	}) < 0:
	default:
		reason = "symbol mixes word and operator characters"
	}

	if reason == "" {
		return nil
	}

	return ErrInvalidOperator.With(
		slog.String("symbol", symbol),
		slog.String("reason", reason),
	)
}

// Grammar bundles the configurable parts of the language.
type Grammar struct {
	Operators *OperatorTable
	Lexicon   *Lexicon
}

// DefaultGrammar returns a fresh Grammar with the standard operators and
// lexicon. Each call returns independent tables.
func DefaultGrammar() Grammar {
	return Grammar{Operators: DefaultOperators(), Lexicon: DefaultLexicon()}
}

func (g Grammar) withDefaults() Grammar {
	if g.Operators == nil {
		g.Operators = DefaultOperators()
	}

	if g.Lexicon == nil {
		g.Lexicon = DefaultLexicon()
	}

	return g
}
