package lang

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser builds a [Program] from the tokens of a [Lexer].
//
// The parser recovers from malformed input in panic mode: the first error
// in a statement is recorded, further errors are suppressed, and tokens are
// skipped up to the next synchronization point (a consumed ";", a "}" or
// statement keyword at the nesting depth where the error occurred, or the
// end of input). The statement is replaced by a [BadStmt] and parsing
// continues, so one malformed statement yields exactly one ParseError.
type Parser struct {
	src     *Source
	lex     *Lexer
	grammar Grammar

	tok    Token  // current token
	peeked *Token // one token beyond tok, when looked at

	diags     Diagnostics
	panicking bool

	funcDepth int
	loopDepth int
}

// NewParser returns a Parser over src using grammar g.
func NewParser(src *Source, g Grammar) *Parser {
	g = g.withDefaults()

	p := &Parser{src: src, lex: NewLexer(src, g), grammar: g}
	p.next()

	return p
}

// Parse parses src with the default grammar.
func Parse(src *Source) (*Program, Diagnostics) {
	return NewParser(src, DefaultGrammar()).ParseProgram()
}

// ParseString parses text with the default grammar.
func ParseString(name, text string) (*Program, Diagnostics) {
	return Parse(NewSource(name, text))
}

// ParseProgram parses the entire input. The returned Program is always
// non-nil; if the returned diagnostics are non-empty, the Program contains
// placeholder nodes and cannot be evaluated.
func (p *Parser) ParseProgram() (*Program, Diagnostics) {
	prog := &Program{
		Source: p.src,
		Stmts:  p.parseStmtList(false),
		gram:   p.grammar,
	}

	diags := make(Diagnostics, 0, len(p.lex.Errors())+len(p.diags))
	diags = append(diags, p.lex.Errors()...)
	diags = append(diags, p.diags...)
	sortDiagnostics(diags)

	prog.diags = diags

	return prog, diags
}

// ---------------------------------------------------------------------------
// Token handling

func (p *Parser) next() {
	if p.peeked != nil {
		p.tok, p.peeked = *p.peeked, nil

		return
	}

	p.tok = p.lex.NextToken()
}

func (p *Parser) peek() Token {
	if p.peeked == nil {
		tok := p.lex.NextToken()
		p.peeked = &tok
	}

	return *p.peeked
}

func (p *Parser) atEOF() bool { return p.tok.Kind == TokenEOF }

// errorf records a parse error at pos unless the parser is already
// recovering from one, then enters panic mode.
func (p *Parser) errorf(pos Position, expected []string, format string, args ...any) {
	if p.panicking {
		return
	}

	p.panicking = true

	diag := newDiagnostic(ParseError, p.src, pos, fmt.Sprintf(format, args...))
	diag.Expected = expected
	diag.Found = p.tok.Lexeme
	p.diags = append(p.diags, diag)
}

// report records a static error that does not disturb parsing.
func (p *Parser) report(pos Position, format string, args ...any) {
	if p.panicking {
		return
	}

	p.diags = append(p.diags,
		newDiagnostic(ParseError, p.src, pos, fmt.Sprintf(format, args...)))
}

// fail reports that the current token is not one of expected. An error
// token has already been reported by the lexer, so it only starts panic
// mode.
func (p *Parser) fail(expected ...string) {
	if p.tok.Kind == TokenError {
		p.panicking = true

		return
	}

	quoted := make([]string, len(expected))
	for i, e := range expected {
		quoted[i] = quoteExpected(e)
	}

	p.errorf(p.tok.Pos, expected, "expected %s, found %s",
		strings.Join(quoted, " or "), p.tok.describe())
}

// quoteExpected quotes literal token spellings but not the names of token
// classes such as "expression".
func quoteExpected(e string) string {
	switch e {
	case "expression", "identifier", "map key":
		return e
	}

	return strconv.Quote(e)
}

func (p *Parser) expectPunct(s string) bool {
	if p.tok.IsPunct(s) {
		p.next()

		return true
	}

	p.fail(s)

	return false
}

func (p *Parser) expectIdent() (*Identifier, bool) {
	if p.tok.Kind != TokenIdentifier {
		p.fail("identifier")

		return nil, false
	}

	id := &Identifier{NamePos: p.tok.Pos, Name: p.tok.Lexeme}
	p.next()

	return id, true
}

// expectTerm consumes a statement terminator, which may be omitted before
// "}" or the end of input.
func (p *Parser) expectTerm() {
	switch {
	case p.tok.IsPunct(";"):
		p.next()
	case p.tok.IsPunct("}"), p.atEOF():
	default:
		p.fail(";")
	}
}

// sync skips tokens to the next synchronization point. Inside a block a
// "}" at the starting depth ends the skip; at top level it is skipped.
func (p *Parser) sync(inBlock bool) {
	depth := 0

	for !p.atEOF() {
		switch {
		case p.tok.IsPunct(";") && depth == 0:
			p.next()

			return

		case p.tok.IsPunct("{"):
			depth++

		case p.tok.IsPunct("}"):
			if depth == 0 && inBlock {
				return
			}

			depth = max(0, depth-1)

		case p.tok.Kind == TokenKeyword && depth == 0 &&
			isStatementKeyword(p.tok.Canon):
			return
		}

		p.next()
	}
}

// ---------------------------------------------------------------------------
// Statements

func (p *Parser) parseStmtList(inBlock bool) []Stmt {
	var list []Stmt

	for !p.atEOF() {
		if p.tok.IsPunct("}") {
			if inBlock {
				break
			}

			p.errorf(p.tok.Pos, nil, "unexpected \"}\"")
			p.next()

			p.panicking = false

			continue
		}

		start := p.tok

		s := p.parseStmt()
		if p.panicking {
			p.sync(inBlock)

			s = &BadStmt{From: start.Pos, To: p.tok.Pos}
			p.panicking = false
		}

		if s != nil {
			list = append(list, s)
		}

		// Guarantee progress on input no rule consumed.
		if p.tok == start && !p.atEOF() && !(inBlock && p.tok.IsPunct("}")) {
			p.next()
		}
	}

	return list
}

func (p *Parser) parseStmt() Stmt {
	if p.tok.IsPunct(";") {
		p.next()

		return nil
	}

	if p.tok.IsPunct("{") {
		return p.parseBlock()
	}

	if p.tok.Kind == TokenKeyword {
		switch p.tok.Canon {
		case KwLet:
			return p.parseLet()
		case KwFunction:
			if p.peek().Kind == TokenIdentifier {
				return p.parseFunctionDef()
			}
		case KwReturn:
			return p.parseReturn()
		case KwBreak, KwContinue:
			return p.parseJump()
		case KwIf:
			return p.parseConditional()
		case KwWhile:
			return p.parseWhile()
		case KwFor:
			return p.parseFor()
		case KwPass:
			p.next()
			p.expectTerm()

			return nil
		case KwCall:
			return p.parseCallStmt()
		}
	}

	x := p.parseExpr()
	if p.panicking {
		return nil
	}

	p.expectTerm()

	return &ExprStmt{X: x}
}

// parseCallStmt parses "call f(args)", an expression statement that must be
// a call.
func (p *Parser) parseCallStmt() Stmt {
	pos := p.tok.Pos
	p.next()

	x := p.parseExpr()
	if p.panicking {
		return nil
	}

	if _, ok := x.(*Call); !ok {
		p.report(pos, "%s must be followed by a function call", KwCall)
	}

	p.expectTerm()

	return &ExprStmt{X: x}
}

func (p *Parser) parseBlock() *Block {
	b := &Block{Lbrace: p.tok.Pos}

	if !p.expectPunct("{") {
		return b
	}

	b.Stmts = p.parseStmtList(true)

	if !p.tok.IsPunct("}") {
		p.fail("}")

		return b
	}

	p.next()

	return b
}

func (p *Parser) parseLet() Stmt {
	s := &LetDecl{Let: p.tok.Pos}
	p.next()

	name, ok := p.expectIdent()
	if !ok {
		return nil
	}

	s.Name = name

	if p.tok.IsPunct("=") {
		p.next()

		if s.Value = p.parseExpr(); p.panicking {
			return nil
		}
	}

	p.expectTerm()

	return s
}

func (p *Parser) parseFunctionDef() Stmt {
	s := &FunctionDef{Func: p.tok.Pos}
	p.next()

	name, ok := p.expectIdent()
	if !ok {
		return nil
	}

	s.Name = name

	if s.Params, ok = p.parseParams(); !ok {
		return nil
	}

	if s.Body = p.parseFunctionBody(); p.panicking {
		return nil
	}

	return s
}

func (p *Parser) parseParams() ([]*Identifier, bool) {
	if !p.expectPunct("(") {
		return nil, false
	}

	var (
		params []*Identifier
		seen   = map[string]bool{}
	)

	for !p.tok.IsPunct(")") {
		id, ok := p.expectIdent()
		if !ok {
			return nil, false
		}

		if seen[id.Name] {
			p.report(id.NamePos, "duplicate parameter %q", id.Name)
		}

		seen[id.Name] = true
		params = append(params, id)

		if !p.tok.IsPunct(",") {
			break
		}

		p.next()
	}

	return params, p.expectPunct(")")
}

// parseFunctionBody parses a function body, in which return is allowed and
// break and continue refer to loops of the body only.
func (p *Parser) parseFunctionBody() *Block {
	loops := p.loopDepth
	p.funcDepth++
	p.loopDepth = 0

	defer func() {
		p.funcDepth--
		p.loopDepth = loops
	}()

	return p.parseBlock()
}

func (p *Parser) parseReturn() Stmt {
	s := &Return{Ret: p.tok.Pos}
	p.next()

	if p.funcDepth == 0 {
		p.report(s.Ret, "return outside function")
	}

	if !p.tok.IsPunct(";") && !p.tok.IsPunct("}") && !p.atEOF() {
		if s.Value = p.parseExpr(); p.panicking {
			return nil
		}
	}

	p.expectTerm()

	return s
}

func (p *Parser) parseJump() Stmt {
	pos, kw := p.tok.Pos, p.tok.Canon
	p.next()

	if p.loopDepth == 0 {
		p.report(pos, "%s outside loop", kw)
	}

	p.expectTerm()

	if kw == KwBreak {
		return &Break{At: pos}
	}

	return &Continue{At: pos}
}

func (p *Parser) parseConditional() Stmt {
	s := &Conditional{If: p.tok.Pos}
	p.next()

	if s.Cond = p.parseExpr(); p.panicking {
		return nil
	}

	if s.Then = p.parseBlock(); p.panicking {
		return nil
	}

	switch {
	case p.tok.IsKeyword(KwElif):
		s.Else = p.parseConditional()

	case p.tok.IsKeyword(KwElse):
		p.next()

		if p.tok.IsKeyword(KwIf) {
			s.Else = p.parseConditional()
		} else {
			s.Else = p.parseBlock()
		}
	}

	if p.panicking {
		return nil
	}

	return s
}

func (p *Parser) parseLoopBody() *Block {
	p.loopDepth++
	defer func() { p.loopDepth-- }()

	return p.parseBlock()
}

func (p *Parser) parseWhile() Stmt {
	s := &WhileLoop{While: p.tok.Pos}
	p.next()

	if s.Cond = p.parseExpr(); p.panicking {
		return nil
	}

	if s.Body = p.parseLoopBody(); p.panicking {
		return nil
	}

	return s
}

func (p *Parser) parseFor() Stmt {
	s := &ForLoop{For: p.tok.Pos}
	p.next()

	v, ok := p.expectIdent()
	if !ok {
		return nil
	}

	s.Var = v

	if !p.tok.IsKeyword(KwIn) {
		p.fail(KwIn)

		return nil
	}

	p.next()

	if s.Iter = p.parseExpr(); p.panicking {
		return nil
	}

	if s.Body = p.parseLoopBody(); p.panicking {
		return nil
	}

	return s
}

// ---------------------------------------------------------------------------
// Expressions

func (p *Parser) parseExpr() Expr { return p.parseAssignment() }

func (p *Parser) parseAssignment() Expr {
	lhs := p.parseBinary(1)

	if !p.tok.IsPunct("=") || p.panicking {
		return lhs
	}

	pos := p.tok.Pos
	p.next()

	rhs := p.parseAssignment()

	target, ok := lhs.(*Identifier)
	if !ok {
		p.report(pos, "invalid assignment target")

		return &BadExpr{From: lhs.Pos()}
	}

	return &Assignment{Target: target, Value: rhs}
}

// binaryOp returns the operator-table entry for the current token, if it
// is a binary operator.
func (p *Parser) binaryOp() (*BinaryOperator, bool) {
	if p.tok.Kind != TokenOperator {
		return nil, false
	}

	return p.grammar.Operators.Binary(p.tok.Canon)
}

// parseBinary parses a chain of binary operators binding at least as
// tightly as minPrec.
func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()

	for !p.panicking {
		op, ok := p.binaryOp()
		if !ok || op.Precedence < minPrec {
			break
		}

		opPos := p.tok.Pos
		p.next()

		nextMin := op.Precedence + 1
		if op.Assoc == Right {
			nextMin = op.Precedence
		}

		right := p.parseBinary(nextMin)
		left = &BinaryOp{OpPos: opPos, Op: op.Symbol, Left: left, Right: right}

		if op.Assoc == NonAssoc {
			if next, ok := p.binaryOp(); ok && next.Precedence == op.Precedence {
				p.report(p.tok.Pos,
					"operator %q is non-associative and cannot be chained",
					p.tok.Lexeme)
			}
		}
	}

	return left
}

func (p *Parser) parseUnary() Expr {
	if p.tok.Kind == TokenOperator {
		if op, ok := p.grammar.Operators.Unary(p.tok.Canon); ok {
			pos := p.tok.Pos
			p.next()

			return &UnaryOp{OpPos: pos, Op: op.Symbol, Operand: p.parseUnary()}
		}
	}

	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(x Expr) Expr {
	for !p.panicking {
		switch {
		case p.tok.IsPunct("("):
			call := &Call{Callee: x, Lparen: p.tok.Pos}
			p.next()

			call.Args = p.parseExprList(")")
			x = call

		case p.tok.IsPunct("["):
			idx := &Index{Target: x, Lbrack: p.tok.Pos}
			p.next()

			idx.Index = p.parseExpr()

			p.expectPunct("]")

			x = idx

		default:
			return x
		}
	}

	return x
}

// parseExprList parses comma-separated expressions up to and including the
// closing punctuation. A trailing comma is allowed.
func (p *Parser) parseExprList(closing string) []Expr {
	var list []Expr

	for !p.tok.IsPunct(closing) && !p.panicking {
		list = append(list, p.parseExpr())

		if !p.tok.IsPunct(",") {
			break
		}

		p.next()
	}

	if !p.panicking {
		p.expectPunct(closing)
	}

	return list
}

func (p *Parser) parsePrimary() Expr {
	tok := p.tok

	switch tok.Kind {
	case TokenNumber:
		p.next()

		n, err := parseNumber(tok.Lexeme)
		if err != nil {
			panic("lexer produced invalid number " + tok.Lexeme)
		}

		return &Literal{ValuePos: tok.Pos, Value: Number(n)}

	case TokenString:
		p.next()

		s, err := strconv.Unquote(tok.Lexeme)
		if err != nil {
			panic("lexer produced invalid string " + tok.Lexeme)
		}

		return &Literal{ValuePos: tok.Pos, Value: String(s)}

	case TokenIdentifier:
		p.next()

		return &Identifier{NamePos: tok.Pos, Name: tok.Lexeme}

	case TokenKeyword:
		switch tok.Canon {
		case KwTrue, KwFalse:
			p.next()

			return &Literal{ValuePos: tok.Pos, Value: Boolean(tok.Canon == KwTrue)}

		case KwNull:
			p.next()

			return &Literal{ValuePos: tok.Pos, Value: Null{}}

		case KwFunction:
			return p.parseFunctionLiteral()
		}

	case TokenPunctuation:
		switch tok.Canon {
		case "(":
			p.next()

			x := p.parseExpr()
			if !p.panicking {
				p.expectPunct(")")
			}

			return x

		case "[":
			p.next()

			return &ListLiteral{Lbrack: tok.Pos, Elems: p.parseExprList("]")}

		case "{":
			return p.parseMapLiteral()
		}
	}

	p.fail("expression")

	return &BadExpr{From: tok.Pos}
}

func (p *Parser) parseFunctionLiteral() Expr {
	fn := &FunctionLiteral{Func: p.tok.Pos}
	p.next()

	var ok bool
	if fn.Params, ok = p.parseParams(); !ok {
		return &BadExpr{From: fn.Func}
	}

	fn.Body = p.parseFunctionBody()

	return fn
}

func (p *Parser) parseMapLiteral() Expr {
	m := &MapLiteral{Lbrace: p.tok.Pos}
	p.next()

	seen := map[string]bool{}

	for !p.tok.IsPunct("}") && !p.panicking {
		entry := MapEntry{KeyPos: p.tok.Pos}

		switch p.tok.Kind {
		case TokenIdentifier:
			entry.Key = p.tok.Lexeme
		case TokenString:
			entry.Key, _ = strconv.Unquote(p.tok.Lexeme)
		default:
			p.fail("map key")

			return &BadExpr{From: m.Lbrace}
		}

		p.next()

		if !p.expectPunct(":") {
			return &BadExpr{From: m.Lbrace}
		}

		entry.Value = p.parseExpr()

		if seen[entry.Key] {
			p.report(entry.KeyPos, "duplicate map key %q", entry.Key)
		}

		seen[entry.Key] = true
		m.Entries = append(m.Entries, entry)

		if !p.tok.IsPunct(",") {
			break
		}

		p.next()
	}

	if !p.panicking {
		p.expectPunct("}")
	}

	return m
}
