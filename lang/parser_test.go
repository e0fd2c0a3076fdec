package lang

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// sexpr renders an expression fully parenthesized, exposing the shape the
// parser produced.
func sexpr(x Expr) string {
	switch x := x.(type) {
	case *Literal:
		return Repr(x.Value)
	case *Identifier:
		return x.Name
	case *BinaryOp:
		return "(" + x.Op + " " + sexpr(x.Left) + " " + sexpr(x.Right) + ")"
	case *UnaryOp:
		return "(" + x.Op + " " + sexpr(x.Operand) + ")"
	case *Assignment:
		return "(= " + x.Target.Name + " " + sexpr(x.Value) + ")"
	case *Call:
		parts := []string{"call", sexpr(x.Callee)}
		for _, a := range x.Args {
			parts = append(parts, sexpr(a))
		}

		return "(" + strings.Join(parts, " ") + ")"
	case *Index:
		return "(index " + sexpr(x.Target) + " " + sexpr(x.Index) + ")"
	case *ListLiteral:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = sexpr(e)
		}

		return "[" + strings.Join(parts, " ") + "]"
	case *MapLiteral:
		parts := make([]string, len(x.Entries))
		for i, e := range x.Entries {
			parts[i] = e.Key + ":" + sexpr(e.Value)
		}

		return "{" + strings.Join(parts, " ") + "}"
	case *FunctionLiteral:
		return "(fn " + strings.Join(paramNames(x.Params), " ") + ")"
	case *BadExpr:
		return "<bad>"
	default:
		return "?"
	}
}

func parseWith(t *testing.T, g Grammar, input string) (*Program, Diagnostics) {
	t.Helper()

	return NewParser(NewSource("test", input), g).ParseProgram()
}

// parseExprString parses input as a single expression statement.
func parseExprString(t *testing.T, g Grammar, input string) string {
	t.Helper()

	prog, diags := parseWith(t, g, input)
	if len(diags) != 0 {
		t.Fatalf("parse %q: %v", input, diags)
	}

	if len(prog.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Stmts))
	}

	s, ok := prog.Stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("expected *ExprStmt, got %T", prog.Stmts[0])
	}

	return sexpr(s.X)
}

func TestParser_Expressions(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"a = b = 1", "(= a (= b 1))"},
		{"not a and b", "(and (not a) b)"},
		{"-x * y", "(* (- x) y)"},
		{"!-x", "(! (- x))"},
		{"a or b and c == d < e + f * g", "(or a (and b (== c (< d (+ e (* f g))))))"},
		{"f(1, 2)[0]", "(index (call f 1 2) 0)"},
		{"f()(g)", "(call (call f) g)"},
		{"[1, [2], ]", "[1 [2]]"},
		{`({a: 1, "b c": 2})`, "{a:1 b c:2}"},
		{"function (x, y) { return x; }", "(fn x y)"},
		{`"s" + null`, `(+ "s" null)`},
		{"true != false", "(!= true false)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseExprString(t, DefaultGrammar(), tt.input); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParser_HostOperator(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("**", 7, Right, nil); err != nil {
		t.Fatalf("define: %v", err)
	}

	tests := []struct {
		input string
		want  string
	}{
		{"2 ** 3 ** 2", "(** 2 (** 3 2))"},
		{"2 * 3 ** 2", "(* 2 (** 3 2))"},
		{"-2 ** 2", "(** (- 2) 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseExprString(t, g, tt.input); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParser_ReconfiguredPrecedence(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("+", 7, Left, nil); err != nil {
		t.Fatalf("define: %v", err)
	}

	if got, want := parseExprString(t, g, "1 + 2 * 3"), "(* (+ 1 2) 3)"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	// The default grammar is unaffected.
	if got, want := parseExprString(t, DefaultGrammar(), "1 + 2 * 3"), "(+ 1 (* 2 3))"; got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestParser_NonAssociative(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("<", 4, NonAssoc, nil); err != nil {
		t.Fatalf("define: %v", err)
	}

	_, diags := parseWith(t, g, "a < b < c;")
	if len(diags) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(diags), diags)
	}

	if !strings.Contains(diags[0].Message, "non-associative") {
		t.Errorf("expected non-associative error, got %q", diags[0].Message)
	}

	if _, diags := parseWith(t, g, "a < (b < c);"); len(diags) != 0 {
		t.Errorf("expected no errors, got %v", diags)
	}
}

func TestParser_Statements(t *testing.T) {
	input := `
let x = 1;
let y;
function add(a, b) { return a + b; }
if x > 0 { x = 2; } elif x < 0 { x = 3; } else if x == 0 { x = 4; } else { x = 5; }
while x < 10 { x = x + 1; continue; }
for item in [1, 2] { break; }
{ let z = x; }
add(x, y)
`

	prog, diags := ParseString("test", input)
	if len(diags) != 0 {
		t.Fatalf("expected no errors, got %v", diags)
	}

	want := []string{
		"*lang.LetDecl", "*lang.LetDecl", "*lang.FunctionDef", "*lang.Conditional",
		"*lang.WhileLoop", "*lang.ForLoop", "*lang.Block", "*lang.ExprStmt",
	}

	if len(prog.Stmts) != len(want) {
		t.Fatalf("expected %d statements, got %d", len(want), len(prog.Stmts))
	}

	for i, s := range prog.Stmts {
		if got := typeName(s); got != want[i] {
			t.Errorf("statement %d: expected %s, got %s", i, want[i], got)
		}
	}

	if let := prog.Stmts[1].(*LetDecl); let.Value != nil {
		t.Errorf("expected nil initializer, got %s", sexpr(let.Value))
	}

	// if / elif / else if / else chain into nested conditionals.
	cond := prog.Stmts[3].(*Conditional)
	depth := 0

	for c := cond; c != nil; depth++ {
		next, _ := c.Else.(*Conditional)
		if next == nil {
			if _, ok := c.Else.(*Block); !ok {
				t.Errorf("expected final else block, got %T", c.Else)
			}
		}

		c = next
	}

	if depth != 3 {
		t.Errorf("expected 3 chained conditionals, got %d", depth)
	}
}

func typeName(n Node) string {
	switch n.(type) {
	case *LetDecl:
		return "*lang.LetDecl"
	case *FunctionDef:
		return "*lang.FunctionDef"
	case *Conditional:
		return "*lang.Conditional"
	case *WhileLoop:
		return "*lang.WhileLoop"
	case *ForLoop:
		return "*lang.ForLoop"
	case *Block:
		return "*lang.Block"
	case *ExprStmt:
		return "*lang.ExprStmt"
	case *Return:
		return "*lang.Return"
	case *Break:
		return "*lang.Break"
	case *Continue:
		return "*lang.Continue"
	case *BadStmt:
		return "*lang.BadStmt"
	default:
		return "?"
	}
}

func TestParser_ChineseAliases(t *testing.T) {
	english := `let x = 1; if x > 0 and true { x = 2; } elif x < 0 or false { x = 3; } else { x = 4; }
while false { break; } for i in [1] { continue; } function f(a) { return a; } let g = fn (b) { return b; };`
	chinese := `置 x = 1; 若 x > 0 且 真 { x = 2; } 又若 x < 0 或 假 { x = 3; } 否则 { x = 4; }
当 假 { 断; } 扭扭 i in [1] { 续; } 定 f(a) { 回 a; } 置 g = 定 (b) { 回 b; };`

	format := func(input string) string {
		prog, diags := ParseString("test", input)
		if len(diags) != 0 {
			t.Fatalf("parse %q: %v", input, diags)
		}

		var buf strings.Builder
		if err := prog.Format(context.Background(), &buf, 0); err != nil {
			t.Fatalf("format: %v", err)
		}

		return buf.String()
	}

	if e, c := format(english), format(chinese); e != c {
		t.Errorf("expected identical programs:\n%s\n%s", e, c)
	}
}

func TestParser_WordSpellings(t *testing.T) {
	tests := []struct {
		name  string
		canon string
		alias string
	}{
		{
			name:  "english",
			canon: `let x = 1 + 2 - 3 * 4 / 5; function f() { } if x { } while false { } f();`,
			alias: `set x = 1 add 2 sub 3 mul 4 div 5; def f() { pass; end if x { pass } while false { pass; end call f();`,
		},
		{
			name:  "chinese",
			canon: `let x = 1 + 2 - 3 * 4 / 5; function f() { } if x { } while false { } f();`,
			alias: `置 x = 1 加 2 减 3 乘 4 除 5; 定 f() { 空; 结束 若 x { 空 终 当 假 { 空; 完了 调 f();`,
		},
		{
			name:  "unary",
			canon: `let y = -1;`,
			alias: `set y = sub 1;`,
		},
	}

	format := func(input string) string {
		prog, diags := ParseString("test", input)
		if len(diags) != 0 {
			t.Fatalf("parse %q: %v", input, diags)
		}

		var buf strings.Builder
		if err := prog.Format(context.Background(), &buf, 0); err != nil {
			t.Fatalf("format: %v", err)
		}

		return buf.String()
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c, a := format(tt.canon), format(tt.alias); c != a {
				t.Errorf("expected identical programs:\n%s\n%s", c, a)
			}
		})
	}
}

func TestParser_CallStatement(t *testing.T) {
	_, diags := ParseString("test", "call 1 + 2;")
	if len(diags) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(diags), diags)
	}

	if !strings.Contains(diags[0].Message, "must be followed by a function call") {
		t.Errorf("expected call error, got %q", diags[0].Message)
	}
}

func TestParser_Recovery(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errors int
		stmts  []string
	}{
		{
			name:   "missing operand",
			input:  "let x = 1 +; let y = 2;",
			errors: 1,
			stmts:  []string{"*lang.BadStmt", "*lang.LetDecl"},
		},
		{
			name:   "missing semicolon",
			input:  "let x = 1 let y = 2",
			errors: 1,
			stmts:  []string{"*lang.BadStmt", "*lang.LetDecl"},
		},
		{
			name:   "two bad statements",
			input:  "let = 1; let y = ; z = 3;",
			errors: 2,
			stmts:  []string{"*lang.BadStmt", "*lang.BadStmt", "*lang.ExprStmt"},
		},
		{
			name:   "error inside block",
			input:  "if true { let = 1; x; } y;",
			errors: 1,
			stmts:  []string{"*lang.Conditional", "*lang.ExprStmt"},
		},
		{
			name:   "unexpected end of input",
			input:  "let x = (1 + ",
			errors: 1,
			stmts:  []string{"*lang.BadStmt"},
		},
		{
			name:   "stray closing brace",
			input:  "} let x = 1;",
			errors: 1,
			stmts:  []string{"*lang.LetDecl"},
		},
		{
			name:   "unclosed block",
			input:  "while true { x;",
			errors: 1,
			stmts:  []string{"*lang.BadStmt"},
		},
		{
			name:   "bad map key",
			input:  "let m = {1: 2}; m;",
			errors: 1,
			stmts:  []string{"*lang.BadStmt", "*lang.ExprStmt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, diags := ParseString("test", tt.input)

			if got := diags.Count(ParseError); got != tt.errors || len(diags) != tt.errors {
				t.Fatalf("expected %d parse errors, got %d: %v", tt.errors, len(diags), diags)
			}

			if prog.Valid() {
				t.Errorf("expected invalid program")
			}

			if len(prog.Stmts) != len(tt.stmts) {
				t.Fatalf("expected %d statements, got %d", len(tt.stmts), len(prog.Stmts))
			}

			for i, s := range prog.Stmts {
				if got := typeName(s); got != tt.stmts[i] {
					t.Errorf("statement %d: expected %s, got %s", i, tt.stmts[i], got)
				}
			}
		})
	}
}

func TestParser_ErrorDetail(t *testing.T) {
	_, diags := ParseString("main.cat", "let x = 1 +;")
	if len(diags) != 1 {
		t.Fatalf("expected 1 error, got %d", len(diags))
	}

	d := diags[0]

	if !errors.Is(d, ErrParse) {
		t.Errorf("expected errors.Is(d, ErrParse)")
	}

	if got, want := d.Error(), "main.cat:1:12: parse error: expected expression, found \";\""; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if len(d.Expected) != 1 || d.Expected[0] != "expression" {
		t.Errorf("expected [expression], got %v", d.Expected)
	}

	if d.Found != ";" {
		t.Errorf("expected found %q, got %q", ";", d.Found)
	}

	want := "  1 | let x = 1 +;\n    | " + strings.Repeat(" ", 11) + "^\n"
	if got := d.Excerpt(); got != want {
		t.Errorf("expected excerpt %q, got %q", want, got)
	}
}

func TestParser_StaticErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "return at top level", input: "return 1;", message: "return outside function"},
		{name: "break at top level", input: "break;", message: "break outside loop"},
		{name: "continue in block", input: "{ continue; }", message: "continue outside loop"},
		{name: "break in nested function", input: "while true { function f() { break; } }", message: "break outside loop"},
		{name: "literal target", input: "1 = 2;", message: "invalid assignment target"},
		{name: "call target", input: "f() = 2;", message: "invalid assignment target"},
		{name: "duplicate parameter", input: "function f(a, a) {}", message: `duplicate parameter "a"`},
		{name: "duplicate key", input: "let m = {a: 1, a: 2};", message: `duplicate map key "a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, diags := ParseString("test", tt.input)
			if len(diags) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(diags), diags)
			}

			if !strings.Contains(diags[0].Message, tt.message) {
				t.Errorf("expected %q, got %q", tt.message, diags[0].Message)
			}

			// Static errors leave the statement in place.
			for _, s := range prog.Stmts {
				if _, bad := s.(*BadStmt); bad {
					t.Errorf("unexpected bad statement")
				}
			}
		})
	}

	valid := []string{
		"function f() { return; }",
		"function f() { while true { return 1; } }",
		"while true { if true { break; } else { continue; } }",
		"for x in [] { let f = function () { return x; }; }",
	}

	for _, input := range valid {
		if _, diags := ParseString("test", input); len(diags) != 0 {
			t.Errorf("%q: expected no errors, got %v", input, diags)
		}
	}
}

func TestParser_LexErrorsNotDuplicated(t *testing.T) {
	_, diags := ParseString("test", "let x = @; let y = 1 @ 2; let z = \"bad\\q\";")

	if got := diags.Count(LexError); got != 3 {
		t.Errorf("expected 3 lex errors, got %d: %v", got, diags)
	}

	if got := diags.Count(ParseError); got != 0 {
		t.Errorf("expected no parse errors, got %d: %v", got, diags)
	}

	for i := 1; i < len(diags); i++ {
		if diags[i].Pos.Offset < diags[i-1].Pos.Offset {
			t.Errorf("diagnostics out of order: %v", diags)
		}
	}
}

func TestParser_Inspect(t *testing.T) {
	prog, _ := ParseString("test", "function f(a) { return a + g(1, [2]); }")

	idents := 0

	for _, s := range prog.Stmts {
		Inspect(s, func(n Node) bool {
			if _, ok := n.(*Identifier); ok {
				idents++
			}

			return true
		})
	}

	// f, a (param), a, g
	if idents != 4 {
		t.Errorf("expected 4 identifiers, got %d", idents)
	}
}

func FuzzParser(f *testing.F) {
	f.Add("let x = 1 + 2 * 3;")
	f.Add("function f(a, b) { if a { return b; } else { return a; } }")
	f.Add("while true { break; } for x in [1, 2] { continue; }")
	f.Add("let = ; } { (((")
	f.Add("({a: 1, b: [2, 3]})[\"a\"]")

	f.Fuzz(func(t *testing.T, input string) {
		prog, diags := ParseString("fuzz", input)
		if prog == nil {
			t.Fatal("expected non-nil program")
		}

		if prog.Valid() != (len(diags) == 0) {
			t.Errorf("Valid disagrees with diagnostics")
		}
	})
}
