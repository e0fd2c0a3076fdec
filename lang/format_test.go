package lang

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
)

func formatString(t *testing.T, g Grammar, input string, indent int) string {
	t.Helper()

	prog, diags := parseWith(t, g, input)
	if len(diags) != 0 {
		t.Fatalf("parse %q: %v", input, diags)
	}

	var buf strings.Builder
	if err := prog.Format(context.Background(), &buf, indent); err != nil {
		t.Fatalf("format: %v", err)
	}

	return buf.String()
}

func TestFormat_Canonical(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"let x=1+2*3", "let x = 1 + 2 * 3;\n"},
		{"(1+2)*3", "(1 + 2) * 3;\n"},
		{"1-(2-3)", "1 - (2 - 3);\n"},
		{"(1-2)-3", "1 - 2 - 3;\n"},
		{"({a:1,\"b c\":2,\"if\":3})", "({a: 1, \"b c\": 2, \"if\": 3});\n"},
		{"-(-x)", "-(-x);\n"},
		{"not(a and b)", "not (a and b);\n"},
		{"0x10 + 1.50", "16 + 1.5;\n"},
		{`"a\tb"`, `"a\tb";` + "\n"},
		{"f(a=1)[0]", "f(a = 1)[0];\n"},
		{"(f)(1)", "f(1);\n"},
		{"let g = fn(a,b){return a;}", "let g = function (a, b) { return a; };\n"},
		{"while x {}", "while x {}\n"},
		{"if a {1;} else if b {2;}", "if a { 1; } elif b { 2; }\n"},
		{"let x; x", "let x; x;\n"},
		{"当 真 { 断; }", "while true { break; }\n"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := formatString(t, DefaultGrammar(), tt.input, 0); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormat_Indented(t *testing.T) {
	got := formatString(t, DefaultGrammar(),
		"function f(a){if a{return 1;}else{return 2;}} f(true)", 2)

	want := `function f(a) {
  if a {
    return 1;
  } else {
    return 2;
  }
}
f(true);
`

	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}

func TestFormat_HostOperator(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("**", 7, Right, pow); err != nil {
		t.Fatalf("define: %v", err)
	}

	tests := []struct {
		input string
		want  string
	}{
		{"2 ** (3 ** 2)", "2 ** 3 ** 2;\n"},
		{"(2 ** 3) ** 2", "(2 ** 3) ** 2;\n"},
		{"(2 * 3) ** 2", "(2 * 3) ** 2;\n"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := formatString(t, g, tt.input, 0); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormat_Idempotent(t *testing.T) {
	programs := []string{
		"let x = 1; function f(a, b) { return a * (b + x); } f(2, 3)",
		"for k in ({a: [1, 2], b: {c: null}}) { if k == \"a\" { continue; } else { break; } }",
		"let i = 0; while not (i >= 3) { i = i + 1; } -(-i)",
		"置 s = \"\"; 扭扭 c in \"ab\" { s = c + s; }",
		"let f = function () { return function (x) { return x; }; }; f()(1)",
	}

	for _, input := range programs {
		for _, indent := range []int{0, 4} {
			prog, diags := ParseString("test", input)
			if len(diags) != 0 {
				t.Fatalf("parse %q: %v", input, diags)
			}

			var first strings.Builder
			if err := prog.Format(context.Background(), &first, indent); err != nil {
				t.Fatalf("format: %v", err)
			}

			again := formatString(t, DefaultGrammar(), first.String(), indent)
			if again != first.String() {
				t.Errorf("format is not idempotent:\n%s\n%s", first.String(), again)
			}
		}
	}
}

func TestFormat_Tree(t *testing.T) {
	prog, diags := ParseString("main.cat", "let x = 1 + y;")
	if len(diags) != 0 {
		t.Fatalf("parse: %v", diags)
	}

	var buf strings.Builder
	if err := prog.FormatJSON(context.Background(), &buf, 2); err != nil {
		t.Fatalf("json: %v", err)
	}

	var root TreeNode
	if err := json.Unmarshal([]byte(buf.String()), &root); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if root.Node != "Program" || root.Name != "main.cat" {
		t.Fatalf("expected Program main.cat, got %s %s", root.Node, root.Name)
	}

	let := root.Children[0]
	if let.Node != "LetDecl" || let.Name != "x" || let.Pos != "1:1" {
		t.Errorf("expected LetDecl x at 1:1, got %s %s at %s", let.Node, let.Name, let.Pos)
	}

	bin := let.Children[0]
	if bin.Node != "BinaryOp" || bin.Op != "+" || bin.Field != "value" {
		t.Errorf("expected value BinaryOp +, got %s %s %s", bin.Field, bin.Node, bin.Op)
	}

	if lit := bin.Children[0]; lit.Kind != "Number" || lit.Value != 1.0 {
		t.Errorf("expected Number 1, got %s %v", lit.Kind, lit.Value)
	}

	buf.Reset()

	if err := prog.FormatYAML(context.Background(), &buf, 2); err != nil {
		t.Fatalf("yaml: %v", err)
	}

	var yroot TreeNode
	if err := yaml.Unmarshal([]byte(buf.String()), &yroot); err != nil {
		t.Fatalf("unmarshal yaml: %v\n%s", err, buf.String())
	}

	if yroot.Node != "Program" || len(yroot.Children) != 1 {
		t.Fatalf("expected Program with one child, got %s:\n%s", yroot.Node, buf.String())
	}

	ybin := yroot.Children[0].Children[0]
	if ybin.Field != "value" || len(ybin.Children) != 2 {
		t.Fatalf("expected value BinaryOp with two operands, got %s:\n%s", ybin.Field, buf.String())
	}

	// y is a YAML 1.1 boolean spelling; the name must survive as a string.
	if id := ybin.Children[1]; id.Node != "Identifier" || id.Name != "y" {
		t.Errorf("expected Identifier y, got %s %q", id.Node, id.Name)
	}
}
