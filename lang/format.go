package lang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
)

// Format writes the program in canonical source form. With a positive
// indent every statement is placed on its own line and nested blocks are
// indented by that many spaces; otherwise the program is written on a
// single line.
func (p *Program) Format(_ context.Context, w io.Writer, indent int) error {
	pr := &printer{indent: indent, ops: p.grammar().Operators}

	for i, s := range p.Stmts {
		if i > 0 {
			pr.newline()
		}

		pr.stmt(s)
	}

	pr.buf.WriteByte('\n')

	_, err := io.WriteString(w, pr.buf.String())

	return err
}

// FormatJSON writes the syntax tree as JSON.
func (p *Program) FormatJSON(_ context.Context, w io.Writer, indent int) error {
	var (
		data []byte
		err  error
	)

	if indent > 0 {
		data, err = json.MarshalIndent(p.Tree(), "", strings.Repeat(" ", indent))
	} else {
		data, err = json.Marshal(p.Tree())
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(data))

	return err
}

// FormatYAML writes the syntax tree as YAML.
func (p *Program) FormatYAML(ctx context.Context, w io.Writer, indent int) error {
	var opts []yaml.EncodeOption
	if indent > 0 {
		opts = append(opts, yaml.Indent(indent))
	} else {
		opts = append(opts, yaml.Flow(true))
	}

	data, err := yaml.MarshalContext(ctx, p.Tree(), opts...)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, string(data))

	return err
}

func (p *Program) grammar() Grammar {
	if p.gram.Operators == nil {
		return DefaultGrammar()
	}

	return p.gram
}

// printer renders nodes as canonical source.
type printer struct {
	buf    strings.Builder
	indent int
	depth  int
	ops    *OperatorTable
}

func (pr *printer) write(s ...string) {
	for _, x := range s {
		pr.buf.WriteString(x)
	}
}

func (pr *printer) newline() {
	if pr.indent <= 0 {
		pr.buf.WriteByte(' ')

		return
	}

	pr.buf.WriteByte('\n')
	pr.buf.WriteString(strings.Repeat(" ", pr.depth*pr.indent))
}

func (pr *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *LetDecl:
		pr.write(KwLet, " ", s.Name.Name)

		if s.Value != nil {
			pr.write(" = ")
			pr.expr(s.Value, 0)
		}

		pr.write(";")

	case *FunctionDef:
		pr.write(KwFunction, " ", s.Name.Name)
		pr.params(s.Params)
		pr.write(" ")
		pr.block(s.Body)

	case *ExprStmt:
		// A leading brace would read as a block.
		if _, ok := s.X.(*MapLiteral); ok {
			pr.write("(")
			pr.expr(s.X, 0)
			pr.write(")")
		} else {
			pr.expr(s.X, 0)
		}

		pr.write(";")

	case *Block:
		pr.block(s)

	case *Conditional:
		pr.write(KwIf, " ")
		pr.conditional(s)

	case *WhileLoop:
		pr.write(KwWhile, " ")
		pr.expr(s.Cond, 0)
		pr.write(" ")
		pr.block(s.Body)

	case *ForLoop:
		pr.write(KwFor, " ", s.Var.Name, " ", KwIn, " ")
		pr.expr(s.Iter, 0)
		pr.write(" ")
		pr.block(s.Body)

	case *Return:
		pr.write(KwReturn)

		if s.Value != nil {
			pr.write(" ")
			pr.expr(s.Value, 0)
		}

		pr.write(";")

	case *Break:
		pr.write(KwBreak, ";")

	case *Continue:
		pr.write(KwContinue, ";")

	case *BadStmt:
		pr.write("/* bad statement */")
	}
}

func (pr *printer) conditional(s *Conditional) {
	pr.expr(s.Cond, 0)
	pr.write(" ")
	pr.block(s.Then)

	switch e := s.Else.(type) {
	case *Conditional:
		pr.write(" ", KwElif, " ")
		pr.conditional(e)
	case *Block:
		pr.write(" ", KwElse, " ")
		pr.block(e)
	}
}

func (pr *printer) block(b *Block) {
	if len(b.Stmts) == 0 {
		pr.write("{}")

		return
	}

	pr.write("{")
	pr.depth++

	for _, s := range b.Stmts {
		pr.newline()
		pr.stmt(s)
	}

	pr.depth--
	pr.newline()
	pr.write("}")
}

func (pr *printer) params(ids []*Identifier) {
	pr.write("(", strings.Join(paramNames(ids), ", "), ")")
}

// Binding strengths used for parenthesization besides the operator table.
const (
	precAssign = 0
	precUnary  = 1 << 20
)

// expr writes x, parenthesized if it binds more loosely than minPrec.
func (pr *printer) expr(x Expr, minPrec int) {
	switch x := x.(type) {
	case *Literal:
		pr.write(Repr(x.Value))

	case *Identifier:
		pr.write(x.Name)

	case *BinaryOp:
		prec, assoc := 1, Left
		if op, ok := pr.ops.Binary(x.Op); ok {
			prec, assoc = op.Precedence, op.Assoc
		}

		left, right := prec, prec+1
		switch assoc {
		case Right:
			left, right = prec+1, prec
		case NonAssoc:
			left = prec + 1
		}

		paren := prec < minPrec
		if paren {
			pr.write("(")
		}

		pr.expr(x.Left, left)
		pr.write(" ", x.Op, " ")
		pr.expr(x.Right, right)

		if paren {
			pr.write(")")
		}

	case *UnaryOp:
		pr.write(x.Op)

		if isIdentifier(x.Op) {
			pr.write(" ")
		}

		if _, nested := x.Operand.(*UnaryOp); nested {
			pr.write("(")
			pr.expr(x.Operand, 0)
			pr.write(")")
		} else {
			pr.expr(x.Operand, precUnary)
		}

	case *Call:
		pr.expr(x.Callee, precUnary+1)
		pr.write("(")
		pr.exprList(x.Args)
		pr.write(")")

	case *Index:
		pr.expr(x.Target, precUnary+1)
		pr.write("[")
		pr.expr(x.Index, 0)
		pr.write("]")

	case *ListLiteral:
		pr.write("[")
		pr.exprList(x.Elems)
		pr.write("]")

	case *MapLiteral:
		pr.write("{")

		for i, e := range x.Entries {
			if i > 0 {
				pr.write(", ")
			}

			pr.write(formatKey(e.Key), ": ")
			pr.expr(e.Value, 0)
		}

		pr.write("}")

	case *FunctionLiteral:
		pr.write(KwFunction, " ")
		pr.params(x.Params)
		pr.write(" ")
		pr.block(x.Body)

	case *Assignment:
		paren := minPrec > precAssign
		if paren {
			pr.write("(")
		}

		pr.write(x.Target.Name, " = ")
		pr.expr(x.Value, 0)

		if paren {
			pr.write(")")
		}

	case *BadExpr:
		pr.write("/* bad expression */")
	}
}

func (pr *printer) exprList(xs []Expr) {
	for i, x := range xs {
		if i > 0 {
			pr.write(", ")
		}

		pr.expr(x, precAssign)
	}
}

// TreeNode is the serializable form of a syntax tree node, used for JSON
// and YAML output.
type TreeNode struct {
	Node     string      `json:"node"               yaml:"node"`
	Field    string      `json:"field,omitempty"    yaml:"field,omitempty"`
	Pos      string      `json:"pos,omitempty"      yaml:"pos,omitempty"`
	Name     string      `json:"name,omitempty"     yaml:"name,omitempty"`
	Op       string      `json:"op,omitempty"       yaml:"op,omitempty"`
	Kind     string      `json:"kind,omitempty"     yaml:"kind,omitempty"`
	Value    any         `json:"value,omitempty"    yaml:"value,omitempty"`
	Params   []string    `json:"params,omitempty"   yaml:"params,omitempty"`
	Children []*TreeNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Tree returns the serializable syntax tree of p.
func (p *Program) Tree() *TreeNode {
	root := &TreeNode{Node: "Program"}
	if p.Source != nil {
		root.Name = p.Source.Name
	}

	for _, s := range p.Stmts {
		root.Children = append(root.Children, tree(s, ""))
	}

	return root
}

func tree(n Node, field string) *TreeNode {
	t := &TreeNode{Field: field, Pos: n.Pos().String()}

	add := func(field string, children ...Node) {
		for _, c := range children {
			t.Children = append(t.Children, tree(c, field))
		}
	}

	switch n := n.(type) {
	case *Literal:
		t.Node, t.Kind, t.Value = "Literal", n.Value.Kind().String(), FromValue(n.Value)
	case *Identifier:
		t.Node, t.Name = "Identifier", n.Name
	case *BinaryOp:
		t.Node, t.Op = "BinaryOp", n.Op
		add("left", n.Left)
		add("right", n.Right)
	case *UnaryOp:
		t.Node, t.Op = "UnaryOp", n.Op
		add("operand", n.Operand)
	case *Call:
		t.Node = "Call"
		add("callee", n.Callee)
		for _, a := range n.Args {
			add("arg", a)
		}
	case *Index:
		t.Node = "Index"
		add("target", n.Target)
		add("index", n.Index)
	case *ListLiteral:
		t.Node = "ListLiteral"
		for _, e := range n.Elems {
			add("elem", e)
		}
	case *MapLiteral:
		t.Node = "MapLiteral"
		for _, e := range n.Entries {
			entry := tree(e.Value, "entry")
			entry.Name = e.Key
			t.Children = append(t.Children, entry)
		}
	case *FunctionLiteral:
		t.Node, t.Params = "FunctionLiteral", paramNames(n.Params)
		add("body", n.Body)
	case *Assignment:
		t.Node, t.Name = "Assignment", n.Target.Name
		add("value", n.Value)
	case *BadExpr:
		t.Node = "BadExpr"
	case *LetDecl:
		t.Node, t.Name = "LetDecl", n.Name.Name
		if n.Value != nil {
			add("value", n.Value)
		}
	case *FunctionDef:
		t.Node, t.Name, t.Params = "FunctionDef", n.Name.Name, paramNames(n.Params)
		add("body", n.Body)
	case *ExprStmt:
		t.Node = "ExprStmt"
		add("expr", n.X)
	case *Block:
		t.Node = "Block"
		for _, s := range n.Stmts {
			add("stmt", s)
		}
	case *Conditional:
		t.Node = "Conditional"
		add("cond", n.Cond)
		add("then", n.Then)
		if n.Else != nil {
			add("else", n.Else)
		}
	case *WhileLoop:
		t.Node = "WhileLoop"
		add("cond", n.Cond)
		add("body", n.Body)
	case *ForLoop:
		t.Node, t.Name = "ForLoop", n.Var.Name
		add("iter", n.Iter)
		add("body", n.Body)
	case *Return:
		t.Node = "Return"
		if n.Value != nil {
			add("value", n.Value)
		}
	case *Break:
		t.Node = "Break"
	case *Continue:
		t.Node = "Continue"
	case *BadStmt:
		t.Node = "BadStmt"
	}

	return t
}
