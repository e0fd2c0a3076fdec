package lang

// Node is an element of the syntax tree. The set of implementations is
// closed; every node exclusively owns its children.
type Node interface {
	Pos() Position
	node()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Program is the root of a parsed source.
type Program struct {
	Source *Source
	Stmts  []Stmt

	gram  Grammar
	diags Diagnostics
}

// Diagnostics returns the lex and parse errors found while building p.
func (p *Program) Diagnostics() Diagnostics { return p.diags }

// Valid reports whether p was parsed without errors.
func (p *Program) Valid() bool { return len(p.diags) == 0 }

// Expressions.
type (
	// Literal is a number, string, boolean, or null literal.
	Literal struct {
		ValuePos Position
		Value    Value
	}

	// Identifier is a name reference.
	Identifier struct {
		NamePos Position
		Name    string
	}

	// BinaryOp is an infix operation. Op holds the canonical symbol.
	BinaryOp struct {
		OpPos Position
		Op    string
		Left  Expr
		Right Expr
	}

	// UnaryOp is a prefix operation.
	UnaryOp struct {
		OpPos   Position
		Op      string
		Operand Expr
	}

	// Call applies Callee to Args.
	Call struct {
		Callee Expr
		Lparen Position
		Args   []Expr
	}

	// Index selects an element of a list, map, or string.
	Index struct {
		Target Expr
		Lbrack Position
		Index  Expr
	}

	// ListLiteral is "[a, b, ...]".
	ListLiteral struct {
		Lbrack Position
		Elems  []Expr
	}

	// MapLiteral is "{key: value, ...}".
	MapLiteral struct {
		Lbrace  Position
		Entries []MapEntry
	}

	// FunctionLiteral is an anonymous "function (params) { body }".
	FunctionLiteral struct {
		Func   Position
		Params []*Identifier
		Body   *Block
	}

	// Assignment rebinds an existing variable.
	Assignment struct {
		Target *Identifier
		Value  Expr
	}

	// BadExpr is a placeholder for an expression that failed to parse.
	BadExpr struct {
		From Position
	}
)

// MapEntry is one "key: value" pair of a [MapLiteral].
type MapEntry struct {
	KeyPos Position
	Key    string
	Value  Expr
}

// Statements.
type (
	// LetDecl is "let name = value". Value is nil when omitted.
	LetDecl struct {
		Let   Position
		Name  *Identifier
		Value Expr
	}

	// FunctionDef is "function name(params) { body }".
	FunctionDef struct {
		Func   Position
		Name   *Identifier
		Params []*Identifier
		Body   *Block
	}

	// ExprStmt is an expression evaluated for its value or effects.
	ExprStmt struct {
		X Expr
	}

	// Block is a braced statement list that opens a new scope.
	Block struct {
		Lbrace Position
		Stmts  []Stmt
	}

	// Conditional is "if cond { ... }" with optional elif and else arms.
	// Else is nil, a *Block, or a *Conditional for an elif arm.
	Conditional struct {
		If   Position
		Cond Expr
		Then *Block
		Else Stmt
	}

	// WhileLoop is "while cond { ... }".
	WhileLoop struct {
		While Position
		Cond  Expr
		Body  *Block
	}

	// ForLoop is "for name in iterable { ... }".
	ForLoop struct {
		For  Position
		Var  *Identifier
		Iter Expr
		Body *Block
	}

	// Return is "return value". Value is nil when omitted.
	Return struct {
		Ret   Position
		Value Expr
	}

	// Break is "break".
	Break struct {
		At Position
	}

	// Continue is "continue".
	Continue struct {
		At Position
	}

	// BadStmt is a placeholder for a statement that failed to parse.
	BadStmt struct {
		From Position
		To   Position
	}
)

func (x *Literal) Pos() Position         { return x.ValuePos }
func (x *Identifier) Pos() Position      { return x.NamePos }
func (x *BinaryOp) Pos() Position        { return x.OpPos }
func (x *UnaryOp) Pos() Position         { return x.OpPos }
func (x *Call) Pos() Position            { return x.Lparen }
func (x *Index) Pos() Position           { return x.Lbrack }
func (x *ListLiteral) Pos() Position     { return x.Lbrack }
func (x *MapLiteral) Pos() Position      { return x.Lbrace }
func (x *FunctionLiteral) Pos() Position { return x.Func }
func (x *Assignment) Pos() Position      { return x.Target.NamePos }
func (x *BadExpr) Pos() Position         { return x.From }

func (s *LetDecl) Pos() Position     { return s.Let }
func (s *FunctionDef) Pos() Position { return s.Func }
func (s *ExprStmt) Pos() Position    { return s.X.Pos() }
func (s *Block) Pos() Position       { return s.Lbrace }
func (s *Conditional) Pos() Position { return s.If }
func (s *WhileLoop) Pos() Position   { return s.While }
func (s *ForLoop) Pos() Position     { return s.For }
func (s *Return) Pos() Position      { return s.Ret }
func (s *Break) Pos() Position       { return s.At }
func (s *Continue) Pos() Position    { return s.At }
func (s *BadStmt) Pos() Position     { return s.From }

func (*Literal) node()         {}
func (*Identifier) node()      {}
func (*BinaryOp) node()        {}
func (*UnaryOp) node()         {}
func (*Call) node()            {}
func (*Index) node()           {}
func (*ListLiteral) node()     {}
func (*MapLiteral) node()      {}
func (*FunctionLiteral) node() {}
func (*Assignment) node()      {}
func (*BadExpr) node()         {}
func (*LetDecl) node()         {}
func (*FunctionDef) node()     {}
func (*ExprStmt) node()        {}
func (*Block) node()           {}
func (*Conditional) node()     {}
func (*WhileLoop) node()       {}
func (*ForLoop) node()         {}
func (*Return) node()          {}
func (*Break) node()           {}
func (*Continue) node()        {}
func (*BadStmt) node()         {}

func (*Literal) exprNode()         {}
func (*Identifier) exprNode()      {}
func (*BinaryOp) exprNode()        {}
func (*UnaryOp) exprNode()         {}
func (*Call) exprNode()            {}
func (*Index) exprNode()           {}
func (*ListLiteral) exprNode()     {}
func (*MapLiteral) exprNode()      {}
func (*FunctionLiteral) exprNode() {}
func (*Assignment) exprNode()      {}
func (*BadExpr) exprNode()         {}

func (*LetDecl) stmtNode()     {}
func (*FunctionDef) stmtNode() {}
func (*ExprStmt) stmtNode()    {}
func (*Block) stmtNode()       {}
func (*Conditional) stmtNode() {}
func (*WhileLoop) stmtNode()   {}
func (*ForLoop) stmtNode()     {}
func (*Return) stmtNode()      {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*BadStmt) stmtNode()     {}

// Inspect traverses the tree rooted at n in depth-first order, calling f
// for each node. If f returns false, the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}

	walk := func(children ...Node) {
		for _, c := range children {
			Inspect(c, f)
		}
	}

	switch n := n.(type) {
	case *BinaryOp:
		walk(n.Left, n.Right)
	case *UnaryOp:
		walk(n.Operand)
	case *Call:
		walk(n.Callee)
		walkExprs(n.Args, f)
	case *Index:
		walk(n.Target, n.Index)
	case *ListLiteral:
		walkExprs(n.Elems, f)
	case *MapLiteral:
		for _, e := range n.Entries {
			Inspect(e.Value, f)
		}
	case *FunctionLiteral:
		walkIdents(n.Params, f)
		walk(n.Body)
	case *Assignment:
		walk(n.Target, n.Value)
	case *LetDecl:
		walk(n.Name)
		if n.Value != nil {
			walk(n.Value)
		}
	case *FunctionDef:
		walk(n.Name)
		walkIdents(n.Params, f)
		walk(n.Body)
	case *ExprStmt:
		walk(n.X)
	case *Block:
		for _, s := range n.Stmts {
			Inspect(s, f)
		}
	case *Conditional:
		walk(n.Cond, n.Then)
		if n.Else != nil {
			walk(n.Else)
		}
	case *WhileLoop:
		walk(n.Cond, n.Body)
	case *ForLoop:
		walk(n.Var, n.Iter, n.Body)
	case *Return:
		if n.Value != nil {
			walk(n.Value)
		}
	}
}

func walkExprs(xs []Expr, f func(Node) bool) {
	for _, x := range xs {
		Inspect(x, f)
	}
}

func walkIdents(ids []*Identifier, f func(Node) bool) {
	for _, id := range ids {
		Inspect(id, f)
	}
}
