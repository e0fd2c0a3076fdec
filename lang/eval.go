package lang

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/catapillar/log"
)

// DefaultMaxDepth is the default limit on nested function calls.
const DefaultMaxDepth = 512

// Interpreter evaluates programs against a [Registry] of native functions.
//
// An Interpreter holds no per-run state and may be used by concurrent runs,
// provided each run uses its own [Environment] chain.
type Interpreter struct {
	registry *Registry
	grammar  Grammar
	logger   log.Logger
	maxSteps int
	maxDepth int
}

// Option configures an [Interpreter].
type Option func(*Interpreter)

// WithRegistry sets the registry of native functions.
func WithRegistry(r *Registry) Option {
	return func(in *Interpreter) { in.registry = r }
}

// WithGrammar sets the operator table and lexicon used to parse programs.
func WithGrammar(g Grammar) Option {
	return func(in *Interpreter) { in.grammar = g }
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(in *Interpreter) { in.logger = logger }
}

// WithMaxSteps limits the number of statements a run may execute.
// Zero means no limit.
func WithMaxSteps(n int) Option {
	return func(in *Interpreter) { in.maxSteps = max(0, n) }
}

// WithMaxDepth limits the depth of nested function calls.
func WithMaxDepth(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.maxDepth = n
		}
	}
}

// New returns an Interpreter configured by opts.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{maxDepth: DefaultMaxDepth}

	for _, opt := range opts {
		opt(in)
	}

	if in.registry == nil {
		in.registry = NewRegistry()
	}

	in.grammar = in.grammar.withDefaults()

	return in
}

// Registry returns the interpreter's registry.
func (in *Interpreter) Registry() *Registry { return in.registry }

// Grammar returns the interpreter's grammar.
func (in *Interpreter) Grammar() Grammar { return in.grammar }

// Parse parses src with the interpreter's grammar.
func (in *Interpreter) Parse(src *Source) (*Program, Diagnostics) {
	in.logger.Trace("parse start",
		slog.String("source", src.Name),
		slog.Int("length", src.Len()),
	)

	prog, diags := NewParser(src, in.grammar).ParseProgram()

	in.logger.Trace("parse complete",
		slog.String("source", src.Name),
		slog.Int("statements", len(prog.Stmts)),
		slog.Int("diagnostics", len(diags)),
	)

	return prog, diags
}

// Run parses and evaluates src in env. Parse errors are returned as
// [Diagnostics].
func (in *Interpreter) Run(
	ctx context.Context,
	src *Source,
	env *Environment,
) (Value, error) {
	prog, diags := in.Parse(src)
	if len(diags) > 0 {
		return nil, diags
	}

	return in.Evaluate(ctx, prog, env)
}

// Evaluate executes prog in env and returns the value of the last executed
// statement. A nil env is replaced by a fresh global scope.
//
// Evaluation stops at the first error, which is a [*Diagnostic]. A program
// with parse errors is refused with [ErrMalformedProgram].
func (in *Interpreter) Evaluate(
	ctx context.Context,
	prog *Program,
	env *Environment,
) (Value, error) {
	if !prog.Valid() {
		return nil, ErrMalformedProgram.Wrap(prog.diags)
	}

	if env == nil {
		env = NewEnvironment(nil)
	}

	r, ctx, done := in.begin(ctx, prog.Source)
	defer done()

	var (
		result Value = Null{}
		sig    signal
		err    error
	)

	for _, s := range prog.Stmts {
		if result, sig, err = r.exec(ctx, s, env); err != nil {
			r.logger.DebugContext(ctx, "run failed", slog.Any("error", err))

			return nil, err
		}

		if sig != sigNone {
			panic("control signal escaped program: " + sig.String())
		}
	}

	r.logger.TraceContext(ctx, "run complete",
		slog.Int("steps", r.steps),
		slog.String("result", result.Kind().String()),
	)

	return result, nil
}

// Call invokes a function value outside of any program, as its own run.
func (in *Interpreter) Call(
	ctx context.Context,
	fn Value,
	args ...Value,
) (Value, error) {
	r, ctx, done := in.begin(ctx, nil)
	defer done()

	return r.call(ctx, Position{}, fn, args)
}

// Evaluate executes prog in env with a default [Interpreter] using the
// grammar prog was parsed with, so host operators resolve.
func Evaluate(ctx context.Context, prog *Program, env *Environment) (Value, error) {
	return New(WithGrammar(prog.grammar())).Evaluate(ctx, prog, env)
}

// Invoke calls fn from within a native function, inside the run that
// called the native. It fails with [ErrNoActiveRun] if ctx does not belong
// to a run.
func Invoke(ctx context.Context, fn Value, args ...Value) (Value, error) {
	r, ok := ctx.Value(runKey{}).(*run)
	if !ok {
		return nil, ErrNoActiveRun
	}

	return r.call(ctx, Position{}, fn, args)
}

// RunID returns the identifier of the run ctx belongs to, if any.
func RunID(ctx context.Context) (string, bool) {
	r, ok := ctx.Value(runKey{}).(*run)
	if !ok {
		return "", false
	}

	return r.id, true
}

type runKey struct{}

// run holds the state of one evaluation.
type run struct {
	in     *Interpreter
	id     string
	src    *Source
	logger log.Logger
	steps  int
	depth  int
}

func (in *Interpreter) begin(
	ctx context.Context,
	src *Source,
) (*run, context.Context, func()) {
	r := &run{in: in, id: uuid.NewString(), src: src}
	r.logger = in.logger.With(slog.String("run", r.id))

	end := in.registry.begin()
	ctx = context.WithValue(ctx, runKey{}, r)

	name := ""
	if src != nil {
		name = src.Name
	}

	r.logger.TraceContext(ctx, "run start", slog.String("source", name))

	return r, ctx, end
}

// signal is the control-flow outcome of executing a statement.
type signal uint8

const (
	sigNone signal = iota
	sigReturn
	sigBreak
	sigContinue
)

func (s signal) String() string {
	return [...]string{"none", KwReturn, KwBreak, KwContinue}[s]
}

func (r *run) errorf(cat Category, pos Position, format string, args ...any) *Diagnostic {
	return newDiagnostic(cat, r.src, pos, fmt.Sprintf(format, args...))
}

// locate fills in the position of a diagnostic produced without one, such
// as by an operator implementation, and converts host errors into
// RuntimeErrors.
func (r *run) locate(err error, pos Position, what string) error {
	if d, ok := err.(*Diagnostic); ok {
		if !d.Pos.IsValid() {
			d.Pos, d.Source = pos, r.src
		}

		return d
	}

	return r.errorf(RuntimeError, pos, "%s: %v", what, err).wrap(err)
}

// checkpoint runs at every statement boundary.
func (r *run) checkpoint(ctx context.Context, pos Position) error {
	if err := ctx.Err(); err != nil {
		cause := context.Cause(ctx)

		return r.errorf(RuntimeError, pos, "evaluation cancelled").wrap(cause)
	}

	r.steps++

	if r.in.maxSteps > 0 && r.steps > r.in.maxSteps {
		return r.errorf(RuntimeError, pos, "%s (%d)", ErrStepLimit.msg,
			r.in.maxSteps).wrap(ErrStepLimit)
	}

	return nil
}

func (r *run) exec(ctx context.Context, s Stmt, env *Environment) (Value, signal, error) {
	if err := r.checkpoint(ctx, s.Pos()); err != nil {
		return nil, sigNone, err
	}

	switch s := s.(type) {
	case *ExprStmt:
		v, err := r.eval(ctx, s.X, env)

		return v, sigNone, err

	case *LetDecl:
		var v Value = Null{}

		if s.Value != nil {
			var err error
			if v, err = r.eval(ctx, s.Value, env); err != nil {
				return nil, sigNone, err
			}
		}

		env.Declare(s.Name.Name, v)

		return Null{}, sigNone, nil

	case *FunctionDef:
		env.Declare(s.Name.Name, &Function{
			Name:   s.Name.Name,
			Params: paramNames(s.Params),
			Body:   s.Body,
			Env:    env,
		})

		return Null{}, sigNone, nil

	case *Block:
		return r.execBlock(ctx, s, NewEnvironment(env))

	case *Conditional:
		return r.execConditional(ctx, s, env)

	case *WhileLoop:
		return r.execWhile(ctx, s, env)

	case *ForLoop:
		return r.execFor(ctx, s, env)

	case *Return:
		if s.Value == nil {
			return Null{}, sigReturn, nil
		}

		v, err := r.eval(ctx, s.Value, env)

		return v, sigReturn, err

	case *Break:
		return Null{}, sigBreak, nil

	case *Continue:
		return Null{}, sigContinue, nil

	default:
		panic(fmt.Sprintf("cannot execute %T", s))
	}
}

// execBlock runs the statements of b directly in env.
func (r *run) execBlock(ctx context.Context, b *Block, env *Environment) (Value, signal, error) {
	var result Value = Null{}

	for _, s := range b.Stmts {
		v, sig, err := r.exec(ctx, s, env)
		if err != nil || sig != sigNone {
			return v, sig, err
		}

		result = v
	}

	return result, sigNone, nil
}

func (r *run) condition(ctx context.Context, x Expr, env *Environment, what string) (bool, error) {
	v, err := r.eval(ctx, x, env)
	if err != nil {
		return false, err
	}

	b, ok := v.(Boolean)
	if !ok {
		return false, r.errorf(TypeError, x.Pos(),
			"%s condition must be Boolean, got %s", what, v.Kind())
	}

	return bool(b), nil
}

func (r *run) execConditional(ctx context.Context, s *Conditional, env *Environment) (Value, signal, error) {
	ok, err := r.condition(ctx, s.Cond, env, KwIf)
	if err != nil {
		return nil, sigNone, err
	}

	switch {
	case ok:
		return r.execBlock(ctx, s.Then, NewEnvironment(env))
	case s.Else != nil:
		// An elif arm is a nested conditional evaluated without a new
		// statement boundary.
		if elif, isElif := s.Else.(*Conditional); isElif {
			return r.execConditional(ctx, elif, env)
		}

		return r.exec(ctx, s.Else, env)
	default:
		return Null{}, sigNone, nil
	}
}

func (r *run) execWhile(ctx context.Context, s *WhileLoop, env *Environment) (Value, signal, error) {
	for first := true; ; first = false {
		if !first {
			if err := r.checkpoint(ctx, s.While); err != nil {
				return nil, sigNone, err
			}
		}

		ok, err := r.condition(ctx, s.Cond, env, KwWhile)
		if err != nil {
			return nil, sigNone, err
		}

		if !ok {
			return Null{}, sigNone, nil
		}

		v, sig, err := r.execBlock(ctx, s.Body, NewEnvironment(env))

		switch {
		case err != nil:
			return nil, sigNone, err
		case sig == sigBreak:
			return Null{}, sigNone, nil
		case sig == sigReturn:
			return v, sig, nil
		}
	}
}

func (r *run) execFor(ctx context.Context, s *ForLoop, env *Environment) (Value, signal, error) {
	iterable, err := r.eval(ctx, s.Iter, env)
	if err != nil {
		return nil, sigNone, err
	}

	var items []Value

	switch it := iterable.(type) {
	case *List:
		items = it.elems
	case *Map:
		items = make([]Value, len(it.keys))
		for i, k := range it.keys {
			items[i] = String(k)
		}
	case String:
		for _, c := range string(it) {
			items = append(items, String(c))
		}
	default:
		return nil, sigNone, r.errorf(TypeError, s.Iter.Pos(),
			"cannot iterate over %s", iterable.Kind())
	}

	for i, item := range items {
		if i > 0 {
			if err := r.checkpoint(ctx, s.For); err != nil {
				return nil, sigNone, err
			}
		}

		scope := NewEnvironment(env)
		scope.Declare(s.Var.Name, item)

		v, sig, err := r.execBlock(ctx, s.Body, scope)

		switch {
		case err != nil:
			return nil, sigNone, err
		case sig == sigBreak:
			return Null{}, sigNone, nil
		case sig == sigReturn:
			return v, sig, nil
		}
	}

	return Null{}, sigNone, nil
}

func (r *run) eval(ctx context.Context, x Expr, env *Environment) (Value, error) {
	switch x := x.(type) {
	case *Literal:
		return x.Value, nil

	case *Identifier:
		return r.lookup(x, env)

	case *BinaryOp:
		return r.evalBinary(ctx, x, env)

	case *UnaryOp:
		return r.evalUnary(ctx, x, env)

	case *Call:
		return r.evalCall(ctx, x, env)

	case *Index:
		return r.evalIndex(ctx, x, env)

	case *ListLiteral:
		elems := make([]Value, len(x.Elems))

		for i, e := range x.Elems {
			v, err := r.eval(ctx, e, env)
			if err != nil {
				return nil, err
			}

			elems[i] = v
		}

		return &List{elems: elems}, nil

	case *MapLiteral:
		m := &Map{vals: make(map[string]Value, len(x.Entries))}

		for _, e := range x.Entries {
			v, err := r.eval(ctx, e.Value, env)
			if err != nil {
				return nil, err
			}

			m.set(e.Key, v)
		}

		return m, nil

	case *FunctionLiteral:
		return &Function{Params: paramNames(x.Params), Body: x.Body, Env: env}, nil

	case *Assignment:
		v, err := r.eval(ctx, x.Value, env)
		if err != nil {
			return nil, err
		}

		if !env.Assign(x.Target.Name, v) {
			return nil, r.nameError(x.Target, env,
				"assignment to undeclared name %q", x.Target.Name)
		}

		return v, nil

	default:
		panic(fmt.Sprintf("cannot evaluate %T", x))
	}
}

// lookup resolves a name in the environment, then in the registry.
func (r *run) lookup(id *Identifier, env *Environment) (Value, error) {
	if v, ok := env.Lookup(id.Name); ok {
		return v, nil
	}

	if n, ok := r.in.registry.Resolve(id.Name); ok {
		return n, nil
	}

	return nil, r.nameError(id, env, "undefined name %q", id.Name)
}

// nameError builds a NameError, suggesting a visible name that fuzzily
// matches the unresolved one.
func (r *run) nameError(id *Identifier, env *Environment, format string, args ...any) error {
	d := r.errorf(NameError, id.NamePos, format, args...)

	candidates := slices.Concat(env.Names(), r.in.registry.Names())
	if matches := fuzzy.Find(id.Name, candidates); len(matches) > 0 {
		best := matches[0].Str
		d.Message += fmt.Sprintf("; did you mean %q?", best)
		d.with(slog.String("suggestion", best))
	}

	return d
}

func (r *run) evalBinary(ctx context.Context, x *BinaryOp, env *Environment) (Value, error) {
	op, ok := r.in.grammar.Operators.Binary(x.Op)
	if !ok || op.Apply == nil {
		return nil, r.errorf(TypeError, x.OpPos, "operator %q has no implementation", x.Op)
	}

	left, err := r.eval(ctx, x.Left, env)
	if err != nil {
		return nil, err
	}

	if x.Op == KwAnd || x.Op == KwOr {
		b, ok := left.(Boolean)
		if !ok {
			return nil, r.locate(OperandError(x.Op, left), x.OpPos, x.Op)
		}

		if bool(b) == (x.Op == KwOr) {
			return b, nil
		}
	}

	right, err := r.eval(ctx, x.Right, env)
	if err != nil {
		return nil, err
	}

	v, err := protect(func() (Value, error) { return op.Apply(left, right) })
	if err != nil {
		return nil, r.locate(err, x.OpPos, "operator "+x.Op)
	}

	if v == nil {
		return Null{}, nil
	}

	return v, nil
}

func (r *run) evalUnary(ctx context.Context, x *UnaryOp, env *Environment) (Value, error) {
	op, ok := r.in.grammar.Operators.Unary(x.Op)
	if !ok {
		return nil, r.errorf(TypeError, x.OpPos, "operator %q has no implementation", x.Op)
	}

	operand, err := r.eval(ctx, x.Operand, env)
	if err != nil {
		return nil, err
	}

	v, err := protect(func() (Value, error) { return op.Apply(operand) })
	if err != nil {
		return nil, r.locate(err, x.OpPos, "operator "+x.Op)
	}

	if v == nil {
		return Null{}, nil
	}

	return v, nil
}

func (r *run) evalCall(ctx context.Context, x *Call, env *Environment) (Value, error) {
	var (
		callee Value
		err    error
	)

	// A called name resolves to a native function before any variable.
	if id, ok := x.Callee.(*Identifier); ok {
		if n, found := r.in.registry.Resolve(id.Name); found {
			callee = n
		}
	}

	if callee == nil {
		if callee, err = r.eval(ctx, x.Callee, env); err != nil {
			return nil, err
		}
	}

	args := make([]Value, len(x.Args))
	for i, a := range x.Args {
		if args[i], err = r.eval(ctx, a, env); err != nil {
			return nil, err
		}
	}

	return r.call(ctx, x.Lparen, callee, args)
}

func (r *run) call(ctx context.Context, pos Position, callee Value, args []Value) (Value, error) {
	switch fn := callee.(type) {
	case *Function:
		return r.callFunction(ctx, pos, fn, args)

	case *Native:
		return r.callNative(ctx, pos, fn, args)

	default:
		return nil, r.errorf(TypeError, pos, "%s is not callable", kindOf(callee))
	}
}

func (r *run) callFunction(ctx context.Context, pos Position, fn *Function, args []Value) (Value, error) {
	if len(args) != len(fn.Params) {
		return nil, r.errorf(ArityError, pos,
			"%s expects %d argument%s, got %d",
			callableName(fn), len(fn.Params), plural(len(fn.Params)), len(args))
	}

	if r.depth >= r.in.maxDepth {
		return nil, r.errorf(RuntimeError, pos, "%s (%d)", ErrDepthLimit.msg,
			r.in.maxDepth).wrap(ErrDepthLimit)
	}

	r.depth++
	defer func() { r.depth-- }()

	scope := NewEnvironment(fn.Env)
	for i, p := range fn.Params {
		scope.Declare(p, args[i])
	}

	v, sig, err := r.execBlock(ctx, fn.Body, scope)

	switch {
	case err != nil:
		return nil, err
	case sig == sigReturn:
		return v, nil
	default:
		return Null{}, nil
	}
}

func (r *run) callNative(ctx context.Context, pos Position, fn *Native, args []Value) (Value, error) {
	if fn.Arity != Variadic && len(args) != fn.Arity {
		return nil, r.errorf(ArityError, pos,
			"%s expects %d argument%s, got %d",
			callableName(fn), fn.Arity, plural(fn.Arity), len(args))
	}

	r.logger.TraceContext(ctx, "native call",
		slog.String("name", fn.Name),
		slog.Int("args", len(args)),
	)

	v, err := protect(func() (Value, error) { return fn.Fn(ctx, args) })
	if err != nil {
		return nil, r.locate(err, pos, fn.Name)
	}

	if v == nil {
		return Null{}, nil
	}

	return v, nil
}

func (r *run) evalIndex(ctx context.Context, x *Index, env *Environment) (Value, error) {
	target, err := r.eval(ctx, x.Target, env)
	if err != nil {
		return nil, err
	}

	key, err := r.eval(ctx, x.Index, env)
	if err != nil {
		return nil, err
	}

	switch t := target.(type) {
	case *List:
		i, err := r.position(x, key, t.Len())
		if err != nil {
			return nil, err
		}

		return t.elems[i], nil

	case String:
		runes := []rune(string(t))

		i, err := r.position(x, key, len(runes))
		if err != nil {
			return nil, err
		}

		return String(runes[i]), nil

	case *Map:
		k, ok := key.(String)
		if !ok {
			return nil, r.errorf(TypeError, x.Lbrack,
				"map index must be String, got %s", key.Kind())
		}

		v, ok := t.Get(string(k))
		if !ok {
			return nil, r.errorf(RuntimeError, x.Lbrack, "key %q not found", string(k))
		}

		return v, nil

	default:
		return nil, r.errorf(TypeError, x.Lbrack, "cannot index %s", target.Kind())
	}
}

// position validates key as an index into a sequence of length n.
func (r *run) position(x *Index, key Value, n int) (int, error) {
	num, ok := key.(Number)
	if !ok {
		return 0, r.errorf(TypeError, x.Lbrack,
			"index must be Number, got %s", key.Kind())
	}

	f := float64(num)
	if f != math.Trunc(f) {
		return 0, r.errorf(TypeError, x.Lbrack, "index %s is not an integer", num)
	}

	if f < 0 || f >= float64(n) {
		return 0, r.errorf(RuntimeError, x.Lbrack,
			"index %s out of range [0, %d)", num, n)
	}

	return int(f), nil
}

// protect runs host code, converting a panic into an error.
func protect(fn func() (Value, error)) (v Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			perr, ok := p.(error)
			if !ok {
				perr = fmt.Errorf("%v", p)
			}

			v, err = nil, fmt.Errorf("panic: %w", perr)
		}
	}()

	return fn()
}

func paramNames(ids []*Identifier) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Name
	}

	return names
}

func callableName(v Value) string {
	switch fn := v.(type) {
	case *Function:
		if fn.Name == "" {
			return "anonymous function"
		}

		return "function " + fn.Name
	case *Native:
		return "native " + fn.Name
	default:
		return kindOf(v)
	}
}

func kindOf(v Value) string {
	if v == nil {
		return "nil"
	}

	return v.Kind().String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}

	return "s"
}

// describeArgs renders the kinds of args, e.g. "Number, String".
func describeArgs(args []Value) string {
	kinds := make([]string, len(args))
	for i, a := range args {
		kinds[i] = kindOf(a)
	}

	return strings.Join(kinds, ", ")
}
