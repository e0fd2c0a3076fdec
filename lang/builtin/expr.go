package builtin

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	exprbuiltin "github.com/expr-lang/expr/builtin"
	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/catapillar/lang"
)

// maxCachedPrograms bounds the number of compiled expressions kept by an
// expr bundle.
const maxCachedPrograms = 256

// Expr returns the bundle that evaluates expr-lang expressions. environ
// supplies the variables seen by the env() function inside expressions;
// nil means os.Environ().
func Expr(environ []string) Bundle {
	c := &compiler{
		processEnv: buildProcessEnvMap(environ),
		programs:   make(map[string]*vm.Program),
	}

	return Bundle{
		Name: "expr",
		Funcs: []Func{
			{Name: "expr", Arity: lang.Variadic, Signature: "expr(source[, bindings])", Fn: c.eval},
		},
	}
}

// Compile returns a native function named name that evaluates the
// expr-lang expression source. The native takes one argument per entry of
// params, bound by position to that name within the expression.
func Compile(name, source string, params ...string) (*lang.Native, error) {
	seen := make(map[string]bool, len(params))

	for _, p := range params {
		if p == "" || p == "env" || seen[p] {
			return nil, ErrExprParams.With(
				slog.String("name", name),
				slog.String("param", p),
			)
		}

		seen[p] = true
	}

	c := &compiler{processEnv: buildProcessEnvMap(nil)}

	program, err := c.compile(source, params)
	if err != nil {
		return nil, err
	}

	fn := func(ctx context.Context, args []lang.Value) (lang.Value, error) {
		bindings := make(map[string]any, len(params))
		for i, p := range params {
			bindings[p] = hostValue(ctx, args[i])
		}

		return c.run(program, source, bindings)
	}

	return &lang.Native{Name: name, Arity: len(params), Fn: fn}, nil
}

// compiler compiles and runs expr-lang programs, caching compiled
// programs by source and binding names.
type compiler struct {
	processEnv map[string]string

	mu       sync.Mutex
	programs map[string]*vm.Program
}

func (c *compiler) eval(ctx context.Context, args []lang.Value) (lang.Value, error) {
	if err := lang.CheckArity("expr", args, 1, 2); err != nil {
		return nil, err
	}

	source, err := lang.Arg[lang.String]("expr", args, 0)
	if err != nil {
		return nil, err
	}

	bindings := map[string]any{}

	if len(args) > 1 {
		m, err := lang.Arg[*lang.Map]("expr", args, 1)
		if err != nil {
			return nil, err
		}

		for k, v := range m.All() {
			bindings[k] = hostValue(ctx, v)
		}
	}

	names := slices.Sorted(maps.Keys(bindings))

	program, err := c.cached(string(source), names)
	if err != nil {
		return nil, err
	}

	return c.run(program, string(source), bindings)
}

func (c *compiler) cached(source string, names []string) (*vm.Program, error) {
	key := source + "\x00" + strings.Join(names, "\x00")

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.programs[key]; ok {
		return p, nil
	}

	p, err := c.compile(source, names)
	if err != nil {
		return nil, err
	}

	if len(c.programs) >= maxCachedPrograms {
		clear(c.programs)
	}

	c.programs[key] = p

	return p, nil
}

// compile compiles source with the given binding names declared. Their
// types are unknown until run time, so bindings are left out of the
// checker's environment and undefined names are reported separately.
func (c *compiler) compile(source string, names []string) (*vm.Program, error) {
	idents := &identCollector{declared: map[string]bool{"env": true}}
	for _, n := range names {
		idents.declared[n] = true
	}

	env := map[string]any{"env": envFunc(c.processEnv)}

	program, err := expr.Compile(source,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.Patch(idents),
	)
	if err != nil {
		return nil, ErrExprCompile.Wrap(err).
			With(slog.String("source", source))
	}

	if name, ok := idents.undefined(); ok {
		return nil, ErrExprCompile.With(
			slog.String("source", source),
			slog.String("undefined", name),
		)
	}

	return program, nil
}

// identCollector records the identifiers an expression references and the
// names it declares with let.
type identCollector struct {
	declared map[string]bool
	used     []string
}

// Visit implements ast.Visitor for identCollector.
func (v *identCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		v.used = append(v.used, n.Value)

	case *ast.VariableDeclaratorNode:
		v.declared[n.Name] = true
	}
}

// undefined returns the first referenced name that is neither bound,
// declared nor an expr-lang builtin.
func (v *identCollector) undefined() (string, bool) {
	for _, name := range v.used {
		if _, ok := exprbuiltin.Index[name]; ok {
			continue
		}

		if !v.declared[name] && !strings.HasPrefix(name, "$") {
			return name, true
		}
	}

	return "", false
}

func (c *compiler) run(program *vm.Program, source string, bindings map[string]any) (lang.Value, error) {
	env := make(map[string]any, len(bindings)+1)
	maps.Copy(env, bindings)

	if _, ok := env["env"]; !ok {
		env["env"] = envFunc(c.processEnv)
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, ErrExprEvaluate.Wrap(err).
			With(slog.String("source", source))
	}

	return lang.ToValue(out)
}

// envFunc returns the env() function that gives expressions access to the
// process environment.
func envFunc(processEnv map[string]string) func(string) string {
	return func(key string) string {
		return processEnv[key]
	}
}

// hostValue converts v into data an expression can use. Functions become
// Go functions that call back into the run.
func hostValue(ctx context.Context, v lang.Value) any {
	switch v := v.(type) {
	case *lang.Function, *lang.Native:
		return func(args ...any) (any, error) {
			vals := make([]lang.Value, len(args))

			for i, a := range args {
				x, err := lang.ToValue(a)
				if err != nil {
					return nil, err
				}

				vals[i] = x
			}

			r, err := lang.Invoke(ctx, v, vals...)
			if err != nil {
				return nil, err
			}

			return hostValue(ctx, r), nil
		}

	case *lang.List:
		out := make([]any, 0, v.Len())
		for _, e := range v.All() {
			out = append(out, hostValue(ctx, e))
		}

		return out

	case *lang.Map:
		out := make(map[string]any, v.Len())
		for k, e := range v.All() {
			out[k] = hostValue(ctx, e)
		}

		return out
	}

	return lang.FromValue(v)
}
