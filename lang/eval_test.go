package lang

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func runString(t *testing.T, in *Interpreter, env *Environment, input string) (Value, error) {
	t.Helper()

	return in.Run(context.Background(), NewSource("test", input), env)
}

func mustValue(t *testing.T, x any) Value {
	t.Helper()

	v, err := ToValue(x)
	if err != nil {
		t.Fatalf("ToValue(%v): %v", x, err)
	}

	return v
}

func checkValue(t *testing.T, got Value, want any) {
	t.Helper()

	if w := mustValue(t, want); !Equal(got, w) {
		t.Errorf("expected %s, got %s", Repr(w), Repr(got))
	}
}

func checkDiagnostic(t *testing.T, err error, cat Category, message string) *Diagnostic {
	t.Helper()

	var d *Diagnostic
	if !errors.As(err, &d) {
		t.Fatalf("expected *Diagnostic, got %T: %v", err, err)
	}

	if d.Category != cat {
		t.Errorf("expected %s, got %s: %v", cat, d.Category, d)
	}

	if !strings.Contains(d.Message, message) {
		t.Errorf("expected message containing %q, got %q", message, d.Message)
	}

	return d
}

func TestEvaluate_Values(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "precedence", input: "2 + 3 * 4", want: 14},
		{name: "grouping", input: "(2 + 3) * 4", want: 20},
		{name: "modulo", input: "7 % 3", want: 1},
		{name: "division", input: "10 / 4", want: 2.5},
		{name: "negation", input: "-(1 + 2)", want: -3},
		{name: "word operators", input: "set n = 6 mul 7 sub 2; n div 4 加 1", want: 11},
		{name: "pass and call", input: "def f() { pass; 回 9; end call f()", want: 9},
		{name: "string concat", input: `"a" + "b"`, want: "ab"},
		{name: "list concat", input: "[1] + [2, 3]", want: []any{1, 2, 3}},
		{name: "comparison", input: "1 < 2 and 2 <= 2", want: true},
		{name: "string order", input: `"abc" < "abd"`, want: true},
		{name: "not", input: "not false", want: true},
		{name: "bang", input: "!true", want: false},
		{name: "structural equality", input: "[1, {a: 2}] == [1, {a: 2}]", want: true},
		{name: "kind inequality", input: `1 != "1"`, want: true},
		{name: "short circuit or", input: "true or 1", want: true},
		{name: "short circuit and", input: "false and 1", want: false},
		{name: "assignment", input: "let x = 5; x = x + 1; x", want: 6},
		{name: "assignment value", input: "let x; let y; x = y = 3; x + y", want: 6},
		{name: "uninitialized", input: "let x; x", want: nil},
		{name: "list index", input: "let l = [10, 20]; l[1]", want: 20},
		{name: "map index", input: `({a: 1})["a"]`, want: 1},
		{name: "string index", input: `"héllo"[1]`, want: "é"},
		{name: "block value", input: "{ 1; 2; }", want: 2},
		{name: "if value", input: "if false { 1; } elif true { 2; } else { 3; }", want: 2},
		{name: "if without match", input: "if false { 1; }", want: nil},
		{name: "loop value", input: "let v = 1; while false {}", want: nil},
		{name: "function without return", input: "function f() {} f()", want: nil},
		{name: "function literal", input: "let f = function (x) { return x * 2; }; f(4)", want: 8},
		{name: "immediate call", input: "(function (x) { return x; })(7)", want: 7},
		{
			name:  "recursion",
			input: "function fib(n) { if n < 2 { return n; } return fib(n - 1) + fib(n - 2); } fib(10)",
			want:  55,
		},
		{
			name: "closure",
			input: `function counter() {
				let n = 0;
				return function () { n = n + 1; return n; };
			}
			let c = counter(); c(); c(); c()`,
			want: 3,
		},
		{name: "for list", input: "let s = 0; for x in [1, 2, 3] { s = s + x; } s", want: 6},
		{name: "for map keys", input: `let s = ""; for k in ({b: 1, a: 2}) { s = s + k; } s`, want: "ba"},
		{name: "for string", input: `let s = ""; for c in "héllo" { s = c + s; } s`, want: "olléh"},
		{
			name: "break and continue",
			input: `let i = 0; let n = 0;
			while true {
				i = i + 1;
				if i > 10 { break; }
				if i % 2 == 0 { continue; }
				n = n + i;
			}
			n`,
			want: 25,
		},
		{
			name:  "return from loop",
			input: "function f() { for x in [1, 2] { if x == 2 { return x * 10; } } return 0; } f()",
			want:  20,
		},
		{
			name:  "nested break",
			input: "let n = 0; for x in [1, 2] { for y in [1, 2, 3] { if y == 2 { break; } n = n + 1; } } n",
			want:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runString(t, New(), nil, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			checkValue(t, got, tt.want)
		})
	}
}

func TestEvaluate_Scoping(t *testing.T) {
	in := New()
	env := NewEnvironment(nil)

	got, err := runString(t, in, env, "let x = 2; { let x = 1; x; }")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkValue(t, got, 1)

	got, err = runString(t, in, env, "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkValue(t, got, 2)

	// Assignment reaches the declaring scope.
	got, err = runString(t, in, env, "{ x = 5; } x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkValue(t, got, 5)

	// Blocks do not leak their declarations.
	if _, ok := env.Local("x"); !ok {
		t.Errorf("expected x in global scope")
	}

	if names := env.Names(); len(names) != 1 {
		t.Errorf("expected only x in global scope, got %v", names)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category Category
		message  string
	}{
		{name: "operand kinds", input: `1 + "a"`, category: TypeError, message: `operator "+" not defined for Number and String`},
		{name: "unary operand", input: `-"a"`, category: TypeError, message: `operator "-" not defined for String`},
		{name: "not operand", input: "not 1", category: TypeError, message: `operator "not" not defined for Number`},
		{name: "logical operand", input: "1 and true", category: TypeError, message: `operator "and" not defined for Number`},
		{name: "ordering operand", input: `1 < "a"`, category: TypeError, message: `operator "<" not defined for Number and String`},
		{
			name:     "arity",
			input:    "function double(n) { return n * 2; } double(5, 6)",
			category: ArityError,
			message:  "function double expects 1 argument, got 2",
		},
		{name: "anonymous arity", input: "(function (a, b) {})(1)", category: ArityError, message: "anonymous function expects 2 arguments, got 1"},
		{name: "undefined", input: "undefinedName", category: NameError, message: `undefined name "undefinedName"`},
		{name: "suggestion", input: "let count = 1; cont", category: NameError, message: `did you mean "count"?`},
		{name: "undeclared assignment", input: "y = 1", category: NameError, message: `assignment to undeclared name "y"`},
		{name: "division by zero", input: "1 / 0", category: RuntimeError, message: "division by zero"},
		{name: "modulo by zero", input: "5 % 0", category: RuntimeError, message: "modulo by zero"},
		{name: "index range", input: "[1][2]", category: RuntimeError, message: "index 2 out of range [0, 1)"},
		{name: "negative index", input: "[1][-1]", category: RuntimeError, message: "out of range"},
		{name: "fractional index", input: "[1][0.5]", category: TypeError, message: "index 0.5 is not an integer"},
		{name: "index kind", input: `[1]["a"]`, category: TypeError, message: "index must be Number, got String"},
		{name: "missing key", input: `({a: 1})["b"]`, category: RuntimeError, message: `key "b" not found`},
		{name: "map index kind", input: `({a: 1})[0]`, category: TypeError, message: "map index must be String, got Number"},
		{name: "not indexable", input: "5[0]", category: TypeError, message: "cannot index Number"},
		{name: "if condition", input: "if 1 { }", category: TypeError, message: "if condition must be Boolean, got Number"},
		{name: "while condition", input: "while null {}", category: TypeError, message: "while condition must be Boolean, got Null"},
		{name: "not iterable", input: "for x in 5 {}", category: TypeError, message: "cannot iterate over Number"},
		{name: "not callable", input: "5()", category: TypeError, message: "Number is not callable"},
		{name: "depth", input: "function f() { return f(); } f()", category: RuntimeError, message: "maximum call depth exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runString(t, New(), nil, tt.input)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}

			d := checkDiagnostic(t, err, tt.category, tt.message)
			if !d.Pos.IsValid() {
				t.Errorf("expected a source position, got none")
			}
		})
	}
}

func TestEvaluate_ErrorPosition(t *testing.T) {
	_, err := runString(t, New(), nil, "let a = 1;\nlet b = a + \"x\";")

	d := checkDiagnostic(t, err, TypeError, "not defined")

	if d.Line() != 2 || d.Column() != 11 {
		t.Errorf("expected 2:11, got %s", d.Pos)
	}

	if got, want := d.Error(), `test:2:11: type error: operator "+" not defined for Number and String`; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if !errors.Is(err, ErrType) {
		t.Errorf("expected errors.Is(err, ErrType)")
	}
}

func TestEvaluate_EnvironmentSurvivesError(t *testing.T) {
	in := New()
	env := NewEnvironment(nil)

	if _, err := runString(t, in, env, "let x = 1;"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := runString(t, in, env, `x + "a"`); err == nil {
		t.Fatalf("expected error, got nil")
	}

	got, err := runString(t, in, env, "x + 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkValue(t, got, 2)
}

func TestEvaluate_MalformedProgram(t *testing.T) {
	prog, diags := ParseString("test", "let = ;")
	if len(diags) == 0 {
		t.Fatalf("expected parse errors")
	}

	_, err := Evaluate(context.Background(), prog, nil)

	if !errors.Is(err, ErrMalformedProgram) {
		t.Errorf("expected %v, got %v", ErrMalformedProgram, err)
	}

	if !errors.Is(err, ErrParse) {
		t.Errorf("expected errors.Is(err, ErrParse), got %v", err)
	}

	// Run reports the diagnostics themselves.
	_, err = runString(t, New(), nil, "let = ;")

	var ds Diagnostics
	if !errors.As(err, &ds) || len(ds) != 1 {
		t.Errorf("expected 1 diagnostic, got %v", err)
	}
}

func pow(l, r Value) (Value, error) {
	ln, lok := l.(Number)
	rn, rok := r.(Number)

	if !lok || !rok {
		return nil, OperandError("**", l, r)
	}

	return Number(math.Pow(float64(ln), float64(rn))), nil
}

func TestEvaluate_HostOperators(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("**", 7, Right, pow); err != nil {
		t.Fatalf("define **: %v", err)
	}

	errBoom := errors.New("boom")

	if err := g.Operators.Define("<>", 3, Left, func(Value, Value) (Value, error) {
		return nil, errBoom
	}); err != nil {
		t.Fatalf("define <>: %v", err)
	}

	if err := g.Operators.Define("xor", 2, Left, func(l, r Value) (Value, error) {
		lb, lok := l.(Boolean)
		rb, rok := r.(Boolean)

		if !lok || !rok {
			return nil, OperandError("xor", l, r)
		}

		return Boolean(lb != rb), nil
	}); err != nil {
		t.Fatalf("define xor: %v", err)
	}

	nothing := func(Value, Value) (Value, error) { return nil, nil }
	if err := g.Operators.Define("<?>", 3, Left, nothing); err != nil {
		t.Fatalf("define <?>: %v", err)
	}

	if err := g.Operators.DefineUnary("~", func(Value) (Value, error) { return nil, nil }); err != nil {
		t.Fatalf("define ~: %v", err)
	}

	in := New(WithGrammar(g))

	tests := []struct {
		input string
		want  any
	}{
		{"2 ** 3 ** 2", 512},
		{"1 <?> 2", nil},
		{"~1", nil},
		{"let n = 1 <?> 2; n == null", true},
		{"-2 ** 2", 4},
		{"2 * 3 ** 2", 18},
		{"true xor false", true},
		{"true xor true", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := runString(t, in, nil, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			checkValue(t, got, tt.want)
		})
	}

	t.Run("operand error", func(t *testing.T) {
		_, err := runString(t, in, nil, `"a" ** 2`)
		checkDiagnostic(t, err, TypeError, `operator "**" not defined for String and Number`)
	})

	t.Run("host error", func(t *testing.T) {
		_, err := runString(t, in, nil, "1 <> 2")
		checkDiagnostic(t, err, RuntimeError, "boom")

		if !errors.Is(err, errBoom) {
			t.Errorf("expected errors.Is(err, errBoom)")
		}
	})
}

func TestEvaluate_ProgramGrammar(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("**", 7, Right, pow); err != nil {
		t.Fatalf("define **: %v", err)
	}

	prog, diags := NewParser(NewSource("test", "2 ** 3"), g).ParseProgram()
	if len(diags) != 0 {
		t.Fatalf("parse: %v", diags)
	}

	got, err := Evaluate(context.Background(), prog, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkValue(t, got, 8)
}

func TestEvaluate_ReconfiguredPrecedence(t *testing.T) {
	g := DefaultGrammar()

	if err := g.Operators.Define("+", 7, Left, nil); err != nil {
		t.Fatalf("define: %v", err)
	}

	got, err := runString(t, New(WithGrammar(g)), nil, "1 + 2 * 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkValue(t, got, 9)
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry()

	reg.MustRegister("plus", 2, func(_ context.Context, args []Value) (Value, error) {
		a, err := Arg[Number]("plus", args, 0)
		if err != nil {
			return nil, err
		}

		b, err := Arg[Number]("plus", args, 1)
		if err != nil {
			return nil, err
		}

		return a + b, nil
	})

	reg.MustRegister("sum", Variadic, func(_ context.Context, args []Value) (Value, error) {
		var total Number

		for i := range args {
			n, err := Arg[Number]("sum", args, i)
			if err != nil {
				return nil, err
			}

			total += n
		}

		return total, nil
	})

	reg.MustRegister("answer", 0, func(context.Context, []Value) (Value, error) {
		return Number(42), nil
	})

	reg.MustRegister("nothing", 0, func(context.Context, []Value) (Value, error) {
		return nil, nil
	})

	reg.MustRegister("explode", 0, func(context.Context, []Value) (Value, error) {
		panic("kaboom")
	})

	reg.MustRegister("apply", 2, func(ctx context.Context, args []Value) (Value, error) {
		return Invoke(ctx, args[0], args[1])
	})

	return reg
}

func TestEvaluate_Natives(t *testing.T) {
	in := New(WithRegistry(testRegistry(t)))

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "call", input: "plus(1, 2)", want: 3},
		{name: "variadic none", input: "sum()", want: 0},
		{name: "variadic many", input: "sum(1, 2, 3, 4)", want: 10},
		{name: "nil result", input: "nothing()", want: nil},
		{name: "call shadows variable", input: "let answer = 1; answer() + answer", want: 43},
		{name: "native as value", input: "let f = plus; f(2, 3)", want: 5},
		{name: "callback", input: "apply(function (x) { return x + 1; }, 41)", want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runString(t, in, nil, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			checkValue(t, got, tt.want)
		})
	}

	errs := []struct {
		name     string
		input    string
		category Category
		message  string
	}{
		{name: "arity", input: "plus(1)", category: ArityError, message: "native plus expects 2 arguments, got 1"},
		{name: "argument kind", input: `plus(1, "b")`, category: TypeError, message: "plus: argument 2 must be Number, got String"},
		{name: "panic", input: "explode()", category: RuntimeError, message: "panic: kaboom"},
		{name: "callback arity", input: "apply(answer, 0)", category: ArityError, message: "native answer expects 0 arguments, got 1"},
		{name: "callback error", input: `apply(function (x) { return x + "a"; }, 1)`, category: TypeError, message: "not defined for Number and String"},
	}

	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runString(t, in, nil, tt.input)
			d := checkDiagnostic(t, err, tt.category, tt.message)

			if !d.Pos.IsValid() {
				t.Errorf("expected a source position, got none")
			}
		})
	}
}

func TestInvoke_OutsideRun(t *testing.T) {
	fn := &Native{Name: "id", Arity: 0, Fn: func(context.Context, []Value) (Value, error) {
		return Null{}, nil
	}}

	if _, err := Invoke(context.Background(), fn); !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("expected %v, got %v", ErrNoActiveRun, err)
	}
}

func TestInterpreter_Call(t *testing.T) {
	in := New()
	env := NewEnvironment(nil)

	if _, err := runString(t, in, env, "function sq(x) { return x * x; }"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn, ok := env.Lookup("sq")
	if !ok {
		t.Fatalf("expected sq to be declared")
	}

	got, err := in.Call(context.Background(), fn, Number(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checkValue(t, got, 49)

	_, err = in.Call(context.Background(), fn)
	checkDiagnostic(t, err, ArityError, "function sq expects 1 argument, got 0")
}

func TestRegistry_FrozenDuringRun(t *testing.T) {
	reg := NewRegistry()

	var (
		registerErr error
		active      bool
	)

	noop := func(context.Context, []Value) (Value, error) { return nil, nil }

	reg.MustRegister("mutate", 0, func(context.Context, []Value) (Value, error) {
		active = reg.Active()
		registerErr = reg.Register("late", 0, noop)

		return nil, nil
	})

	if _, err := runString(t, New(WithRegistry(reg)), nil, "mutate()"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !active {
		t.Errorf("expected registry to be active during the run")
	}

	if !errors.Is(registerErr, ErrRegistryActive) {
		t.Errorf("expected %v, got %v", ErrRegistryActive, registerErr)
	}

	if reg.Active() {
		t.Errorf("expected registry to be inactive after the run")
	}

	if err := reg.Register("late", 0, noop); err != nil {
		t.Errorf("expected registration after the run to succeed, got %v", err)
	}
}

func TestRunID(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("id", 0, func(ctx context.Context, _ []Value) (Value, error) {
		id, ok := RunID(ctx)
		if !ok {
			return nil, errors.New("no run id")
		}

		return String(id), nil
	})

	in := New(WithRegistry(reg))

	first, err := runString(t, in, nil, "id()")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := runString(t, in, nil, "id()")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.String() == "" || first.String() == second.String() {
		t.Errorf("expected distinct run ids, got %q and %q", first, second)
	}

	if _, ok := RunID(context.Background()); ok {
		t.Errorf("expected no run id outside a run")
	}
}

func TestEvaluate_Cancellation(t *testing.T) {
	errStop := errors.New("stop requested")

	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		cancel(errStop)

		_, err := New().Run(ctx, NewSource("test", "while true {}"), nil)
		checkDiagnostic(t, err, RuntimeError, "evaluation cancelled")

		if !errors.Is(err, errStop) {
			t.Errorf("expected errors.Is(err, errStop), got %v", err)
		}
	})

	t.Run("from native", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		defer cancel(nil)

		reg := NewRegistry()
		reg.MustRegister("stop", 0, func(context.Context, []Value) (Value, error) {
			cancel(errStop)

			return nil, nil
		})

		_, err := New(WithRegistry(reg)).Run(ctx, NewSource("test", "stop(); while true {}"), nil)
		if !errors.Is(err, errStop) {
			t.Errorf("expected errors.Is(err, errStop), got %v", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := New().Run(ctx, NewSource("test", "let i = 0; while true { i = i + 1; }"), nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected %v, got %v", context.DeadlineExceeded, err)
		}
	})
}

func TestEvaluate_Limits(t *testing.T) {
	t.Run("steps", func(t *testing.T) {
		_, err := runString(t, New(WithMaxSteps(100)), nil, "while true {}")

		if !errors.Is(err, ErrStepLimit) {
			t.Errorf("expected %v, got %v", ErrStepLimit, err)
		}

		if !errors.Is(err, ErrRuntime) {
			t.Errorf("expected errors.Is(err, ErrRuntime)")
		}
	})

	t.Run("steps within budget", func(t *testing.T) {
		got, err := runString(t, New(WithMaxSteps(100)), nil, "let i = 0; while i < 10 { i = i + 1; } i")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		checkValue(t, got, 10)
	})

	t.Run("depth", func(t *testing.T) {
		_, err := runString(t, New(WithMaxDepth(10)), nil,
			"function f(n) { return f(n + 1); } f(0)")

		if !errors.Is(err, ErrDepthLimit) {
			t.Errorf("expected %v, got %v", ErrDepthLimit, err)
		}
	})

	t.Run("depth within limit", func(t *testing.T) {
		got, err := runString(t, New(WithMaxDepth(10)), nil,
			"function f(n) { if n == 0 { return 0; } return 1 + f(n - 1); } f(9)")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		checkValue(t, got, 9)
	})
}

func TestEvaluate_Concurrent(t *testing.T) {
	in := New(WithRegistry(testRegistry(t)))

	src := NewSource("test", `
function fib(n) { if n < 2 { return n; } return plus(fib(n - 1), fib(n - 2)); }
fib(15)`)

	prog, diags := in.Parse(src)
	if len(diags) != 0 {
		t.Fatalf("parse: %v", diags)
	}

	var g errgroup.Group

	for i := range 8 {
		g.Go(func() error {
			v, err := in.Evaluate(context.Background(), prog, NewEnvironment(nil))
			if err != nil {
				return err
			}

			if !Equal(v, Number(610)) {
				return fmt.Errorf("run %d: expected 610, got %s", i, v)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Error(err)
	}

	if in.Registry().Active() {
		t.Errorf("expected registry to be inactive after all runs")
	}
}
