package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/lang/builtin"
	"github.com/ardnew/catapillar/log"
)

func newTestSession(t *testing.T, out *bytes.Buffer) (*Session, *Sink) {
	t.Helper()

	sink := NewSink(out)
	bundles := builtin.All(builtin.Config{Stdout: sink, Environ: []string{}})

	reg := lang.NewRegistry()
	if err := builtin.Register(reg, bundles...); err != nil {
		t.Fatalf("register: %v", err)
	}

	in := lang.New(lang.WithRegistry(reg))

	return NewSession(in, nil, sink, log.Logger{}), sink
}

func TestSession_Persistent(t *testing.T) {
	s, _ := newTestSession(t, &bytes.Buffer{})
	ctx := context.Background()

	for _, line := range []string{"let x = 40;", "function inc(n) { return n + 1; }", "x = inc(x) + 1;"} {
		if res := s.Eval(ctx, line); res.Err != nil {
			t.Fatalf("%q: unexpected error: %v", line, res.Err)
		}
	}

	res := s.Eval(ctx, "x")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	if !lang.Equal(res.Value, lang.Number(42)) {
		t.Errorf("expected 42, got %s", lang.Repr(res.Value))
	}
}

func TestSession_Continuation(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  lang.Value
	}{
		{name: "function body", lines: []string{"function f(a) {", "  return a * 2;", "}", "f(4)"}, want: lang.Number(8)},
		{name: "call arguments", lines: []string{"max(1,", "5,", "3)"}, want: lang.Number(5)},
		{name: "list literal", lines: []string{"[1,", "2]"}, want: lang.NewList(lang.Number(1), lang.Number(2))},
		{name: "block comment", lines: []string{"/* a", "comment */ 7"}, want: lang.Number(7)},
		{name: "binary operator", lines: []string{"1 +", "2"}, want: lang.Number(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t, &bytes.Buffer{})

			var res Result

			for i, line := range tt.lines {
				res = s.Eval(context.Background(), line)
				if res.Err != nil {
					t.Fatalf("line %d: unexpected error: %v", i, res.Err)
				}
			}

			if res.Pending || s.Pending() {
				t.Fatalf("expected complete input, got pending %q", s.PendingText())
			}

			if !lang.Equal(res.Value, tt.want) {
				t.Errorf("expected %s, got %s", lang.Repr(tt.want), lang.Repr(res.Value))
			}
		})
	}
}

func TestSession_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cat   lang.Category
	}{
		{name: "misplaced token", input: "let = 3;", cat: lang.ParseError},
		{name: "closing bracket", input: "1 + )", cat: lang.ParseError},
		{name: "unknown name", input: "nope + 1", cat: lang.NameError},
		{name: "bad operand", input: `1 - "a"`, cat: lang.TypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t, &bytes.Buffer{})

			res := s.Eval(context.Background(), tt.input)
			if res.Pending {
				t.Fatal("expected error, got pending input")
			}

			var diag *lang.Diagnostic
			if !errors.As(res.Err, &diag) {
				t.Fatalf("expected diagnostic, got %v", res.Err)
			}

			if diag.Category != tt.cat {
				t.Errorf("expected %s, got %s", tt.cat, diag.Category)
			}

			if s.Pending() {
				t.Error("expected no pending input after an error")
			}

			if res := s.Eval(context.Background(), "1 + 1"); res.Err != nil {
				t.Errorf("expected session to continue, got %v", res.Err)
			}
		})
	}
}

func TestSession_BlankLineSubmits(t *testing.T) {
	s, _ := newTestSession(t, &bytes.Buffer{})
	ctx := context.Background()

	if res := s.Eval(ctx, ""); res.Err != nil || res.Value != nil || res.Pending {
		t.Fatalf("expected empty result, got %+v", res)
	}

	if res := s.Eval(ctx, "function f() {"); !res.Pending {
		t.Fatalf("expected pending input, got %+v", res)
	}

	res := s.Eval(ctx, "  ")
	if !errors.Is(res.Err, lang.ErrParse) {
		t.Errorf("expected parse error, got %v", res.Err)
	}

	if s.Pending() {
		t.Error("expected pending input to be discarded")
	}
}

func TestSession_CapturesPrint(t *testing.T) {
	var out bytes.Buffer

	s, sink := newTestSession(t, &out)
	sink.Capture()

	res := s.Eval(context.Background(), `print("hi", 2); 3`)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	if !strings.Contains(res.Printed, "hi") {
		t.Errorf("expected printed output to contain %q, got %q", "hi", res.Printed)
	}

	if out.Len() != 0 {
		t.Errorf("expected no direct output, got %q", out.String())
	}

	if got := sink.Drain(); got != "" {
		t.Errorf("expected drained sink, got %q", got)
	}
}

func TestSession_ResetAndNames(t *testing.T) {
	s, _ := newTestSession(t, &bytes.Buffer{})
	ctx := context.Background()

	s.Eval(ctx, "let zeta = 1;")

	names := s.Names()
	for _, want := range []string{"zeta", "len", "print"} {
		if !contains(names, want) {
			t.Errorf("expected names to contain %q, got %v", want, names)
		}
	}

	s.Reset()

	if _, ok := s.Env().Lookup("zeta"); ok {
		t.Error("expected reset to clear globals")
	}

	if res := s.Eval(ctx, "zeta"); !errors.Is(res.Err, lang.ErrName) {
		t.Errorf("expected name error, got %v", res.Err)
	}
}

func TestSession_Source(t *testing.T) {
	s, _ := newTestSession(t, &bytes.Buffer{})
	ctx := context.Background()

	s.Eval(ctx, "let a = [")

	res := s.Source(ctx, lang.NewSource("<edit>", "let a = 2;\na * 21"))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	if !lang.Equal(res.Value, lang.Number(42)) {
		t.Errorf("expected 42, got %s", lang.Repr(res.Value))
	}

	if s.Pending() {
		t.Error("expected pending input to be discarded")
	}
}

func TestSession_NoInterpreter(t *testing.T) {
	s := NewSession(nil, nil, nil, log.Logger{})

	if res := s.Eval(context.Background(), "1"); !errors.Is(res.Err, ErrNoSession) {
		t.Errorf("expected %v, got %v", ErrNoSession, res.Err)
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}

	return false
}
