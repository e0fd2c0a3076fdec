package repl

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/log"
)

// Session evaluates REPL input in one global environment that survives
// between inputs. Input that ends in the middle of a statement is held until
// a later line completes it.
type Session struct {
	in      *lang.Interpreter
	env     *lang.Environment
	sink    *Sink
	logger  log.Logger
	pending []string
	count   int
}

// Result is the outcome of one [Session.Eval].
type Result struct {
	Value   lang.Value // nil unless a statement ran
	Printed string     // output written by print while evaluating
	Err     error
	Pending bool // input is incomplete and more lines are expected
}

// NewSession returns a session evaluating with in. A nil env starts a fresh
// global scope. Output captured by sink, if not nil, is returned with each
// result.
func NewSession(
	in *lang.Interpreter,
	env *lang.Environment,
	sink *Sink,
	logger log.Logger,
) *Session {
	if env == nil {
		env = lang.NewEnvironment(nil)
	}

	return &Session{in: in, env: env, sink: sink, logger: logger}
}

// Env returns the global environment of s.
func (s *Session) Env() *lang.Environment { return s.env }

// Pending reports whether s holds incomplete input.
func (s *Session) Pending() bool { return len(s.pending) > 0 }

// PendingText returns the incomplete input held by s.
func (s *Session) PendingText() string { return strings.Join(s.pending, "\n") }

// Discard drops incomplete input.
func (s *Session) Discard() { s.pending = nil }

// Reset discards incomplete input and every global binding.
func (s *Session) Reset() {
	s.pending = nil
	s.env = lang.NewEnvironment(nil)
}

// Names returns every global name and native function, sorted and without
// duplicates.
func (s *Session) Names() []string {
	names := s.env.Names()
	if s.in != nil && s.in.Registry() != nil {
		names = append(names, s.in.Registry().Names()...)
	}

	return dedupe(names)
}

// Eval adds line to the pending input and evaluates it once it parses. A
// blank line submits pending input as is, so a broken continuation can be
// abandoned with its error.
func (s *Session) Eval(ctx context.Context, line string) Result {
	if s.in == nil {
		return Result{Err: ErrNoSession}
	}

	force := strings.TrimSpace(line) == ""
	if force && !s.Pending() {
		return Result{}
	}

	if !force {
		s.pending = append(s.pending, line)
	}

	src := lang.NewSource("<repl:"+strconv.Itoa(s.count+1)+">", strings.Join(s.pending, "\n"))

	prog, diags := s.in.Parse(src)
	if len(diags) > 0 {
		if !force && incomplete(src, diags) {
			s.logger.TraceContext(ctx, "repl continue",
				slog.Int("lines", len(s.pending)))

			return Result{Pending: true}
		}

		s.pending = nil

		return Result{Err: diags}
	}

	s.pending = nil

	return s.evaluate(ctx, prog)
}

// Source evaluates a complete program, such as the contents of an edited
// file, discarding pending input.
func (s *Session) Source(ctx context.Context, src *lang.Source) Result {
	if s.in == nil {
		return Result{Err: ErrNoSession}
	}

	s.pending = nil

	prog, diags := s.in.Parse(src)
	if len(diags) > 0 {
		return Result{Err: diags}
	}

	return s.evaluate(ctx, prog)
}

func (s *Session) evaluate(ctx context.Context, prog *lang.Program) Result {
	s.count++

	v, err := s.in.Evaluate(ctx, prog, s.env)

	var printed string
	if s.sink != nil {
		printed = s.sink.Drain()
	}

	return Result{Value: v, Printed: printed, Err: err}
}

// incomplete reports whether the first error in diags is caused by input
// ending early: a parse error at end of input, or an open block comment.
func incomplete(src *lang.Source, diags lang.Diagnostics) bool {
	d := diags[0]

	switch d.Category {
	case lang.ParseError:
		end := len(strings.TrimRight(src.Text(), " \t\r\n"))

		return d.Found == "" && d.Pos.Offset >= end
	case lang.LexError:
		return d.Message == "unterminated block comment"
	default:
		return false
	}
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]

	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}

		seen[n] = struct{}{}
		out = append(out, n)
	}

	slices.Sort(out)

	return out
}
