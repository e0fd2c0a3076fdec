package lang

import (
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
var (
	ErrReadInput        = NewError("failed to read input")
	ErrMalformedProgram = NewError("program has parse errors")
	ErrRegistryActive   = NewError("registry is in use by an active run")
	ErrDuplicateNative  = NewError("native function already registered")
	ErrInvalidNative    = NewError("invalid native function")
	ErrInvalidOperator  = NewError("invalid operator definition")
	ErrInvalidAlias     = NewError("invalid keyword alias")
	ErrNoActiveRun      = NewError("no active evaluation run")
	ErrUnsupportedValue = NewError("unsupported host value")
	ErrStepLimit        = NewError("step limit exceeded")
	ErrDepthLimit       = NewError("maximum call depth exceeded")
)

// Category sentinels. Every [Diagnostic] matches exactly one of these with
// [errors.Is].
var (
	ErrLex     = NewError("lex error")
	ErrParse   = NewError("parse error")
	ErrType    = NewError("type error")
	ErrArity   = NewError("arity error")
	ErrName    = NewError("name error")
	ErrRuntime = NewError("runtime error")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	attrs []slog.Attr // Attributes for structured logging
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is an Error with the same message, so that
// errors derived from a sentinel with Wrap or With still match it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.msg != "" && t.msg == e.msg
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		attrs: e.attrs,
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		attrs: newAttrs,
	}
}

// Category classifies a [Diagnostic].
type Category uint8

// Diagnostic categories.
const (
	LexError Category = iota
	ParseError
	TypeError
	ArityError
	NameError
	RuntimeError
)

var categorySentinel = [...]*Error{
	LexError:     ErrLex,
	ParseError:   ErrParse,
	TypeError:    ErrType,
	ArityError:   ErrArity,
	NameError:    ErrName,
	RuntimeError: ErrRuntime,
}

func (c Category) String() string {
	if int(c) < len(categorySentinel) {
		return categorySentinel[c].msg
	}

	return "Category(" + strconv.Itoa(int(c)) + ")"
}

// MarshalText encodes the category as a single word, e.g. "type".
func (c Category) MarshalText() ([]byte, error) {
	word, _, _ := strings.Cut(c.String(), " ")

	return []byte(word), nil
}

// Diagnostic is a user-facing error produced while lexing, parsing, or
// evaluating a program.
//
// errors.Is reports true for the sentinel of its Category (ErrType for a
// TypeError, and so on) and for any host error it wraps.
type Diagnostic struct {
	Category Category
	Message  string
	Pos      Position
	Source   *Source

	// Expected and Found describe the offending token of a ParseError.
	Expected []string
	Found    string

	cause error
	attrs []slog.Attr
}

func newDiagnostic(
	cat Category,
	src *Source,
	pos Position,
	msg string,
) *Diagnostic {
	return &Diagnostic{Category: cat, Message: msg, Pos: pos, Source: src}
}

// Line returns the 1-based line of the diagnostic, or 0 if unknown.
func (d *Diagnostic) Line() int { return d.Pos.Line }

// Column returns the 1-based column of the diagnostic, or 0 if unknown.
func (d *Diagnostic) Column() int { return d.Pos.Column }

// Cause returns the host error wrapped by the diagnostic, if any.
func (d *Diagnostic) Cause() error { return d.cause }

// Error implements the error interface:
//
//	name:line:column: category: message
func (d *Diagnostic) Error() string {
	var buf strings.Builder

	if d.Source != nil && d.Source.Name != "" {
		buf.WriteString(d.Source.Name)
		buf.WriteByte(':')
	}

	if d.Pos.IsValid() {
		buf.WriteString(d.Pos.String())
		buf.WriteString(": ")
	} else if buf.Len() > 0 {
		buf.WriteByte(' ')
	}

	buf.WriteString(d.Category.String())
	buf.WriteString(": ")
	buf.WriteString(d.Message)

	if d.cause != nil && !strings.Contains(d.Message, d.cause.Error()) {
		buf.WriteString(": ")
		buf.WriteString(d.cause.Error())
	}

	return buf.String()
}

// Unwrap exposes the category sentinel and any wrapped cause for
// errors.Is/As.
func (d *Diagnostic) Unwrap() []error {
	errs := []error{categorySentinel[d.Category]}
	if d.cause != nil {
		errs = append(errs, d.cause)
	}

	return errs
}

// Excerpt returns the offending source line with a caret under the column,
// or the empty string if the diagnostic has no source location.
func (d *Diagnostic) Excerpt() string {
	if d.Source == nil || !d.Pos.IsValid() {
		return ""
	}

	return d.Source.Excerpt(d.Pos)
}

// Detail returns the error message followed by the caret excerpt and, for
// parse errors, the list of expected tokens.
func (d *Diagnostic) Detail() string {
	var buf strings.Builder

	buf.WriteString(d.Error())
	buf.WriteByte('\n')
	buf.WriteString(d.Excerpt())

	if len(d.Expected) > 0 {
		exp := make([]string, 0, len(d.Expected))
		for _, e := range d.Expected {
			exp = append(exp, quoteExpected(e))
		}

		slices.Sort(exp)

		buf.WriteString("\texpected: ")
		buf.WriteString(strings.Join(exp, ", "))
		buf.WriteByte('\n')
	}

	return buf.String()
}

// LogValue implements slog.LogValuer.
func (d *Diagnostic) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(d.attrs)+6)
	attrs = append(attrs,
		slog.String("category", d.Category.String()),
		slog.String("message", d.Message),
	)

	if d.Pos.IsValid() {
		attrs = append(attrs,
			slog.Int("line", d.Pos.Line),
			slog.Int("column", d.Pos.Column),
		)
	}

	if d.Found != "" {
		attrs = append(attrs, slog.String("found", d.Found))
	}

	if d.cause != nil {
		attrs = append(attrs, slog.String("cause", d.cause.Error()))
	}

	return slog.GroupValue(append(attrs, d.attrs...)...)
}

func (d *Diagnostic) wrap(err error) *Diagnostic {
	d.cause = err

	return d
}

func (d *Diagnostic) with(attrs ...slog.Attr) *Diagnostic {
	d.attrs = append(d.attrs, attrs...)

	return d
}

// Diagnostics is a list of diagnostics in source order.
// A non-empty Diagnostics is itself an error.
type Diagnostics []*Diagnostic

// Err returns d as an error, or nil if d is empty.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}

	return d
}

// Error joins the messages of all diagnostics, one per line.
func (d Diagnostics) Error() string {
	msgs := make([]string, len(d))
	for i, diag := range d {
		msgs[i] = diag.Error()
	}

	return strings.Join(msgs, "\n")
}

// Unwrap exposes each diagnostic for errors.Is/As.
func (d Diagnostics) Unwrap() []error {
	errs := make([]error, len(d))
	for i, diag := range d {
		errs[i] = diag
	}

	return errs
}

// Count returns the number of diagnostics with the given category.
func (d Diagnostics) Count(cat Category) int {
	n := 0

	for _, diag := range d {
		if diag.Category == cat {
			n++
		}
	}

	return n
}

// sortDiagnostics orders d by position, keeping the relative order of
// diagnostics at the same offset.
func sortDiagnostics(d Diagnostics) {
	slices.SortStableFunc(d, func(a, b *Diagnostic) int {
		return a.Pos.Offset - b.Pos.Offset
	})
}
