package repl

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/lang/builtin"
)

// call locates the innermost unclosed call around the cursor.
type call struct {
	name string // callee identifier
	arg  int    // 0-based index of the argument under the cursor
}

// enclosingCall returns the call whose argument list contains byte offset
// cursor of input. Brackets inside string literals are ignored.
func enclosingCall(input string, cursor int) (call, bool) {
	cursor = min(max(cursor, 0), len(input))

	type open struct {
		pos  int
		args int
	}

	var (
		stack   []open
		inStr   bool
		escaped bool
	)

	for i, r := range input[:cursor] {
		switch {
		case escaped:
			escaped = false
		case inStr:
			switch r {
			case '\\':
				escaped = true
			case '"':
				inStr = false
			}
		case r == '"':
			inStr = true
		case r == '(' || r == '[' || r == '{':
			stack = append(stack, open{pos: i})
		case r == ')' || r == ']' || r == '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case r == ',':
			if len(stack) > 0 {
				stack[len(stack)-1].args++
			}
		}
	}

	if len(stack) == 0 || inStr {
		return call{}, false
	}

	top := stack[len(stack)-1]
	if input[top.pos] != '(' {
		return call{}, false
	}

	end := top.pos
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:end])
		if r != ' ' && r != '\t' {
			break
		}

		end -= size
	}

	name, _, _ := wordBounds(input, end)
	if name == "" {
		return call{}, false
	}

	return call{name: name, arg: top.args}, true
}

// signature describes the parameters of a callable for display.
type signature struct {
	name     string
	params   []string
	variadic bool // the last parameter repeats
}

// lookupSignature resolves the callable bound to name in s. Closures are
// described by their parameter names, natives by the signature of their
// builtin, or by arity when none is known.
func lookupSignature(s *Session, bundles []builtin.Bundle, name string) (signature, bool) {
	if v, ok := s.env.Lookup(name); ok {
		switch fn := v.(type) {
		case *lang.Function:
			return signature{name: name, params: fn.Params}, true
		case *lang.Native:
			return nativeSignature(bundles, name, fn.Arity), true
		default:
			return signature{}, false
		}
	}

	if s.in == nil || s.in.Registry() == nil {
		return signature{}, false
	}

	fn, ok := s.in.Registry().Resolve(name)
	if !ok {
		return signature{}, false
	}

	return nativeSignature(bundles, name, fn.Arity), true
}

func nativeSignature(bundles []builtin.Bundle, name string, arity int) signature {
	if f, ok := builtin.Lookup(bundles, name); ok && f.Signature != "" {
		return parseSignature(name, f.Signature)
	}

	if arity == lang.Variadic {
		return signature{name: name, params: []string{"args..."}, variadic: true}
	}

	params := make([]string, arity)
	for i := range params {
		params[i] = "arg" + strconv.Itoa(i+1)
	}

	return signature{name: name, params: params}
}

// parseSignature reads a display signature of the form
//
//	name(a, b[, c], rest...)
//
// Brackets marking optional parameters are dropped. The name shown is the
// one called, so aliases display under their own spelling.
func parseSignature(name, text string) signature {
	open, end := strings.IndexByte(text, '('), strings.LastIndexByte(text, ')')
	if open < 0 || end < open {
		return signature{name: name}
	}

	sig := signature{name: name}

	for _, p := range strings.Split(text[open+1:end], ",") {
		p = strings.Trim(p, " []")
		if p == "" {
			continue
		}

		sig.params = append(sig.params, p)
	}

	if n := len(sig.params); n > 0 && strings.HasSuffix(sig.params[n-1], "...") {
		sig.variadic = true
	}

	return sig
}

// current returns the index of the parameter receiving argument arg, or -1
// if arg is past the last parameter.
func (sig signature) current(arg int) int {
	n := len(sig.params)

	switch {
	case arg < n:
		return arg
	case sig.variadic && n > 0:
		return n - 1
	default:
		return -1
	}
}

// render draws sig with the parameter receiving argument arg highlighted.
func (sig signature) render(arg int) string {
	cur := sig.current(arg)

	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(sig.name))
	b.WriteString(signatureStyle.Render("("))

	for i, p := range sig.params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		if i == cur {
			b.WriteString(currentParamStyle.Render(p))
		} else {
			b.WriteString(signatureStyle.Render(p))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
