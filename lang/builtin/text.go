package builtin

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ardnew/catapillar/lang"
)

// Text returns the string bundle.
func Text() Bundle {
	return Bundle{
		Name: "text",
		Funcs: []Func{
			mapString("upper", strings.ToUpper),
			mapString("lower", strings.ToLower),
			mapString("title", func(s string) string {
				// A Caser is stateful and must not be shared between runs.
				return cases.Title(language.Und).String(s)
			}),
			mapString("trim", strings.TrimSpace),
			{Name: "split", Arity: 2, Signature: "split(text, sep)", Fn: split},
			{Name: "join", Arity: 2, Signature: "join(list, sep)", Fn: join},
			{Name: "contains", Arity: 2, Signature: "contains(text|list, value)", Fn: contains},
			{Name: "replace", Arity: 3, Signature: "replace(text, old, new)", Fn: replace},
		},
	}
}

// mapString lifts a string function into a one-argument native.
func mapString(name string, fn func(string) string) Func {
	return Func{
		Name:      name,
		Arity:     1,
		Signature: name + "(text)",
		Fn: func(_ context.Context, args []lang.Value) (lang.Value, error) {
			s, err := lang.Arg[lang.String](name, args, 0)
			if err != nil {
				return nil, err
			}

			return lang.String(fn(string(s))), nil
		},
	}
}

// stringArgs returns arguments 0 through n-1 of args as Go strings.
func stringArgs(name string, args []lang.Value, n int) ([]string, error) {
	out := make([]string, n)

	for i := range n {
		s, err := lang.Arg[lang.String](name, args, i)
		if err != nil {
			return nil, err
		}

		out[i] = string(s)
	}

	return out, nil
}

func split(_ context.Context, args []lang.Value) (lang.Value, error) {
	s, err := stringArgs("split", args, 2)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(s[0], s[1])

	elems := make([]lang.Value, len(parts))
	for i, p := range parts {
		elems[i] = lang.String(p)
	}

	return lang.NewList(elems...), nil
}

func join(_ context.Context, args []lang.Value) (lang.Value, error) {
	l, err := lang.Arg[*lang.List]("join", args, 0)
	if err != nil {
		return nil, err
	}

	sep, err := lang.Arg[lang.String]("join", args, 1)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, l.Len())
	for _, e := range l.All() {
		parts = append(parts, e.String())
	}

	return lang.String(strings.Join(parts, string(sep))), nil
}

func contains(_ context.Context, args []lang.Value) (lang.Value, error) {
	switch c := args[0].(type) {
	case lang.String:
		sub, err := lang.Arg[lang.String]("contains", args, 1)
		if err != nil {
			return nil, err
		}

		return lang.Boolean(strings.Contains(string(c), string(sub))), nil

	case *lang.List:
		for _, e := range c.All() {
			if lang.Equal(e, args[1]) {
				return lang.Boolean(true), nil
			}
		}

		return lang.Boolean(false), nil
	}

	return nil, lang.ArgumentError("contains", args, 0, lang.KindString, lang.KindList)
}

func replace(_ context.Context, args []lang.Value) (lang.Value, error) {
	s, err := stringArgs("replace", args, 3)
	if err != nil {
		return nil, err
	}

	return lang.String(strings.ReplaceAll(s[0], s[1], s[2])), nil
}
