package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ardnew/catapillar/lang"
)

// Core returns the core bundle. print writes to w.
func Core(w io.Writer) Bundle {
	return Bundle{
		Name: "core",
		Funcs: []Func{
			{
				Name: "print", Aliases: []string{"印"}, Arity: lang.Variadic,
				Signature: "print(value...)", Fn: printer(w),
			},
			{Name: "len", Arity: 1, Signature: "len(value)", Fn: length},
			{Name: "type", Arity: 1, Signature: "type(value)", Fn: typeOf},
			{Name: "str", Arity: 1, Signature: "str(value)", Fn: str},
			{Name: "repr", Arity: 1, Signature: "repr(value)", Fn: repr},
			{Name: "num", Arity: 1, Signature: "num(value)", Fn: num},
			{Name: "error", Arity: 1, Signature: "error(message)", Fn: raise},
		},
	}
}

// printer writes its arguments separated by spaces and followed by a
// newline.
func printer(w io.Writer) lang.NativeFunc {
	return func(_ context.Context, args []lang.Value) (lang.Value, error) {
		var sb strings.Builder

		for i, a := range args {
			if i > 0 {
				sb.WriteByte(' ')
			}

			sb.WriteString(a.String())
		}

		sb.WriteByte('\n')

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return nil, err
		}

		return lang.Null{}, nil
	}
}

func length(_ context.Context, args []lang.Value) (lang.Value, error) {
	switch v := args[0].(type) {
	case lang.String:
		return lang.Number(utf8.RuneCountInString(string(v))), nil
	case *lang.List:
		return lang.Number(v.Len()), nil
	case *lang.Map:
		return lang.Number(v.Len()), nil
	}

	return nil, lang.ArgumentError("len", args, 0,
		lang.KindString, lang.KindList, lang.KindMap)
}

func typeOf(_ context.Context, args []lang.Value) (lang.Value, error) {
	return lang.String(args[0].Kind().String()), nil
}

func str(_ context.Context, args []lang.Value) (lang.Value, error) {
	return lang.String(args[0].String()), nil
}

func repr(_ context.Context, args []lang.Value) (lang.Value, error) {
	return lang.String(lang.Repr(args[0])), nil
}

func num(_ context.Context, args []lang.Value) (lang.Value, error) {
	switch v := args[0].(type) {
	case lang.Number:
		return v, nil

	case lang.Boolean:
		if v {
			return lang.Number(1), nil
		}

		return lang.Number(0), nil

	case lang.String:
		s := strings.TrimSpace(string(v))

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			var n int64

			n, err = strconv.ParseInt(s, 0, 64)
			f = float64(n)
		}

		if err != nil {
			return nil, ErrConvert.With(
				slog.String("value", lang.Repr(v)),
				slog.String("kind", lang.KindNumber.String()),
			).Wrap(errors.Unwrap(err))
		}

		return lang.Number(f), nil
	}

	return nil, lang.ArgumentError("num", args, 0,
		lang.KindNumber, lang.KindString, lang.KindBoolean)
}

// raise fails the run with the given message.
func raise(_ context.Context, args []lang.Value) (lang.Value, error) {
	return nil, errors.New(args[0].String())
}

// describe renders v for error attributes.
func describe(v lang.Value) string {
	return fmt.Sprintf("%s %s", v.Kind(), lang.Repr(v))
}
