package builtin

import (
	"context"
	"math"

	"github.com/ardnew/catapillar/lang"
)

// Math returns the numeric bundle.
func Math() Bundle {
	return Bundle{
		Name: "math",
		Funcs: []Func{
			unary("abs", math.Abs),
			unary("floor", math.Floor),
			unary("ceil", math.Ceil),
			unary("round", math.Round),
			unary("sqrt", math.Sqrt),
			{Name: "pow", Arity: 2, Signature: "pow(base, exponent)", Fn: pow},
			{Name: "min", Arity: lang.Variadic, Signature: "min(number...)", Fn: extreme("min", math.Min)},
			{Name: "max", Arity: lang.Variadic, Signature: "max(number...)", Fn: extreme("max", math.Max)},
		},
	}
}

// unary lifts a float64 function into a one-argument native.
func unary(name string, fn func(float64) float64) Func {
	return Func{
		Name:      name,
		Arity:     1,
		Signature: name + "(number)",
		Fn: func(_ context.Context, args []lang.Value) (lang.Value, error) {
			n, err := lang.Arg[lang.Number](name, args, 0)
			if err != nil {
				return nil, err
			}

			return lang.Number(fn(float64(n))), nil
		},
	}
}

func pow(_ context.Context, args []lang.Value) (lang.Value, error) {
	b, err := lang.Arg[lang.Number]("pow", args, 0)
	if err != nil {
		return nil, err
	}

	e, err := lang.Arg[lang.Number]("pow", args, 1)
	if err != nil {
		return nil, err
	}

	return lang.Number(math.Pow(float64(b), float64(e))), nil
}

// extreme folds its Number arguments, or the elements of a single List
// argument, with pick.
func extreme(name string, pick func(a, b float64) float64) lang.NativeFunc {
	return func(_ context.Context, args []lang.Value) (lang.Value, error) {
		if err := lang.CheckArity(name, args, 1, -1); err != nil {
			return nil, err
		}

		if l, ok := args[0].(*lang.List); ok && len(args) == 1 {
			if args = l.Values(); len(args) == 0 {
				return nil, ErrEmpty
			}
		}

		acc := math.NaN()

		for i := range args {
			n, err := lang.Arg[lang.Number](name, args, i)
			if err != nil {
				return nil, err
			}

			if i == 0 {
				acc = float64(n)
			} else {
				acc = pick(acc, float64(n))
			}
		}

		return lang.Number(acc), nil
	}
}
