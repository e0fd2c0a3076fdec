package builtin

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/ardnew/catapillar/lang"
)

// Lists returns the collection bundle.
func Lists() Bundle {
	return Bundle{
		Name: "lists",
		Funcs: []Func{
			{Name: "push", Arity: lang.Variadic, Signature: "push(list, value...)", Fn: push},
			{Name: "range", Arity: lang.Variadic, Signature: "range([start,] stop[, step])", Fn: span},
			{Name: "keys", Arity: 1, Signature: "keys(map)", Fn: keys},
			{Name: "values", Arity: 1, Signature: "values(map)", Fn: values},
			{Name: "map", Arity: 2, Signature: "map(list, fn)", Fn: mapList},
			{Name: "filter", Arity: 2, Signature: "filter(list, fn)", Fn: filter},
			{Name: "reduce", Arity: 3, Signature: "reduce(list, fn, initial)", Fn: reduce},
			{Name: "get", Arity: lang.Variadic, Signature: "get(collection, key[, default])", Fn: get},
			{Name: "has", Arity: 2, Signature: "has(collection, key)", Fn: has},
			{Name: "slice", Arity: lang.Variadic, Signature: "slice(sequence, start[, stop])", Fn: slice},
			{Name: "reverse", Arity: 1, Signature: "reverse(sequence)", Fn: reverse},
			{Name: "sort", Arity: 1, Signature: "sort(list)", Fn: sortList},
		},
	}
}

func push(_ context.Context, args []lang.Value) (lang.Value, error) {
	if err := lang.CheckArity("push", args, 1, -1); err != nil {
		return nil, err
	}

	l, err := lang.Arg[*lang.List]("push", args, 0)
	if err != nil {
		return nil, err
	}

	return l.Append(args[1:]...), nil
}

// maxRangeLen bounds the length of a list built by range.
const maxRangeLen = 1 << 22

// span implements range.
func span(ctx context.Context, args []lang.Value) (lang.Value, error) {
	if err := lang.CheckArity("range", args, 1, 3); err != nil {
		return nil, err
	}

	nums := make([]int, len(args))

	for i := range args {
		n, err := integer("range", args, i)
		if err != nil {
			return nil, err
		}

		nums[i] = n
	}

	start, stop, step := 0, nums[0], 1

	if len(nums) > 1 {
		start, stop = nums[0], nums[1]
	}

	if len(nums) > 2 {
		step = nums[2]
	}

	if step == 0 {
		return nil, ErrZeroStep
	}

	count := max(0, math.Ceil((float64(stop)-float64(start))/float64(step)))
	if count > maxRangeLen {
		return nil, ErrRangeSize.With(
			slog.Float64("count", count),
			slog.Int("max", maxRangeLen),
		)
	}

	elems := make([]lang.Value, 0, int(count))

	for i := start; len(elems) < int(count); i += step {
		if len(elems)%4096 == 4095 {
			if err := ctx.Err(); err != nil {
				return nil, context.Cause(ctx)
			}
		}

		elems = append(elems, lang.Number(i))
	}

	return lang.NewList(elems...), nil
}

func keys(_ context.Context, args []lang.Value) (lang.Value, error) {
	m, err := lang.Arg[*lang.Map]("keys", args, 0)
	if err != nil {
		return nil, err
	}

	ks := m.Keys()

	elems := make([]lang.Value, len(ks))
	for i, k := range ks {
		elems[i] = lang.String(k)
	}

	return lang.NewList(elems...), nil
}

func values(_ context.Context, args []lang.Value) (lang.Value, error) {
	m, err := lang.Arg[*lang.Map]("values", args, 0)
	if err != nil {
		return nil, err
	}

	elems := make([]lang.Value, 0, m.Len())
	for _, v := range m.All() {
		elems = append(elems, v)
	}

	return lang.NewList(elems...), nil
}

func mapList(ctx context.Context, args []lang.Value) (lang.Value, error) {
	l, err := lang.Arg[*lang.List]("map", args, 0)
	if err != nil {
		return nil, err
	}

	elems := make([]lang.Value, 0, l.Len())

	for _, e := range l.All() {
		v, err := lang.Invoke(ctx, args[1], e)
		if err != nil {
			return nil, err
		}

		elems = append(elems, v)
	}

	return lang.NewList(elems...), nil
}

func filter(ctx context.Context, args []lang.Value) (lang.Value, error) {
	l, err := lang.Arg[*lang.List]("filter", args, 0)
	if err != nil {
		return nil, err
	}

	var elems []lang.Value

	for _, e := range l.All() {
		keep, err := predicate(ctx, args[1], e)
		if err != nil {
			return nil, err
		}

		if keep {
			elems = append(elems, e)
		}
	}

	return lang.NewList(elems...), nil
}

// predicate calls fn with v and requires a Boolean result.
func predicate(ctx context.Context, fn, v lang.Value) (bool, error) {
	r, err := lang.Invoke(ctx, fn, v)
	if err != nil {
		return false, err
	}

	b, ok := r.(lang.Boolean)
	if !ok {
		return false, ErrPredicate.With(slog.String("result", r.Kind().String()))
	}

	return bool(b), nil
}

func reduce(ctx context.Context, args []lang.Value) (lang.Value, error) {
	l, err := lang.Arg[*lang.List]("reduce", args, 0)
	if err != nil {
		return nil, err
	}

	acc := args[2]

	for _, e := range l.All() {
		if acc, err = lang.Invoke(ctx, args[1], acc, e); err != nil {
			return nil, err
		}
	}

	return acc, nil
}

// lookup finds key in a List or Map.
func lookup(name string, args []lang.Value) (lang.Value, bool, error) {
	switch c := args[0].(type) {
	case *lang.List:
		i, err := integer(name, args, 1)
		if err != nil {
			return nil, false, err
		}

		if i < 0 {
			i += c.Len()
		}

		v, ok := c.At(i)

		return v, ok, nil

	case *lang.Map:
		k, err := lang.Arg[lang.String](name, args, 1)
		if err != nil {
			return nil, false, err
		}

		v, ok := c.Get(string(k))

		return v, ok, nil
	}

	return nil, false, lang.ArgumentError(name, args, 0, lang.KindList, lang.KindMap)
}

func get(_ context.Context, args []lang.Value) (lang.Value, error) {
	if err := lang.CheckArity("get", args, 2, 3); err != nil {
		return nil, err
	}

	v, ok, err := lookup("get", args)

	switch {
	case err != nil:
		return nil, err
	case ok:
		return v, nil
	case len(args) > 2:
		return args[2], nil
	default:
		return lang.Null{}, nil
	}
}

func has(_ context.Context, args []lang.Value) (lang.Value, error) {
	_, ok, err := lookup("has", args)
	if err != nil {
		return nil, err
	}

	return lang.Boolean(ok), nil
}

// bounds clamps [start, stop) to a sequence of length n. Negative indexes
// count from the end.
func bounds(start, stop, n int) (int, int) {
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}

		return min(max(i, 0), n)
	}

	start, stop = clamp(start), clamp(stop)

	return start, max(start, stop)
}

func slice(_ context.Context, args []lang.Value) (lang.Value, error) {
	if err := lang.CheckArity("slice", args, 2, 3); err != nil {
		return nil, err
	}

	start, err := integer("slice", args, 1)
	if err != nil {
		return nil, err
	}

	stop := int(^uint(0) >> 1)

	if len(args) > 2 {
		if stop, err = integer("slice", args, 2); err != nil {
			return nil, err
		}
	}

	switch s := args[0].(type) {
	case *lang.List:
		elems := s.Values()
		i, j := bounds(start, stop, len(elems))

		return lang.NewList(elems[i:j]...), nil

	case lang.String:
		runes := []rune(string(s))
		i, j := bounds(start, stop, len(runes))

		return lang.String(runes[i:j]), nil
	}

	return nil, lang.ArgumentError("slice", args, 0, lang.KindList, lang.KindString)
}

func reverse(_ context.Context, args []lang.Value) (lang.Value, error) {
	switch s := args[0].(type) {
	case *lang.List:
		elems := s.Values()
		slices.Reverse(elems)

		return lang.NewList(elems...), nil

	case lang.String:
		runes := []rune(string(s))
		slices.Reverse(runes)

		return lang.String(runes), nil
	}

	return nil, lang.ArgumentError("reverse", args, 0, lang.KindList, lang.KindString)
}

// sortList sorts a List whose elements are all Numbers or all Strings.
func sortList(_ context.Context, args []lang.Value) (lang.Value, error) {
	l, err := lang.Arg[*lang.List]("sort", args, 0)
	if err != nil {
		return nil, err
	}

	elems := l.Values()
	if len(elems) == 0 {
		return l, nil
	}

	kind := elems[0].Kind()

	for _, e := range elems {
		if e.Kind() != kind || (kind != lang.KindNumber && kind != lang.KindString) {
			return nil, ErrMixedKinds.With(slog.String("value", describe(e)))
		}
	}

	slices.SortStableFunc(elems, func(a, b lang.Value) int {
		if kind == lang.KindNumber {
			return cmp.Compare(a.(lang.Number), b.(lang.Number))
		}

		return cmp.Compare(a.(lang.String), b.(lang.String))
	})

	return lang.NewList(elems...), nil
}
