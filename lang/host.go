package lang

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
)

// ToValue converts host data into a [Value].
//
// Supported inputs are nil, Value, bool, string, every integer and float
// type, slices and arrays of supported types, and maps keyed by strings.
// Map entries are added in sorted key order. Any other input fails with
// [ErrUnsupportedValue].
func ToValue(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Boolean(x), nil
	case string:
		return String(x), nil
	case []any:
		return listOf(len(x), func(i int) any { return x[i] })
	case map[string]any:
		return mapOf(x)
	}

	rv := reflect.ValueOf(x)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return Number(rv.Uint()), nil

	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil

	case reflect.Bool:
		return Boolean(rv.Bool()), nil

	case reflect.String:
		return String(rv.String()), nil

	case reflect.Slice, reflect.Array:
		return listOf(rv.Len(), func(i int) any { return rv.Index(i).Interface() })

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}

		m := make(map[string]any, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}

		return mapOf(m)
	}

	return nil, ErrUnsupportedValue.With(slog.String("type", fmt.Sprintf("%T", x)))
}

func listOf(n int, at func(int) any) (Value, error) {
	elems := make([]Value, n)

	for i := range n {
		v, err := ToValue(at(i))
		if err != nil {
			return nil, err
		}

		elems[i] = v
	}

	return &List{elems: elems}, nil
}

func mapOf(x map[string]any) (Value, error) {
	m := &Map{vals: make(map[string]Value, len(x))}

	keys := make([]string, 0, len(x))
	for k := range x {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		v, err := ToValue(x[k])
		if err != nil {
			return nil, err
		}

		m.set(k, v)
	}

	return m, nil
}

// FromValue converts v into plain host data: nil, float64, string, bool,
// []any, or map[string]any. Function values are returned unchanged.
func FromValue(v Value) any {
	switch v := v.(type) {
	case nil, Null:
		return nil
	case Number:
		return float64(v)
	case String:
		return string(v)
	case Boolean:
		return bool(v)
	case *List:
		out := make([]any, len(v.elems))
		for i, e := range v.elems {
			out[i] = FromValue(e)
		}

		return out
	case *Map:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = FromValue(v.vals[k])
		}

		return out
	default:
		return v
	}
}

// ArgumentError returns the TypeError a native function reports when
// argument i of args does not have one of the wanted kinds.
func ArgumentError(name string, args []Value, i int, want ...Kind) error {
	names := make([]string, len(want))
	for j, k := range want {
		names[j] = k.String()
	}

	return newDiagnostic(TypeError, nil, Position{}, fmt.Sprintf(
		"%s: argument %d must be %s, got %s (called with %s)",
		name, i+1, strings.Join(names, " or "), kindOf(args[i]),
		describeArgs(args)))
}

// Arg returns argument i of args as a T, or the TypeError describing the
// mismatch.
func Arg[T Value](name string, args []Value, i int) (T, error) {
	v, ok := args[i].(T)
	if !ok {
		var zero T

		return zero, ArgumentError(name, args, i, zero.Kind())
	}

	return v, nil
}

// CheckArity returns the ArityError a variadic native function reports
// unless minArgs <= len(args) <= maxArgs. A negative maxArgs means no upper
// bound.
func CheckArity(name string, args []Value, minArgs, maxArgs int) error {
	n := len(args)
	if n >= minArgs && (maxArgs < 0 || n <= maxArgs) {
		return nil
	}

	var want string

	switch {
	case maxArgs < 0:
		want = fmt.Sprintf("at least %d argument%s", minArgs, plural(minArgs))
	case minArgs == maxArgs:
		want = fmt.Sprintf("%d argument%s", minArgs, plural(minArgs))
	default:
		want = fmt.Sprintf("%d to %d arguments", minArgs, maxArgs)
	}

	return newDiagnostic(ArityError, nil, Position{},
		fmt.Sprintf("native %s expects %s, got %d", name, want, n))
}
