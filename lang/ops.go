package lang

import (
	"fmt"
	"math"
	"strings"
)

// standardBinary lists the default binary operators.
var standardBinary = []BinaryOperator{
	{Symbol: KwOr, Precedence: 1, Apply: logical(KwOr)},
	{Symbol: KwAnd, Precedence: 2, Apply: logical(KwAnd)},
	{Symbol: "==", Precedence: 3, Apply: equality(true)},
	{Symbol: "!=", Precedence: 3, Apply: equality(false)},
	{Symbol: "<", Precedence: 4, Apply: ordering("<")},
	{Symbol: "<=", Precedence: 4, Apply: ordering("<=")},
	{Symbol: ">", Precedence: 4, Apply: ordering(">")},
	{Symbol: ">=", Precedence: 4, Apply: ordering(">=")},
	{Symbol: "+", Precedence: 5, Apply: add},
	{Symbol: "-", Precedence: 5, Apply: arithmetic("-")},
	{Symbol: "*", Precedence: 6, Apply: arithmetic("*")},
	{Symbol: "/", Precedence: 6, Apply: arithmetic("/")},
	{Symbol: "%", Precedence: 6, Apply: arithmetic("%")},
}

// standardUnary lists the default prefix operators.
var standardUnary = []UnaryOperator{
	{Symbol: "-", Apply: negate},
	{Symbol: KwNot, Apply: not(KwNot)},
	{Symbol: "!", Apply: not("!")},
}

// OperandError returns the TypeError reported when op is applied to
// operands of unsupported kinds. Host operator implementations may return
// it to report the same error as the standard operators.
func OperandError(op string, operands ...Value) error {
	kinds := make([]string, len(operands))
	for i, v := range operands {
		kinds[i] = v.Kind().String()
	}

	return newDiagnostic(TypeError, nil, Position{}, fmt.Sprintf(
		"operator %q not defined for %s", op, strings.Join(kinds, " and ")))
}

func logical(op string) BinaryFunc {
	return func(l, r Value) (Value, error) {
		lb, lok := l.(Boolean)
		rb, rok := r.(Boolean)

		if !lok || !rok {
			return nil, OperandError(op, l, r)
		}

		if op == KwAnd {
			return lb && rb, nil
		}

		return lb || rb, nil
	}
}

func equality(eq bool) BinaryFunc {
	return func(l, r Value) (Value, error) {
		return Boolean(Equal(l, r) == eq), nil
	}
}

func ordering(op string) BinaryFunc {
	return func(l, r Value) (Value, error) {
		var c int

		switch l := l.(type) {
		case Number:
			rn, ok := r.(Number)
			if !ok {
				return nil, OperandError(op, l, r)
			}

			switch {
			case l < rn:
				c = -1
			case l > rn:
				c = 1
			case l != rn:
				// NaN is unordered.
				return Boolean(false), nil
			}

		case String:
			rs, ok := r.(String)
			if !ok {
				return nil, OperandError(op, l, r)
			}

			c = strings.Compare(string(l), string(rs))

		default:
			return nil, OperandError(op, l, r)
		}

		switch op {
		case "<":
			return Boolean(c < 0), nil
		case "<=":
			return Boolean(c <= 0), nil
		case ">":
			return Boolean(c > 0), nil
		default:
			return Boolean(c >= 0), nil
		}
	}
}

func add(l, r Value) (Value, error) {
	switch l := l.(type) {
	case Number:
		if rn, ok := r.(Number); ok {
			return l + rn, nil
		}

	case String:
		if rs, ok := r.(String); ok {
			return l + rs, nil
		}

	case *List:
		if rl, ok := r.(*List); ok {
			return l.Concat(rl), nil
		}
	}

	return nil, OperandError("+", l, r)
}

func arithmetic(op string) BinaryFunc {
	return func(l, r Value) (Value, error) {
		ln, lok := l.(Number)
		rn, rok := r.(Number)

		if !lok || !rok {
			return nil, OperandError(op, l, r)
		}

		switch op {
		case "-":
			return ln - rn, nil
		case "*":
			return ln * rn, nil
		case "/":
			if rn == 0 {
				return nil, newDiagnostic(RuntimeError, nil, Position{},
					"division by zero")
			}

			return ln / rn, nil
		default:
			if rn == 0 {
				return nil, newDiagnostic(RuntimeError, nil, Position{},
					"modulo by zero")
			}

			return Number(math.Mod(float64(ln), float64(rn))), nil
		}
	}
}

func negate(v Value) (Value, error) {
	if n, ok := v.(Number); ok {
		return -n, nil
	}

	return nil, OperandError("-", v)
}

func not(op string) UnaryFunc {
	return func(v Value) (Value, error) {
		if b, ok := v.(Boolean); ok {
			return !b, nil
		}

		return nil, OperandError(op, v)
	}
}
