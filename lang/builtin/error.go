package builtin

import "github.com/ardnew/catapillar/lang"

// Predefined errors (sentinel values).
var (
	ErrBundle       = lang.NewError("failed to register bundle")
	ErrConvert      = lang.NewError("cannot convert value")
	ErrInteger      = lang.NewError("argument is not an integer")
	ErrZeroStep     = lang.NewError("step must not be zero")
	ErrRangeSize    = lang.NewError("too many elements")
	ErrMixedKinds   = lang.NewError("values are not mutually comparable")
	ErrEmpty        = lang.NewError("no values")
	ErrPredicate    = lang.NewError("predicate must return Boolean")
	ErrExprCompile  = lang.NewError("failed to compile expression")
	ErrExprEvaluate = lang.NewError("failed to evaluate expression")
	ErrExprParams   = lang.NewError("invalid expression parameters")
)
