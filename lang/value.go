package lang

import (
	"context"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a [Value].
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBoolean
	KindFunction
	KindNative
	KindList
	KindMap
)

var kindName = [...]string{
	KindNull:     "Null",
	KindNumber:   "Number",
	KindString:   "String",
	KindBoolean:  "Boolean",
	KindFunction: "Function",
	KindNative:   "NativeFunction",
	KindList:     "List",
	KindMap:      "Map",
}

func (k Kind) String() string {
	if int(k) < len(kindName) {
		return kindName[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a runtime value. The set of implementations is closed:
// [Number], [String], [Boolean], [Null], [*Function], [*Native], [*List],
// and [*Map].
//
// List and Map values are immutable, so values may be shared freely between
// environments.
type Value interface {
	Kind() Kind
	// String renders the value for display. Strings render without quotes.
	String() string
	value()
}

type (
	// Number is the single numeric kind.
	Number float64
	// String is a UTF-8 text value.
	String string
	// Boolean is true or false.
	Boolean bool
	// Null is the absence of a value.
	Null struct{}
)

func (Number) Kind() Kind  { return KindNumber }
func (String) Kind() Kind  { return KindString }
func (Boolean) Kind() Kind { return KindBoolean }
func (Null) Kind() Kind    { return KindNull }

func (n Number) String() string  { return formatNumber(float64(n)) }
func (s String) String() string  { return string(s) }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (Null) String() string      { return KwNull }

func (Number) value()  {}
func (String) value()  {}
func (Boolean) value() {}
func (Null) value()    {}

// formatNumber renders integral values without a fraction.
func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// Function is a closure: a function literal together with the environment
// it was created in.
type Function struct {
	Name   string
	Params []string
	Body   *Block
	Env    *Environment
}

func (*Function) Kind() Kind { return KindFunction }
func (*Function) value()     {}

func (f *Function) String() string {
	if f.Name == "" {
		return "<function>"
	}

	return "<function " + f.Name + ">"
}

// Variadic is the arity of a native function that accepts any number of
// arguments.
const Variadic = -1

// NativeFunc implements a host-provided function. A nil result is treated
// as [Null].
type NativeFunc func(ctx context.Context, args []Value) (Value, error)

// Native is a host-provided function registered in a [Registry].
type Native struct {
	Name  string
	Arity int
	Fn    NativeFunc
}

func (*Native) Kind() Kind { return KindNative }
func (*Native) value()     {}

func (n *Native) String() string { return "<native " + n.Name + ">" }

// List is an immutable ordered sequence of values.
type List struct {
	elems []Value
}

// NewList returns a List holding a copy of elems.
func NewList(elems ...Value) *List {
	return &List{elems: slices.Clone(elems)}
}

func (*List) Kind() Kind { return KindList }
func (*List) value()     {}

// Len returns the number of elements.
func (l *List) Len() int { return len(l.elems) }

// At returns the element at index i.
func (l *List) At(i int) (Value, bool) {
	if i < 0 || i >= len(l.elems) {
		return nil, false
	}

	return l.elems[i], true
}

// All iterates over the index and value of each element.
func (l *List) All() iter.Seq2[int, Value] { return slices.All(l.elems) }

// Values returns a copy of the elements.
func (l *List) Values() []Value { return slices.Clone(l.elems) }

// Append returns a new List with vals added to the end.
func (l *List) Append(vals ...Value) *List {
	return &List{elems: slices.Concat(l.elems, vals)}
}

// Concat returns a new List holding the elements of l followed by those of
// other.
func (l *List) Concat(other *List) *List {
	return &List{elems: slices.Concat(l.elems, other.elems)}
}

func (l *List) String() string {
	parts := make([]string, len(l.elems))
	for i, v := range l.elems {
		parts[i] = Repr(v)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// Map is an immutable mapping from strings to values that remembers
// insertion order.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{vals: map[string]Value{}}
}

func (*Map) Kind() Kind { return KindMap }
func (*Map) value()     {}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]

	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string { return slices.Clone(m.keys) }

// All iterates over the entries in insertion order.
func (m *Map) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range m.keys {
			if !yield(k, m.vals[k]) {
				return
			}
		}
	}
}

// With returns a new Map with key bound to v. An existing key keeps its
// position.
func (m *Map) With(key string, v Value) *Map {
	c := &Map{
		keys: slices.Clone(m.keys),
		vals: make(map[string]Value, len(m.vals)+1),
	}

	for k, val := range m.vals {
		c.vals[k] = val
	}

	c.set(key, v)

	return c
}

// set mutates m and is only used while building a new Map.
func (m *Map) set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.vals[key] = v
}

func (m *Map) String() string {
	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		parts = append(parts, formatKey(k)+": "+Repr(m.vals[k]))
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

func formatKey(k string) string {
	if isIdentifier(k) && !isReserved(k) {
		return k
	}

	return strconv.Quote(k)
}

// Repr renders v the way it would be written in source: strings are quoted.
func Repr(v Value) string {
	if s, ok := v.(String); ok {
		return strconv.Quote(string(s))
	}

	if v == nil {
		return KwNull
	}

	return v.String()
}

// Equal reports whether a and b are structurally equal. Values of different
// kinds are never equal; functions compare by identity.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Kind() != b.Kind() {
		return false
	}

	switch a := a.(type) {
	case *List:
		b := b.(*List)

		return slices.EqualFunc(a.elems, b.elems, Equal)

	case *Map:
		b := b.(*Map)
		if a.Len() != b.Len() {
			return false
		}

		for k, av := range a.vals {
			bv, ok := b.vals[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}

		return true

	default:
		return a == b
	}
}
