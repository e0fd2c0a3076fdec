package lang

import (
	"maps"
	"slices"
)

// Environment is one lexical scope: a set of bindings plus a link to the
// enclosing scope. Lookups walk from the innermost scope outward and the
// first match wins.
//
// An Environment is not safe for concurrent use. Concurrent runs must each
// use their own chain.
type Environment struct {
	parent *Environment
	vars   map[string]Value
}

// NewEnvironment returns an empty scope enclosed by parent, which may be nil
// for a global scope.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, vars: make(map[string]Value)}
}

// Parent returns the enclosing scope, or nil.
func (e *Environment) Parent() *Environment { return e.parent }

// Declare binds name in this scope, shadowing any outer binding. Declaring
// a name already bound in this scope rebinds it.
func (e *Environment) Declare(name string, v Value) {
	e.vars[name] = v
}

// Assign rebinds name in the innermost scope where it is declared. It
// returns false if no scope declares name.
func (e *Environment) Assign(name string, v Value) bool {
	for env := e; env != nil; env = env.parent {
		if _, ok := env.vars[name]; ok {
			env.vars[name] = v

			return true
		}
	}

	return false
}

// Lookup returns the value bound to name in the nearest scope.
func (e *Environment) Lookup(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}

	return nil, false
}

// Local returns the value bound to name in this scope only.
func (e *Environment) Local(name string) (Value, bool) {
	v, ok := e.vars[name]

	return v, ok
}

// Names returns every name visible from e, sorted.
func (e *Environment) Names() []string {
	set := make(map[string]struct{})

	for env := e; env != nil; env = env.parent {
		for name := range env.vars {
			set[name] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(set))
}

// Depth returns the number of scopes enclosing e.
func (e *Environment) Depth() int {
	n := 0
	for env := e.parent; env != nil; env = env.parent {
		n++
	}

	return n
}
