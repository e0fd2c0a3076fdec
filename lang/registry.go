package lang

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Registry holds the native functions a host makes available to programs.
//
// A Registry may be shared by concurrent runs. It is frozen while any run
// that uses it is active: Register fails with [ErrRegistryActive] until
// every such run has finished.
type Registry struct {
	mu      sync.RWMutex
	natives map[string]*Native
	active  int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{natives: make(map[string]*Native)}
}

// Register adds the native function fn under name. Arity is the exact
// number of arguments fn accepts, or [Variadic].
func (r *Registry) Register(name string, arity int, fn NativeFunc) error {
	switch {
	case !isIdentifier(name):
		return ErrInvalidNative.With(
			slog.String("name", name),
			slog.String("reason", "name is not an identifier"),
		)
	case isReserved(name):
		return ErrInvalidNative.With(
			slog.String("name", name),
			slog.String("reason", "name is reserved"),
		)
	case arity < Variadic:
		return ErrInvalidNative.With(
			slog.String("name", name),
			slog.Int("arity", arity),
			slog.String("reason", "invalid arity"),
		)
	case fn == nil:
		return ErrInvalidNative.With(
			slog.String("name", name),
			slog.String("reason", "nil function"),
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active > 0 {
		return ErrRegistryActive.With(
			slog.String("name", name),
			slog.Int("runs", r.active),
		)
	}

	if _, ok := r.natives[name]; ok {
		return ErrDuplicateNative.With(slog.String("name", name))
	}

	r.natives[name] = &Native{Name: name, Arity: arity, Fn: fn}

	return nil
}

// MustRegister is like Register but panics on error. It is intended for
// registering fixed sets of natives at initialization.
func (r *Registry) MustRegister(name string, arity int, fn NativeFunc) {
	if err := r.Register(name, arity, fn); err != nil {
		panic(err)
	}
}

// Resolve returns the native function registered under name.
func (r *Registry) Resolve(name string) (*Native, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.natives[name]

	return n, ok
}

// Names returns the names of all registered natives, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.natives))
}

// Active reports whether any run is using the registry.
func (r *Registry) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.active > 0
}

// begin marks the start of a run and returns the function that ends it.
func (r *Registry) begin() func() {
	r.mu.Lock()
	r.active++
	r.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.active--
			r.mu.Unlock()
		})
	}
}
