package builtin

import (
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/ardnew/catapillar/lang"
)

// Func describes one native function in a [Bundle].
type Func struct {
	Name      string
	Aliases   []string
	Arity     int
	Signature string // shown by the REPL, e.g. "split(text, sep)"
	Fn        lang.NativeFunc
}

// Bundle is a named group of native functions.
type Bundle struct {
	Name  string
	Funcs []Func
}

// Lookup returns the function registered under name or one of its
// aliases.
func (b Bundle) Lookup(name string) (Func, bool) {
	for _, f := range b.Funcs {
		if f.Name == name {
			return f, true
		}

		for _, a := range f.Aliases {
			if a == name {
				return f, true
			}
		}
	}

	return Func{}, false
}

// Names returns every name and alias defined by the bundle.
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b.Funcs))
	for _, f := range b.Funcs {
		names = append(names, f.Name)
		names = append(names, f.Aliases...)
	}

	return names
}

// Register adds every function of each bundle to reg, including aliases.
// It stops at the first function reg rejects.
func Register(reg *lang.Registry, bundles ...Bundle) error {
	for _, b := range bundles {
		for _, f := range b.Funcs {
			for _, name := range append([]string{f.Name}, f.Aliases...) {
				if err := reg.Register(name, f.Arity, f.Fn); err != nil {
					return ErrBundle.Wrap(err).With(
						slog.String("bundle", b.Name),
						slog.String("name", name),
					)
				}
			}
		}
	}

	return nil
}

// Lookup returns the function named name from the first bundle that
// defines it.
func Lookup(bundles []Bundle, name string) (Func, bool) {
	for _, b := range bundles {
		if f, ok := b.Lookup(name); ok {
			return f, true
		}
	}

	return Func{}, false
}

// Config supplies the host resources used by the bundles.
type Config struct {
	// Stdout receives the output of print. Nil means os.Stdout.
	Stdout io.Writer
	// Environ is the process environment as "KEY=VALUE" entries seen by
	// getenv and expr. Nil means os.Environ().
	Environ []string
}

// All returns every bundle, configured by cfg.
func All(cfg Config) []Bundle {
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	return []Bundle{
		Core(stdout),
		Lists(),
		Math(),
		Text(),
		Env(cfg.Environ),
		Expr(cfg.Environ),
	}
}

// integer returns argument i of args as an int.
func integer(name string, args []lang.Value, i int) (int, error) {
	n, err := lang.Arg[lang.Number](name, args, i)
	if err != nil {
		return 0, err
	}

	f := float64(n)
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, ErrInteger.With(
			slog.Int("argument", i+1),
			slog.String("value", n.String()),
		)
	}

	return int(f), nil
}
