package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/lang/builtin"
	"github.com/ardnew/catapillar/log"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying ktx.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, _ := ctx.Value(contextKey{}).(*kong.Context)

	return ktx
}

// Streams are the standard streams a command reads and writes.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type streamsKey struct{}

// WithStreams returns a copy of ctx whose commands use s. Nil fields fall
// back to the process streams.
func WithStreams(ctx context.Context, s Streams) context.Context {
	return context.WithValue(ctx, streamsKey{}, s)
}

// StreamsFrom returns the streams carried by ctx, with the process streams
// in place of any that are unset.
func StreamsFrom(ctx context.Context) Streams {
	s, _ := ctx.Value(streamsKey{}).(Streams)

	if s.In == nil {
		s.In = os.Stdin
	}

	if s.Out == nil {
		s.Out = os.Stdout
	}

	if s.Err == nil {
		s.Err = os.Stderr
	}

	return s
}

// Limits bound every evaluation a command performs.
type Limits struct {
	MaxSteps int           `default:"0"           help:"Abort after this many evaluation steps (0 for no limit)." name:"max-steps"`
	MaxDepth int           `default:"${maxDepth}" help:"Maximum function call depth."                             name:"max-depth"`
	Timeout  time.Duration `default:"0s"          help:"Abort evaluation after this long (0 for no limit)."`
}

type limitsKey struct{}

// WithLimits returns a copy of ctx carrying l.
func WithLimits(ctx context.Context, l Limits) context.Context {
	return context.WithValue(ctx, limitsKey{}, l)
}

func limitsFrom(ctx context.Context) Limits {
	l, ok := ctx.Value(limitsKey{}).(Limits)
	if !ok {
		l.MaxDepth = lang.DefaultMaxDepth
	}

	return l
}

// deadline applies the timeout of l to ctx.
func (l Limits) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, l.Timeout)
}

// newInterpreter returns an interpreter with every builtin bundle
// registered, writing print output to out.
func newInterpreter(ctx context.Context, out io.Writer) (*lang.Interpreter, error) {
	return newInterpreterWith(ctx, builtin.All(builtin.Config{Stdout: out}))
}

// newInterpreterWith returns an interpreter with bundles registered and the
// limits carried by ctx.
func newInterpreterWith(ctx context.Context, bundles []builtin.Bundle) (*lang.Interpreter, error) {
	reg := lang.NewRegistry()

	if err := builtin.Register(reg, bundles...); err != nil {
		return nil, err
	}

	l := limitsFrom(ctx)

	return lang.New(
		lang.WithRegistry(reg),
		lang.WithLogger(log.Default()),
		lang.WithMaxSteps(l.MaxSteps),
		lang.WithMaxDepth(l.MaxDepth),
	), nil
}

// stdinSource is the file name that selects standard input.
const stdinSource = "-"

// loadSources reads each named file, or stdin for "-". Files that resolve
// to the same file as an earlier one are skipped, and stdin is read at
// most once.
func loadSources(paths []string, stdin io.Reader) ([]*lang.Source, error) {
	if len(paths) == 0 {
		return nil, ErrNoSource
	}

	var (
		srcs     []*lang.Source
		seen     []os.FileInfo
		hasStdin bool
	)

	for _, path := range paths {
		if path == stdinSource {
			if !hasStdin {
				hasStdin = true

				src, err := lang.ReadSource("<stdin>", stdin)
				if err != nil {
					return nil, ErrReadSource.Wrap(err).With(slog.String("file", path))
				}

				srcs = append(srcs, src)
			}

			continue
		}

		src, info, err := readFile(path)
		if err != nil {
			return nil, ErrReadSource.Wrap(err).With(slog.String("file", path))
		}

		if duplicate(seen, info) {
			continue
		}

		seen = append(seen, info)
		srcs = append(srcs, src)
	}

	return srcs, nil
}

func readFile(path string) (*lang.Source, os.FileInfo, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, nil, err
	}

	if info.IsDir() {
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, nil, err
	}

	return lang.NewSource(path, string(data)), info, nil
}

func duplicate(seen []os.FileInfo, info os.FileInfo) bool {
	for _, s := range seen {
		if os.SameFile(s, info) {
			return true
		}
	}

	return false
}

// report writes the detail of every diagnostic in err to w. It returns
// false if err carries no diagnostics.
func report(w io.Writer, err error) bool {
	var diags lang.Diagnostics
	if errors.As(err, &diags) {
		for _, d := range diags {
			fmt.Fprint(w, d.Detail())
		}

		return len(diags) > 0
	}

	var diag *lang.Diagnostic
	if errors.As(err, &diag) {
		fmt.Fprint(w, diag.Detail())

		return true
	}

	return false
}
