package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/catapillar/lang"
)

// Check parses source files without evaluating them and reports every
// diagnostic found.
type Check struct {
	Quiet bool     `help:"Print nothing for files without errors." short:"q"`
	Files []string `arg:"" default:"-" help:"Source files, or '-' for stdin." name:"file"`
}

// Run executes the check command.
func (c *Check) Run(ctx context.Context) error {
	s := StreamsFrom(ctx)

	srcs, err := loadSources(c.Files, s.In)
	if err != nil {
		return err
	}

	diags := make([]lang.Diagnostics, len(srcs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, src := range srcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			_, diags[i] = lang.Parse(src)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var count, failed int

	for i, src := range srcs {
		if len(diags[i]) == 0 {
			if !c.Quiet {
				fmt.Fprintf(s.Out, "%s: ok\n", src.Name)
			}

			continue
		}

		failed++
		count += len(diags[i])

		for _, d := range diags[i] {
			fmt.Fprint(s.Err, d.Detail())
		}
	}

	if count > 0 {
		return ErrCheck.With(
			slog.Int("files", failed),
			slog.Int("errors", count),
		)
	}

	return nil
}
