package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/catapillar/cli/cmd/repl"
	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/lang/builtin"
	"github.com/ardnew/catapillar/log"
)

// Repl starts an interactive session. Files named on the command line are
// evaluated first, so their definitions are available at the prompt.
type Repl struct {
	History   string   `default:"${history}" help:"History file."              type:"path"`
	NoHistory bool     `                     help:"Do not read or write history."`
	Files     []string `arg:""               help:"Source files to load first." name:"file" optional:""`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	s := StreamsFrom(ctx)

	// print output is held while the prompt is drawn and shown above it.
	sink := repl.NewSink(s.Out)
	bundles := builtin.All(builtin.Config{Stdout: sink})

	in, err := newInterpreterWith(ctx, bundles)
	if err != nil {
		return err
	}

	env := lang.NewEnvironment(nil)

	if len(r.Files) > 0 {
		srcs, err := loadSources(r.Files, s.In)
		if err != nil {
			return err
		}

		for _, src := range srcs {
			if _, err := in.Run(ctx, src, env); err != nil {
				report(s.Err, err)

				return ErrEvaluate.Wrap(err).With(slog.String("file", src.Name))
			}
		}
	}

	history := r.History
	if r.NoHistory {
		history = ""
	}

	return repl.Run(ctx, repl.Config{
		Interpreter: in,
		Env:         env,
		Sink:        sink,
		Bundles:     bundles,
		HistoryFile: history,
		Logger:      log.Default(),
		Input:       s.In,
		Output:      s.Out,
	})
}
