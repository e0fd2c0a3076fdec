package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/log"
)

// Run evaluates source files in order, in one shared global scope, and
// prints the value of the last statement.
type Run struct {
	Output string   `default:"text" enum:"text,json,yaml,none" help:"Result format (${enum})." short:"o"`
	Watch  bool     `                                          help:"Re-run whenever a source file changes." short:"w"`
	Files  []string `arg:"" default:"-"                        help:"Source files, or '-' for stdin." name:"file"`
}

// Run executes the run command.
func (r *Run) Run(ctx context.Context) error {
	s := StreamsFrom(ctx)

	if r.Watch && !slices.Contains(r.Files, stdinSource) {
		return r.watch(ctx, s)
	}

	return r.once(ctx, s)
}

// once loads and evaluates every file a single time.
func (r *Run) once(ctx context.Context, s Streams) error {
	srcs, err := loadSources(r.Files, s.In)
	if err != nil {
		return err
	}

	in, err := newInterpreter(ctx, s.Out)
	if err != nil {
		return err
	}

	ctx, cancel := limitsFrom(ctx).deadline(ctx)
	defer cancel()

	env := lang.NewEnvironment(nil)

	var result lang.Value = lang.Null{}

	for _, src := range srcs {
		log.Debug("run source", slog.String("file", src.Name))

		result, err = in.Run(ctx, src, env)
		if err != nil {
			report(s.Err, err)

			return ErrEvaluate.Wrap(err).With(slog.String("file", src.Name))
		}
	}

	return writeValue(s.Out, r.Output, result)
}

// debounce is how long the watcher waits for a burst of file events to
// settle before re-running.
const debounce = 100 * time.Millisecond

// watch runs the files, then runs them again after each change until ctx
// is done. Failed runs are reported and do not stop the watcher.
func (r *Run) watch(ctx context.Context, s Streams) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return ErrWatch.Wrap(err)
	}
	defer w.Close()

	files := make(map[string]bool, len(r.Files))

	for _, f := range r.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return ErrWatch.Wrap(err).With(slog.String("file", f))
		}

		files[abs] = true

		// Editors often replace files, so watch the directory.
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return ErrWatch.Wrap(err).With(slog.String("file", f))
		}
	}

	rerun := func() {
		if err := r.once(ctx, s); err != nil {
			log.Warn("run failed", slog.Any("error", err))
		}
	}

	rerun()

	return watchLoop(ctx, w.Events, w.Errors, files, debounce, rerun)
}

// watchLoop calls rerun once per settled burst of events that touch files.
func watchLoop(
	ctx context.Context,
	events <-chan fsnotify.Event,
	errs <-chan error,
	files map[string]bool,
	delay time.Duration,
	rerun func(),
) error {
	timer := time.NewTimer(delay)
	timer.Stop()

	const changed = fsnotify.Write | fsnotify.Create | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if !files[filepath.Clean(ev.Name)] || ev.Op&changed == 0 {
				continue
			}

			log.Trace("source changed", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
			timer.Reset(delay)

		case err, ok := <-errs:
			if !ok {
				return nil
			}

			log.Warn("watch error", slog.Any("error", err))

		case <-timer.C:
			rerun()
		}
	}
}
