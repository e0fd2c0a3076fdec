// Package log provides the structured logger used by catapillar, built on
// [log/slog].
//
// A [Logger] is an immutable value. Its zero value discards everything, so
// library code such as the interpreter can log unconditionally and leave
// the decision to the host:
//
//	var l log.Logger
//	l.Info("dropped") // no output, no allocation
//
// Loggers are created with [Make] and configured with functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelTrace),
//		log.WithFormat(log.FormatText),
//		log.WithTimeLayout("kitchen"))
//
//	logger = logger.With(slog.String("run", id))
//	logger.Trace("native call", slog.String("name", "len"))
//
// # Levels
//
// In addition to the four [slog] levels the package defines [LevelTrace],
// below Debug, for evaluator tracing. Levels and formats implement
// [encoding.TextUnmarshaler] so they can be decoded directly from flags
// and configuration files.
//
// # Output
//
// [FormatJSON] writes one JSON object per record. [FormatText] writes
// key=value pairs; with [WithPretty] the text is styled for terminals with
// lipgloss, and falls back to plain text when the output is not a
// terminal.
//
// # Default logger
//
// The package-level functions ([Info], [Debug], ...) write through a
// process-wide default logger, which the command-line host reconfigures
// with [Config] as flags are parsed.
package log
