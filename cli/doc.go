// Package cli contains the command line interface for catapillar.
//
// # Usage
//
//	catapillar [flags] [run] FILE...     evaluate files, print the last value
//	catapillar check FILE...             report lex and parse errors
//	catapillar fmt [native|ast] FILE     print canonical source or the AST
//	catapillar repl [FILE...]            interactive session
//	catapillar init                      write the configuration file
//
// A file named "-" is standard input.
//
// # Configuration
//
// Flags may also be set from files in the per-user configuration directory
// (for example ~/.config/catapillar). Command-line flags override them.
//
//   - config.cat: a catapillar program evaluating to a map
//   - config.yaml: YAML keyed by flag name; nested maps join with "-"
//   - config.json: JSON keyed by flag name
//
// The init command writes config.yaml from the current settings:
//
//	catapillar --log-level=debug --max-depth=128 init
//
// # Logging Options
//
//   - --log-level: minimum level (trace, debug, info, warn, error)
//   - --log-format: text or json
//   - --log-time-layout: timestamp layout, by name (RFC3339, Kitchen, ...)
//     or Go reference layout; "none" omits it
//   - --log-caller: include the caller's file and line
//   - --[no-]log-pretty: colorized text output
//
// # Evaluation Limits
//
//   - --max-steps: abort a run after this many evaluation steps
//   - --max-depth: maximum function call depth
//   - --timeout: abort a run after this long
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o catapillar .
//
//   - --pprof-mode: cpu, mem, allocs, heap, mutex, block, goroutine,
//     thread, trace, or clock
//   - --pprof-dir: profile output directory (default
//     ~/.cache/catapillar/pprof)
package cli
