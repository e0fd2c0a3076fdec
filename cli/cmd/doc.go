// Package cmd implements the catapillar subcommands: run, check, fmt,
// repl and init.
//
// Commands receive everything beyond their own flags through the
// [context.Context] kong passes to Run: the parsed [kong.Context]
// ([WithContext]), the standard streams ([WithStreams]) and the
// interpreter limits ([WithLimits]).
package cmd

// Identifiers of the kong variables the host defines for commands.
var (
	// CacheIdentifier names the path of the per-user cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier names the path of the YAML configuration file.
	ConfigIdentifier = "config"

	// HistoryIdentifier names the default REPL history file.
	HistoryIdentifier = "history"
)
