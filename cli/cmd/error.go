package cmd

import "github.com/ardnew/catapillar/lang"

// Sentinel errors returned by the subcommands. Each is a [*lang.Error], so
// callers add context with With and Wrap and match with errors.Is.
var (
	ErrReadSource  = lang.NewError("read source")
	ErrNoSource    = lang.NewError("no source files")
	ErrEvaluate    = lang.NewError("evaluation failed")
	ErrCheck       = lang.NewError("source has errors")
	ErrFormat      = lang.NewError("format source")
	ErrJSONMarshal = lang.NewError("marshal JSON")
	ErrYAMLMarshal = lang.NewError("marshal YAML")
	ErrWatch       = lang.NewError("watch sources")
	ErrWriteConfig = lang.NewError("write configuration file")
	ErrFileExists  = lang.NewError("file exists (use --force to overwrite)")
)
