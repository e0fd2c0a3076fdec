package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"

	"github.com/ardnew/catapillar/lang"
)

// Fmt parses a source file and writes it back in a chosen form.
type Fmt struct {
	Native Native `cmd:"" default:"withargs" help:"Format as canonical catapillar source (default)."`
	AST    AST    `cmd:""                    help:"Format as a syntax tree."`
}

// Native formats input as canonical catapillar source.
type Native struct {
	Indent int  `default:"2" help:"Indent width; 0 writes each program on one line." short:"i"`
	Write  bool `            help:"Rewrite the source file in place."                 short:"w"`

	Source string `arg:"" default:"-" help:"Source file, or '-' for stdin." name:"source"`
}

// Run executes the fmt native command.
func (f *Native) Run(ctx context.Context) error {
	s := StreamsFrom(ctx)

	prog, err := parseOne(f.Source, s)
	if err != nil {
		return err
	}

	var buf bytes.Buffer

	if err := prog.Format(ctx, &buf, f.Indent); err != nil {
		return ErrFormat.Wrap(err).With(slog.String("format", "native"))
	}

	if f.Write && f.Source != stdinSource {
		info, err := os.Stat(f.Source)
		if err != nil {
			return ErrFormat.Wrap(err).With(slog.String("file", f.Source))
		}

		return os.WriteFile(f.Source, buf.Bytes(), info.Mode().Perm())
	}

	_, err = buf.WriteTo(s.Out)

	return err
}

// AST formats input as a YAML or JSON syntax tree.
type AST struct {
	Format string `default:"yaml" enum:"yaml,json" help:"Tree format (${enum})." short:"f"`
	Indent int    `default:"2"                     help:"Indent width; 0 writes compact output." short:"i"`

	Source string `arg:"" default:"-" help:"Source file, or '-' for stdin." name:"source"`
}

// Run executes the fmt ast command.
func (a *AST) Run(ctx context.Context) error {
	s := StreamsFrom(ctx)

	prog, err := parseOne(a.Source, s)
	if err != nil {
		return err
	}

	if a.Format == outputJSON {
		err = prog.FormatJSON(ctx, s.Out, a.Indent)
	} else {
		err = prog.FormatYAML(ctx, s.Out, a.Indent)
	}

	if err != nil {
		return ErrFormat.Wrap(err).With(slog.String("format", a.Format))
	}

	return nil
}

// parseOne reads and parses a single source, reporting diagnostics to the
// error stream.
func parseOne(path string, s Streams) (*lang.Program, error) {
	srcs, err := loadSources([]string{path}, s.In)
	if err != nil {
		return nil, err
	}

	prog, diags := lang.Parse(srcs[0])
	if len(diags) > 0 {
		report(s.Err, diags)

		return nil, ErrFormat.Wrap(diags).With(slog.String("file", srcs[0].Name))
	}

	return prog, nil
}
