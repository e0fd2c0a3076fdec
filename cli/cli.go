package cli

import (
	"context"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/ardnew/catapillar/cli/cmd"
	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/pkg"
)

// Configuration file names, relative to [pkg.ConfigDir].
const (
	baseConfig       = "config.yaml"
	baseConfigJSON   = "config.json"
	baseConfigScript = "config" + pkg.Extension
)

// CLI is the top-level command-line interface for catapillar.
type CLI struct {
	Log    logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof  pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`
	Limits cmd.Limits  `embed:"" group:"eval"`

	Version kong.VersionFlag `help:"Print version and exit." short:"V"`

	Run   cmd.Run   `cmd:"" default:"withargs" help:"Evaluate source files."`
	Check cmd.Check `cmd:""                    help:"Report every lex and parse error in source files."`
	Fmt   cmd.Fmt   `cmd:""                    help:"Print source in canonical form, or its syntax tree."`
	Repl  cmd.Repl  `cmd:""                    help:"Start an interactive session."`
	Init  cmd.Init  `cmd:""                    help:"Write a configuration file holding the current settings."`
}

func (*CLI) evalGroup() kong.Group {
	return kong.Group{Key: "eval", Title: "Evaluation limits"}
}

// Run executes the catapillar CLI with the given context and arguments.
// The exit function is called with the exit code when kong exits early,
// for example after --help. Commands use the streams carried by ctx (see
// [cmd.WithStreams]).
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	if err := pkg.MkdirAll(); err != nil {
		return err
	}

	configFile := pkg.ConfigPath(baseConfig)

	vars := kong.Vars{
		cmd.ConfigIdentifier:  configFile,
		cmd.CacheIdentifier:   pkg.CacheDir(),
		cmd.HistoryIdentifier: pkg.CachePath("history"),
		"maxDepth":            strconv.Itoa(lang.DefaultMaxDepth),
		"version":             pkg.Version,
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Flags like --log-pretty are applied before kong parses anything, so
	// parse errors are already logged the requested way.
	cli.Log.scan(args)

	streams := cmd.StreamsFrom(ctx)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.Writers(streams.Out, streams.Err),
		kong.ExplicitGroups([]kong.Group{
			cli.Log.group(), cli.Pprof.group(), cli.evalGroup(),
		}),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(resolveScript(ctx), pkg.ConfigPath(baseConfigScript)),
		kong.Configuration(resolveYAML, configFile),
		kong.Configuration(kong.JSON, pkg.ConfigPath(baseConfigJSON)),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)
	ctx = cmd.WithStreams(ctx, streams)
	ctx = cmd.WithLimits(ctx, cli.Limits)

	defer cli.Log.start(ctx)()

	// No-op unless built with tag pprof and a mode is selected.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx)
}
