package cli

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/catapillar/log"
)

// logLevel configures the default logger level as a side effect of parsing,
// so messages logged while kong is still reading flags honor it.
type logLevel string

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *logLevel) UnmarshalText(text []byte) error {
	level, err := log.ParseLevel(string(text))
	if err != nil {
		return err
	}

	*l = logLevel(text)
	log.Config(log.WithLevel(level))

	return nil
}

func (l logLevel) level() log.Level {
	level, err := log.ParseLevel(string(l))
	if err != nil {
		return log.DefaultLevel
	}

	return level
}

// logFormat configures the default logger format as a side effect of
// parsing.
type logFormat string

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *logFormat) UnmarshalText(text []byte) error {
	format, err := log.ParseFormat(string(text))
	if err != nil {
		return err
	}

	*f = logFormat(text)
	log.Config(log.WithFormat(format))

	return nil
}

func (f logFormat) format() log.Format {
	format, err := log.ParseFormat(string(f))
	if err != nil {
		return log.DefaultFormat
	}

	return format
}

type logConfig struct {
	Level      logLevel  `default:"info"    enum:"${logLevelEnum}"  help:"Set log level (${enum})."`
	Format     logFormat `default:"text"    enum:"${logFormatEnum}" help:"Set log format (${enum})."`
	TimeLayout string    `default:"RFC3339"                         help:"Set timestamp layout, or 'none'."`
	Caller     bool      `default:"false"                           help:"Include caller information."       negatable:""`
	Pretty     bool      `default:"true"                            help:"Enable colorized pretty printing." negatable:""`
}

func (*logConfig) vars() kong.Vars {
	return kong.Vars{
		"logLevelEnum":  strings.Join(slices.Collect(log.Levels()), ","),
		"logFormatEnum": strings.Join(slices.Collect(log.Formats()), ","),
	}
}

func (*logConfig) group() kong.Group {
	return kong.Group{Key: "log", Title: "Logging options"}
}

// start applies every logging flag to the default logger.
func (c *logConfig) start(ctx context.Context) func() {
	log.Config(
		log.WithLevel(c.Level.level()),
		log.WithFormat(c.Format.format()),
		log.WithTimeLayout(c.TimeLayout),
		log.WithCaller(c.Caller),
		log.WithPretty(c.Pretty),
	)

	log.Default().DebugContext(ctx, "logger initialized",
		slog.String("level", string(c.Level)),
		slog.String("format", string(c.Format)),
		slog.String("time", c.TimeLayout),
		slog.Bool("caller", c.Caller),
		slog.Bool("pretty", c.Pretty),
	)

	return func() {}
}

// scan applies logging flags found in args before kong parses them, so the
// logger is configured no matter where the flags appear. Invalid values are
// left for kong to report.
func (c *logConfig) scan(args []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return
		}

		name, value, assigned := strings.Cut(arg, "=")

		// value of a non-boolean flag given as the next argument
		next := func() string {
			if !assigned && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++

				return args[i]
			}

			return value
		}

		switch name {
		case "--log-level":
			_ = c.Level.UnmarshalText([]byte(next()))

		case "--log-format":
			_ = c.Format.UnmarshalText([]byte(next()))

		case "--log-time-layout":
			c.TimeLayout = next()
			log.Config(log.WithTimeLayout(c.TimeLayout))

		case "--log-pretty", "--no-log-pretty":
			if v, ok := scanBool(name, value, assigned); ok {
				c.Pretty = v
				log.Config(log.WithPretty(v))
			}

		case "--log-caller", "--no-log-caller":
			if v, ok := scanBool(name, value, assigned); ok {
				c.Caller = v
				log.Config(log.WithCaller(v))
			}
		}
	}
}

// scanBool returns the value of a negatable boolean flag.
func scanBool(name, value string, assigned bool) (bool, bool) {
	v := true

	if assigned {
		var err error
		if v, err = strconv.ParseBool(value); err != nil {
			return false, false
		}
	}

	if strings.HasPrefix(name, "--no-") {
		v = !v
	}

	return v, true
}
