package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/catapillar/lang"
	"github.com/ardnew/catapillar/lang/builtin"
	"github.com/ardnew/catapillar/log"
)

// resolveYAML is a [kong.ConfigurationLoader] for YAML configuration files.
//
// Keys are flag names. Nested maps are joined with "-", so both of these
// set --log-level:
//
//	log-level: debug
//
//	log:
//	  level: debug
//
// Underscores may be used in place of hyphens. Command-line flags override
// configuration values.
func resolveYAML(r io.Reader) (kong.Resolver, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := config{}
	cfg.flatten("", doc)

	return cfg, nil
}

// resolveScript returns a [kong.ConfigurationLoader] for configuration
// written in catapillar. The program runs with the text, math, lists, and
// env builtins and must evaluate to a map, read like a YAML document:
//
//	let level = "info";
//	if getenv("CATAPILLAR_DEBUG", "") != "" { level = "debug"; }
//	({log: {level: level, pretty: true}, "max-depth": 256})
//
// A script that fails or yields something other than a map is logged and
// ignored.
func resolveScript(ctx context.Context) func(r io.Reader) (kong.Resolver, error) {
	return func(r io.Reader) (kong.Resolver, error) {
		src, err := lang.ReadSource("config", r)
		if err != nil {
			return nil, err
		}

		reg := lang.NewRegistry()

		err = builtin.Register(reg,
			builtin.Lists(), builtin.Math(), builtin.Text(), builtin.Env(nil))
		if err != nil {
			return nil, err
		}

		v, err := lang.New(lang.WithRegistry(reg)).Run(ctx, src, nil)
		if err != nil {
			log.Default().WarnContext(ctx, "ignoring configuration script",
				slog.String("file", src.Name), slog.Any("error", err))

			return config{}, nil
		}

		doc, ok := lang.FromValue(v).(map[string]any)
		if !ok {
			log.Default().WarnContext(ctx, "ignoring configuration script",
				slog.String("file", src.Name),
				slog.String("result", v.Kind().String()))

			return config{}, nil
		}

		cfg := config{}
		cfg.flatten("", doc)

		return cfg, nil
	}
}

// config implements [kong.Resolver] over flattened flag names.
type config map[string]any

// Validate implements [kong.Resolver].
func (config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (c config) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	if v, ok := c[flag.Name]; ok {
		return v, nil
	}

	if v, ok := c[strings.ReplaceAll(flag.Name, "-", "_")]; ok {
		return v, nil
	}

	return nil, nil
}

// flatten stores every leaf of doc under its joined key path.
func (c config) flatten(prefix string, doc map[string]any) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "-" + k
		}

		if m, ok := v.(map[string]any); ok {
			c.flatten(key, m)

			continue
		}

		c[key] = scalar(v)
	}
}

// scalar converts a decoded value into one kong can decode into a flag.
// Kong parses numbers from strings.
func scalar(v any) any {
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = scalar(e)
		}

		return out
	default:
		return v
	}
}
