package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/catapillar/log"
	"github.com/ardnew/catapillar/pkg"
	"github.com/ardnew/catapillar/profile"
)

// Init writes a configuration file holding the current value of every
// global flag.
type Init struct {
	Force bool `help:"Overwrite an existing configuration file." short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) error {
	ktx := kongContextFrom(ctx)
	if ktx == nil {
		panic("internal error: kong context undefined")
	}

	path, ok := ktx.Model.Vars()[ConfigIdentifier]
	if !ok {
		panic("internal error: configuration path undefined")
	}

	if _, err := os.Stat(path); err == nil && !i.Force {
		return ErrWriteConfig.Wrap(ErrFileExists).With(slog.String("file", path))
	}

	data, err := yaml.Marshal(configValues(ktx))
	if err != nil {
		return ErrYAMLMarshal.Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), pkg.DirMode); err != nil {
		return ErrWriteConfig.Wrap(err).With(slog.String("file", path))
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ErrWriteConfig.Wrap(err).With(slog.String("file", path))
	}

	log.Debug("initialized configuration file", slog.String("path", path))

	return nil
}

// configValues returns the values of the global flags in ktx, keyed by
// flag name in sorted order.
func configValues(ktx *kong.Context) yaml.MapSlice {
	ignore := []string{"help", "version", profile.Tag}

	var values yaml.MapSlice

	for _, flag := range ktx.Model.Flags {
		if flag.Hidden || slices.ContainsFunc(ignore, func(s string) bool {
			return strings.HasPrefix(flag.Name, s)
		}) {
			continue
		}

		if v := configValue(ktx.FlagValue(flag)); v != nil {
			values = append(values, yaml.MapItem{Key: flag.Name, Value: v})
		}
	}

	slices.SortFunc(values, func(a, b yaml.MapItem) int {
		return strings.Compare(a.Key.(string), b.Key.(string))
	})

	return values
}

// configValue converts a flag value into a scalar the resolver reads
// back, or nil to leave the flag out.
func configValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case bool, int, int64, uint, uint64, float64:
		return v
	case string:
		if v == "" {
			return nil
		}

		return v
	case time.Duration:
		return v.String()
	case []string:
		if len(v) == 0 {
			return nil
		}

		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
