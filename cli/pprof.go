//go:build pprof

package cli

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/catapillar/log"
	"github.com/ardnew/catapillar/pkg"
	"github.com/ardnew/catapillar/profile"
)

type pprofConfig struct {
	Mode string `default:""            enum:",${pprofModeEnum}" help:"Enable profiling (${enum})." placeholder:"MODE" short:"p"`
	Dir  string `default:"${pprofDir}"                          help:"Profile output directory."                                  type:"path"`
}

func (pprofConfig) vars() kong.Vars {
	return kong.Vars{
		"pprofModeEnum": strings.Join(profile.Modes(), ","),
		"pprofDir":      pkg.CachePath(profile.Tag),
	}
}

func (pprofConfig) group() kong.Group {
	return kong.Group{Key: "pprof", Title: "Profiling (pprof)"}
}

// start starts profiling if a mode is selected.
func (c pprofConfig) start(ctx context.Context) (stop func()) {
	if c.Mode == "" {
		return func() {}
	}

	log.Default().DebugContext(ctx, "pprof start",
		slog.String("mode", c.Mode),
		slog.String("dir", c.Dir),
	)

	p := profile.Profiler{Mode: c.Mode, Dir: c.Dir, Quiet: true}.Start()

	return func() {
		p.Stop()
		log.Default().DebugContext(ctx, "pprof stop",
			slog.String("mode", c.Mode),
			slog.String("dir", c.Dir),
		)
	}
}
