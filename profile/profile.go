package profile

import (
	"maps"
	"slices"
)

// Stopper stops a running profile and flushes it to disk.
type Stopper interface{ Stop() }

// Profiler describes one profiling session.
type Profiler struct {
	Mode  string // one of [Modes]; empty disables profiling
	Dir   string // output directory; empty uses the working directory
	Quiet bool   // suppress pkg/profile's own log output
}

// Enabled reports whether the binary was built with the [Tag] build tag.
func Enabled() bool { return enabled }

// Modes returns the sorted names of the supported profiling modes.
func Modes() []string { return slices.Sorted(maps.Keys(modes)) }

// Valid reports whether mode names a supported profiling mode.
func Valid(mode string) bool {
	_, ok := modes[mode]

	return ok
}

// Start begins profiling. It returns a no-op [Stopper] when profiling is
// compiled out or p.Mode is empty or unknown.
func (p Profiler) Start() Stopper {
	if !Valid(p.Mode) {
		return ignore{}
	}

	return start(p)
}

type ignore struct{}

func (ignore) Stop() {}
