// Package profile provides optional runtime profiling for catapillar hosts
// via [github.com/pkg/profile].
//
// Profiling is compiled in only with the "pprof" build tag:
//
//	go build -tags pprof .
//
// Without the tag [Modes] is empty and [Profiler.Start] always returns a
// no-op [Stopper], so callers never need their own build constraints.
//
// # Modes
//
//   - allocs:    memory allocations (all)
//   - block:     blocking on synchronization primitives
//   - clock:     wall-clock time (fgprof)
//   - cpu:       CPU time
//   - goroutine: goroutine stacks
//   - heap:      live heap allocations
//   - mem:       memory (default sampling)
//   - mutex:     mutex contention
//   - thread:    thread creation
//   - trace:     execution trace
//
// # Command line
//
//	catapillar --pprof-mode cpu run script.cat
//	go tool pprof -http=: ~/.cache/catapillar/pprof/cpu.pprof
//
// Profiles are written to [Profiler.Dir], named after the mode. The
// package also imports [net/http/pprof] under the tag, so a host serving
// HTTP exposes /debug/pprof/ as well.
package profile

// Tag is the build tag that enables profiling.
const Tag = `pprof`
