// Package builtin provides bundles of native functions for Catapillar
// programs.
//
// A [Bundle] groups related functions. [Register] adds bundles to a
// [lang.Registry]; [All] returns every bundle the command-line host makes
// available:
//
//	reg := lang.NewRegistry()
//	if err := builtin.Register(reg, builtin.All(builtin.Config{})...); err != nil {
//		return err
//	}
//
// The bundles are:
//
//	core   print 印, len, type, str, repr, num, error
//	lists  push, range, keys, values, map, filter, reduce, get, has,
//	       slice, reverse, sort
//	math   abs, floor, ceil, round, sqrt, pow, min, max
//	text   upper, lower, title, split, join, contains, trim, replace
//	env    getenv, platform, target, hostname, shell, cwd, file_exists,
//	       is_dir, is_file, is_symlink, path_abs, path_join, path_rel,
//	       path_prefix, path_prefix_if
//	expr   expr
//
// Functions that take a callback, such as map and filter, call back into
// the program with [lang.Invoke] and therefore only work inside a run.
//
// The expr function evaluates an expr-lang expression against a Map of
// bindings. [Compile] turns an expr-lang source into a native function with
// named parameters, so a host can define natives without writing Go.
package builtin
