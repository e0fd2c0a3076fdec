package builtin

// This file exposes host information to programs: the process
// environment, the platform, the filesystem, and PATH-like list
// manipulation.

import (
	"bufio"
	"context"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ardnew/mung"

	"github.com/ardnew/catapillar/lang"
)

// Env returns the host bundle. environ supplies the variables seen by
// getenv; nil means os.Environ().
func Env(environ []string) Bundle {
	processEnv := buildProcessEnvMap(environ)

	return Bundle{
		Name: "env",
		Funcs: []Func{
			{Name: "getenv", Arity: lang.Variadic, Signature: "getenv(key[, default])", Fn: getenv(processEnv)},
			{Name: "platform", Arity: 0, Signature: "platform()", Fn: constant(getPlatform)},
			{Name: "target", Arity: 0, Signature: "target()", Fn: constant(getTarget)},
			{Name: "hostname", Arity: 0, Signature: "hostname()", Fn: constant(getHostname)},
			{Name: "shell", Arity: 0, Signature: "shell()", Fn: constant(getShell)},
			{Name: "cwd", Arity: 0, Signature: "cwd()", Fn: constant(getCwd)},
			pathTest("file_exists", fileExists),
			pathTest("is_dir", fileIsDir),
			pathTest("is_file", fileIsRegular),
			pathTest("is_symlink", fileIsSymlink),
			{Name: "path_abs", Arity: 1, Signature: "path_abs(path)", Fn: pathAbs},
			{Name: "path_join", Arity: lang.Variadic, Signature: "path_join(elem...)", Fn: pathCat},
			{Name: "path_rel", Arity: 2, Signature: "path_rel(from, to)", Fn: pathRel},
			{Name: "path_prefix", Arity: lang.Variadic, Signature: "path_prefix(list, prefix...)", Fn: mungPrefix},
			{Name: "path_prefix_if", Arity: lang.Variadic, Signature: "path_prefix_if(list, fn, prefix...)", Fn: mungPrefixIf},
		},
	}
}

// constant wraps a host query into a native with no arguments.
func constant[T any](fn func() T) lang.NativeFunc {
	return func(context.Context, []lang.Value) (lang.Value, error) {
		return lang.ToValue(fn())
	}
}

// ---------------------------------------------------------------------------
// Environment variables
// ---------------------------------------------------------------------------

// buildProcessEnvMap converts a "KEY=VALUE" string slice to a map.
// If envList is nil, os.Environ() is used.
func buildProcessEnvMap(envList []string) map[string]string {
	if envList == nil {
		envList = os.Environ()
	}

	result := make(map[string]string, len(envList))

	for _, entry := range envList {
		key, value, ok := strings.Cut(entry, "=")
		if ok {
			result[key] = value
		}
	}

	return result
}

func getenv(processEnv map[string]string) lang.NativeFunc {
	return func(_ context.Context, args []lang.Value) (lang.Value, error) {
		if err := lang.CheckArity("getenv", args, 1, 2); err != nil {
			return nil, err
		}

		key, err := lang.Arg[lang.String]("getenv", args, 0)
		if err != nil {
			return nil, err
		}

		if v, ok := processEnv[string(key)]; ok {
			return lang.String(v), nil
		}

		if len(args) > 1 {
			return args[1], nil
		}

		return lang.Null{}, nil
	}
}

// ---------------------------------------------------------------------------
// System information
// ---------------------------------------------------------------------------

// getTarget returns the host target using GNU GCC/LLVM naming conventions.
func getTarget() map[string]string {
	t := getPlatform()

	switch t["arch"] {
	case "386":
		t["arch"] = "i386"
	case "amd64":
		t["arch"] = "x86_64"
	case "arm":
		arm, ok := os.LookupEnv("GOARM")
		if ok {
			arm, _, _ = strings.Cut(arm, ",")
			switch strings.TrimSpace(arm) {
			case "5", "6", "7":
				t["arch"] = "armv" + arm
			}
		}
	case "arm64":
		if t["os"] != "darwin" {
			t["arch"] = "aarch64"
		}
	case "mipsle":
		t["arch"] = "mipsel"
	}

	return t
}

// getPlatform returns the host target using Go conventions.
func getPlatform() map[string]string {
	var (
		o, a string
		ok   bool
	)

	if o, ok = os.LookupEnv("GOHOSTOS"); !ok {
		if o, ok = os.LookupEnv("GOOS"); !ok {
			o = runtime.GOOS
		}
	}

	if a, ok = os.LookupEnv("GOHOSTARCH"); !ok {
		if a, ok = os.LookupEnv("GOARCH"); !ok {
			a = runtime.GOARCH
		}
	}

	return map[string]string{"os": o, "arch": a}
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	return hostname
}

func getShell() string {
	shell, ok := os.LookupEnv("SHELL")
	if ok {
		return shell
	}

	u, err := user.Current()
	if err != nil || u.Username == "" {
		return ""
	}

	f, err := os.Open("/etc/passwd")
	if err != nil {
		return ""
	}

	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		e := strings.Split(s.Text(), ":")
		if len(e) > 6 && e[0] == u.Username {
			return e[6]
		}
	}

	return ""
}

func getCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return absPath(".")
	}

	return cwd
}

// ---------------------------------------------------------------------------
// Filesystem
// ---------------------------------------------------------------------------

// pathTest wraps a predicate on a path into a one-argument native.
func pathTest(name string, fn func(string) bool) Func {
	return Func{
		Name:      name,
		Arity:     1,
		Signature: name + "(path)",
		Fn: func(_ context.Context, args []lang.Value) (lang.Value, error) {
			p, err := lang.Arg[lang.String](name, args, 0)
			if err != nil {
				return nil, err
			}

			return lang.Boolean(fn(string(p))), nil
		},
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return !os.IsNotExist(err)
}

func fileIsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.IsDir()
}

func fileIsRegular(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

func fileIsSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeSymlink != 0
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func absPath(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return p
}

func pathAbs(_ context.Context, args []lang.Value) (lang.Value, error) {
	p, err := lang.Arg[lang.String]("path_abs", args, 0)
	if err != nil {
		return nil, err
	}

	return lang.String(absPath(string(p))), nil
}

func pathCat(_ context.Context, args []lang.Value) (lang.Value, error) {
	elem, err := stringArgs("path_join", args, len(args))
	if err != nil {
		return nil, err
	}

	return lang.String(filepath.Join(elem...)), nil
}

func pathRel(_ context.Context, args []lang.Value) (lang.Value, error) {
	s, err := stringArgs("path_rel", args, 2)
	if err != nil {
		return nil, err
	}

	p, err := filepath.Rel(absPath(s[0]), absPath(s[1]))
	if err != nil {
		return lang.String(filepath.Join(s[0], s[1])), nil
	}

	return lang.String(p), nil
}

// ---------------------------------------------------------------------------
// PATH-like lists (mung)
// ---------------------------------------------------------------------------

// mungPrefix prepends prefix items to a list separated by the host's path
// list separator.
func mungPrefix(_ context.Context, args []lang.Value) (lang.Value, error) {
	if err := lang.CheckArity("path_prefix", args, 1, -1); err != nil {
		return nil, err
	}

	s, err := stringArgs("path_prefix", args, len(args))
	if err != nil {
		return nil, err
	}

	return lang.String(mung.Make(
		mung.WithSubjectItems(s[0]),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(s[1:]...),
	).String()), nil
}

// mungPrefixIf is like mungPrefix but keeps only the items for which the
// program function fn returns true.
func mungPrefixIf(ctx context.Context, args []lang.Value) (lang.Value, error) {
	if err := lang.CheckArity("path_prefix_if", args, 2, -1); err != nil {
		return nil, err
	}

	subject, err := lang.Arg[lang.String]("path_prefix_if", args, 0)
	if err != nil {
		return nil, err
	}

	prefix := make([]string, 0, len(args)-2)

	for i := 2; i < len(args); i++ {
		p, err := lang.Arg[lang.String]("path_prefix_if", args, i)
		if err != nil {
			return nil, err
		}

		prefix = append(prefix, string(p))
	}

	// mung filters cannot fail, so the first callback error is kept aside
	// and every later item is rejected.
	var failed error

	keep := func(item string) bool {
		if failed != nil {
			return false
		}

		ok, err := predicate(ctx, args[1], lang.String(item))
		if err != nil {
			failed = err
		}

		return ok
	}

	result := mung.Make(
		mung.WithSubjectItems(string(subject)),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(prefix...),
		mung.WithFilter(keep),
	).String()

	if failed != nil {
		return nil, failed
	}

	return lang.String(result), nil
}
