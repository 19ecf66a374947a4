package loader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Parse builds a loader from its textual spec, as written in declarative
// config files. Relative program paths are resolved against baseDir.
//
// Supported specs:
//
//	append:TEXT      appends TEXT to the source
//	prepend:TEXT     prepends TEXT to the source
//	exec:PROG ARGS   runs PROG with the source on stdin
//	wasm:FILE ARGS   runs the WASI module FILE with the source on stdin
//	esbuild[:SYNTAX] compiles ts (default), tsx, jsx or js to CommonJS
func Parse(spec, baseDir string) (Loader, error) {
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "append":
		text := arg
		return FromFunc(spec, func(source string) (string, error) {
			return source + text, nil
		}), nil
	case "prepend":
		text := arg
		return FromFunc(spec, func(source string) (string, error) {
			return text + source, nil
		}), nil
	case "exec", "wasm":
		fields := strings.Fields(arg)
		if len(fields) == 0 {
			return nil, fmt.Errorf("loader %q: missing program", spec)
		}
		return External{
			Path: programPath(fields[0], baseDir),
			Args: fields[1:],
			Wasm: kind == "wasm",
		}, nil
	case "esbuild":
		e := Esbuild{Syntax: arg}
		if _, ok := esbuildLoaders[e.syntax()]; !ok {
			return nil, fmt.Errorf("loader %q: unsupported syntax %q", spec, arg)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown loader %q", spec)
	}
}

// programPath resolves explicit relative paths against baseDir and leaves
// bare names for PATH lookup.
func programPath(prog, baseDir string) string {
	if filepath.IsAbs(prog) || baseDir == "" {
		return prog
	}
	if strings.HasPrefix(prog, "./") || strings.HasPrefix(prog, "../") || filepath.Ext(prog) == ".wasm" {
		return filepath.Join(baseDir, prog)
	}
	return prog
}
