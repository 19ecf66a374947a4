// Package jsrun executes synthesized bundles in an embedded JavaScript
// runtime. It backs the -exec flag and the runtime tests of the bundle
// format.
package jsrun

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
)

// Options configures a run.
type Options struct {
	// Stdout receives console.log output. Discarded when nil.
	Stdout io.Writer

	// Globals are set on the global object before the bundle runs.
	Globals map[string]any
}

// Run executes source as a script named name and returns the runtime, so
// callers can inspect the global scope afterwards. Cancelling ctx interrupts
// the script.
func Run(ctx context.Context, name, source string, opts Options) (*goja.Runtime, error) {
	program, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}

	rt := goja.New()
	if err := installConsole(rt, opts.Stdout); err != nil {
		return nil, err
	}
	for key, value := range opts.Globals {
		if err := rt.Set(key, value); err != nil {
			return nil, fmt.Errorf("setting global %s: %w", key, err)
		}
	}

	stop := context.AfterFunc(ctx, func() {
		rt.Interrupt(ctx.Err())
	})
	defer stop()

	if _, err := rt.RunProgram(program); err != nil {
		return rt, fmt.Errorf("running %s: %w", name, err)
	}
	return rt, nil
}

func installConsole(rt *goja.Runtime, w io.Writer) error {
	if w == nil {
		w = io.Discard
	}
	console := rt.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(name, log); err != nil {
			return err
		}
	}
	return rt.Set("console", console)
}
