// Package plugins provides the built-in compiler plugins that declarative
// configuration files can name.
package plugins

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/albertocavalcante/skypack/internal/compiler"
)

// Built-in plugin names.
const (
	NameLogRun  = "log-run"
	NameLogDone = "log-done"
	NameTimer   = "timer"
)

var builtins = map[string]func() compiler.Plugin{
	NameLogRun:  func() compiler.Plugin { return LogRun{} },
	NameLogDone: func() compiler.Plugin { return LogDone{} },
	NameTimer:   func() compiler.Plugin { return &Timer{} },
}

// Lookup returns a fresh instance of the built-in plugin called name.
func Lookup(name string) (compiler.Plugin, error) {
	newPlugin, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (available: %v)", name, Names())
	}
	return newPlugin(), nil
}

// Names returns the built-in plugin names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogRun logs when a build starts.
type LogRun struct{}

// Apply implements compiler.Plugin.
func (LogRun) Apply(c *compiler.Compiler) {
	log := c.Logger()
	c.Hooks().Run.Tap(NameLogRun, func() {
		log.Info("build started", zap.String("context", c.Context()))
	})
}

// LogDone logs when every asset has been written.
type LogDone struct{}

// Apply implements compiler.Plugin.
func (LogDone) Apply(c *compiler.Compiler) {
	log := c.Logger()
	c.Hooks().Done.Tap(NameLogDone, func() {
		log.Info("build finished", zap.String("output", c.OutputPath()))
	})
}

// Timer logs the time between the run and done hooks.
type Timer struct {
	// Now defaults to time.Now.
	Now func() time.Time

	start time.Time
}

// Apply implements compiler.Plugin.
func (t *Timer) Apply(c *compiler.Compiler) {
	if t.Now == nil {
		t.Now = time.Now
	}
	log := c.Logger()
	c.Hooks().Run.Tap(NameTimer, func() {
		t.start = t.Now()
	})
	c.Hooks().Done.Tap(NameTimer, func() {
		log.Info("build time", zap.Duration("elapsed", t.Now().Sub(t.start)))
	})
}

// Func is a plugin assembled from optional run and done callbacks. Scripted
// configurations declare plugins this way.
type Func struct {
	Name string
	Run  func()
	Done func()
}

// Apply implements compiler.Plugin.
func (f Func) Apply(c *compiler.Compiler) {
	if f.Run != nil {
		c.Hooks().Run.Tap(f.Name, f.Run)
	}
	if f.Done != nil {
		c.Hooks().Done.Tap(f.Name, f.Done)
	}
}
