// Package compiler orchestrates a build: it applies plugins, fires the
// lifecycle hooks, builds the module graph for every entry, synthesizes one
// bundle per chunk and writes the assets.
package compiler

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/albertocavalcante/skypack/internal/bundle"
	"github.com/albertocavalcante/skypack/internal/graph"
	"github.com/albertocavalcante/skypack/internal/hooks"
	"github.com/albertocavalcante/skypack/internal/loader"
	"github.com/albertocavalcante/skypack/internal/resolve"
)

// Plugin extends a compiler, typically by tapping its hooks.
type Plugin interface {
	Apply(c *Compiler)
}

// PluginFunc adapts a function to the Plugin interface.
type PluginFunc func(c *Compiler)

// Apply implements Plugin.
func (f PluginFunc) Apply(c *Compiler) {
	f(c)
}

// Callback receives the outcome of Run.
type Callback func(err error, stats *Stats)

// Compiler runs builds for one configuration.
type Compiler struct {
	opts   Options
	optErr error
	hooks  *hooks.Hooks
	log    *zap.Logger
}

// New creates a compiler and applies every configured plugin. Configuration
// errors are reported by the first build.
func New(opts Options) *Compiler {
	normalized, err := normalize(opts)
	c := &Compiler{
		opts:   normalized,
		optErr: err,
		hooks:  hooks.New(),
		log:    normalized.Logger,
	}
	for _, p := range normalized.Plugins {
		p.Apply(c)
	}
	return c
}

// Hooks returns the compiler's lifecycle hooks.
func (c *Compiler) Hooks() *hooks.Hooks {
	return c.hooks
}

// Logger returns the compiler's logger.
func (c *Compiler) Logger() *zap.Logger {
	return c.log
}

// Context returns the absolute base directory of the build.
func (c *Compiler) Context() string {
	return c.opts.Context
}

// OutputPath returns the absolute output directory.
func (c *Compiler) OutputPath() string {
	return c.opts.Output.Path
}

// Compile builds every entry and synthesizes the assets without writing
// them or firing hooks.
func (c *Compiler) Compile(ctx context.Context) (*Stats, error) {
	if c.optErr != nil {
		return nil, c.optErr
	}

	comp := graph.New(graph.Options{
		Context:  c.opts.Context,
		FS:       c.opts.FS,
		Resolver: resolve.New(c.opts.FS, c.opts.Extensions),
		Pipeline: loader.NewPipeline(c.opts.Rules...),
		Logger:   c.log,
	})
	if err := comp.Build(ctx, c.opts.Entry); err != nil {
		return nil, err
	}

	stats := &Stats{
		Chunks:           comp.Chunks(),
		Modules:          comp.Modules(),
		FileDependencies: comp.FileDependencies(),
		Cycles:           comp.Cycles(),
	}
	for _, chunk := range comp.Chunks() {
		source, err := bundle.Synthesize(chunk)
		if err != nil {
			return nil, err
		}
		stats.Assets = append(stats.Assets, Asset{
			Name:   AssetName(c.opts.Output.Filename, chunk.Name),
			Chunk:  chunk.Name,
			Source: source,
		})
	}
	sort.Slice(stats.Assets, func(i, j int) bool {
		return stats.Assets[i].Name < stats.Assets[j].Name
	})
	return stats, nil
}

// Run fires the run hook, builds, writes every asset, fires the done hook
// and then calls callback once per asset. If the build fails nothing is
// written; on any failure done does not fire and callback is called once
// with the error.
func (c *Compiler) Run(ctx context.Context, callback Callback) {
	c.hooks.Run.Call()

	stats, err := c.Compile(ctx)
	if err == nil {
		err = emit(c.opts.Output.Path, stats.Assets)
	}
	if err != nil {
		callback(err, nil)
		return
	}

	for _, asset := range stats.Assets {
		c.log.Debug("emitted asset",
			zap.String("name", asset.Name),
			zap.Int("size", len(asset.Source)))
	}

	c.hooks.Done.Call()
	for range stats.Assets {
		callback(nil, stats)
	}
}
