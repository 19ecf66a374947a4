// Package graph builds the module graph of a bundle: starting from each entry
// point it reads, transforms and parses every reachable file, resolves its
// require() requests, rewrites them to canonical module ids, and records one
// Module per physical file across all entries.
package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/albertocavalcante/skypack/internal/jsast"
	"github.com/albertocavalcante/skypack/internal/loader"
	"github.com/albertocavalcante/skypack/internal/resolve"
)

// Module is one source file after transformation, keyed by its canonical id.
type Module struct {
	// ID is the canonical id: the path relative to the compilation context,
	// slash-separated and prefixed with "./".
	ID string

	// Path is the absolute file path.
	Path string

	// Chunks lists every entry name whose closure reaches this module, in the
	// order they were discovered. It only grows.
	Chunks []string

	// Dependencies are the module's require() requests in source order.
	Dependencies []Dependency

	// Source is the transformed source with requests rewritten to ids.
	Source string

	building bool
}

// InChunk reports whether the module belongs to the named chunk.
func (m *Module) InChunk(name string) bool {
	return slices.Contains(m.Chunks, name)
}

func (m *Module) addChunk(name string) bool {
	if m.InChunk(name) {
		return false
	}
	m.Chunks = append(m.Chunks, name)
	return true
}

// Dependency is one resolved require() request.
type Dependency struct {
	// Request is the string the source passed to require().
	Request string
	// ID is the canonical id the request was rewritten to.
	ID string
	// Path is the resolved absolute path.
	Path string
}

// Chunk is an entry point and the modules its closure reaches.
type Chunk struct {
	Name    string
	Entry   *Module
	Modules []*Module
}

// EntryPoint names a starting file. Relative paths are taken from the
// compilation context.
type EntryPoint struct {
	Name string
	Path string
}

// Options configures a Compilation.
type Options struct {
	// Context is the absolute base directory for canonical ids and relative
	// entry paths.
	Context string

	// FS is read for sources. Defaults to resolve.OS.
	FS resolve.FileSystem

	// Resolver resolves requests. Defaults to a resolver over FS with the
	// default extensions.
	Resolver *resolve.Resolver

	// Pipeline transforms sources before parsing. May be nil.
	Pipeline *loader.Pipeline

	// Logger receives build progress. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Compilation is the state of one build. It is not safe for concurrent use.
type Compilation struct {
	opts Options
	log  *zap.Logger

	modules []*Module
	byID    map[string]*Module
	chunks  []*Chunk

	fileDeps  []string
	seenFiles map[string]bool

	stack  []string
	cycles [][]string
}

// New creates an empty compilation.
func New(opts Options) *Compilation {
	if opts.FS == nil {
		opts.FS = resolve.OS{}
	}
	if opts.Resolver == nil {
		opts.Resolver = resolve.New(opts.FS, nil)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Compilation{
		opts:      opts,
		log:       log,
		byID:      make(map[string]*Module),
		seenFiles: make(map[string]bool),
	}
}

// Build builds every entry, in order, and derives one chunk per entry.
func (c *Compilation) Build(ctx context.Context, entries []EntryPoint) error {
	for _, e := range entries {
		path := e.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.opts.Context, path)
		}
		c.addFileDependency(path)

		entry, err := c.require(ctx, e.Name, path)
		if err != nil {
			return fmt.Errorf("entry %q: %w", e.Name, err)
		}
		c.chunks = append(c.chunks, &Chunk{Name: e.Name, Entry: entry})
	}

	for _, chunk := range c.chunks {
		chunk.Modules = nil
		for _, m := range c.modules {
			if m.InChunk(chunk.Name) {
				chunk.Modules = append(chunk.Modules, m)
			}
		}
	}
	return nil
}

// BuildModule returns the module for the file at path, tagged with chunk.
// A file is built at most once: when its id is already registered the
// existing module is claimed for chunk instead.
func (c *Compilation) BuildModule(ctx context.Context, chunk, path string) (*Module, error) {
	return c.require(ctx, chunk, path)
}

// build builds the file at path and, recursively, every dependency not yet
// registered. The module is registered before its dependencies are
// visited, so cycles terminate.
func (c *Compilation) build(ctx context.Context, chunk, path string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := c.opts.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m := &Module{
		ID:       c.ModuleID(path),
		Path:     path,
		Chunks:   []string{chunk},
		building: true,
	}
	c.register(m)
	c.stack = append(c.stack, m.ID)
	defer func() {
		c.stack = c.stack[:len(c.stack)-1]
		m.building = false
	}()

	source, err := c.opts.Pipeline.Transform(ctx, path, string(raw))
	if err != nil {
		return nil, err
	}

	file, err := jsast.Parse(path, source)
	if err != nil {
		return nil, err
	}

	for _, call := range file.RequireCalls() {
		depPath, err := c.opts.Resolver.Resolve(path, call.Request())
		if err != nil {
			return nil, err
		}
		c.addFileDependency(depPath)

		depID := c.ModuleID(depPath)
		call.Rewrite(depID)
		m.Dependencies = append(m.Dependencies, Dependency{
			Request: call.Request(),
			ID:      depID,
			Path:    depPath,
		})
	}
	m.Source = file.Unparse()

	c.log.Debug("built module",
		zap.String("id", m.ID),
		zap.String("chunk", chunk),
		zap.Int("dependencies", len(m.Dependencies)))

	for _, dep := range m.Dependencies {
		if _, err := c.require(ctx, chunk, dep.Path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// require returns the module for path, building it only if no module with
// the same id is registered.
func (c *Compilation) require(ctx context.Context, chunk, path string) (*Module, error) {
	id := c.ModuleID(path)
	m, ok := c.byID[id]
	if !ok {
		return c.build(ctx, chunk, path)
	}

	if m.building {
		c.recordCycle(id)
	}
	if c.claim(m, chunk) {
		c.log.Debug("shared module", zap.String("id", id), zap.String("chunk", chunk))
	}
	return m, nil
}

// claim adds chunk to m and to everything m depends on. It reports whether
// m was newly claimed.
func (c *Compilation) claim(m *Module, chunk string) bool {
	if !m.addChunk(chunk) {
		return false
	}
	for _, dep := range m.Dependencies {
		if d, ok := c.byID[dep.ID]; ok {
			c.claim(d, chunk)
		}
	}
	return true
}

func (c *Compilation) register(m *Module) {
	c.modules = append(c.modules, m)
	c.byID[m.ID] = m
}

// recordCycle records the in-progress path from id back to itself.
func (c *Compilation) recordCycle(id string) {
	start := slices.Index(c.stack, id)
	if start < 0 {
		return
	}
	cycle := make([]string, len(c.stack)-start+1)
	copy(cycle, c.stack[start:])
	cycle[len(cycle)-1] = id
	c.cycles = append(c.cycles, cycle)

	c.log.Warn("dependency cycle", zap.Strings("cycle", cycle))
}

func (c *Compilation) addFileDependency(path string) {
	if c.seenFiles[path] {
		return
	}
	c.seenFiles[path] = true
	c.fileDeps = append(c.fileDeps, path)
}

// ModuleID returns the canonical id of path.
func (c *Compilation) ModuleID(path string) string {
	return ModuleID(c.opts.Context, path)
}

// ModuleID returns "./" followed by path relative to base, slash-separated.
func ModuleID(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = path
	}
	return "./" + filepath.ToSlash(rel)
}

// Modules returns every registered module in registration order: depth
// first, each module before its dependencies, entries in declaration order.
func (c *Compilation) Modules() []*Module {
	return c.modules
}

// Module returns the module with the given id.
func (c *Compilation) Module(id string) (*Module, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Chunks returns one chunk per built entry, in entry order.
func (c *Compilation) Chunks() []*Chunk {
	return c.chunks
}

// FileDependencies returns every file read, in first-seen order.
func (c *Compilation) FileDependencies() []string {
	return c.fileDeps
}

// Cycles returns the dependency cycles met while building. Each cycle is a
// list of module ids that starts and ends with the same id.
func (c *Compilation) Cycles() [][]string {
	return c.cycles
}
