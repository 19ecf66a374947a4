package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/skypack/internal/loader"
	"github.com/albertocavalcante/skypack/internal/resolve"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func build(t *testing.T, dir string, opts Options, entries ...EntryPoint) *Compilation {
	t.Helper()
	opts.Context = dir
	c := New(opts)
	if err := c.Build(context.Background(), entries); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return c
}

func ids(modules []*Module) []string {
	out := make([]string, len(modules))
	for i, m := range modules {
		out[i] = m.ID
	}
	return out
}

func TestBuild_RewritesRequests(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"src/index.js": "const util = require('./util');\nglobalThis.result = util.value;\n",
		"src/util.js":  "module.exports = { value: 42 };\n",
	})

	c := build(t, dir, Options{}, EntryPoint{Name: "main", Path: "src/index.js"})

	if diff := cmp.Diff([]string{"./src/index.js", "./src/util.js"}, ids(c.Modules())); diff != "" {
		t.Fatalf("Modules() mismatch (-want +got):\n%s", diff)
	}

	index, _ := c.Module("./src/index.js")
	if !strings.Contains(index.Source, `require("./src/util.js")`) {
		t.Errorf("index source not rewritten:\n%s", index.Source)
	}
	if strings.Contains(index.Source, "'./util'") {
		t.Errorf("index source kept original request:\n%s", index.Source)
	}

	want := []Dependency{{
		Request: "./util",
		ID:      "./src/util.js",
		Path:    filepath.Join(dir, "src", "util.js"),
	}}
	if diff := cmp.Diff(want, index.Dependencies); diff != "" {
		t.Errorf("Dependencies mismatch (-want +got):\n%s", diff)
	}

	chunks := c.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("len(Chunks()) = %d, want 1", len(chunks))
	}
	if chunks[0].Name != "main" || chunks[0].Entry != index {
		t.Errorf("chunk = %s entry %s, want main entry ./src/index.js", chunks[0].Name, chunks[0].Entry.ID)
	}
	if diff := cmp.Diff([]string{"./src/index.js", "./src/util.js"}, ids(chunks[0].Modules)); diff != "" {
		t.Errorf("chunk modules mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_DiamondBuildsSharedModuleOnce(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js":  "require('./a'); require('./b');",
		"a.js":      "require('./shared.js');",
		"b.js":      "require('./shared');",
		"shared.js": "module.exports = 1;",
	})

	reads := 0
	counting := loader.NewPipeline(loader.Rule{
		Test: regexp.MustCompile(`shared\.js$`),
		Use: []loader.Loader{loader.FromFunc("count", func(s string) (string, error) {
			reads++
			return s, nil
		})},
	})

	c := build(t, dir, Options{Pipeline: counting}, EntryPoint{Name: "main", Path: "index.js"})

	if diff := cmp.Diff([]string{"./index.js", "./a.js", "./shared.js", "./b.js"}, ids(c.Modules())); diff != "" {
		t.Errorf("Modules() mismatch (-want +got):\n%s", diff)
	}
	if reads != 1 {
		t.Errorf("shared.js transformed %d times, want 1", reads)
	}

	a, _ := c.Module("./a.js")
	b, _ := c.Module("./b.js")
	if a.Dependencies[0].ID != b.Dependencies[0].ID {
		t.Errorf("different requests for the same file got ids %q and %q", a.Dependencies[0].ID, b.Dependencies[0].ID)
	}
	if len(c.Cycles()) != 0 {
		t.Errorf("Cycles() = %v, want none", c.Cycles())
	}
}

func TestBuild_CircularTerminates(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.js": "exports.b = require('./b');",
		"b.js": "exports.a = require('./a');",
	})

	c := build(t, dir, Options{}, EntryPoint{Name: "main", Path: "a.js"})

	if diff := cmp.Diff([]string{"./a.js", "./b.js"}, ids(c.Modules())); diff != "" {
		t.Errorf("Modules() mismatch (-want +got):\n%s", diff)
	}
	want := [][]string{{"./a.js", "./b.js", "./a.js"}}
	if diff := cmp.Diff(want, c.Cycles()); diff != "" {
		t.Errorf("Cycles() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_SelfRequire(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"self.js": "module.exports = function () { return require('./self'); };",
	})

	c := build(t, dir, Options{}, EntryPoint{Name: "main", Path: "self.js"})

	if got := len(c.Modules()); got != 1 {
		t.Errorf("len(Modules()) = %d, want 1", got)
	}
	if diff := cmp.Diff([][]string{{"./self.js", "./self.js"}}, c.Cycles()); diff != "" {
		t.Errorf("Cycles() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_SharedAcrossEntries(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.js":  "require('./lib');",
		"admin.js": "require('./lib'); require('./panel');",
		"lib.js":   "require('./util');",
		"util.js":  "module.exports = 1;",
		"panel.js": "module.exports = 2;",
	})

	c := build(t, dir, Options{},
		EntryPoint{Name: "main", Path: "main.js"},
		EntryPoint{Name: "admin", Path: "admin.js"},
	)

	if diff := cmp.Diff([]string{"./main.js", "./lib.js", "./util.js", "./admin.js", "./panel.js"}, ids(c.Modules())); diff != "" {
		t.Errorf("Modules() mismatch (-want +got):\n%s", diff)
	}

	util, _ := c.Module("./util.js")
	if diff := cmp.Diff([]string{"main", "admin"}, util.Chunks); diff != "" {
		t.Errorf("util chunks mismatch (-want +got):\n%s", diff)
	}

	chunks := c.Chunks()
	if diff := cmp.Diff([]string{"./main.js", "./lib.js", "./util.js"}, ids(chunks[0].Modules)); diff != "" {
		t.Errorf("main chunk mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"./lib.js", "./util.js", "./admin.js", "./panel.js"}, ids(chunks[1].Modules)); diff != "" {
		t.Errorf("admin chunk mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_EntryAlsoRequiredByOtherEntry(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.js": "require('./b');",
		"b.js": "module.exports = 1;",
	})

	c := build(t, dir, Options{},
		EntryPoint{Name: "first", Path: "a.js"},
		EntryPoint{Name: "second", Path: "b.js"},
	)

	second := c.Chunks()[1]
	if second.Entry.ID != "./b.js" {
		t.Errorf("second entry = %s, want ./b.js", second.Entry.ID)
	}
	if diff := cmp.Diff([]string{"./b.js"}, ids(second.Modules)); diff != "" {
		t.Errorf("second chunk mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_UnresolvedRequest(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js": "require('./missing');",
	})

	c := New(Options{Context: dir})
	err := c.Build(context.Background(), []EntryPoint{{Name: "main", Path: "index.js"}})

	var rerr *resolve.ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("Build() error = %v, want *resolve.ResolutionError", err)
	}
	if rerr.Request != "./missing" {
		t.Errorf("Request = %q, want ./missing", rerr.Request)
	}
	if rerr.Path != filepath.Join(dir, "missing") {
		t.Errorf("Path = %q, want %q", rerr.Path, filepath.Join(dir, "missing"))
	}
}

func TestBuild_MissingEntry(t *testing.T) {
	c := New(Options{Context: t.TempDir()})
	err := c.Build(context.Background(), []EntryPoint{{Name: "main", Path: "nope.js"}})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Build() error = %v, want not-exist", err)
	}
}

func TestBuild_ParseErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js": "require('./bad');",
		"bad.js":   "function (",
	})

	c := New(Options{Context: dir})
	err := c.Build(context.Background(), []EntryPoint{{Name: "main", Path: "index.js"}})
	if err == nil || !strings.Contains(err.Error(), "bad.js") {
		t.Errorf("Build() error = %v, want error naming bad.js", err)
	}
}

func TestBuild_ResolutionIsRelativeToRequester(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js": "require('./lib/a');",
		"lib/a.js": "require('./b'); require('../top');",
		"lib/b.js": "",
		"top.js":   "",
	})

	c := build(t, dir, Options{}, EntryPoint{Name: "main", Path: "index.js"})

	if diff := cmp.Diff([]string{"./index.js", "./lib/a.js", "./lib/b.js", "./top.js"}, ids(c.Modules())); diff != "" {
		t.Errorf("Modules() mismatch (-want +got):\n%s", diff)
	}
	wantFiles := []string{
		filepath.Join(dir, "index.js"),
		filepath.Join(dir, "lib", "a.js"),
		filepath.Join(dir, "lib", "b.js"),
		filepath.Join(dir, "top.js"),
	}
	if diff := cmp.Diff(wantFiles, c.FileDependencies()); diff != "" {
		t.Errorf("FileDependencies() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.js": "require('./c'); require('./a'); require('./b');",
		"a.js":     "require('./c');",
		"b.js":     "require('./a');",
		"c.js":     "",
	})

	first := build(t, dir, Options{}, EntryPoint{Name: "main", Path: "index.js"})
	for range 5 {
		again := build(t, dir, Options{}, EntryPoint{Name: "main", Path: "index.js"})
		if diff := cmp.Diff(ids(first.Modules()), ids(again.Modules())); diff != "" {
			t.Fatalf("module order differs between builds (-first +again):\n%s", diff)
		}
	}
}

func TestBuild_Canceled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"index.js": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(Options{Context: dir})
	err := c.Build(ctx, []EntryPoint{{Name: "main", Path: "index.js"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestBuildModule_ReturnsRegisteredModule(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.js": "require('./lib');\n",
		"lib.js":  "module.exports = 1;\n",
	})
	c := New(Options{Context: dir})
	ctx := context.Background()

	main, err := c.BuildModule(ctx, "one", filepath.Join(dir, "main.js"))
	if err != nil {
		t.Fatalf("BuildModule(main.js) error = %v", err)
	}
	lib, err := c.BuildModule(ctx, "two", filepath.Join(dir, "lib.js"))
	if err != nil {
		t.Fatalf("BuildModule(lib.js) error = %v", err)
	}
	again, err := c.BuildModule(ctx, "two", filepath.Join(dir, "main.js"))
	if err != nil {
		t.Fatalf("BuildModule(main.js) again error = %v", err)
	}

	if diff := cmp.Diff([]string{"./main.js", "./lib.js"}, ids(c.Modules())); diff != "" {
		t.Errorf("Modules() mismatch (-want +got):\n%s", diff)
	}
	registered, _ := c.Module("./lib.js")
	if lib != registered {
		t.Error("BuildModule(lib.js) returned a second module for a registered file")
	}
	if again != main {
		t.Error("BuildModule(main.js) rebuilt a registered module")
	}
	if diff := cmp.Diff([]string{"one", "two"}, lib.Chunks); diff != "" {
		t.Errorf("lib chunks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"one", "two"}, main.Chunks); diff != "" {
		t.Errorf("main chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestModuleID(t *testing.T) {
	base := filepath.Join("/", "project")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(base, "index.js"), "./index.js"},
		{filepath.Join(base, "src", "util.js"), "./src/util.js"},
		{filepath.Join(base, "src", "..", "util.js"), "./util.js"},
		{filepath.Join("/", "other", "x.js"), "./../other/x.js"},
	}
	for _, tt := range tests {
		if got := ModuleID(base, tt.path); got != tt.want {
			t.Errorf("ModuleID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
