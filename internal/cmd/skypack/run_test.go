package skypack

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/skypack/internal/compiler"
	"github.com/albertocavalcante/skypack/internal/packconfig"
	"github.com/albertocavalcante/skypack/internal/version"
)

// project writes files under a fresh directory, marks it as a git root so
// config discovery stays inside it, and makes it the working directory.
func project(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	t.Setenv(packconfig.EnvConfig, "")
	t.Chdir(dir)
	return dir
}

func run(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = RunWithIO(context.Background(), args, nil, &out, &errOut)
	return code, out.String(), errOut.String()
}

var basicProject = map[string]string{
	packconfig.ConfigTOML: `
entry = "./src/index.js"

[output]
path = "dist"
`,
	"src/index.js": "console.log(require('./answer'));\n",
	"src/answer.js": "module.exports = 42;\n",
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := run("-version")

	if code != 0 {
		t.Errorf("RunWithIO(-version) returned %d, want 0", code)
	}
	if !strings.HasPrefix(stdout, "skypack ") {
		t.Errorf("RunWithIO(-version) = %q", stdout)
	}
}

func TestRun_VerboseLogsVersion(t *testing.T) {
	project(t, basicProject)

	code, _, stderr := run("-v")
	if code != 0 {
		t.Fatalf("RunWithIO(-v) returned %d\nstderr: %s", code, stderr)
	}
	want := `"version": "` + version.Get().Short() + `"`
	if !strings.Contains(stderr, want) {
		t.Errorf("stderr = %q, want it to contain %q", stderr, want)
	}
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := run("-help")

	if code != 0 {
		t.Errorf("RunWithIO(-help) returned %d, want 0", code)
	}
	if !strings.Contains(stderr, "Usage: skypack") {
		t.Errorf("usage not printed:\n%s", stderr)
	}
}

func TestRun_BuildWithDiscoveredConfig(t *testing.T) {
	dir := project(t, basicProject)

	code, stdout, stderr := run()
	if code != 0 {
		t.Fatalf("RunWithIO() returned %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "dist/main.js") || !strings.Contains(stdout, "main") {
		t.Errorf("summary = %q, want a line for dist/main.js", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	if err != nil {
		t.Fatalf("asset not written: %v", err)
	}
	if !strings.Contains(string(data), `"./src/answer.js": (module)`) {
		t.Errorf("asset does not register the dependency:\n%s", data)
	}
}

func TestRun_PositionalEntries(t *testing.T) {
	dir := project(t, map[string]string{
		"a.js":      "require('./shared');\n",
		"b.js":      "require('./shared');\n",
		"shared.js": "module.exports = {};\n",
	})

	code, stdout, stderr := run("-o", "out", "a.js", "b.js")
	if code != 0 {
		t.Fatalf("RunWithIO() returned %d\nstderr: %s", code, stderr)
	}
	for _, name := range []string{"a.js", "b.js"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("asset %s not written: %v", name, err)
		}
	}
	if got := strings.Count(stdout, "\n"); got != 2 {
		t.Errorf("summary has %d lines, want 2:\n%s", got, stdout)
	}
}

func TestRun_ExplicitConfig(t *testing.T) {
	dir := project(t, map[string]string{
		"build/pack.yaml": `
context: ../web
entry:
  app: ./app.js
output:
  path: ../public
  filename: "[name].bundle.js"
`,
		"web/app.js": "module.exports = 1;\n",
	})

	code, _, stderr := run("-config", "build/pack.yaml")
	if code != 0 {
		t.Fatalf("RunWithIO() returned %d\nstderr: %s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "public", "app.bundle.js")); err != nil {
		t.Errorf("asset not written: %v", err)
	}
}

func TestRun_Check(t *testing.T) {
	dir := project(t, basicProject)
	asset := filepath.Join(dir, "dist", "main.js")

	code, stdout, _ := run("-check")
	if code != 2 {
		t.Errorf("-check before build returned %d, want 2", code)
	}
	if strings.TrimSpace(stdout) != "main.js" {
		t.Errorf("-check stdout = %q, want main.js", stdout)
	}
	if _, err := os.Stat(asset); err == nil {
		t.Error("-check wrote the asset")
	}

	if code, _, stderr := run(); code != 0 {
		t.Fatalf("build returned %d\nstderr: %s", code, stderr)
	}
	if code, stdout, _ := run("-check"); code != 0 || stdout != "" {
		t.Errorf("-check after build = %d %q, want 0 and no output", code, stdout)
	}

	data, err := os.ReadFile(asset)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "var cache = {};", "var cache = {}; // edited", 1)
	if err := os.WriteFile(asset, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ = run("-d")
	if code != 2 {
		t.Errorf("-d on stale asset returned %d, want 2", code)
	}
	for _, want := range []string{"--- a/main.js", "+++ b/main.js", "-  var cache = {}; // edited", "+  var cache = {};"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("diff missing %q:\n%s", want, stdout)
		}
	}
}

func TestRun_JSON(t *testing.T) {
	project(t, basicProject)

	code, stdout, stderr := run("-json")
	if code != 0 {
		t.Fatalf("RunWithIO(-json) returned %d\nstderr: %s", code, stderr)
	}

	var got compiler.JSON
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	want := []compiler.ChunkJSON{{
		Name:    "main",
		Entry:   "./src/index.js",
		Modules: []string{"./src/index.js", "./src/answer.js"},
	}}
	if diff := cmp.Diff(want, got.Chunks); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}
	if len(got.Assets) != 1 || got.Assets[0].Name != "main.js" {
		t.Errorf("assets = %+v", got.Assets)
	}
}

func TestRun_Exec(t *testing.T) {
	project(t, basicProject)

	code, stdout, stderr := run("-exec")
	if code != 0 {
		t.Fatalf("RunWithIO(-exec) returned %d\nstderr: %s", code, stderr)
	}
	if !strings.HasSuffix(stdout, "42\n") {
		t.Errorf("stdout = %q, want the bundle's output", stdout)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		args    []string
		wantErr string
	}{
		{
			name:    "no entry",
			files:   map[string]string{},
			args:    []string{"-o", "dist"},
			wantErr: "invalid configuration: entry",
		},
		{
			name:    "no output path",
			files:   map[string]string{"index.js": ""},
			args:    []string{"index.js"},
			wantErr: "invalid configuration: output.path",
		},
		{
			name:    "unresolved request",
			files:   map[string]string{"index.js": "require('./missing');\n"},
			args:    []string{"-o", "dist", "index.js"},
			wantErr: "./missing",
		},
		{
			name:    "missing config file",
			files:   map[string]string{},
			args:    []string{"-config", "nope.toml"},
			wantErr: "nope.toml",
		},
		{
			name:    "unknown flag",
			files:   map[string]string{},
			args:    []string{"-bogus"},
			wantErr: "flag provided but not defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := project(t, tt.files)

			code, _, stderr := run(tt.args...)
			if code != 1 {
				t.Errorf("RunWithIO(%v) returned %d, want 1", tt.args, code)
			}
			if !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
			if _, err := os.Stat(filepath.Join(dir, "dist")); err == nil {
				t.Error("output directory created on failure")
			}
		})
	}
}

func TestRun_Init(t *testing.T) {
	dir := project(t, map[string]string{
		"src/index.js": "module.exports = 'hi';\n",
	})

	code, stdout, stderr := run("init")
	if code != 0 {
		t.Fatalf("init returned %d\nstderr: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "wrote "+packconfig.ConfigStar {
		t.Errorf("init stdout = %q", stdout)
	}

	if code, _, stderr := run("init"); code != 1 || !strings.Contains(stderr, "already exists") {
		t.Errorf("second init = %d %q, want refusal", code, stderr)
	}
	if code, _, stderr := run("init", "-force", "-o", "build"); code != 0 {
		t.Errorf("init -force returned %d\nstderr: %s", code, stderr)
	}

	if code, _, stderr := run(); code != 0 {
		t.Fatalf("build from scaffold returned %d\nstderr: %s", code, stderr)
	}
	data, err := os.ReadFile(filepath.Join(dir, "build", "main.js"))
	if err != nil {
		t.Fatalf("asset not written: %v", err)
	}
	if !strings.Contains(string(data), "// built by skypack") {
		t.Errorf("scaffolded loader not applied:\n%s", data)
	}
}

func TestEntryPoints(t *testing.T) {
	single, err := entryPoints([]string{"src/app.js"})
	if err != nil {
		t.Fatal(err)
	}
	if single[0].Name != "main" || !filepath.IsAbs(single[0].Path) {
		t.Errorf("single entry = %+v, want main with an absolute path", single[0])
	}

	multi, err := entryPoints([]string{"a.js", "lib/b.mjs"})
	if err != nil {
		t.Fatal(err)
	}
	if multi[0].Name != "a" || multi[1].Name != "b" {
		t.Errorf("names = %q %q, want a b", multi[0].Name, multi[1].Name)
	}
}
