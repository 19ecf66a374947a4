// Package cmdtest provides a testscript-based test harness for the skypack
// command.
//
// Test files use the txtar format: a script followed by the project files it
// runs against.
//
// Example test file (testdata/skypack/build.txtar):
//
//	# A single entry builds into dist/main.js
//	exec skypack -o dist index.js
//	stdout 'dist/main.js'
//	exists dist/main.js
//
//	-- index.js --
//	module.exports = 1;
package cmdtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/albertocavalcante/skypack/internal/cmd/skypack"
	"github.com/albertocavalcante/skypack/internal/packconfig"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			// Keep config discovery inside $WORK.
			env.Setenv(packconfig.EnvConfig, "")
			return os.MkdirAll(filepath.Join(env.WorkDir, ".git"), 0o755)
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It sets up skypack as a testscript command.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"skypack": wrapRun(skypack.Run),
	}))
}

// wrapRun wraps a Run(args []string) int function to func() int for testscript.
// The args are taken from os.Args[1:].
func wrapRun(run func(args []string) int) func() int {
	return func() int {
		return run(os.Args[1:])
	}
}
