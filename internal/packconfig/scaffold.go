package packconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bazelbuild/buildtools/build"
)

// ScaffoldOptions seeds a starter configuration.
type ScaffoldOptions struct {
	Entry      string
	OutputPath string
	Extensions []string
}

// Scaffold returns a starter skypack.star, formatted like any other
// Starlark file.
func Scaffold(opts ScaffoldOptions) ([]byte, error) {
	if opts.Entry == "" {
		opts.Entry = "./src/index.js"
	}
	if opts.OutputPath == "" {
		opts.OutputPath = "dist"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".js"}
	}

	exts := make([]string, len(opts.Extensions))
	for i, ext := range opts.Extensions {
		exts[i] = strconv.Quote(ext)
	}

	src := fmt.Sprintf(`# skypack build configuration.
def banner(source):
  return source + "\n// built by skypack\n"

def configure():
  return {
    "entry": {"main": %s},
    "output": {"path": %s, "filename": "[name].js"},
    "module": {"rules": [{"test": "\\.js$", "use": [banner]}]},
    "resolve": {"extensions": [%s]},
    "plugins": ["log-run", "log-done"],
  }
`, strconv.Quote(opts.Entry), strconv.Quote(opts.OutputPath), strings.Join(exts, ", "))

	f, err := build.ParseDefault(ConfigStar, []byte(src))
	if err != nil {
		return nil, fmt.Errorf("scaffold: %w", err)
	}
	return build.Format(f), nil
}
