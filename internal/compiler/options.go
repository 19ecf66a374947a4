package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/albertocavalcante/skypack/internal/graph"
	"github.com/albertocavalcante/skypack/internal/loader"
	"github.com/albertocavalcante/skypack/internal/resolve"
)

// DefaultEntryName names the chunk of a single-path entry.
const DefaultEntryName = "main"

// DefaultFilename is used when Output.Filename is empty.
const DefaultFilename = "[name].js"

// NamePlaceholder is replaced by the chunk name in Output.Filename.
const NamePlaceholder = "[name]"

// Output configures where assets are written.
type Output struct {
	// Path is the output directory. Relative paths are taken from Context.
	Path string

	// Filename is the asset file name pattern. Defaults to DefaultFilename.
	Filename string
}

// Options configures a Compiler.
type Options struct {
	// Context is the base directory for canonical module ids and relative
	// entry paths. Defaults to the working directory.
	Context string

	// Entry lists the entry points in declaration order.
	Entry []graph.EntryPoint

	Output Output

	// Rules are the loader rules, in declaration order.
	Rules []loader.Rule

	// Extensions are tried by the resolver in order. Nil means resolve.DefaultExtensions.
	Extensions []string

	// Plugins are applied, in order, when the compiler is created.
	Plugins []Plugin

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// FS defaults to the host file system.
	FS resolve.FileSystem
}

// SingleEntry returns the entry list for a single entry path.
func SingleEntry(path string) []graph.EntryPoint {
	return []graph.EntryPoint{{Name: DefaultEntryName, Path: path}}
}

// ConfigurationError reports missing or malformed build configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// normalize fills defaults and validates opts.
func normalize(opts Options) (Options, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FS == nil {
		opts.FS = resolve.OS{}
	}

	if opts.Context == "" {
		wd, err := os.Getwd()
		if err != nil {
			return opts, fmt.Errorf("working directory: %w", err)
		}
		opts.Context = wd
	}
	abs, err := filepath.Abs(opts.Context)
	if err != nil {
		return opts, &ConfigurationError{Field: "context", Reason: err.Error()}
	}
	opts.Context = abs

	if len(opts.Entry) == 0 {
		return opts, &ConfigurationError{Field: "entry", Reason: "no entry points"}
	}
	seen := make(map[string]bool, len(opts.Entry))
	for _, e := range opts.Entry {
		switch {
		case e.Name == "":
			return opts, &ConfigurationError{Field: "entry", Reason: fmt.Sprintf("entry %q has no name", e.Path)}
		case e.Path == "":
			return opts, &ConfigurationError{Field: "entry", Reason: fmt.Sprintf("entry %q has no path", e.Name)}
		case seen[e.Name]:
			return opts, &ConfigurationError{Field: "entry", Reason: fmt.Sprintf("duplicate entry name %q", e.Name)}
		}
		seen[e.Name] = true
	}

	if opts.Output.Path == "" {
		return opts, &ConfigurationError{Field: "output.path", Reason: "missing output directory"}
	}
	if !filepath.IsAbs(opts.Output.Path) {
		opts.Output.Path = filepath.Join(opts.Context, opts.Output.Path)
	}

	if opts.Output.Filename == "" {
		opts.Output.Filename = DefaultFilename
	}
	if len(opts.Entry) > 1 && !strings.Contains(opts.Output.Filename, NamePlaceholder) {
		return opts, &ConfigurationError{
			Field:  "output.filename",
			Reason: fmt.Sprintf("%q must contain %s when there are multiple entries", opts.Output.Filename, NamePlaceholder),
		}
	}

	for i, rule := range opts.Rules {
		if rule.Test == nil {
			return opts, &ConfigurationError{Field: fmt.Sprintf("module.rules[%d].test", i), Reason: "missing pattern"}
		}
	}
	return opts, nil
}

// AssetName substitutes the chunk name into a filename pattern.
func AssetName(pattern, chunk string) string {
	return strings.ReplaceAll(pattern, NamePlaceholder, chunk)
}
