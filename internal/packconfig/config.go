// Package packconfig loads skypack build configuration.
//
// It supports three configuration formats:
//   - skypack.star: Starlark, the file defines configure() returning a dict
//   - skypack.toml: declarative TOML
//   - skypack.yaml: declarative YAML
//
// Configuration files are discovered by walking up the directory tree from
// the working directory, stopping at the git root. The SKYPACK_CONFIG
// environment variable and the -config flag override discovery.
package packconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"github.com/albertocavalcante/skypack/internal/compiler"
	"github.com/albertocavalcante/skypack/internal/graph"
	"github.com/albertocavalcante/skypack/internal/loader"
	"github.com/albertocavalcante/skypack/internal/plugins"
)

// Config file names in discovery order.
const (
	ConfigStar = "skypack.star"
	ConfigTOML = "skypack.toml"
	ConfigYAML = "skypack.yaml"
)

// EnvConfig is the environment variable for specifying the config file path.
const EnvConfig = "SKYPACK_CONFIG"

// ErrConflict is returned when multiple config files exist in the same directory.
var ErrConflict = errors.New("multiple config files found in the same directory; use only one")

// Config is a build configuration as written in a config file.
type Config struct {
	// Path is the file the configuration was loaded from. Empty for a
	// configuration built from flags alone.
	Path string `toml:"-" yaml:"-"`

	// Context is the base directory for module ids. Relative paths are taken
	// from the config file's directory.
	Context string `toml:"context" yaml:"context"`

	// Entry lists the entry points in declaration order.
	Entry Entries `toml:"entry" yaml:"entry"`

	Output  OutputConfig  `toml:"output" yaml:"output"`
	Module  ModuleConfig  `toml:"module" yaml:"module"`
	Resolve ResolveConfig `toml:"resolve" yaml:"resolve"`

	Plugins []PluginRef `toml:"plugins" yaml:"plugins"`
}

// OutputConfig configures the emitted assets.
type OutputConfig struct {
	Path     string `toml:"path" yaml:"path"`
	Filename string `toml:"filename" yaml:"filename"`
}

// ModuleConfig holds the loader rules.
type ModuleConfig struct {
	Rules []Rule `toml:"rules" yaml:"rules"`
}

// Rule applies Use to files whose path matches the regular expression Test.
type Rule struct {
	Test string  `toml:"test" yaml:"test"`
	Use  Loaders `toml:"use" yaml:"use"`
}

// ResolveConfig configures request resolution.
type ResolveConfig struct {
	Extensions []string `toml:"extensions" yaml:"extensions"`
}

// Entries is an ordered list of entry points. In config files it is either a
// single path, which names the entry "main", or a name to path mapping.
type Entries []graph.EntryPoint

// Loaders is a rule's loader list.
type Loaders []LoaderRef

// LoaderRef is a named loader spec (see loader.Parse) or a Starlark callable
// taking and returning the source text.
type LoaderRef struct {
	Spec string
	Func starlark.Callable
}

// String returns the spec or the callable's name.
func (r LoaderRef) String() string {
	if r.Func != nil {
		return r.Func.Name()
	}
	return r.Spec
}

// PluginRef names a built-in plugin, or carries the callbacks of a plugin
// declared with plugin() in a Starlark config.
type PluginRef struct {
	Name string
	Run  starlark.Callable
	Done starlark.Callable
}

// Dir returns the directory relative paths in the configuration are taken
// from: the config file's directory, or the working directory.
func (c *Config) Dir() string {
	if c.Path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "."
		}
		return wd
	}
	return filepath.Dir(c.Path)
}

// CompilerOptions converts the configuration into compiler options.
// Scripted loaders and plugins log through log.
func (c *Config) CompilerOptions(log *zap.Logger) (compiler.Options, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := c.Dir()

	opts := compiler.Options{
		Context:    c.Context,
		Entry:      append([]graph.EntryPoint(nil), c.Entry...),
		Extensions: c.Resolve.Extensions,
		Output: compiler.Output{
			Path:     c.Output.Path,
			Filename: c.Output.Filename,
		},
		Logger: log,
	}
	switch {
	case opts.Context == "":
		opts.Context = dir
	case !filepath.IsAbs(opts.Context):
		opts.Context = filepath.Join(dir, opts.Context)
	}

	for i, rule := range c.Module.Rules {
		test, err := regexp.Compile(rule.Test)
		if err != nil {
			return opts, &compiler.ConfigurationError{
				Field:  fmt.Sprintf("module.rules[%d].test", i),
				Reason: err.Error(),
			}
		}
		use := make([]loader.Loader, 0, len(rule.Use))
		for _, ref := range rule.Use {
			l, err := ref.loader(dir, log)
			if err != nil {
				return opts, &compiler.ConfigurationError{
					Field:  fmt.Sprintf("module.rules[%d].use", i),
					Reason: err.Error(),
				}
			}
			use = append(use, l)
		}
		opts.Rules = append(opts.Rules, loader.Rule{Test: test, Use: use})
	}

	for i, ref := range c.Plugins {
		p, err := ref.plugin(log)
		if err != nil {
			return opts, &compiler.ConfigurationError{
				Field:  fmt.Sprintf("plugins[%d]", i),
				Reason: err.Error(),
			}
		}
		opts.Plugins = append(opts.Plugins, p)
	}
	return opts, nil
}

func (r LoaderRef) loader(dir string, log *zap.Logger) (loader.Loader, error) {
	if r.Func != nil {
		return &scriptLoader{fn: r.Func, timeout: DefaultStarlarkTimeout, log: log}, nil
	}
	return loader.Parse(r.Spec, dir)
}

func (r PluginRef) plugin(log *zap.Logger) (compiler.Plugin, error) {
	if r.Run == nil && r.Done == nil {
		return plugins.Lookup(r.Name)
	}
	p := plugins.Func{Name: r.Name}
	if r.Run != nil {
		p.Run = scriptHook(r.Name, r.Run, log)
	}
	if r.Done != nil {
		p.Done = scriptHook(r.Name, r.Done, log)
	}
	return p, nil
}

// LoadConfig loads configuration from the specified path.
// The format is detected from the file extension.
func LoadConfig(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		cfg, err = LoadTOMLConfig(path)
	case ".yaml", ".yml":
		cfg, err = LoadYAMLConfig(path)
	case ".star":
		cfg, err = LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .star, .toml or .yaml)", ext)
	}
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		cfg.Path = abs
	} else {
		cfg.Path = path
	}
	return cfg, nil
}

// DiscoverConfig searches for a configuration file.
//
// Resolution order:
//  1. If SKYPACK_CONFIG is set, use that path
//  2. Walk up from startDir looking for config files, stopping at the git root
//
// If multiple config files exist in the same directory, an error is returned.
// If no config is found, it returns (nil, "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	gitRoot := findGitRoot(absDir)

	dir := absDir
	for {
		configPath, err := findConfigInDir(dir)
		if err != nil {
			return nil, "", err
		}
		if configPath != "" {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return cfg, configPath, nil
		}

		if gitRoot != "" && dir == gitRoot {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, "", nil
}

// findConfigInDir returns the config file in dir, or "" if there is none.
func findConfigInDir(dir string) (string, error) {
	var found []string
	for _, name := range []string{ConfigStar, ConfigTOML, ConfigYAML} {
		if fileExists(filepath.Join(dir, name)) {
			found = append(found, name)
		}
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	default:
		return "", fmt.Errorf("%w: found %s in %s", ErrConflict, strings.Join(found, ", "), dir)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// findGitRoot returns the nearest directory containing .git, or "".
func findGitRoot(startDir string) string {
	dir := startDir
	for {
		if fileExists(filepath.Join(dir, ".git")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
