// Package skypack implements the skypack command.
package skypack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/albertocavalcante/skypack/internal/cli"
	"github.com/albertocavalcante/skypack/internal/compiler"
	"github.com/albertocavalcante/skypack/internal/graph"
	"github.com/albertocavalcante/skypack/internal/jsrun"
	"github.com/albertocavalcante/skypack/internal/logging"
	"github.com/albertocavalcante/skypack/internal/packconfig"
	"github.com/albertocavalcante/skypack/internal/version"
)

// Run executes skypack with the given arguments.
// Returns exit code.
func Run(args []string) int {
	return cli.Main(RunWithIO, args)
}

type flags struct {
	config  string
	output  string
	json    bool
	check   bool
	diff    bool
	exec    bool
	verbose bool
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	var (
		f           flags
		versionFlag bool
	)

	fset := flag.NewFlagSet("skypack", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&f.config, "config", "", "path to config file (default: discovered)")
	fset.StringVar(&f.output, "o", "", "output directory, overrides output.path")
	fset.BoolVar(&f.json, "json", false, "print build stats as JSON")
	fset.BoolVar(&f.check, "check", false, "build without writing; exit 2 if assets on disk are stale")
	fset.BoolVar(&f.diff, "d", false, "print a diff of stale assets (implies -check)")
	fset.BoolVar(&f.exec, "exec", false, "run each bundle after building")
	fset.BoolVar(&f.verbose, "v", false, "verbose logging")
	fset.BoolVar(&versionFlag, "version", false, "print version and exit")

	fset.Usage = func() {
		cli.Writeln(stderr, "Usage: skypack [flags] [entry ...]")
		cli.Writeln(stderr, "       skypack init [flags]")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Bundles CommonJS modules into one script per entry point.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fset.PrintDefaults()
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Configuration:")
		cli.Writef(stderr, "  %s, %s or %s, found by walking up to the git root.\n",
			packconfig.ConfigStar, packconfig.ConfigTOML, packconfig.ConfigYAML)
		cli.Writef(stderr, "  %s or -config selects a file explicitly.\n", packconfig.EnvConfig)
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Examples:")
		cli.Writeln(stderr, "  skypack                         # Build with the discovered config")
		cli.Writeln(stderr, "  skypack -o dist src/index.js    # Build one entry without a config")
		cli.Writeln(stderr, "  skypack -check -d               # Show assets that would change")
	}

	if err := fset.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cli.ExitOK
		}
		return cli.ExitError
	}

	if versionFlag {
		cli.PrintVersion(stdout, "skypack")
		return cli.ExitOK
	}
	if f.diff {
		f.check = true
	}

	log := logging.New(stderr, f.verbose)
	defer func() { _ = log.Sync() }()
	log.Debug("skypack", zap.String("version", version.Get().Short()))

	opts, err := loadOptions(f, fset.Args(), log)
	if err != nil {
		cli.Writef(stderr, "skypack: %v\n", err)
		return cli.ExitError
	}
	c := compiler.New(opts)

	if f.check {
		return check(ctx, c, f, stdout, stderr)
	}
	return build(ctx, c, f, stdout, stderr)
}

// loadOptions reads the configuration and applies the command-line
// overrides.
func loadOptions(f flags, entries []string, log *zap.Logger) (compiler.Options, error) {
	var (
		cfg *packconfig.Config
		err error
	)
	if f.config != "" {
		cfg, err = packconfig.LoadConfig(f.config)
	} else {
		cfg, _, err = packconfig.DiscoverConfig("")
	}
	if err != nil {
		return compiler.Options{}, err
	}
	if cfg == nil {
		cfg = &packconfig.Config{}
	} else {
		log.Debug("loaded config", zap.String("path", cfg.Path))
	}

	if len(entries) > 0 {
		cfg.Entry, err = entryPoints(entries)
		if err != nil {
			return compiler.Options{}, err
		}
	}
	if f.output != "" {
		abs, err := filepath.Abs(f.output)
		if err != nil {
			return compiler.Options{}, err
		}
		cfg.Output.Path = abs
	}
	return cfg.CompilerOptions(log)
}

// entryPoints turns command-line paths into entries. A single path is the
// "main" entry; several are named after their file names.
func entryPoints(paths []string) (packconfig.Entries, error) {
	entries := make(packconfig.Entries, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		entries = append(entries, graph.EntryPoint{Name: name, Path: abs})
	}
	if len(entries) == 1 {
		entries[0].Name = compiler.DefaultEntryName
	}
	return entries, nil
}

func build(ctx context.Context, c *compiler.Compiler, f flags, stdout, stderr io.Writer) int {
	var (
		stats    *compiler.Stats
		buildErr error
		calls    int
	)
	c.Run(ctx, func(err error, s *compiler.Stats) {
		if err != nil {
			buildErr = err
			return
		}
		stats = s
		calls++
	})
	if buildErr != nil {
		cli.Writef(stderr, "skypack: %v\n", buildErr)
		return cli.ExitError
	}

	if f.json {
		if err := writeJSON(stdout, stats); err != nil {
			cli.Writef(stderr, "skypack: %v\n", err)
			return cli.ExitError
		}
	} else if calls > 0 {
		printSummary(stdout, c.OutputPath(), stats.Assets[:calls])
	}

	if f.exec {
		return execAssets(ctx, stats.Assets, stdout, stderr)
	}
	return cli.ExitOK
}

func printSummary(w io.Writer, dir string, assets []compiler.Asset) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, asset := range assets {
		path := filepath.Join(dir, asset.Name)
		if wd, err := os.Getwd(); err == nil {
			if rel, err := filepath.Rel(wd, path); err == nil && !strings.HasPrefix(rel, "..") {
				path = rel
			}
		}
		cli.Writef(tw, "%s\t%s\t%d bytes\n", filepath.ToSlash(path), asset.Chunk, len(asset.Source))
	}
	_ = tw.Flush()
}

func execAssets(ctx context.Context, assets []compiler.Asset, stdout, stderr io.Writer) int {
	for _, asset := range assets {
		if _, err := jsrun.Run(ctx, asset.Name, asset.Source, jsrun.Options{Stdout: stdout}); err != nil {
			cli.Writef(stderr, "skypack: %v\n", err)
			return cli.ExitError
		}
	}
	return cli.ExitOK
}

// check builds without writing and reports assets whose content on disk
// differs from the fresh build.
func check(ctx context.Context, c *compiler.Compiler, f flags, stdout, stderr io.Writer) int {
	stats, err := c.Compile(ctx)
	if err != nil {
		cli.Writef(stderr, "skypack: %v\n", err)
		return cli.ExitError
	}

	stale := false
	for _, asset := range stats.Assets {
		path := filepath.Join(c.OutputPath(), asset.Name)
		current, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			cli.Writef(stderr, "skypack: %v\n", err)
			return cli.ExitError
		}
		if err == nil && bytes.Equal(current, []byte(asset.Source)) {
			continue
		}

		stale = true
		if f.diff {
			cli.Write(stdout, unifiedDiff(filepath.ToSlash(asset.Name), string(current), asset.Source))
		} else if !f.json {
			cli.Writeln(stdout, filepath.ToSlash(asset.Name))
		}
	}

	if f.json {
		if err := writeJSON(stdout, stats); err != nil {
			cli.Writef(stderr, "skypack: %v\n", err)
			return cli.ExitError
		}
	}
	if f.exec {
		if code := execAssets(ctx, stats.Assets, stdout, stderr); code != cli.ExitOK {
			return code
		}
	}
	if stale {
		return cli.ExitStale
	}
	return cli.ExitOK
}

// unifiedDiff returns a unified diff from the asset on disk to the fresh
// build.
func unifiedDiff(name, current, fresh string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(current),
		B:        difflib.SplitLines(fresh),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	return text
}

func writeJSON(w io.Writer, stats *compiler.Stats) error {
	data, err := json.MarshalIndent(stats.ToJSON(), "", "  ")
	if err != nil {
		return err
	}
	cli.WriteBytes(w, append(data, '\n'))
	return nil
}
