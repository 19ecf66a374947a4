package skypack

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/skypack/internal/cli"
	"github.com/albertocavalcante/skypack/internal/packconfig"
)

// runInit writes a starter skypack.star into a directory.
func runInit(args []string, stdout, stderr io.Writer) int {
	var (
		dirFlag    string
		entryFlag  string
		outputFlag string
		extFlag    string
		forceFlag  bool
	)

	fset := flag.NewFlagSet("skypack init", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVar(&dirFlag, "dir", ".", "directory to write the config into")
	fset.StringVar(&entryFlag, "entry", "./src/index.js", "entry module")
	fset.StringVar(&outputFlag, "o", "dist", "output directory")
	fset.StringVar(&extFlag, "ext", ".js", "comma-separated extensions tried by the resolver")
	fset.BoolVar(&forceFlag, "force", false, "overwrite an existing config")

	fset.Usage = func() {
		cli.Writeln(stderr, "Usage: skypack init [flags]")
		cli.Writeln(stderr)
		cli.Writef(stderr, "Writes a starter %s.\n", packconfig.ConfigStar)
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fset.PrintDefaults()
	}

	if err := fset.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cli.ExitOK
		}
		return cli.ExitError
	}
	if fset.NArg() > 0 {
		cli.Writef(stderr, "skypack init: unexpected arguments: %s\n", strings.Join(fset.Args(), " "))
		return cli.ExitError
	}

	path := filepath.Join(dirFlag, packconfig.ConfigStar)
	if !forceFlag {
		if _, err := os.Stat(path); err == nil {
			cli.Writef(stderr, "skypack init: %s already exists (use -force to overwrite)\n", path)
			return cli.ExitError
		}
	}

	var exts []string
	for _, ext := range strings.Split(extFlag, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			exts = append(exts, ext)
		}
	}

	content, err := packconfig.Scaffold(packconfig.ScaffoldOptions{
		Entry:      entryFlag,
		OutputPath: outputFlag,
		Extensions: exts,
	})
	if err != nil {
		cli.Writef(stderr, "skypack init: %v\n", err)
		return cli.ExitError
	}
	if err := os.MkdirAll(dirFlag, 0o755); err != nil {
		cli.Writef(stderr, "skypack init: %v\n", err)
		return cli.ExitError
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		cli.Writef(stderr, "skypack init: %v\n", err)
		return cli.ExitError
	}

	cli.Writef(stdout, "wrote %s\n", filepath.ToSlash(path))
	return cli.ExitOK
}
