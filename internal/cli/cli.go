package cli

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/albertocavalcante/skypack/internal/version"
)

// Tool is a command entry point with injectable IO, as used by tests and
// by Main.
type Tool func(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int

// Main runs tool with the process's standard streams. The context is
// cancelled on interrupt so a build in progress stops at the next module.
func Main(tool Tool, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return tool(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// PrintVersion writes the version line of the named command.
func PrintVersion(w io.Writer, name string) {
	Writef(w, "%s %s\n", name, version.String())
}
