package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Environment variables set for external loader processes.
const (
	EnvLoader     = "SKYPACK_LOADER"
	EnvLoaderName = "SKYPACK_LOADER_NAME"
)

// External runs a loader program that reads source on stdin and writes the
// transformed source to stdout. A non-zero exit status fails the load.
type External struct {
	// Path is the executable or .wasm module to run.
	Path string

	// Args are passed to the program after its name.
	Args []string

	// Wasm runs Path as a WASI module instead of a host executable.
	Wasm bool
}

// Name implements Loader.
func (e External) Name() string {
	kind := "exec"
	if e.Wasm {
		kind = "wasm"
	}
	return kind + ":" + strings.Join(append([]string{e.Path}, e.Args...), " ")
}

// Load implements Loader.
func (e External) Load(ctx context.Context, source string) (string, error) {
	var stdout, stderr bytes.Buffer
	run := runExec
	if e.Wasm {
		run = runWasm
	}

	code, err := run(ctx, e, strings.NewReader(source), &stdout, &stderr)
	if err != nil {
		return "", err
	}
	if code != 0 {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "no output on stderr"
		}
		return "", fmt.Errorf("exited with %d: %s", code, message)
	}
	return stdout.String(), nil
}

func runExec(ctx context.Context, e External, stdin *strings.Reader, stdout, stderr *bytes.Buffer) (int, error) {
	cmd := exec.CommandContext(ctx, e.Path, e.Args...)
	cmd.Env = append(os.Environ(),
		EnvLoader+"=1",
		EnvLoaderName+"="+e.Name(),
	)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

func runWasm(ctx context.Context, e External, stdin *strings.Reader, stdout, stderr *bytes.Buffer) (int, error) {
	wasmBytes, err := os.ReadFile(e.Path)
	if err != nil {
		return 1, err
	}

	runtime := wazero.NewRuntime(ctx)
	defer func() { _ = runtime.Close(ctx) }()

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return 1, err
	}

	argv := append([]string{e.Path}, e.Args...)
	config := wazero.NewModuleConfig().
		WithArgs(argv...).
		WithEnv(EnvLoader, "1").
		WithEnv(EnvLoaderName, e.Name()).
		WithStdin(stdin).
		WithStdout(stdout).
		WithStderr(stderr)

	_, err = runtime.InstantiateWithConfig(ctx, wasmBytes, config)
	if err == nil {
		return 0, nil
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.ExitCode()), nil
	}
	return 1, err
}
