// Package cli provides shared plumbing for the skypack command.
package cli

// Exit codes for skypack.
//
//   - 0: Success
//   - 1: Error (configuration, resolution, parse or loader failures, I/O)
//   - 2: Stale output found by -check
const (
	// ExitOK indicates a successful build or an up-to-date check.
	ExitOK = 0

	// ExitError indicates the build or the command failed.
	ExitError = 1

	// ExitStale indicates a check build produced assets that differ from the
	// ones on disk.
	ExitStale = 2
)
