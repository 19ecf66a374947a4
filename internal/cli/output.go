package cli

import (
	"fmt"
	"io"
)

// Writef writes formatted output to w, ignoring write errors. There is no
// reasonable recovery from a failed write to stdout or stderr.
func Writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// Writeln writes a line to w, ignoring write errors.
func Writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// Write writes s to w, ignoring write errors.
func Write(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}

// WriteBytes writes b to w, ignoring write errors.
func WriteBytes(w io.Writer, b []byte) {
	_, _ = w.Write(b)
}
