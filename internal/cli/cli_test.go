package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestExitCodes(t *testing.T) {
	if ExitOK != 0 {
		t.Errorf("ExitOK = %d, want 0", ExitOK)
	}
	if ExitError != 1 {
		t.Errorf("ExitError = %d, want 1", ExitError)
	}
	if ExitStale != 2 {
		t.Errorf("ExitStale = %d, want 2", ExitStale)
	}
}

func TestWritef(t *testing.T) {
	var buf bytes.Buffer
	Writef(&buf, "hello %s, count=%d", "world", 42)

	got := buf.String()
	want := "hello world, count=42"
	if got != want {
		t.Errorf("Writef() = %q, want %q", got, want)
	}
}

func TestWriteln(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{
			name: "no args",
			args: nil,
			want: "\n",
		},
		{
			name: "single arg",
			args: []any{"hello"},
			want: "hello\n",
		},
		{
			name: "multiple args",
			args: []any{"hello", "world", 42},
			want: "hello world 42\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			Writeln(&buf, tc.args...)

			got := buf.String()
			if got != tc.want {
				t.Errorf("Writeln() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	Write(&buf, "hello world")
	WriteBytes(&buf, []byte("!"))

	got := buf.String()
	want := "hello world!"
	if got != want {
		t.Errorf("Write() = %q, want %q", got, want)
	}
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, "skypack")

	if !strings.HasPrefix(buf.String(), "skypack dev") {
		t.Errorf("PrintVersion() = %q, want prefix %q", buf.String(), "skypack dev")
	}
}

func TestMainRunsTool(t *testing.T) {
	var got []string
	code := Main(func(ctx context.Context, args []string, _ io.Reader, _, _ io.Writer) int {
		if ctx.Err() != nil {
			t.Errorf("context already done: %v", ctx.Err())
		}
		got = args
		return ExitStale
	}, []string{"-check", "index.js"})

	if code != ExitStale {
		t.Errorf("Main() = %d, want %d", code, ExitStale)
	}
	if strings.Join(got, " ") != "-check index.js" {
		t.Errorf("args = %v", got)
	}
}
