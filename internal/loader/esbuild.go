package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Esbuild compiles TypeScript, TSX or JSX down to CommonJS JavaScript so the
// graph builder can discover its require() calls.
type Esbuild struct {
	// Syntax is one of "ts", "tsx", "jsx" or "js".
	Syntax string
}

var esbuildLoaders = map[string]api.Loader{
	"js":  api.LoaderJS,
	"jsx": api.LoaderJSX,
	"ts":  api.LoaderTS,
	"tsx": api.LoaderTSX,
}

// Name implements Loader.
func (e Esbuild) Name() string {
	return "esbuild:" + e.syntax()
}

func (e Esbuild) syntax() string {
	if e.Syntax == "" {
		return "ts"
	}
	return e.Syntax
}

// Load implements Loader.
func (e Esbuild) Load(_ context.Context, source string) (string, error) {
	kind, ok := esbuildLoaders[e.syntax()]
	if !ok {
		return "", fmt.Errorf("unsupported esbuild syntax %q", e.Syntax)
	}

	result := api.Transform(source, api.TransformOptions{
		Loader: kind,
		Format: api.FormatCommonJS,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			if m.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			} else {
				msgs = append(msgs, m.Text)
			}
		}
		return "", errors.New(strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}
