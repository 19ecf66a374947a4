// Package bundle turns a chunk into a single self-executing script.
//
// The script wraps every module of the chunk in a factory keyed by its
// canonical id, keeps a private cache so each factory runs at most once,
// and defines a private require over both. The entry module appears twice:
// in the registry under its id like every other module, and inlined at the
// top of the wrapper so its statements run as soon as the bundle loads.
// Factories take a single module parameter; exports and require inside a
// factory resolve to the wrapper's own bindings.
package bundle

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/albertocavalcante/skypack/internal/graph"
	"github.com/albertocavalcante/skypack/internal/jsast"
)

var bundleTemplate = template.Must(template.New("bundle").Funcs(template.FuncMap{
	"quote": jsast.Quote,
}).Parse(`(() => {
  var modules = {
{{- range $i, $m := .Modules}}{{if $i}},{{end}}
    {{quote $m.ID}}: (module) => {
{{$m.Source}}
    }
{{- end}}
  };
  var cache = {};
  function require(moduleId) {
    var cached = cache[moduleId];
    if (cached !== undefined) {
      return cached.exports;
    }
    var module = (cache[moduleId] = { exports: {} });
    modules[moduleId](module, module.exports, require);
    return module.exports;
  }
  var exports = {};
{{.Entry.Source}}
})();
`))

// Synthesize renders the bundle text for chunk. The output depends only on
// the chunk's module order, ids and sources.
func Synthesize(chunk *graph.Chunk) (string, error) {
	if chunk == nil || chunk.Entry == nil {
		return "", fmt.Errorf("bundle: chunk has no entry module")
	}

	var b strings.Builder
	if err := bundleTemplate.Execute(&b, chunk); err != nil {
		return "", fmt.Errorf("bundle %s: %w", chunk.Name, err)
	}
	return b.String(), nil
}
