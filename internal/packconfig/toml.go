package packconfig

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/albertocavalcante/skypack/internal/compiler"
	"github.com/albertocavalcante/skypack/internal/graph"
)

// LoadTOMLConfig loads a configuration from a TOML file.
func LoadTOMLConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML config %s: %w", path, err)
	}
	cfg.Entry = orderEntries(cfg.Entry, md.Keys())

	return &cfg, nil
}

// UnmarshalTOML implements toml.Unmarshaler. Tables arrive as Go maps, so
// entries are sorted by name here and put back in document order by
// LoadTOMLConfig.
func (e *Entries) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		*e = compiler.SingleEntry(v)
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)

		entries := make(Entries, 0, len(names))
		for _, name := range names {
			path, ok := v[name].(string)
			if !ok {
				return fmt.Errorf("entry %q must be a string, got %T", name, v[name])
			}
			entries = append(entries, graph.EntryPoint{Name: name, Path: path})
		}
		*e = entries
	default:
		return fmt.Errorf("entry must be a string or a table, got %T", v)
	}
	return nil
}

// orderEntries sorts entries by the position of their "entry.<name>" key in
// the document. Entries without a recorded key keep their relative order
// after the others.
func orderEntries(entries Entries, keys []toml.Key) Entries {
	pos := make(map[string]int)
	for i, key := range keys {
		if len(key) == 2 && key[0] == "entry" {
			if _, seen := pos[key[1]]; !seen {
				pos[key[1]] = i
			}
		}
	}

	rank := func(e graph.EntryPoint) int {
		if i, ok := pos[e.Name]; ok {
			return i
		}
		return len(keys)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return rank(entries[i]) < rank(entries[j])
	})
	return entries
}

// UnmarshalText implements encoding.TextUnmarshaler for declarative configs.
func (r *LoaderRef) UnmarshalText(text []byte) error {
	r.Spec = string(text)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler for declarative configs.
func (r *PluginRef) UnmarshalText(text []byte) error {
	r.Name = string(text)
	return nil
}
