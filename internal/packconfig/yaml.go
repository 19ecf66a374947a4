package packconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/skypack/internal/compiler"
	"github.com/albertocavalcante/skypack/internal/graph"
)

// LoadYAMLConfig loads a configuration from a YAML file.
func LoadYAMLConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing YAML config %s: %w", path, err)
	}

	return &cfg, nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Mappings keep document order.
func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = compiler.SingleEntry(node.Value)
	case yaml.MappingNode:
		entries := make(Entries, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if value.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: entry %q must be a string", value.Line, key.Value)
			}
			entries = append(entries, graph.EntryPoint{Name: key.Value, Path: value.Value})
		}
		*e = entries
	default:
		return fmt.Errorf("line %d: entry must be a string or a mapping", node.Line)
	}
	return nil
}
