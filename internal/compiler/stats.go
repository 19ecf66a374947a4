package compiler

import (
	"github.com/albertocavalcante/skypack/internal/graph"
)

// Asset is one emitted bundle.
type Asset struct {
	// Name is the file name relative to the output directory.
	Name string

	// Chunk is the chunk the asset was synthesized from.
	Chunk string

	Source string
}

// Stats describes a finished build.
type Stats struct {
	Chunks  []*graph.Chunk
	Modules []*graph.Module

	// Assets are sorted by name.
	Assets []Asset

	// FileDependencies lists every file read, in first-seen order.
	FileDependencies []string

	// Cycles lists the dependency cycles found, as closed id paths.
	Cycles [][]string
}

// JSON is the serializable summary returned by Stats.ToJSON.
type JSON struct {
	Chunks  []ChunkJSON  `json:"chunks"`
	Modules []ModuleJSON `json:"modules"`
	Assets  []AssetJSON  `json:"assets"`
}

type ChunkJSON struct {
	Name    string   `json:"name"`
	Entry   string   `json:"entry"`
	Modules []string `json:"modules"`
}

type ModuleJSON struct {
	ID           string           `json:"id"`
	Path         string           `json:"path"`
	Chunks       []string         `json:"chunks"`
	Dependencies []DependencyJSON `json:"dependencies"`
	Source       string           `json:"source"`
}

type DependencyJSON struct {
	Request string `json:"request"`
	ID      string `json:"id"`
}

type AssetJSON struct {
	Name  string `json:"name"`
	Chunk string `json:"chunk"`
	Size  int    `json:"size"`
}

// ToJSON returns the chunks, modules and assets of the build.
func (s *Stats) ToJSON() JSON {
	out := JSON{
		Chunks:  make([]ChunkJSON, 0, len(s.Chunks)),
		Modules: make([]ModuleJSON, 0, len(s.Modules)),
		Assets:  make([]AssetJSON, 0, len(s.Assets)),
	}

	for _, chunk := range s.Chunks {
		ids := make([]string, len(chunk.Modules))
		for i, m := range chunk.Modules {
			ids[i] = m.ID
		}
		out.Chunks = append(out.Chunks, ChunkJSON{
			Name:    chunk.Name,
			Entry:   chunk.Entry.ID,
			Modules: ids,
		})
	}

	for _, m := range s.Modules {
		deps := make([]DependencyJSON, len(m.Dependencies))
		for i, d := range m.Dependencies {
			deps[i] = DependencyJSON{Request: d.Request, ID: d.ID}
		}
		out.Modules = append(out.Modules, ModuleJSON{
			ID:           m.ID,
			Path:         m.Path,
			Chunks:       append([]string(nil), m.Chunks...),
			Dependencies: deps,
			Source:       m.Source,
		})
	}

	for _, a := range s.Assets {
		out.Assets = append(out.Assets, AssetJSON{Name: a.Name, Chunk: a.Chunk, Size: len(a.Source)})
	}
	return out
}
