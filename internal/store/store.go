// Package store persists the artifact graph as a versioned JSON
// document for caching between runs.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"artdep/internal/graph"
)

// SchemaURL identifies the graph document schema.
const SchemaURL = "https://artdep.dev/schemas/artifact-graph-1.json"

// Version is the schema version written by this implementation. The
// major component gates compatibility: documents with a different
// major version are refused rather than guessed at.
const Version = "1.0"

// FileName is the graph file name inside the engine state directory.
const FileName = "graph.json"

// IncompatibleVersionError reports a graph document whose schema major
// version this implementation does not understand. Callers treat it as
// recoverable and fall back to a full rebuild.
type IncompatibleVersionError struct {
	Version string
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("graph file version %q is not compatible with %q", e.Version, Version)
}

type document struct {
	Schema    string    `json:"$schema"`
	Version   string    `json:"version"`
	Generated string    `json:"generated"`
	Nodes     []nodeDoc `json:"nodes"`
	Edges     []edgeDoc `json:"edges"`
}

type nodeDoc struct {
	Path         string   `json:"path"`
	Type         string   `json:"type"`
	Checksum     string   `json:"checksum"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

type edgeDoc struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// Save writes g to path atomically: the document is written to a
// temporary file and renamed into place, so a cancelled or failed run
// never leaves a partial graph file behind. Nodes, edges, and the
// per-node adjacency arrays are sorted, making repeated saves of the
// same graph byte-identical apart from the timestamp.
func Save(g *graph.Graph, path string) error {
	doc := document{
		Schema:    SchemaURL,
		Version:   Version,
		Generated: time.Now().UTC().Format(time.RFC3339),
		Nodes:     make([]nodeDoc, 0, g.Len()),
		Edges:     []edgeDoc{},
	}

	for _, n := range g.Nodes() {
		deps := g.Dependencies(n.Path)
		if deps == nil {
			deps = []string{}
		}
		dependents := g.Dependents(n.Path)
		if dependents == nil {
			dependents = []string{}
		}
		doc.Nodes = append(doc.Nodes, nodeDoc{
			Path:         n.Path,
			Type:         string(n.Type),
			Checksum:     n.Checksum,
			Dependencies: deps,
			Dependents:   dependents,
		})
	}

	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, edgeDoc{
			Source:   e.Source,
			Target:   e.Target,
			Type:     string(e.Type),
			Optional: e.Optional,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating graph directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing tmp graph file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// Load reads a graph document from path. A missing file surfaces the
// underlying os.IsNotExist error; an unknown major version surfaces an
// *IncompatibleVersionError. Edges are authoritative on load — the
// per-node adjacency arrays in the file are derived output.
func Load(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing graph file: %w", err)
	}

	if majorOf(doc.Version) != majorOf(Version) {
		return nil, &IncompatibleVersionError{Version: doc.Version}
	}

	g := graph.New()
	for _, n := range doc.Nodes {
		g.AddNode(&graph.Node{
			Path:     n.Path,
			Type:     graph.ArtifactType(n.Type),
			Checksum: n.Checksum,
		})
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(graph.Edge{
			Source:   e.Source,
			Target:   e.Target,
			Type:     graph.EdgeType(e.Type),
			Optional: e.Optional,
		}); err != nil {
			return nil, fmt.Errorf("loading edge: %w", err)
		}
	}
	return g, nil
}

func majorOf(version string) string {
	if i := strings.Index(version, "."); i >= 0 {
		return version[:i]
	}
	return version
}
