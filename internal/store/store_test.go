package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"artdep/internal/graph"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.AddNode(&graph.Node{Path: "framework/solution.md", Type: graph.TypeFramework, Checksum: "aaaa"})
	g.AddNode(&graph.Node{Path: "workflows/deploy.md", Type: graph.TypeWorkflow, Checksum: "bbbb"})
	err := g.AddEdge(graph.Edge{
		Source: "workflows/deploy.md",
		Target: "framework/solution.md",
		Type:   graph.EdgeImports,
	})
	if err != nil {
		t.Fatalf("adding edge: %v", err)
	}
	err = g.AddEdge(graph.Edge{
		Source:   "workflows/deploy.md",
		Target:   "templates/report.md",
		Type:     graph.EdgeUses,
		Optional: true,
	})
	if err != nil {
		t.Fatalf("adding optional edge: %v", err)
	}
	return g
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "graph.json")
	original := sampleGraph(t)

	if err := Save(original, path); err != nil {
		t.Fatalf("saving: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	if !reflect.DeepEqual(loaded.Paths(), original.Paths()) {
		t.Errorf("paths = %v, want %v", loaded.Paths(), original.Paths())
	}
	if !reflect.DeepEqual(loaded.Edges(), original.Edges()) {
		t.Errorf("edges = %v, want %v", loaded.Edges(), original.Edges())
	}
	for _, p := range original.Paths() {
		want, _ := original.Node(p)
		got, ok := loaded.Node(p)
		if !ok {
			t.Fatalf("node %s missing after load", p)
		}
		if got.Type != want.Type || got.Checksum != want.Checksum {
			t.Errorf("node %s = %+v, want %+v", p, got, want)
		}
	}
}

func TestSaveDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := Save(sampleGraph(t), path); err != nil {
		t.Fatalf("saving: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing saved document: %v", err)
	}
	if doc["$schema"] != SchemaURL {
		t.Errorf("$schema = %v", doc["$schema"])
	}
	if doc["version"] != Version {
		t.Errorf("version = %v", doc["version"])
	}
	if doc["generated"] == "" {
		t.Error("generated timestamp missing")
	}

	nodes, ok := doc["nodes"].([]any)
	if !ok || len(nodes) != 2 {
		t.Fatalf("nodes = %v", doc["nodes"])
	}
	first := nodes[0].(map[string]any)
	if _, ok := first["dependencies"].([]any); !ok {
		t.Error("node dependencies must serialize as an array, not null")
	}
	if _, ok := first["dependents"].([]any); !ok {
		t.Error("node dependents must serialize as an array, not null")
	}
}

func TestSaveEmptyGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := Save(graph.New(), path); err != nil {
		t.Fatalf("saving: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	var doc struct {
		Nodes []any `json:"nodes"`
		Edges []any `json:"edges"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if doc.Nodes == nil || doc.Edges == nil {
		t.Error("empty collections must serialize as [] rather than null")
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	if err := Save(sampleGraph(t), filepath.Join(dir, "graph.json")); err != nil {
		t.Fatalf("saving: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "graph.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want only graph.json", names)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "graph.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestLoadIncompatibleMajorVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	doc := `{"$schema":"` + SchemaURL + `","version":"2.0","generated":"2026-01-01T00:00:00Z","nodes":[],"edges":[]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, err := Load(path)
	var incompatible *IncompatibleVersionError
	if !errors.As(err, &incompatible) {
		t.Fatalf("err = %v, want IncompatibleVersionError", err)
	}
	if incompatible.Version != "2.0" {
		t.Errorf("reported version = %q", incompatible.Version)
	}
}

func TestLoadMinorVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	doc := `{"$schema":"` + SchemaURL + `","version":"1.7","generated":"2026-01-01T00:00:00Z","nodes":[],"edges":[]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("minor version drift should load: %v", err)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed document")
	}
}
