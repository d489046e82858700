package graph

import (
	"reflect"
	"sort"
	"testing"
)

// chainGraph builds the A -> B -> C dependency chain used in several
// tests: B depends on A, C depends on B.
func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		g.AddNode(&Node{Path: p, Type: TypeFramework})
	}
	mustAddEdge(t, g, Edge{Source: "b.md", Target: "a.md", Type: EdgeImports})
	mustAddEdge(t, g, Edge{Source: "c.md", Target: "b.md", Type: EdgeImports})
	return g
}

func affectedPaths(set map[string]struct{}) []string {
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func TestAffectedTransitiveClosure(t *testing.T) {
	g := chainGraph(t)

	affected, chain := g.Affected([]string{"a.md"})

	want := []string{"a.md", "b.md", "c.md"}
	if got := affectedPaths(affected); !reflect.DeepEqual(got, want) {
		t.Errorf("affected = %v, want %v", got, want)
	}

	wantChain := []Hop{
		{Source: "a.md", Affected: "b.md"},
		{Source: "b.md", Affected: "c.md"},
	}
	if !reflect.DeepEqual(chain, wantChain) {
		t.Errorf("chain = %v, want %v", chain, wantChain)
	}
}

func TestAffectedLeafOnly(t *testing.T) {
	g := chainGraph(t)

	affected, chain := g.Affected([]string{"c.md"})

	if got := affectedPaths(affected); !reflect.DeepEqual(got, []string{"c.md"}) {
		t.Errorf("affected = %v, want [c.md]", got)
	}
	if len(chain) != 0 {
		t.Errorf("chain = %v, want empty", chain)
	}
}

func TestAffectedIncludesUnknownPathsVerbatim(t *testing.T) {
	g := chainGraph(t)

	affected, _ := g.Affected([]string{"docs/readme.md"})

	if got := affectedPaths(affected); !reflect.DeepEqual(got, []string{"docs/readme.md"}) {
		t.Errorf("affected = %v, want the unknown path verbatim", got)
	}
}

func TestAffectedAlwaysSupersetOfChanged(t *testing.T) {
	g := chainGraph(t)
	changed := []string{"b.md", "nonexistent.md"}

	affected, _ := g.Affected(changed)

	for _, c := range changed {
		if _, ok := affected[c]; !ok {
			t.Errorf("changed path %s missing from affected set", c)
		}
	}
}

func TestAffectedPropagatesThroughOptionalEdges(t *testing.T) {
	// a.md declares an optional dependency on a target that has no
	// node. A change naming the target still reaches a.md.
	g := New()
	g.AddNode(&Node{Path: "a.md", Type: TypeAgent})
	mustAddEdge(t, g, Edge{Source: "a.md", Target: "future.md", Type: EdgeUses, Optional: true})

	affected, _ := g.Affected([]string{"future.md"})

	want := []string{"a.md", "future.md"}
	if got := affectedPaths(affected); !reflect.DeepEqual(got, want) {
		t.Errorf("affected = %v, want %v", got, want)
	}
}

func TestAffectedDeduplicatesSeeds(t *testing.T) {
	g := chainGraph(t)
	affected, _ := g.Affected([]string{"a.md", "a.md", "b.md"})
	want := []string{"a.md", "b.md", "c.md"}
	if got := affectedPaths(affected); !reflect.DeepEqual(got, want) {
		t.Errorf("affected = %v, want %v", got, want)
	}
}
