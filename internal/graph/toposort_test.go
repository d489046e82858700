package graph

import (
	"errors"
	"reflect"
	"testing"
)

func setOf(paths ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}

func TestTopoSortChain(t *testing.T) {
	g := chainGraph(t)

	order, err := g.TopoSort(setOf("a.md", "b.md", "c.md"))
	if err != nil {
		t.Fatalf("sorting: %v", err)
	}
	want := []string{"a.md", "b.md", "c.md"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTopoSortSingleNode(t *testing.T) {
	g := chainGraph(t)
	order, err := g.TopoSort(setOf("c.md"))
	if err != nil {
		t.Fatalf("sorting: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"c.md"}) {
		t.Errorf("order = %v, want [c.md]", order)
	}
}

func TestTopoSortDependenciesBeforeDependents(t *testing.T) {
	// Diamond: b and c depend on a; d depends on b and c.
	g := New()
	for _, p := range []string{"a.md", "b.md", "c.md", "d.md"} {
		g.AddNode(&Node{Path: p, Type: TypeFramework})
	}
	mustAddEdge(t, g, Edge{Source: "b.md", Target: "a.md", Type: EdgeImports})
	mustAddEdge(t, g, Edge{Source: "c.md", Target: "a.md", Type: EdgeImports})
	mustAddEdge(t, g, Edge{Source: "d.md", Target: "b.md", Type: EdgeImports})
	mustAddEdge(t, g, Edge{Source: "d.md", Target: "c.md", Type: EdgeImports})

	affected := setOf("a.md", "b.md", "c.md", "d.md")
	order, err := g.TopoSort(affected)
	if err != nil {
		t.Fatalf("sorting: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, p := range order {
		pos[p] = i
	}
	for _, e := range g.Edges() {
		if pos[e.Target] >= pos[e.Source] {
			t.Errorf("dependency %s scheduled at %d, after dependent %s at %d",
				e.Target, pos[e.Target], e.Source, pos[e.Source])
		}
	}

	// Lexicographic tie-break: b before c.
	want := []string{"a.md", "b.md", "c.md", "d.md"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTopoSortDeterministic(t *testing.T) {
	g := New()
	paths := []string{"e.md", "a.md", "c.md", "b.md", "d.md"}
	for _, p := range paths {
		g.AddNode(&Node{Path: p, Type: TypeResearch})
	}

	affected := setOf(paths...)
	first, err := g.TopoSort(affected)
	if err != nil {
		t.Fatalf("sorting: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := g.TopoSort(affected)
		if err != nil {
			t.Fatalf("sorting: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("nondeterministic order: %v vs %v", first, again)
		}
	}
	// No edges at all: pure lexicographic order.
	want := []string{"a.md", "b.md", "c.md", "d.md", "e.md"}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("order = %v, want %v", first, want)
	}
}

func TestTopoSortCycleDetected(t *testing.T) {
	g := New()
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		g.AddNode(&Node{Path: p, Type: TypeWorkflow})
	}
	mustAddEdge(t, g, Edge{Source: "b.md", Target: "a.md", Type: EdgeImports})
	mustAddEdge(t, g, Edge{Source: "c.md", Target: "b.md", Type: EdgeImports})
	mustAddEdge(t, g, Edge{Source: "a.md", Target: "c.md", Type: EdgeImports})

	order, err := g.TopoSort(setOf("a.md", "b.md", "c.md"))
	if err == nil {
		t.Fatalf("expected cycle error, got order %v", order)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("error type = %T, want *CycleError", err)
	}
	if len(cycleErr.Remaining) == 0 {
		t.Error("cycle error names no unresolved node")
	}
	if order != nil {
		t.Errorf("partial order emitted alongside cycle error: %v", order)
	}
}

func TestTopoSortIgnoresEdgesOutsideAffected(t *testing.T) {
	g := chainGraph(t)

	// Only b and c are affected; the edge from b to a is outside the
	// induced subgraph, so b has in-degree zero.
	order, err := g.TopoSort(setOf("b.md", "c.md"))
	if err != nil {
		t.Fatalf("sorting: %v", err)
	}
	want := []string{"b.md", "c.md"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTopoSortEmpty(t *testing.T) {
	g := New()
	order, err := g.TopoSort(map[string]struct{}{})
	if err != nil {
		t.Fatalf("sorting empty set: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("order = %v, want empty", order)
	}
}
