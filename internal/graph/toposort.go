package graph

import (
	"fmt"
	"sort"
)

// CycleError reports a circular dependency among the nodes that could
// not be scheduled.
type CycleError struct {
	// Remaining holds the unresolved paths, ascending.
	Remaining []string
}

func (e *CycleError) Error() string {
	if len(e.Remaining) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle detected involving %s (%d nodes unresolved)",
		e.Remaining[0], len(e.Remaining))
}

// TopoSort orders the paths in affected so that every dependency comes
// strictly before its dependents, using Kahn's algorithm over the
// induced subgraph (edges with both endpoints in affected). Ties among
// ready nodes break in ascending path order, so the output is
// reproducible across runs. Returns a *CycleError when a cycle prevents
// a complete ordering; no partial order is ever returned.
func (g *Graph) TopoSort(affected map[string]struct{}) ([]string, error) {
	inDegree := make(map[string]int, len(affected))
	for path := range affected {
		deg := 0
		for _, dep := range g.Dependencies(path) {
			if _, in := affected[dep]; in {
				deg++
			}
		}
		inDegree[path] = deg
	}

	var ready []string
	for path, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(affected))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		for _, dep := range g.Dependents(current) {
			if _, in := affected[dep]; !in {
				continue
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(order) != len(affected) {
		emitted := make(map[string]struct{}, len(order))
		for _, p := range order {
			emitted[p] = struct{}{}
		}
		var remaining []string
		for path := range affected {
			if _, done := emitted[path]; !done {
				remaining = append(remaining, path)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Remaining: remaining}
	}

	return order, nil
}

// insertSorted inserts s into sorted, keeping ascending order.
func insertSorted(sorted []string, s string) []string {
	i := sort.SearchStrings(sorted, s)
	sorted = append(sorted, "")
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = s
	return sorted
}
