package graph

import "sort"

// Hop records one propagation step: Affected was pulled into the
// affected set because it depends on Source.
type Hop struct {
	Source   string `json:"source"`
	Affected string `json:"affected"`
}

// Affected computes the transitive closure of dependents reachable from
// changed, breadth-first. Every changed path is in the result, including
// paths with no node in the graph — those contribute no propagation.
// The returned hops record the edge followed when each dependent was
// first reached; traversal order is deterministic (seeds and dependent
// fanout visited in ascending path order).
func (g *Graph) Affected(changed []string) (map[string]struct{}, []Hop) {
	affected := make(map[string]struct{}, len(changed))
	var chain []Hop

	seeds := append([]string(nil), changed...)
	sort.Strings(seeds)

	var queue []string
	for _, p := range seeds {
		if _, dup := affected[p]; dup {
			continue
		}
		affected[p] = struct{}{}
		queue = append(queue, p)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range g.Dependents(current) {
			if _, seen := affected[dep]; seen {
				continue
			}
			affected[dep] = struct{}{}
			chain = append(chain, Hop{Source: current, Affected: dep})
			queue = append(queue, dep)
		}
	}

	return affected, chain
}
