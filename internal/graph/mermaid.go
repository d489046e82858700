package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders the graph as a Mermaid flowchart. Presentation only;
// nothing downstream consumes the output. Nodes and edges appear in
// their sorted order so two renders of the same graph are identical.
func (g *Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	ids := make(map[string]string, g.Len())
	for i, path := range g.Paths() {
		id := fmt.Sprintf("n%d", i)
		ids[path] = id
		node := g.nodes[path]
		fmt.Fprintf(&b, "    %s[\"%s<br/>(%s)\"]\n", id, escapeMermaid(path), node.Type)
	}

	for _, e := range g.Edges() {
		srcID, ok := ids[e.Source]
		if !ok {
			continue
		}
		dstID, ok := ids[e.Target]
		if !ok {
			// Optional edge to an artifact that does not exist yet.
			continue
		}
		arrow := "-->"
		if e.Optional {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "    %s %s|%s| %s\n", srcID, arrow, e.Type, dstID)
	}

	return b.String()
}

func escapeMermaid(s string) string {
	s = strings.ReplaceAll(s, "\"", "#quot;")
	return strings.ReplaceAll(s, "|", "#124;")
}
