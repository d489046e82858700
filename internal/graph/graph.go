// Package graph provides the in-memory artifact dependency graph.
//
// Nodes are keyed by canonical repository-relative path. Edges are
// path-string pairs resolved through the node map at traversal time, so
// an edge may reference a target with no node behind it (an optional
// reference to an artifact that does not exist yet).
package graph

import (
	"fmt"
	"sort"
)

// ArtifactType classifies a graph node.
type ArtifactType string

const (
	TypeFramework ArtifactType = "framework"
	TypeWorkflow  ArtifactType = "workflow"
	TypeAgent     ArtifactType = "agent"
	TypeTemplate  ArtifactType = "template"
	TypeResearch  ArtifactType = "research"
)

// KnownArtifactType reports whether t is a recognized artifact type.
func KnownArtifactType(t ArtifactType) bool {
	switch t {
	case TypeFramework, TypeWorkflow, TypeAgent, TypeTemplate, TypeResearch:
		return true
	}
	return false
}

// EdgeType classifies a declared relationship.
type EdgeType string

const (
	EdgeImports        EdgeType = "imports"
	EdgeExtends        EdgeType = "extends"
	EdgeUses           EdgeType = "uses"
	EdgeContextualizes EdgeType = "contextualizes"
)

// KnownEdgeType reports whether t is a recognized edge type.
func KnownEdgeType(t EdgeType) bool {
	switch t {
	case EdgeImports, EdgeExtends, EdgeUses, EdgeContextualizes:
		return true
	}
	return false
}

// Node represents one artifact file.
type Node struct {
	Path     string
	Type     ArtifactType
	Checksum string
}

// Edge represents one declared relationship: Source depends on Target.
type Edge struct {
	Source   string
	Target   string
	Type     EdgeType
	Optional bool
}

// edgeKey identifies an edge; multiple edges between the same pair are
// permitted as long as their types differ.
type edgeKey struct {
	source string
	target string
	typ    EdgeType
}

// Graph is the artifact dependency graph. The node map is the single
// owner of nodes; adjacency is maintained as edge indexes in both
// directions and stays consistent under additions and removals.
type Graph struct {
	nodes    map[string]*Node
	edges    map[edgeKey]Edge
	bySource map[string]map[edgeKey]struct{}
	byTarget map[string]map[edgeKey]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[edgeKey]Edge),
		bySource: make(map[string]map[edgeKey]struct{}),
		byTarget: make(map[string]map[edgeKey]struct{}),
	}
}

// AddNode inserts or replaces the node at n.Path. Existing edges are
// untouched; they reconnect to the replacement through the path key.
func (g *Graph) AddNode(n *Node) {
	g.nodes[n.Path] = n
}

// Node returns the node at path, if any.
func (g *Graph) Node(path string) (*Node, bool) {
	n, ok := g.nodes[path]
	return n, ok
}

// HasNode reports whether a node exists at path.
func (g *Graph) HasNode(path string) bool {
	_, ok := g.nodes[path]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Paths returns all node paths in ascending order.
func (g *Graph) Paths() []string {
	paths := make([]string, 0, len(g.nodes))
	for p := range g.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Nodes returns all nodes ordered by path.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, p := range g.Paths() {
		nodes = append(nodes, g.nodes[p])
	}
	return nodes
}

// AddEdge records a relationship. Self-loops and unrecognized edge
// types are rejected. Adding the same (source, target, type) twice is
// idempotent.
func (g *Graph) AddEdge(e Edge) error {
	if e.Source == e.Target {
		return fmt.Errorf("self-loop edge on %s", e.Source)
	}
	if !KnownEdgeType(e.Type) {
		return fmt.Errorf("unknown edge type %q on %s -> %s", e.Type, e.Source, e.Target)
	}

	key := edgeKey{source: e.Source, target: e.Target, typ: e.Type}
	g.edges[key] = e
	if g.bySource[e.Source] == nil {
		g.bySource[e.Source] = make(map[edgeKey]struct{})
	}
	g.bySource[e.Source][key] = struct{}{}
	if g.byTarget[e.Target] == nil {
		g.byTarget[e.Target] = make(map[edgeKey]struct{})
	}
	g.byTarget[e.Target][key] = struct{}{}
	return nil
}

// Edges returns all edges sorted by (source, target, type).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Type < edges[j].Type
	})
	return edges
}

// Dependencies returns the distinct paths that path depends on
// (targets of its outgoing edges), ascending. Targets without a node
// behind them are included.
func (g *Graph) Dependencies(path string) []string {
	return g.neighborPaths(g.bySource[path], func(k edgeKey) string { return k.target })
}

// Dependents returns the distinct paths that depend on path (sources
// of its incoming edges), ascending.
func (g *Graph) Dependents(path string) []string {
	return g.neighborPaths(g.byTarget[path], func(k edgeKey) string { return k.source })
}

func (g *Graph) neighborPaths(keys map[edgeKey]struct{}, pick func(edgeKey) string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	var paths []string
	for k := range keys {
		p := pick(k)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RemoveNode deletes the node at path together with every edge that
// references it, in both directions.
func (g *Graph) RemoveNode(path string) {
	delete(g.nodes, path)
	g.RemoveOutgoing(path)
	for key := range g.byTarget[path] {
		g.removeEdgeKey(key)
	}
}

// RemoveOutgoing deletes all edges whose source is path. Used by
// incremental updates before re-adding a re-parsed node's edges;
// incoming edges from unchanged files are left untouched.
func (g *Graph) RemoveOutgoing(path string) {
	for key := range g.bySource[path] {
		g.removeEdgeKey(key)
	}
}

func (g *Graph) removeEdgeKey(key edgeKey) {
	delete(g.edges, key)
	if set := g.bySource[key.source]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(g.bySource, key.source)
		}
	}
	if set := g.byTarget[key.target]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(g.byTarget, key.target)
		}
	}
}
