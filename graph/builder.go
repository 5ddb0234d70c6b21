// Package graph derives a directed thought graph from a snapshot for
// structural analysis. A thought points at every thought listed under it and
// at every [[link]] in its own text.
package graph

import (
	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/parser"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Node is one thought of the graph.
type Node struct {
	Value       string
	Occurrences int
	TopLevel    bool
}

// Graph is an in-memory representation of the outline's edge structure.
type Graph struct {
	// Forward edges: thought key → set of thought keys it points at
	Forward map[string]map[string]bool
	// Backward edges: thought key → set of thought keys pointing at it
	Backward map[string]map[string]bool
	// Thoughts: thought key → node
	Thoughts map[string]Node
	// Links counts the [[link]] edges among the forward edges.
	Links int
}

// Build walks the content index of s. Meta attributes and the root tokens
// are left out.
func Build(s *store.Snapshot) *Graph {
	g := &Graph{
		Forward:  make(map[string]map[string]bool),
		Backward: make(map[string]map[string]bool),
		Thoughts: make(map[string]Node),
	}

	s.RangeLexemes(func(key string, l *types.Lexeme) bool {
		if store.IsMeta(l.Value) {
			return true
		}
		node := Node{Value: l.Value, Occurrences: len(l.Contexts)}

		// Ensure entries exist even for thoughts with no edges
		if g.Forward[key] == nil {
			g.Forward[key] = make(map[string]bool)
		}

		for _, occ := range l.Contexts {
			if occ.Context.IsRoot() {
				node.TopLevel = true
				continue
			}
			parent := occ.Context[len(occ.Context)-1]
			if parent == types.EMToken || store.IsMeta(parent) {
				continue
			}
			g.addEdge(keys.Thought(parent), key)
		}

		for _, link := range parser.Links(l.Value) {
			if g.addEdge(key, keys.Thought(link)) {
				g.Links++
			}
		}

		g.Thoughts[key] = node
		return true
	})

	return g
}

// addEdge records from → to and reports whether it was new.
func (g *Graph) addEdge(from, to string) bool {
	if from == to || to == "" {
		return false
	}
	if g.Forward[from] == nil {
		g.Forward[from] = make(map[string]bool)
	}
	if g.Forward[from][to] {
		return false
	}
	g.Forward[from][to] = true
	if g.Backward[to] == nil {
		g.Backward[to] = make(map[string]bool)
	}
	g.Backward[to][from] = true
	return true
}

// OutDegree returns the number of outgoing edges of a thought.
func (g *Graph) OutDegree(value string) int {
	return len(g.Forward[keys.Thought(value)])
}

// InDegree returns the number of incoming edges of a thought.
func (g *Graph) InDegree(value string) int {
	return len(g.Backward[keys.Thought(value)])
}

// TotalDegree returns outgoing + incoming edge count for a thought.
func (g *Graph) TotalDegree(value string) int {
	return g.OutDegree(value) + g.InDegree(value)
}

// DisplayName returns the literal value for a thought key.
func (g *Graph) DisplayName(key string) string {
	if n, ok := g.Thoughts[key]; ok && n.Value != "" {
		return n.Value
	}
	return key
}
