package store

import (
	"github.com/skridlevsky/thoughtgraph/types"
)

// Node is one thought with its descendants, as materialized by Tree.
type Node struct {
	types.Child
	Children []Node `json:"children,omitempty"`
}

// Tree materializes the children of ctx and their descendants. maxDepth
// limits the levels returned; zero or less means unlimited.
func Tree(r Reader, ctx types.Context, maxDepth int) []Node {
	return tree(r, ctx.Rooted(), maxDepth, 1)
}

func tree(r Reader, ctx types.Context, maxDepth, depth int) []Node {
	children := LookupChildren(r, ctx)
	if len(children) == 0 {
		return nil
	}
	nodes := make([]Node, len(children))
	for i, c := range children {
		nodes[i] = Node{Child: c}
		if maxDepth <= 0 || depth < maxDepth {
			nodes[i].Children = tree(r, ChildContext(ctx, c.Value), maxDepth, depth+1)
		}
	}
	return nodes
}

// Blocks converts nodes back into an import payload.
func Blocks(nodes []Node) []types.Block {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]types.Block, len(nodes))
	for i, n := range nodes {
		out[i] = types.Block{Text: n.Value, Children: Blocks(n.Children)}
	}
	return out
}
