package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/parser"
	"github.com/skridlevsky/thoughtgraph/resolve"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Navigate implements read-only outline MCP tools.
type Navigate struct {
	doc *document.Document
}

// NewNavigate creates a new Navigate tool handler.
func NewNavigate(d *document.Document) *Navigate {
	return &Navigate{doc: d}
}

// ChildrenResult is a context with its subtree and gating attributes.
type ChildrenResult struct {
	Context  types.Context `json:"context"`
	Flags    store.Flags   `json:"flags"`
	Count    int           `json:"count"`
	Children []store.Node  `json:"children"`
}

// ThoughtResult is a thought with every place it occurs.
type ThoughtResult struct {
	Value       string             `json:"value"`
	Created     time.Time          `json:"created"`
	LastUpdated time.Time          `json:"lastUpdated"`
	Contexts    []types.Occurrence `json:"contexts"`
	Links       []string           `json:"links,omitempty"`
}

// ContextEntry is one occurrence of a thought with the full path to it.
type ContextEntry struct {
	Context types.Context    `json:"context"`
	Rank    float64          `json:"rank"`
	Path    []types.PathStep `json:"path"`
}

// GetChildren returns the children of a context, optionally with their
// descendants.
func (n *Navigate) GetChildren(ctx context.Context, req *mcp.CallToolRequest, input types.GetChildrenInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	depth := input.Depth
	if depth == 0 {
		depth = 1
	}

	snap := n.doc.Snapshot()
	c := types.Context(input.Context).Rooted()
	nodes := store.Tree(snap, c, depth)
	if nodes == nil {
		if _, ok := store.LookupByText(snap, c[len(c)-1]); !ok && !c.IsRoot() {
			return errorResult(fmt.Sprintf("thought not found: %s", c[len(c)-1])), nil, nil
		}
		nodes = []store.Node{}
	}

	res, err := jsonTextResult(&ChildrenResult{
		Context:  c,
		Flags:    store.Meta(snap, c),
		Count:    len(nodes),
		Children: nodes,
	})
	return res, nil, err
}

// GetThought returns the content-index record of a thought.
func (n *Navigate) GetThought(ctx context.Context, req *mcp.CallToolRequest, input types.GetThoughtInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	l, ok := n.doc.Thought(input.Text)
	if !ok {
		return errorResult(fmt.Sprintf("thought not found: %s", input.Text)), nil, nil
	}

	res, err := jsonTextResult(&ThoughtResult{
		Value:       l.Value,
		Created:     l.Created,
		LastUpdated: l.LastUpdated,
		Contexts:    l.Contexts,
		Links:       parser.Links(l.Value),
	})
	return res, nil, err
}

// GetContexts lists every context a thought appears in, each with the path
// that addresses the occurrence.
func (n *Navigate) GetContexts(ctx context.Context, req *mcp.CallToolRequest, input types.GetContextsInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	snap := n.doc.Snapshot()
	l, ok := store.LookupByText(snap, input.Text)
	if !ok {
		return errorResult(fmt.Sprintf("thought not found: %s", input.Text)), nil, nil
	}

	entries := make([]ContextEntry, 0, len(l.Contexts))
	for _, occ := range l.Contexts {
		path := resolve.Join(resolve.PathOf(snap, occ.Context), types.Child{Value: l.Value, Rank: occ.Rank})
		entries = append(entries, ContextEntry{
			Context: occ.Context,
			Rank:    occ.Rank,
			Path:    types.FromPath(path),
		})
	}

	res, err := jsonTextResult(map[string]any{
		"value":    l.Value,
		"count":    len(entries),
		"contexts": entries,
	})
	return res, nil, err
}
