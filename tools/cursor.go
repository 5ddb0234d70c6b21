package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Cursor implements the shared cursor and context view MCP tools.
type Cursor struct {
	doc *document.Document
}

// NewCursor creates a new Cursor tool handler.
func NewCursor(d *document.Document) *Cursor {
	return &Cursor{doc: d}
}

// CursorResult is the cursor after a navigation intent.
type CursorResult struct {
	Cursor        []types.PathStep `json:"cursor"`
	Changed       bool             `json:"changed"`
	InContextView bool             `json:"inContextView"`
}

func (c *Cursor) run(ctx context.Context, in document.Intent) (*mcp.CallToolResult, any, error) {
	res, err := c.doc.Dispatch(ctx, in)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return c.describe(res.Changed)
}

func (c *Cursor) describe(changed bool) (*mcp.CallToolResult, any, error) {
	cur := c.doc.Cursor()
	r, err := jsonTextResult(&CursorResult{
		Cursor:        types.FromPath(cur),
		Changed:       changed,
		InContextView: len(cur) > 0 && c.doc.InContextView(cur),
	})
	return r, nil, err
}

// Next moves the cursor to the next sibling.
func (c *Cursor) Next(ctx context.Context, req *mcp.CallToolRequest, input types.CursorInput) (*mcp.CallToolResult, any, error) {
	return c.run(ctx, document.MoveCursor{Direction: document.Next})
}

// Prev moves the cursor to the previous sibling.
func (c *Cursor) Prev(ctx context.Context, req *mcp.CallToolRequest, input types.CursorInput) (*mcp.CallToolResult, any, error) {
	return c.run(ctx, document.MoveCursor{Direction: document.Prev})
}

// Get returns the cursor without moving it.
func (c *Cursor) Get(ctx context.Context, req *mcp.CallToolRequest, input types.CursorInput) (*mcp.CallToolResult, any, error) {
	return c.describe(false)
}

// Set places the cursor on a path, or clears it for an empty path.
func (c *Cursor) Set(ctx context.Context, req *mcp.CallToolRequest, input types.SetCursorInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return c.run(ctx, document.SetCursor{Path: types.ToPath(input.Path)})
}

// ToggleContextView flips between a thought's children and its contexts.
func (c *Cursor) ToggleContextView(ctx context.Context, req *mcp.CallToolRequest, input types.ToggleContextViewInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	path := types.ToPath(input.Path)
	res, err := c.doc.Dispatch(ctx, document.ToggleContextView{Path: path})
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	r, err := jsonTextResult(map[string]any{
		"path":          types.FromPath(res.Path),
		"inContextView": c.doc.InContextView(res.Path),
	})
	return r, nil, err
}
