package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/importer"
	"github.com/skridlevsky/thoughtgraph/parser"
	"github.com/skridlevsky/thoughtgraph/rank"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Write implements editing MCP tools. Every edit goes through the
// document's single writer.
type Write struct {
	doc *document.Document
}

// NewWrite creates a new Write tool handler.
func NewWrite(d *document.Document) *Write {
	return &Write{doc: d}
}

// EditResult reports the outcome of one dispatched intent.
type EditResult struct {
	Version uint64           `json:"version"`
	Changed bool             `json:"changed"`
	Path    []types.PathStep `json:"path,omitempty"`
}

// dispatch runs one intent and converts its outcome into a tool result.
func (w *Write) dispatch(ctx context.Context, in document.Intent, extra map[string]any) (*mcp.CallToolResult, any, error) {
	res, err := w.doc.Dispatch(ctx, in)
	if err != nil {
		if res.Changed {
			return errorResult(fmt.Sprintf("applied as version %d but not saved: %v", res.Version, err)), nil, nil
		}
		return errorResult(err.Error()), nil, nil
	}

	out := EditResult{Version: res.Version, Changed: res.Changed}
	if res.Path != nil {
		out.Path = types.FromPath(res.Path)
	}
	if extra == nil {
		r, err := jsonTextResult(out)
		return r, nil, err
	}
	extra["version"] = out.Version
	extra["changed"] = out.Changed
	if out.Path != nil {
		extra["path"] = out.Path
	}
	r, err := jsonTextResult(extra)
	return r, nil, err
}

// InsertThought adds a thought to a context, after the last child unless a
// rank is given.
func (w *Write) InsertThought(ctx context.Context, req *mcp.CallToolRequest, input types.InsertThoughtInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	in := document.InsertChild{Context: types.Context(input.Context), Value: input.Value, Append: input.Rank == nil}
	if input.Rank != nil {
		in.Rank = *input.Rank
	}
	return w.dispatch(ctx, in, nil)
}

// NewThought creates a thought relative to a path (or the cursor) and moves
// the cursor to it.
func (w *Write) NewThought(ctx context.Context, req *mcp.CallToolRequest, input types.NewThoughtInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	placement := document.PlaceAfter
	switch input.Placement {
	case "before":
		placement = document.PlaceBefore
	case "subthought":
		placement = document.PlaceSubthought
	}
	return w.dispatch(ctx, document.NewThought{
		At:        types.ToPath(input.At),
		Value:     input.Value,
		Placement: placement,
	}, nil)
}

// RemoveThought removes one occurrence of a thought.
func (w *Write) RemoveThought(ctx context.Context, req *mcp.CallToolRequest, input types.RemoveThoughtInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return w.dispatch(ctx, document.RemoveChild{
		Context:   types.Context(input.Context),
		Value:     input.Value,
		Rank:      input.Rank,
		Recursive: input.Recursive,
	}, nil)
}

// MoveThought moves a thought with its subtree.
func (w *Write) MoveThought(ctx context.Context, req *mcp.CallToolRequest, input types.MoveThoughtInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}
	mode := rank.Last
	switch input.Mode {
	case "first":
		mode = rank.First
	case "before":
		mode = rank.Before
	case "after":
		mode = rank.After
	}
	return w.dispatch(ctx, document.MoveThought{
		From: types.ToPath(input.From),
		To:   types.ToPath(input.To),
		Mode: mode,
	}, nil)
}

// ImportOutlineRaw is the raw ToolHandler for import_outline (avoids recursive type cycle in schema generation).
func (w *Write) ImportOutlineRaw(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input types.ImportOutlineInput
	if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid input: %v", err)), nil
	}
	result, _, err := w.importOutline(ctx, input)
	return result, err
}

// importOutline is the shared implementation.
func (w *Write) importOutline(ctx context.Context, input types.ImportOutlineInput) (*mcp.CallToolResult, any, error) {
	if len(input.Blocks) == 0 && input.Text != "" {
		input.Blocks = parser.ParseOutline(input.Text)
	}
	if len(input.Blocks) == 0 {
		return errorResult("no blocks provided"), nil, nil
	}
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	count := importer.CountBlocks(input.Blocks)
	return w.dispatch(ctx, document.Import{
		Destination: types.ToPath(input.Destination),
		Blocks:      input.Blocks,
		SkipRoot:    input.SkipRoot,
	}, map[string]any{"blocks": count})
}
