package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/search"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Search implements the full-text search MCP tool.
type Search struct {
	index *search.Index
	stop  func()
}

// NewSearch indexes the current document and keeps the index current from
// every later change. Create it before the document starts taking edits.
func NewSearch(d *document.Document) *Search {
	ix := search.New()
	stop := d.Subscribe(func(c document.Change) {
		ix.Update(c.Batch)
	})
	ix.Build(d.Snapshot())
	return &Search{index: ix, stop: stop}
}

// Close stops following document changes.
func (s *Search) Close() {
	s.stop()
}

// Search performs full-text search across all thoughts.
func (s *Search) Search(ctx context.Context, req *mcp.CallToolRequest, input types.SearchInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	results := s.index.Search(input.Query, input.Limit)
	if len(results) == 0 {
		return textResult(fmt.Sprintf("No results found for '%s'.", input.Query)), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"query":   input.Query,
		"count":   len(results),
		"results": results,
	})
	return res, nil, err
}
