package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/graph"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Analyze implements graph analysis MCP tools.
type Analyze struct {
	doc *document.Document
}

// NewAnalyze creates a new Analyze tool handler.
func NewAnalyze(d *document.Document) *Analyze {
	return &Analyze{doc: d}
}

// DocumentOverview returns global statistics of the outline.
func (a *Analyze) DocumentOverview(ctx context.Context, req *mcp.CallToolRequest, input types.DocumentOverviewInput) (*mcp.CallToolResult, any, error) {
	snap := a.doc.Snapshot()
	stats := graph.Build(snap).Overview()

	res, err := jsonTextResult(map[string]any{
		"version":  snap.Version(),
		"lexemes":  snap.LexemeCount(),
		"contexts": snap.ParentCount(),
		"graph":    stats,
	})
	return res, nil, err
}

// FindPath finds how two thoughts are connected.
func (a *Analyze) FindPath(ctx context.Context, req *mcp.CallToolRequest, input types.FindPathInput) (*mcp.CallToolResult, any, error) {
	if err := validateInput(input); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	result := graph.Build(a.doc.Snapshot()).FindConnections(input.From, input.To, input.MaxDepth)

	if !result.DirectlyLinked && len(result.Paths) == 0 && len(result.SharedConnections) == 0 {
		return textResult(fmt.Sprintf("No connections found between '%s' and '%s'.", input.From, input.To)), nil, nil
	}

	res, err := jsonTextResult(result)
	return res, nil, err
}

// KnowledgeGaps finds sparse areas of the outline.
func (a *Analyze) KnowledgeGaps(ctx context.Context, req *mcp.CallToolRequest, input types.KnowledgeGapsInput) (*mcp.CallToolResult, any, error) {
	gaps := graph.Build(a.doc.Snapshot()).KnowledgeGaps()

	res, err := jsonTextResult(gaps)
	return res, nil, err
}

// TopicClusters finds groups of connected thoughts.
func (a *Analyze) TopicClusters(ctx context.Context, req *mcp.CallToolRequest, input types.TopicClustersInput) (*mcp.CallToolResult, any, error) {
	clusters := graph.Build(a.doc.Snapshot()).TopicClusters()

	if len(clusters) == 0 {
		return textResult("No topic clusters found. The outline may be too sparse."), nil, nil
	}

	res, err := jsonTextResult(map[string]any{
		"clusterCount": len(clusters),
		"clusters":     clusters,
	})
	return res, nil, err
}

// Verify checks that both indexes agree and reports every mismatch.
func (a *Analyze) Verify(ctx context.Context, req *mcp.CallToolRequest, input types.VerifyInput) (*mcp.CallToolResult, any, error) {
	err := a.doc.Verify()
	if err == nil {
		return textResult("ok: content index and context index agree"), nil, nil
	}

	var problems []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			problems = append(problems, e.Error())
		}
	} else {
		problems = []string{err.Error()}
	}
	res := errorResult(fmt.Sprintf("%d problem(s) found", len(problems)))
	if out, jerr := jsonTextResult(map[string]any{"problems": problems}); jerr == nil {
		res.Content = append(res.Content, out.Content...)
	}
	return res, nil, nil
}
