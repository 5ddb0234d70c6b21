package main

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/tools"
)

// newServer creates and configures the MCP server with all tools registered.
// If readOnly is true, write tools are not registered. The returned search
// handler follows the document until closed.
func newServer(d *document.Document, readOnly bool) (*mcp.Server, *tools.Search) {
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "thoughtgraph",
			Version: version,
		},
		nil,
	)

	nav := tools.NewNavigate(d)
	search := tools.NewSearch(d)
	analyze := tools.NewAnalyze(d)
	cursor := tools.NewCursor(d)

	// --- Navigate tools ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_children",
		Description: "Get the ordered children of a context (a list of ancestor values from the top; empty for the root), optionally with deeper levels. Includes the context's readonly/unextendable flags.",
	}, nav.GetChildren)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_thought",
		Description: "Look up a thought by text (case and whitespace insensitive). Returns its literal value, timestamps, every context it occurs in with its rank there, and any [[links]] it contains.",
	}, nav.GetThought)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_contexts",
		Description: "List every context a thought appears in, each with the full (value, rank) path that addresses that occurrence. Use the paths with move_thought, new_thought and set_cursor.",
	}, nav.GetContexts)

	// --- Search tools ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search across all thoughts. All query words must match. Returns matching thoughts with the contexts they occur in, most hits first.",
	}, search.Search)

	// --- Cursor tools ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_cursor",
		Description: "Get the shared cursor path and whether the thought under it is shown in context view.",
	}, cursor.Get)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cursor_next",
		Description: "Move the cursor to the next sibling. Without a cursor, selects the first top-level thought. Stays put on the last sibling.",
	}, cursor.Next)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "cursor_prev",
		Description: "Move the cursor to the previous sibling. Without a cursor, selects the first top-level thought. Stays put on the first sibling.",
	}, cursor.Prev)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "set_cursor",
		Description: "Place the cursor on a (value, rank) path. An empty path clears the cursor.",
	}, cursor.Set)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "toggle_context_view",
		Description: "Switch a thought (default: the cursor) between showing its children and showing the contexts it appears in.",
	}, cursor.ToggleContextView)

	// --- Analyze tools ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "document_overview",
		Description: "Get a high-level overview of the outline: index sizes, version, thought count, edges, most connected and most referenced thoughts, orphans and namespaces.",
	}, analyze.DocumentOverview)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "find_path",
		Description: "Discover how two thoughts are connected through parent/child and [[link]] edges. Returns whether they're directly linked, paths between them, and shared neighbours.",
	}, analyze.FindPath)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "knowledge_gaps",
		Description: "Find sparse areas of the outline: orphan thoughts (no edges), dead ends (nothing under them, no links out) and weakly connected thoughts.",
	}, analyze.KnowledgeGaps)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "topic_clusters",
		Description: "Find groups of connected thoughts. Returns each group with its hub (the most connected thought in it).",
	}, analyze.TopicClusters)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "verify",
		Description: "Check that the content index and the context index agree. Reports every edge present in one but missing from the other.",
	}, analyze.Verify)

	// --- Write tools (skipped in read-only mode) ---
	if !readOnly {
		write := tools.NewWrite(d)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "insert_thought",
			Description: "Add a thought to a context, after the last child unless a rank is given. Fails on readonly or unextendable contexts.",
		}, write.InsertThought)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "new_thought",
			Description: "Create a thought after, before, or as the last subthought of a path (default: the cursor) and move the cursor to it. Inside a context view the new thought becomes a new context of the viewed thought.",
		}, write.NewThought)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "remove_thought",
			Description: "Remove one occurrence of a thought from a context. With recursive, its subtree goes too where no other occurrence keeps it.",
		}, write.RemoveThought)

		mcp.AddTool(srv, &mcp.Tool{
			Name:        "move_thought",
			Description: "Move a thought with its subtree: first/last under a new parent path, or before/after a sibling path. A thought cannot move into its own subtree.",
		}, write.MoveThought)

		// import_outline uses raw handler because Block has recursive Children field
		// which the schema generator can't handle.
		srv.AddTool(&mcp.Tool{
			Name:        "import_outline",
			Description: "Import a nested outline in one atomic edit. Blocks are {text, children} objects or bare strings; alternatively pass markdown bullet text. Imports after the destination path (default: the cursor, or the root).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"destination":{"type":"array","description":"Path of (value, rank) steps to import after. Default: the cursor","items":{"type":"object","properties":{"value":{"type":"string"},"rank":{"type":"number"}},"required":["value"]}},"blocks":{"type":"array","description":"Blocks to import. Each block has text (string) and optional children (array of blocks); a bare string is a leaf.","items":{}},"text":{"type":"string","description":"Markdown bullet outline, used when blocks is empty"},"skipRoot":{"type":"boolean","description":"Drop a single top-level block and import its children instead"}},"additionalProperties":false}`),
		}, write.ImportOutlineRaw)
	}

	// --- Health tool ---
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "health",
		Description: "Check server status: version, read-only mode, document version and index sizes. Use to verify the server is alive.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input struct{}) (*mcp.CallToolResult, any, error) {
		snap := d.Snapshot()

		status := "ok"
		if err := d.Verify(); err != nil {
			status = "inconsistent: call verify for details"
		}

		data, _ := json.MarshalIndent(map[string]any{
			"status":   status,
			"version":  version,
			"readOnly": readOnly,
			"revision": snap.Version(),
			"lexemes":  snap.LexemeCount(),
			"contexts": snap.ParentCount(),
		}, "", "  ")

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil, nil
	})

	return srv, search
}
