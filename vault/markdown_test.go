package vault

import (
	"strings"
	"testing"

	"github.com/skridlevsky/thoughtgraph/types"
)

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"# Heading 1", 1},
		{"## Heading 2", 2},
		{"###### Heading 6", 6},
		{"####### Seven hashes", 0},
		{"Not a heading", 0},
		{"#NoSpace", 0},
		{"  ## Indented heading", 2},
		{"", 0},
		{"# ", 1},
		{"##", 2},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := headingLevel(tt.line)
			if got != tt.want {
				t.Errorf("headingLevel(%q) = %d, want %d", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseMarkdownBlocks(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		if blocks := parseMarkdownBlocks("   \n\n  "); len(blocks) != 0 {
			t.Errorf("expected 0 blocks, got %d", len(blocks))
		}
	})

	t.Run("plain lines", func(t *testing.T) {
		blocks := parseMarkdownBlocks("first\nsecond\n")
		if len(blocks) != 2 || blocks[0].Text != "first" || blocks[1].Text != "second" {
			t.Errorf("blocks = %+v", blocks)
		}
	})

	t.Run("bullet outline", func(t *testing.T) {
		blocks := parseMarkdownBlocks("- a\n  - a1\n- b")
		if len(blocks) != 2 || len(blocks[0].Children) != 1 {
			t.Fatalf("blocks = %+v", blocks)
		}
	})

	t.Run("headings nest by level", func(t *testing.T) {
		body := "intro\n# Parent\n- point\n## Child 1\nContent 1\n## Child 2\n### Grandchild\n# Second"
		blocks := parseMarkdownBlocks(body)
		if len(blocks) != 3 {
			t.Fatalf("expected 3 root blocks, got %d: %+v", len(blocks), blocks)
		}
		if blocks[0].Text != "intro" {
			t.Errorf("pre-heading block = %q, want intro", blocks[0].Text)
		}

		parent := blocks[1]
		if parent.Text != "Parent" {
			t.Errorf("heading text = %q, want Parent", parent.Text)
		}
		want := []string{"point", "Child 1", "Child 2"}
		if got := texts(parent.Children); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("children = %v, want %v", got, want)
		}
		if got := texts(parent.Children[1].Children); len(got) != 1 || got[0] != "Content 1" {
			t.Errorf("Child 1 children = %v", got)
		}
		if got := texts(parent.Children[2].Children); len(got) != 1 || got[0] != "Grandchild" {
			t.Errorf("Child 2 children = %v", got)
		}
		if blocks[2].Text != "Second" || blocks[2].Children != nil {
			t.Errorf("second root = %+v", blocks[2])
		}
	})

	t.Run("code fences are dropped", func(t *testing.T) {
		blocks := parseMarkdownBlocks("```go\nx := 1\n```\n")
		if len(blocks) != 1 || blocks[0].Text != "x := 1" {
			t.Errorf("blocks = %+v", blocks)
		}
	})
}

func TestRenderOutline(t *testing.T) {
	var sb strings.Builder
	renderOutline(&sb, []types.Block{
		{Text: "a", Children: []types.Block{{Text: "a1"}}},
		{Text: "b"},
	}, 0)
	want := "- a\n  - a1\n- b\n"
	if sb.String() != want {
		t.Errorf("renderOutline =\n%q\nwant\n%q", sb.String(), want)
	}

	// The rendered outline parses back to the same tree.
	back := parseMarkdownBlocks(sb.String())
	if len(back) != 2 || back[0].Children[0].Text != "a1" {
		t.Errorf("round trip = %+v", back)
	}
}

func texts(blocks []types.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Text
	}
	return out
}
