package vault

import (
	"strings"

	"github.com/skridlevsky/thoughtgraph/parser"
	"github.com/skridlevsky/thoughtgraph/types"
)

// parseMarkdownBlocks parses a markdown body (frontmatter already stripped)
// into an outline. Without headings the body is read as an indented
// outline. Otherwise headings nest by level (H1 > H2 > H3, etc) and the
// outline below a heading becomes its children.
func parseMarkdownBlocks(body string) []types.Block {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	body = stripFences(strings.ReplaceAll(body, "\r\n", "\n"))
	if !hasHeadings(body) {
		return parser.ParseOutline(body)
	}

	lines := strings.Split(body, "\n")

	// Collect sections: each heading starts a new section.
	type section struct {
		level int    // 0 = pre-heading, 1-6 = H1-H6
		title string // heading text without the hashes
		lines []string
	}

	var sections []section
	current := section{level: 0}

	for _, line := range lines {
		if lvl := headingLevel(line); lvl > 0 {
			if len(current.lines) > 0 || current.level > 0 {
				sections = append(sections, current)
			}
			current = section{level: lvl, title: headingText(line)}
		} else {
			current.lines = append(current.lines, line)
		}
	}
	if len(current.lines) > 0 || current.level > 0 {
		sections = append(sections, current)
	}

	// Headings are built as a pointer tree first; appending to a parent's
	// children would otherwise invalidate pointers held on the stack.
	type node struct {
		block    types.Block
		level    int
		children []*node
	}

	root := &node{}
	stack := []*node{root}

	for _, sec := range sections {
		outline := parser.ParseOutline(strings.Join(sec.lines, "\n"))

		if sec.level == 0 {
			for _, b := range outline {
				root.children = append(root.children, &node{block: b})
			}
			continue
		}

		for len(stack) > 1 && stack[len(stack)-1].level >= sec.level {
			stack = stack[:len(stack)-1]
		}

		n := &node{block: types.Block{Text: sec.title, Children: outline}, level: sec.level}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, n)
		stack = append(stack, n)
	}

	var convert func(nodes []*node) []types.Block
	convert = func(nodes []*node) []types.Block {
		if len(nodes) == 0 {
			return nil
		}
		out := make([]types.Block, len(nodes))
		for i, n := range nodes {
			b := n.block
			b.Children = append(b.Children, convert(n.children)...)
			if len(b.Children) == 0 {
				b.Children = nil
			}
			out[i] = b
		}
		return out
	}
	return convert(root.children)
}

// headingLevel returns the heading level (1-6) for a markdown heading line,
// or 0 if the line is not a heading.
func headingLevel(line string) int {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return 0
	}

	level := 0
	for _, ch := range trimmed {
		if ch == '#' {
			level++
		} else {
			break
		}
	}

	if level > 6 || level == 0 {
		return 0
	}

	// Must be followed by a space or be just hashes (e.g. "## " or "##").
	rest := trimmed[level:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		return 0
	}

	return level
}

// headingText returns the text of a heading line without its hashes.
func headingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

func hasHeadings(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		if headingLevel(line) > 0 {
			return true
		}
	}
	return false
}

// stripFences drops fenced code block delimiters so the fence markers do not
// turn into thoughts; the code lines themselves are kept.
func stripFences(body string) string {
	lines := strings.Split(body, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// renderOutline writes blocks as a "- " bullet list, two spaces per level.
func renderOutline(sb *strings.Builder, blocks []types.Block, depth int) {
	for _, b := range blocks {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("- ")
		sb.WriteString(b.Text)
		sb.WriteString("\n")
		renderOutline(sb, b.Children, depth+1)
	}
}
