// Package parser turns plain-text outlines into import blocks and extracts
// inline structure from thought values.
package parser

import (
	"regexp"
	"strings"

	"github.com/skridlevsky/thoughtgraph/types"
)

var (
	// [[thought]]: wiki-style references to other thoughts
	linkPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

	// "- ", "* " or "+ " list markers, optionally followed by a task box
	bulletPattern = regexp.MustCompile(`^[-*+](?:\s+\[[ xX]\])?(?:\s+|$)`)
)

// tabWidth is the indentation a tab counts for.
const tabWidth = 4

// ParseOutline parses an indented outline. Each non-blank line becomes a
// block; a line nests under the closest preceding line with smaller
// indentation. Bullet markers are stripped, blank lines ignored.
func ParseOutline(text string) []types.Block {
	type node struct {
		text     string
		indent   int
		children []*node
	}

	root := &node{indent: -1}
	stack := []*node{root}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := indentWidth(line)
		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		n := &node{text: StripBullet(line), indent: indent}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, n)
		stack = append(stack, n)
	}

	var convert func(nodes []*node) []types.Block
	convert = func(nodes []*node) []types.Block {
		if len(nodes) == 0 {
			return nil
		}
		blocks := make([]types.Block, len(nodes))
		for i, n := range nodes {
			blocks[i] = types.Block{Text: n.text, Children: convert(n.children)}
		}
		return blocks
	}
	return convert(root.children)
}

func indentWidth(line string) int {
	w := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			w++
		case '\t':
			w += tabWidth
		default:
			return w
		}
	}
	return w
}

// StripBullet removes surrounding whitespace and a leading list marker.
func StripBullet(line string) string {
	line = strings.TrimSpace(line)
	if loc := bulletPattern.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[loc[1]:])
	}
	return line
}

// Links returns the distinct [[thought]] references in a value, in order of
// first appearance.
func Links(value string) []string {
	matches := linkPattern.FindAllStringSubmatch(value, -1)
	links := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name != "" && !seen[name] {
			links = append(links, name)
			seen[name] = true
		}
	}
	return links
}
