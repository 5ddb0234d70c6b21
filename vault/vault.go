// Package vault reads a directory of markdown files as an outline and
// writes an outline back out as markdown files.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// metaFlags maps frontmatter keys to the meta attributes they turn into.
var metaFlags = []struct {
	key  string
	meta string
}{
	{"readonly", store.MetaReadOnly},
	{"unextendable", store.MetaUnextendable},
}

// Loader reads every .md file under a directory. Each file becomes one
// top-level block named after its path relative to the directory, without
// the extension.
type Loader struct {
	dir string
	log *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used to report skipped files.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.log = l }
}

// New creates a loader for dir. Call Load to read it.
func New(dir string, opts ...Option) *Loader {
	l := &Loader{dir: dir, log: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads all .md files, skipping hidden directories. Files are returned
// in lexical path order.
func (l *Loader) Load() ([]types.Block, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", l.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault %s: not a directory", l.dir)
	}

	var blocks []types.Block
	err = filepath.Walk(l.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			l.log.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}

		// Skip hidden directories (.obsidian, .git, etc).
		if info.IsDir() && path != l.dir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".md") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			l.log.Debug("skipping unreadable file", zap.String("path", path), zap.Error(err))
			return nil
		}

		relPath, _ := filepath.Rel(l.dir, path)
		blocks = append(blocks, fileBlock(relPath, string(content)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault: %w", err)
	}
	return blocks, nil
}

// fileBlock turns one markdown file into a top-level block: the body outline
// followed by meta attributes from the frontmatter.
func fileBlock(relPath, content string) types.Block {
	name := strings.TrimSuffix(filepath.ToSlash(relPath), ".md")
	props, body := parseFrontmatter(content)

	// Flags go last so they do not gate the import of the body itself.
	children := parseMarkdownBlocks(body)
	for _, f := range metaFlags {
		if flagSet(props, f.key) {
			children = append(children, types.Block{Text: f.meta})
		}
	}
	if len(children) == 0 {
		children = nil
	}
	return types.Block{Text: name, Children: children}
}

// Export writes every top-level thought of r as a markdown file under dir.
// Gating meta attributes become frontmatter flags, other children a bullet
// outline. Thoughts whose value is empty, a meta attribute, or would escape
// dir are skipped. Returns the number of files written.
func Export(dir string, r store.Reader) (int, error) {
	written := 0
	for _, top := range store.Tree(r, nil, 0) {
		name := strings.TrimSpace(top.Value)
		if name == "" || store.IsMeta(name) {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(name)+".md")
		if rel, err := filepath.Rel(dir, target); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}

		props := make(map[string]any)
		var body []types.Block
		for _, child := range store.Blocks(top.Children) {
			flagged := false
			for _, f := range metaFlags {
				if strings.EqualFold(strings.TrimSpace(child.Text), f.meta) {
					props[f.key] = true
					flagged = true
				}
			}
			if !flagged {
				body = append(body, child)
			}
		}

		var sb strings.Builder
		sb.WriteString(renderFrontmatter(props))
		renderOutline(&sb, body, 0)

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, fmt.Errorf("export %q: %w", name, err)
		}
		if err := os.WriteFile(target, []byte(sb.String()), 0o644); err != nil {
			return written, fmt.Errorf("export %q: %w", name, err)
		}
		written++
	}
	return written, nil
}
