// Package keys produces the normalized lookup keys shared by the content
// index and the context index.
package keys

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/skridlevsky/thoughtgraph/types"
)

// Thought returns the content-index key for a thought value: lowercased,
// trimmed, with internal whitespace runs collapsed to one space.
func Thought(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	space := false
	for _, r := range strings.TrimSpace(value) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Context returns the context-index key for a context. The empty context and
// the root context share one key. Each normalized segment is length-prefixed
// so values containing separators cannot collide.
func Context(ctx types.Context) string {
	if len(ctx) == 0 {
		ctx = types.Context{types.RootToken}
	}
	var b strings.Builder
	for i, v := range ctx {
		if i > 0 {
			b.WriteByte('/')
		}
		k := Thought(v)
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}

// Equal reports whether two thought values normalize to the same key.
func Equal(a, b string) bool {
	return Thought(a) == Thought(b)
}

// EqualContext reports whether two contexts normalize to the same key.
func EqualContext(a, b types.Context) bool {
	return Context(a) == Context(b)
}
