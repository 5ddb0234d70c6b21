package types

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// RootToken is the value of the primary document root.
	RootToken = "__ROOT__"
	// EMToken is the value of the meta root namespace.
	EMToken = "__EM__"
)

// Context is the value-only path from the root down to, but not including,
// a node. It identifies a child list.
type Context []string

// Child is one entry of a Parent's ordered child list. Value keeps the
// literal casing of the thought.
type Child struct {
	Value       string    `json:"value"`
	Rank        float64   `json:"rank"`
	ID          string    `json:"id,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// Path is the root-to-node sequence of (value, rank) pairs. Unlike Context it
// tells apart siblings that share a value.
type Path []Child

// Occurrence is one place a Lexeme appears.
type Occurrence struct {
	Context Context `json:"context"`
	Rank    float64 `json:"rank"`
}

// Lexeme is the content-index record for one normalized text value.
type Lexeme struct {
	Value       string       `json:"value"`
	Contexts    []Occurrence `json:"contexts"`
	Created     time.Time    `json:"created"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// Parent is the context-index record listing the children of one context,
// sorted by rank.
type Parent struct {
	Context     Context   `json:"context"`
	Children    []Child   `json:"children"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Block is one node of an import payload.
type Block struct {
	Text     string  `json:"text"`
	Children []Block `json:"children"`
}

// UnmarshalJSON accepts a block as either {"text": ..., "children": [...]}
// or a bare string leaf.
func (b *Block) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		b.Text = text
		b.Children = nil
		return nil
	}
	type blockAlias Block
	var alias blockAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("Block: expected string or object, got %s", string(data))
	}
	*b = Block(alias)
	return nil
}

// Values returns the values of a path.
func (p Path) Values() Context {
	ctx := make(Context, len(p))
	for i, c := range p {
		ctx[i] = c.Value
	}
	return ctx
}

// Equal reports whether two paths hold the same values and ranks.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i].Value != other[i].Value || p[i].Rank != other[i].Rank {
			return false
		}
	}
	return true
}

// Clone returns a copy of the context with its own backing array.
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	out := make(Context, len(c))
	copy(out, c)
	return out
}

// Rooted returns the context, or the root context when it is empty.
func (c Context) Rooted() Context {
	if len(c) == 0 {
		return Context{RootToken}
	}
	return c
}

// IsRoot reports whether the context is the root child list.
func (c Context) IsRoot() bool {
	return len(c) == 0 || (len(c) == 1 && c[0] == RootToken)
}

// Append returns a new context with value appended.
func (c Context) Append(value string) Context {
	out := make(Context, len(c), len(c)+1)
	copy(out, c)
	return append(out, value)
}
