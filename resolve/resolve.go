// Package resolve converts between Paths and Contexts and resolves context
// view chains into the real locations an edit applies to.
package resolve

import (
	"sort"

	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// ToContext strips ranks from a path. The empty path and the root path map to
// the root context; a leading root token is dropped, a leading meta root is
// kept so meta thoughts stay in their own namespace.
func ToContext(path types.Path) types.Context {
	if len(path) > 0 && path[0].Value == types.RootToken {
		path = path[1:]
	}
	if len(path) == 0 {
		return types.Context{types.RootToken}
	}
	return path.Values()
}

// ParentOf returns the path without its last element.
func ParentOf(path types.Path) types.Path {
	if len(path) <= 1 {
		return nil
	}
	out := make(types.Path, len(path)-1)
	copy(out, path[:len(path)-1])
	return out
}

// ParentContext returns the context that holds the node at path.
func ParentContext(path types.Path) types.Context {
	return ToContext(ParentOf(path))
}

// Head returns the last element of a path, or the zero Child.
func Head(path types.Path) types.Child {
	if len(path) == 0 {
		return types.Child{}
	}
	return path[len(path)-1]
}

// Join returns path with child appended, without aliasing path.
func Join(path types.Path, child types.Child) types.Path {
	out := make(types.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, child)
}

// IsRootPath reports whether path designates the primary root itself.
func IsRootPath(path types.Path) bool {
	return len(path) == 0 || (len(path) == 1 && path[0].Value == types.RootToken)
}

// IsMetaRootPath reports whether path designates the meta root itself.
func IsMetaRootPath(path types.Path) bool {
	return len(path) == 1 && path[0].Value == types.EMToken
}

// Views is the set of thoughts currently shown in context view, keyed by the
// context key of the thought's own path. The zero value has no active views.
// Views values are never modified; Toggle returns a new set.
type Views map[string]bool

// Active reports whether the node at path is in context view.
func (v Views) Active(path types.Path) bool {
	if len(path) == 0 {
		return false
	}
	return v[keys.Context(ToContext(path))]
}

// Toggle returns a copy of v with the context view of path flipped.
func (v Views) Toggle(path types.Path) Views {
	out := make(Views, len(v)+1)
	for k, on := range v {
		out[k] = on
	}
	k := keys.Context(ToContext(path))
	if out[k] {
		delete(out, k)
	} else {
		out[k] = true
	}
	return out
}

// SplitChain splits path after every ancestor that is in context view. A
// path with no context view ancestors yields a single segment.
func SplitChain(v Views, path types.Path) []types.Path {
	chain := []types.Path{{}}
	for i, c := range path {
		chain[len(chain)-1] = append(chain[len(chain)-1], c)
		if i < len(path)-1 && v.Active(path[:i+1]) {
			chain = append(chain, types.Path{})
		}
	}
	return chain
}

// ContextEntries lists the places value occurs, as shown when value is in
// context view: one entry per occurrence, named after the head of the
// occurrence's context, ordered by that name and ranked by position.
func ContextEntries(r store.Reader, value string) []types.Child {
	occs := sortedOccurrences(r, value)
	out := make([]types.Child, len(occs))
	for i, occ := range occs {
		out[i] = types.Child{Value: occ.Context[len(occ.Context)-1], Rank: float64(i)}
	}
	return out
}

func sortedOccurrences(r store.Reader, value string) []types.Occurrence {
	l, ok := store.LookupByText(r, value)
	if !ok {
		return nil
	}
	occs := make([]types.Occurrence, len(l.Contexts))
	copy(occs, l.Contexts)
	sort.SliceStable(occs, func(i, j int) bool {
		hi := keys.Thought(occs[i].Context[len(occs[i].Context)-1])
		hj := keys.Thought(occs[j].Context[len(occs[j].Context)-1])
		if hi != hj {
			return hi < hj
		}
		return keys.Context(occs[i].Context) < keys.Context(occs[j].Context)
	})
	return occs
}

// ResolveChain returns the real path addressed by the last segment of a
// context chain. The segment's first element names one of the contexts the
// previous segment's head occurs in; the real path is that context, then the
// head itself, then the rest of the segment.
func ResolveChain(r store.Reader, chain []types.Path) types.Path {
	if len(chain) == 0 {
		return nil
	}
	if len(chain) == 1 {
		return chain[0]
	}
	penult, ult := chain[len(chain)-2], chain[len(chain)-1]
	if len(penult) == 0 || len(ult) == 0 {
		return ult
	}
	anchor := Head(penult)

	occs := sortedOccurrences(r, anchor.Value)
	entry := ult[0]
	match := -1
	if i := int(entry.Rank); float64(i) == entry.Rank && i >= 0 && i < len(occs) && keys.Equal(occs[i].Context[len(occs[i].Context)-1], entry.Value) {
		match = i
	} else {
		for i, occ := range occs {
			if keys.Equal(occ.Context[len(occ.Context)-1], entry.Value) {
				match = i
				break
			}
		}
	}
	if match < 0 {
		return ult
	}
	occ := occs[match]

	resolved := PathOf(r, occ.Context)
	resolved = append(resolved, types.Child{Value: anchor.Value, Rank: occ.Rank, ID: anchor.ID})
	return append(resolved, ult[1:]...)
}

// PathOf turns a context into a path by looking up the rank of each element
// in its parent. The root context yields an empty path. When a value occurs
// more than once in a child list the first occurrence wins.
func PathOf(r store.Reader, ctx types.Context) types.Path {
	if ctx.IsRoot() {
		return types.Path{}
	}
	path := make(types.Path, 0, len(ctx)+1)
	parent := types.Context{types.RootToken}
	start := 0
	if ctx[0] == types.EMToken {
		path = append(path, types.Child{Value: types.EMToken})
		parent = types.Context{types.EMToken}
		start = 1
	}
	for _, v := range ctx[start:] {
		c := types.Child{Value: v}
		for _, sib := range store.LookupChildren(r, parent) {
			if keys.Equal(sib.Value, v) {
				c = sib
				break
			}
		}
		path = append(path, c)
		parent = store.ChildContext(parent, v)
	}
	return path
}

// EffectiveContext returns the context an edit at path applies to: the
// second-to-last chain link when the parent is in context view, otherwise
// the real parent of path.
func EffectiveContext(r store.Reader, v Views, path types.Path) types.Context {
	chain := SplitChain(v, path)
	if v.Active(ParentOf(path)) && len(chain) > 1 {
		return ToContext(chain[len(chain)-2])
	}
	resolved := path
	if len(chain) > 1 {
		resolved = ResolveChain(r, chain)
	}
	if len(resolved) > 1 {
		return ParentContext(resolved)
	}
	return types.Context{types.RootToken}
}

// Siblings returns the ordered sibling list of the node at path, including
// the node itself.
func Siblings(r store.Reader, v Views, path types.Path) []types.Child {
	parent := ParentOf(path)
	if len(parent) > 0 && v.Active(parent) {
		return ContextEntries(r, Head(parent).Value)
	}
	return store.LookupChildren(r, EffectiveContext(r, v, path))
}

// Resolve returns the real path of path, following context view chains.
func Resolve(r store.Reader, v Views, path types.Path) types.Path {
	chain := SplitChain(v, path)
	if len(chain) == 1 {
		return path
	}
	return ResolveChain(r, chain)
}
