package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/rank"
	"github.com/skridlevsky/thoughtgraph/types"
)

// LookupByText returns the Lexeme for the normalized text. Absence is not an
// error.
func LookupByText(r Reader, text string) (*types.Lexeme, bool) {
	return r.Lexeme(keys.Thought(text))
}

// LookupChildren returns a copy of the children of ctx sorted by rank, or
// nil when the context has none.
func LookupChildren(r Reader, ctx types.Context) []types.Child {
	p, ok := r.Parent(keys.Context(ctx))
	if !ok || len(p.Children) == 0 {
		return nil
	}
	out := make([]types.Child, len(p.Children))
	copy(out, p.Children)
	sortChildren(out)
	return out
}

// HasChildren reports whether ctx has at least one child.
func HasChildren(r Reader, ctx types.Context) bool {
	p, ok := r.Parent(keys.Context(ctx))
	return ok && len(p.Children) > 0
}

// InsertChild computes the batch that adds value at rank under ctx to both
// indexes.
func InsertChild(r Reader, ctx types.Context, value string, rnk float64, id string, at time.Time) (*Batch, error) {
	ctx = ctx.Rooted()
	if err := checkInsert(r, ctx, value); err != nil {
		return nil, err
	}
	return insertEdge(r, ctx, value, rnk, id, at)
}

// insertEdge adds the edge to both indexes without consulting meta gates.
// ctx must be rooted.
func insertEdge(r Reader, ctx types.Context, value string, rnk float64, id string, at time.Time) (*Batch, error) {
	ck, tk := keys.Context(ctx), keys.Thought(value)
	parent, _ := r.Parent(ck)
	lexeme, _ := r.Lexeme(tk)

	inParent := childIndex(parent, tk, rnk) >= 0
	inLexeme := occurrenceIndex(lexeme, ck, rnk) >= 0
	if inParent && inLexeme {
		return nil, fmt.Errorf("insert %q at rank %v: %w", value, rnk, ErrDuplicateEdge)
	}
	if inParent || inLexeme {
		return nil, &ConsistencyFault{
			Op: "insert", Context: ctx, Value: value, Rank: rnk,
			InContentIndex: inLexeme, InContextIndex: inParent,
		}
	}

	child := types.Child{Value: value, Rank: rnk, ID: id, LastUpdated: at}

	newParent := &types.Parent{Context: ctx.Clone(), LastUpdated: at}
	if parent != nil {
		newParent.Children = make([]types.Child, 0, len(parent.Children)+1)
		newParent.Children = append(newParent.Children, parent.Children...)
	}
	newParent.Children = append(newParent.Children, child)
	sortChildren(newParent.Children)

	newLexeme := &types.Lexeme{Value: value, Created: at, LastUpdated: at}
	if lexeme != nil {
		newLexeme.Value = lexeme.Value
		newLexeme.Created = lexeme.Created
		newLexeme.Contexts = make([]types.Occurrence, 0, len(lexeme.Contexts)+1)
		newLexeme.Contexts = append(newLexeme.Contexts, lexeme.Contexts...)
	}
	newLexeme.Contexts = append(newLexeme.Contexts, types.Occurrence{Context: ctx.Clone(), Rank: rnk})

	b := NewBatch()
	b.Parents[ck] = newParent
	b.Lexemes[tk] = newLexeme
	return b, nil
}

// RemoveChild computes the batch that removes value at rank from ctx in both
// indexes. Removing an edge that exists in neither index yields an empty
// batch.
func RemoveChild(r Reader, ctx types.Context, value string, rnk float64, at time.Time) (*Batch, error) {
	ctx = ctx.Rooted()
	if err := checkRemove(r, ctx, value); err != nil {
		return nil, err
	}
	return removeEdge(r, ctx, value, rnk, at)
}

// removeEdge removes the edge from both indexes without consulting meta
// gates. ctx must be rooted.
func removeEdge(r Reader, ctx types.Context, value string, rnk float64, at time.Time) (*Batch, error) {
	ck, tk := keys.Context(ctx), keys.Thought(value)
	parent, _ := r.Parent(ck)
	lexeme, _ := r.Lexeme(tk)

	ci := childIndex(parent, tk, rnk)
	oi := occurrenceIndex(lexeme, ck, rnk)
	if ci < 0 && oi < 0 {
		return NewBatch(), nil
	}
	if ci < 0 || oi < 0 {
		return nil, &ConsistencyFault{
			Op: "remove", Context: ctx, Value: value, Rank: rnk,
			InContentIndex: oi >= 0, InContextIndex: ci >= 0,
		}
	}

	b := NewBatch()

	if len(parent.Children) == 1 {
		b.Parents[ck] = nil
	} else {
		children := make([]types.Child, 0, len(parent.Children)-1)
		children = append(children, parent.Children[:ci]...)
		children = append(children, parent.Children[ci+1:]...)
		b.Parents[ck] = &types.Parent{Context: parent.Context, Children: children, LastUpdated: at}
	}

	if len(lexeme.Contexts) == 1 {
		b.Lexemes[tk] = nil
	} else {
		contexts := make([]types.Occurrence, 0, len(lexeme.Contexts)-1)
		contexts = append(contexts, lexeme.Contexts[:oi]...)
		contexts = append(contexts, lexeme.Contexts[oi+1:]...)
		b.Lexemes[tk] = &types.Lexeme{
			Value:       lexeme.Value,
			Contexts:    contexts,
			Created:     lexeme.Created,
			LastUpdated: at,
		}
	}

	return b, nil
}

// RemoveSubtree removes value at rank from ctx together with every
// descendant that is only reachable through it.
func RemoveSubtree(r Reader, ctx types.Context, value string, rnk float64, at time.Time) (*Batch, error) {
	ctx = ctx.Rooted()
	b, err := RemoveChild(r, ctx, value, rnk, at)
	if err != nil || b.Empty() {
		return b, err
	}

	// Siblings with the same value share the child context; keep it while one
	// of them remains.
	staged := Stage(r, b)
	tk := keys.Thought(value)
	for _, c := range LookupChildren(staged, ctx) {
		if keys.Thought(c.Value) == tk {
			return b, nil
		}
	}

	sub := ChildContext(ctx, value)
	if Meta(staged, sub).ReadOnly {
		return nil, &PolicyViolation{Attribute: MetaReadOnly, Context: sub, Remove: true}
	}
	for _, c := range LookupChildren(staged, sub) {
		cb, err := RemoveSubtree(staged, sub, c.Value, c.Rank, at)
		if err != nil {
			return nil, fmt.Errorf("remove descendant %q: %w", c.Value, err)
		}
		b.Merge(cb)
	}
	return b, nil
}

// ReplaceEmptyDestination removes an empty placeholder thought at rank
// under ctx so imported content can take its place. A placeholder that has
// children, or a non-empty thought, is left alone.
func ReplaceEmptyDestination(r Reader, ctx types.Context, emptyChildRank float64, at time.Time) (*Batch, error) {
	ctx = ctx.Rooted()
	parent, _ := r.Parent(keys.Context(ctx))
	if childIndex(parent, "", emptyChildRank) < 0 {
		return NewBatch(), nil
	}
	if HasChildren(r, ChildContext(ctx, "")) {
		return NewBatch(), nil
	}
	return RemoveChild(r, ctx, "", emptyChildRank, at)
}

// MoveChild moves value from one (context, rank) to another in one batch,
// keeping its id. Descendants follow when the context changes.
func MoveChild(r Reader, from, to types.Context, value string, fromRank, toRank float64, at time.Time) (*Batch, error) {
	from, to = from.Rooted(), to.Rooted()

	parent, _ := r.Parent(keys.Context(from))
	ci := childIndex(parent, keys.Thought(value), fromRank)
	if ci < 0 {
		return nil, fmt.Errorf("move %q: %w", value, ErrChildNotFound)
	}
	child := parent.Children[ci]

	b, err := RemoveChild(r, from, child.Value, fromRank, at)
	if err != nil {
		return nil, err
	}
	ib, err := InsertChild(Stage(r, b), to, child.Value, toRank, child.ID, at)
	if err != nil {
		return nil, err
	}
	b.Merge(ib)

	if keys.EqualContext(from, to) {
		return b, nil
	}

	// Siblings with the same value share one child context. While one of them
	// stays in from, the moved thought takes a copy of the subtree.
	staged := Stage(r, b)
	keep := false
	for _, c := range LookupChildren(staged, from) {
		if keys.Equal(c.Value, child.Value) {
			keep = true
			break
		}
	}

	db, err := moveDescendants(staged, ChildContext(from, child.Value), ChildContext(to, child.Value), keep, at)
	if err != nil {
		return nil, err
	}
	return b.Merge(db), nil
}

// moveDescendants re-homes every child of src (recursively) under dst,
// keeping ranks and ids. With keep set, src keeps its children and dst gets
// a copy. Meta gates do not apply to a subtree that only changes parent. An
// edge already present under dst is left as is.
func moveDescendants(r Reader, src, dst types.Context, keep bool, at time.Time) (*Batch, error) {
	b := NewBatch()
	for _, c := range LookupChildren(r, src) {
		if !keep {
			rb, err := removeEdge(Stage(r, b), src, c.Value, c.Rank, at)
			if err != nil {
				return nil, err
			}
			b.Merge(rb)
		}
		ib, err := insertEdge(Stage(r, b), dst, c.Value, c.Rank, c.ID, at)
		switch {
		case errors.Is(err, ErrDuplicateEdge):
		case err != nil:
			return nil, err
		default:
			b.Merge(ib)
		}
		db, err := moveDescendants(Stage(r, b), ChildContext(src, c.Value), ChildContext(dst, c.Value), keep, at)
		if err != nil {
			return nil, err
		}
		b.Merge(db)
	}
	return b, nil
}

// RankFor allocates a rank in ctx for the given intent. When the allocator
// had to renumber the sibling set, the returned batch rewrites every
// sibling's rank in both indexes; otherwise it is empty.
func RankFor(r Reader, ctx types.Context, in rank.Intent, at time.Time) (float64, *Batch) {
	ctx = ctx.Rooted()
	children := LookupChildren(r, ctx)
	ranks := make([]float64, len(children))
	for i, c := range children {
		ranks[i] = c.Rank
	}

	alloc := rank.Allocate(ranks, in)
	if alloc.Renumbered == nil {
		return alloc.Rank, NewBatch()
	}
	return alloc.Rank, renumber(r, ctx, children, alloc.Renumbered, at)
}

// MakeRoom renumbers the siblings of ctx to consecutive integers, leaving n
// free ranks before the first sibling ranked at or above rnk. It returns the
// first free rank; the free ranks are that value and the n-1 integers after
// it.
func MakeRoom(r Reader, ctx types.Context, rnk float64, n int, at time.Time) (float64, *Batch) {
	ctx = ctx.Rooted()
	children := LookupChildren(r, ctx)
	pos := sort.Search(len(children), func(i int) bool { return children[i].Rank >= rnk })
	newRanks := make([]float64, len(children))
	for i := range newRanks {
		newRanks[i] = float64(i)
		if i >= pos {
			newRanks[i] += float64(n)
		}
	}
	if len(children) == 0 {
		return float64(pos), NewBatch()
	}
	return float64(pos), renumber(r, ctx, children, newRanks, at)
}

// renumber rewrites sibling ranks. children are sorted; newRanks is aligned
// with them.
func renumber(r Reader, ctx types.Context, children []types.Child, newRanks []float64, at time.Time) *Batch {
	ck := keys.Context(ctx)
	b := NewBatch()

	type change struct {
		old, new float64
		used     bool
	}
	changes := make(map[string][]*change)

	updated := make([]types.Child, len(children))
	for i, c := range children {
		tk := keys.Thought(c.Value)
		changes[tk] = append(changes[tk], &change{old: c.Rank, new: newRanks[i]})
		c.Rank = newRanks[i]
		c.LastUpdated = at
		updated[i] = c
	}
	b.Parents[ck] = &types.Parent{Context: ctx.Clone(), Children: updated, LastUpdated: at}

	for tk, cs := range changes {
		lexeme, ok := r.Lexeme(tk)
		if !ok {
			continue
		}
		contexts := make([]types.Occurrence, len(lexeme.Contexts))
		for i, occ := range lexeme.Contexts {
			contexts[i] = occ
			if keys.Context(occ.Context) != ck {
				continue
			}
			for _, c := range cs {
				if !c.used && c.old == occ.Rank {
					contexts[i].Rank = c.new
					c.used = true
					break
				}
			}
		}
		b.Lexemes[tk] = &types.Lexeme{
			Value:       lexeme.Value,
			Contexts:    contexts,
			Created:     lexeme.Created,
			LastUpdated: at,
		}
	}
	return b
}

// ChildContext returns the context holding the children of value placed
// under ctx. Children of top-level thoughts live at [value].
func ChildContext(ctx types.Context, value string) types.Context {
	if ctx.IsRoot() {
		return types.Context{value}
	}
	return ctx.Append(value)
}

func childIndex(p *types.Parent, thoughtKey string, rnk float64) int {
	if p == nil {
		return -1
	}
	for i, c := range p.Children {
		if c.Rank == rnk && keys.Thought(c.Value) == thoughtKey {
			return i
		}
	}
	return -1
}

func occurrenceIndex(l *types.Lexeme, contextKey string, rnk float64) int {
	if l == nil {
		return -1
	}
	for i, occ := range l.Contexts {
		if occ.Rank == rnk && keys.Context(occ.Context) == contextKey {
			return i
		}
	}
	return -1
}

func sortChildren(children []types.Child) {
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].Rank < children[j].Rank
	})
}
