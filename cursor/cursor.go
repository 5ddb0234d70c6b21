// Package cursor moves the cursor between siblings. Moves are computed, not
// performed: each function returns the new cursor and whether it changed,
// and the caller decides what to do with it.
package cursor

import (
	"github.com/skridlevsky/thoughtgraph/resolve"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Move is the result of a cursor computation.
type Move struct {
	Path    types.Path
	Changed bool
}

// Next moves to the sibling with the next higher rank. Without a cursor it
// selects the first top-level thought. At the last sibling the cursor stays.
func Next(r store.Reader, v resolve.Views, cur types.Path) Move {
	if len(cur) == 0 {
		return seed(r)
	}
	head := resolve.Head(cur)
	for _, sib := range resolve.Siblings(r, v, cur) {
		if sib.Rank > head.Rank {
			return Move{Path: resolve.Join(resolve.ParentOf(cur), sib), Changed: true}
		}
	}
	return Move{Path: cur}
}

// Prev moves to the sibling with the next lower rank. Without a cursor it
// selects the first top-level thought. At the first sibling the cursor stays.
func Prev(r store.Reader, v resolve.Views, cur types.Path) Move {
	if len(cur) == 0 {
		return seed(r)
	}
	head := resolve.Head(cur)
	sibs := resolve.Siblings(r, v, cur)
	for i := len(sibs) - 1; i >= 0; i-- {
		if sibs[i].Rank < head.Rank {
			return Move{Path: resolve.Join(resolve.ParentOf(cur), sibs[i]), Changed: true}
		}
	}
	return Move{Path: cur}
}

func seed(r store.Reader) Move {
	children := store.LookupChildren(r, nil)
	if len(children) == 0 {
		return Move{}
	}
	return Move{Path: types.Path{children[0]}, Changed: true}
}
