// Package rank allocates fractional sibling ranks.
//
// A new rank always sorts strictly between its intended neighbours without
// touching existing siblings. Only when float precision between two
// neighbours is exhausted is the whole sibling set renumbered.
package rank

import "sort"

// Mode is an insertion intent relative to a sibling set.
type Mode int

const (
	// First places the new rank before every sibling.
	First Mode = iota
	// Last places the new rank after every sibling.
	Last
	// Before places the new rank immediately before Target.
	Before
	// After places the new rank immediately after Target.
	After
)

func (m Mode) String() string {
	switch m {
	case First:
		return "first"
	case Last:
		return "last"
	case Before:
		return "before"
	case After:
		return "after"
	}
	return "unknown"
}

// Intent describes where a new sibling should go.
type Intent struct {
	Mode   Mode
	Target float64
}

// Allocation is the result of Allocate.
type Allocation struct {
	Rank float64
	// Renumbered holds the new ranks of the ascending-sorted input siblings
	// when the set had to be renumbered, nil otherwise.
	Renumbered []float64
}

// Allocate returns a rank for a new sibling given the current ranks of the
// sibling set (any order).
func Allocate(siblings []float64, in Intent) Allocation {
	sorted := make([]float64, len(siblings))
	copy(sorted, siblings)
	sort.Float64s(sorted)

	switch in.Mode {
	case First:
		if len(sorted) == 0 {
			return Allocation{Rank: 0}
		}
		return Allocation{Rank: sorted[0] - 1}

	case Last:
		if len(sorted) == 0 {
			return Allocation{Rank: 0}
		}
		return Allocation{Rank: sorted[len(sorted)-1] + 1}

	case After:
		i := sort.Search(len(sorted), func(i int) bool { return sorted[i] > in.Target })
		if i == len(sorted) {
			return Allocation{Rank: in.Target + 1}
		}
		return between(sorted, in.Target, sorted[i], i)

	case Before:
		i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= in.Target })
		if i == 0 {
			return Allocation{Rank: in.Target - 1}
		}
		return between(sorted, sorted[i-1], in.Target, i)
	}

	return Allocation{Rank: 0}
}

// between places a rank strictly between lo and hi. pos is the number of
// sorted siblings that come before the new rank, used when renumbering.
func between(sorted []float64, lo, hi float64, pos int) Allocation {
	if mid, ok := Between(lo, hi); ok {
		return Allocation{Rank: mid}
	}
	renumbered := make([]float64, len(sorted))
	for i := range renumbered {
		renumbered[i] = float64(i)
	}
	return Allocation{Rank: float64(pos) - 0.5, Renumbered: renumbered}
}

// Between returns the midpoint of lo and hi and whether it is strictly
// between them at float64 precision.
func Between(lo, hi float64) (float64, bool) {
	mid := lo + (hi-lo)/2
	if mid <= lo || mid >= hi {
		return mid, false
	}
	return mid, true
}
