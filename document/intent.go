package document

import (
	"github.com/skridlevsky/thoughtgraph/rank"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Intent is an edit or navigation request handled by Document.Dispatch.
// The set of intents is closed.
type Intent interface {
	intent()
}

// InsertChild adds Value under Context at Rank. With Append set the rank is
// allocated after the last existing child instead.
type InsertChild struct {
	Context types.Context
	Value   string
	Rank    float64
	Append  bool
}

// RemoveChild removes Value at Rank from Context. Recursive also removes
// descendants that are no longer reachable.
type RemoveChild struct {
	Context   types.Context
	Value     string
	Rank      float64
	Recursive bool
}

// MoveThought moves the thought at From. With Mode Before or After it
// becomes a sibling of To; with First or Last it becomes a child of To
// (nil To is the root).
type MoveThought struct {
	From types.Path
	To   types.Path
	Mode rank.Mode
}

// Placement says where NewThought puts the new thought relative to At.
type Placement int

const (
	PlaceAfter Placement = iota
	PlaceBefore
	PlaceSubthought
)

func (p Placement) String() string {
	switch p {
	case PlaceAfter:
		return "after"
	case PlaceBefore:
		return "before"
	case PlaceSubthought:
		return "subthought"
	}
	return "unknown"
}

// NewThought creates Value next to, or under, the thought at At (the cursor
// when At is nil) and moves the cursor to it.
type NewThought struct {
	At        types.Path
	Value     string
	Placement Placement
}

// Import grafts Blocks after Destination (the cursor when nil, the root
// when there is no cursor) and moves the cursor to the last top-level
// block.
type Import struct {
	Destination types.Path
	Blocks      []types.Block
	SkipRoot    bool
}

// Direction of a cursor move.
type Direction int

const (
	Next Direction = iota
	Prev
)

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// MoveCursor moves the cursor to the adjacent sibling.
type MoveCursor struct {
	Direction Direction
}

// SetCursor places the cursor. A nil Path clears it.
type SetCursor struct {
	Path types.Path
}

// ToggleContextView flips the context view of the thought at Path (the
// cursor when nil).
type ToggleContextView struct {
	Path types.Path
}

func (InsertChild) intent()       {}
func (RemoveChild) intent()       {}
func (MoveThought) intent()       {}
func (NewThought) intent()        {}
func (Import) intent()            {}
func (MoveCursor) intent()        {}
func (SetCursor) intent()         {}
func (ToggleContextView) intent() {}
