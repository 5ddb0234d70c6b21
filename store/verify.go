package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Verify checks the bidirectional invariant of a snapshot: every Lexeme
// occurrence has a matching child entry and every child entry has a matching
// occurrence. It also rejects empty records and unsorted child lists. All
// problems found are joined into the returned error.
func Verify(s *Snapshot) error {
	var errs []error

	s.RangeLexemes(func(tk string, l *types.Lexeme) bool {
		if len(l.Contexts) == 0 {
			errs = append(errs, fmt.Errorf("lexeme %q has no occurrences", l.Value))
		}
		if keys.Thought(l.Value) != tk {
			errs = append(errs, fmt.Errorf("lexeme %q stored under key %q", l.Value, tk))
		}
		for _, occ := range l.Contexts {
			parent, _ := s.Parent(keys.Context(occ.Context))
			if childIndex(parent, tk, occ.Rank) < 0 {
				errs = append(errs, &ConsistencyFault{
					Op: "verify", Context: occ.Context, Value: l.Value, Rank: occ.Rank,
					InContentIndex: true,
				})
			}
		}
		return true
	})

	s.RangeParents(func(ck string, p *types.Parent) bool {
		if len(p.Children) == 0 {
			errs = append(errs, fmt.Errorf("parent %v has no children", p.Context))
		}
		if keys.Context(p.Context) != ck {
			errs = append(errs, fmt.Errorf("parent %v stored under key %q", p.Context, ck))
		}
		if !sort.SliceIsSorted(p.Children, func(i, j int) bool { return p.Children[i].Rank < p.Children[j].Rank }) {
			errs = append(errs, fmt.Errorf("children of %v are not sorted by rank", p.Context))
		}
		for _, c := range p.Children {
			l, _ := s.Lexeme(keys.Thought(c.Value))
			if occurrenceIndex(l, ck, c.Rank) < 0 {
				errs = append(errs, &ConsistencyFault{
					Op: "verify", Context: p.Context, Value: c.Value, Rank: c.Rank,
					InContextIndex: true,
				})
			}
		}
		return true
	})

	return errors.Join(errs...)
}
