package store

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/rank"
	"github.com/skridlevsky/thoughtgraph/types"
)

var t0 = time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)

// insert applies InsertChild and fails the test on error.
func insert(t *testing.T, s *Snapshot, ctx types.Context, value string, rnk float64) *Snapshot {
	t.Helper()
	b, err := InsertChild(s, ctx, value, rnk, fmt.Sprintf("%s-%v", value, rnk), t0)
	require.NoError(t, err)
	return s.Apply(b)
}

func TestLookup_Absent(t *testing.T) {
	s := New()
	l, ok := LookupByText(s, "nothing")
	assert.False(t, ok)
	assert.Nil(t, l)
	assert.Nil(t, LookupChildren(s, types.Context{"nothing"}))
	assert.False(t, HasChildren(s, nil))
}

func TestInsertChild(t *testing.T) {
	s := New()
	s = insert(t, s, nil, "Apple", 1)
	s = insert(t, s, nil, "banana", 0)
	s = insert(t, s, types.Context{"fruit"}, "apple", 0)

	t.Run("children sorted by rank", func(t *testing.T) {
		children := LookupChildren(s, nil)
		require.Len(t, children, 2)
		assert.Equal(t, "banana", children[0].Value)
		assert.Equal(t, "Apple", children[1].Value)
	})

	t.Run("root context aliases", func(t *testing.T) {
		assert.Equal(t, LookupChildren(s, nil), LookupChildren(s, types.Context{types.RootToken}))
	})

	t.Run("lexeme aggregates occurrences across contexts", func(t *testing.T) {
		l, ok := LookupByText(s, "APPLE")
		require.True(t, ok)
		assert.Equal(t, "Apple", l.Value, "first literal value is kept")
		require.Len(t, l.Contexts, 2)
		assert.Equal(t, types.Context{types.RootToken}, l.Contexts[0].Context)
		assert.Equal(t, types.Context{"fruit"}, l.Contexts[1].Context)
	})

	t.Run("literal casing kept in child entry", func(t *testing.T) {
		children := LookupChildren(s, types.Context{"Fruit"})
		require.Len(t, children, 1)
		assert.Equal(t, "apple", children[0].Value)
		assert.Equal(t, "apple-0", children[0].ID)
		assert.Equal(t, t0, children[0].LastUpdated)
	})

	t.Run("version increments", func(t *testing.T) {
		assert.Equal(t, uint64(3), s.Version())
	})

	require.NoError(t, Verify(s))
}

func TestInsertChild_DoesNotMutateSnapshot(t *testing.T) {
	s := insert(t, New(), nil, "a", 0)
	b, err := InsertChild(s, nil, "b", 1, "id", t0)
	require.NoError(t, err)

	assert.Len(t, LookupChildren(s, nil), 1, "computing a batch must not change the snapshot")
	next := s.Apply(b)
	assert.Len(t, LookupChildren(next, nil), 2)
	assert.Len(t, LookupChildren(s, nil), 1, "applying returns a new snapshot")
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	base := New()
	base = insert(t, base, nil, "a", 0)
	base = insert(t, base, types.Context{"a"}, "x", 0)

	tests := []struct {
		name  string
		ctx   types.Context
		value string
		rank  float64
	}{
		{"new thought new context", types.Context{"b"}, "y", 0},
		{"existing lexeme new context", types.Context{"z"}, "x", 3},
		{"existing context", types.Context{"a"}, "w", 1},
		{"root", nil, "c", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ib, err := InsertChild(base, tt.ctx, tt.value, tt.rank, "id", t0)
			require.NoError(t, err)
			inserted := base.Apply(ib)
			require.NoError(t, Verify(inserted))

			rb, err := RemoveChild(inserted, tt.ctx, tt.value, tt.rank, t0)
			require.NoError(t, err)
			restored := inserted.Apply(rb)
			require.NoError(t, Verify(restored))

			assert.Equal(t, base.LexemeCount(), restored.LexemeCount())
			assert.Equal(t, base.ParentCount(), restored.ParentCount())
			base.RangeLexemes(func(k string, l *types.Lexeme) bool {
				got, ok := restored.Lexeme(k)
				require.True(t, ok, "lexeme %q missing", k)
				assert.Equal(t, l.Contexts, got.Contexts)
				return true
			})
			base.RangeParents(func(k string, p *types.Parent) bool {
				got, ok := restored.Parent(k)
				require.True(t, ok, "parent %q missing", k)
				assert.Equal(t, p.Children, got.Children)
				return true
			})
		})
	}
}

func TestRemoveChild_Absent(t *testing.T) {
	s := insert(t, New(), nil, "a", 0)
	b, err := RemoveChild(s, nil, "missing", 0, t0)
	require.NoError(t, err)
	assert.True(t, b.Empty())
}

func TestConsistencyFault(t *testing.T) {
	s := insert(t, New(), nil, "a", 0)

	// Corrupt: drop the context index record while keeping the lexeme.
	corrupt := NewBatch()
	corrupt.Parents[keys.Context(nil)] = nil
	broken := s.Apply(corrupt)

	t.Run("remove", func(t *testing.T) {
		_, err := RemoveChild(broken, nil, "a", 0, t0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConsistencyFault))
		var fault *ConsistencyFault
		require.True(t, errors.As(err, &fault))
		assert.True(t, fault.InContentIndex)
		assert.False(t, fault.InContextIndex)
	})

	t.Run("insert", func(t *testing.T) {
		_, err := InsertChild(broken, nil, "a", 0, "id", t0)
		assert.ErrorIs(t, err, ErrConsistencyFault)
	})

	t.Run("duplicate edge is not a fault", func(t *testing.T) {
		_, err := InsertChild(s, nil, "A", 0, "id", t0)
		assert.ErrorIs(t, err, ErrDuplicateEdge)
		assert.NotErrorIs(t, err, ErrConsistencyFault)
	})

	t.Run("verify", func(t *testing.T) {
		err := Verify(broken)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConsistencyFault)
	})
}

func TestPolicy(t *testing.T) {
	s := New()
	s = insert(t, s, nil, "locked", 0)
	s = insert(t, s, types.Context{"locked"}, "child", 0)
	s = insert(t, s, types.Context{"locked"}, MetaReadOnly, 1)
	s = insert(t, s, nil, "closed", 1)
	s = insert(t, s, types.Context{"closed"}, "child", 0)
	s = insert(t, s, types.Context{"closed"}, MetaUnextendable, 1)

	assert.Equal(t, Flags{ReadOnly: true}, Meta(s, types.Context{"locked"}))
	assert.Equal(t, Flags{Unextendable: true}, Meta(s, types.Context{"closed"}))

	t.Run("insert under read-only", func(t *testing.T) {
		_, err := InsertChild(s, types.Context{"locked"}, "new", 2, "id", t0)
		var pv *PolicyViolation
		require.ErrorAs(t, err, &pv)
		assert.Equal(t, MetaReadOnly, pv.Attribute)
		assert.ErrorIs(t, err, ErrPolicyViolation)
		assert.Equal(t, `"locked" is read-only. No subthoughts may be added.`, err.Error())
	})

	t.Run("insert under unextendable", func(t *testing.T) {
		_, err := InsertChild(s, types.Context{"closed"}, "new", 2, "id", t0)
		assert.ErrorIs(t, err, ErrPolicyViolation)
		assert.Contains(t, err.Error(), "unextendable")
	})

	t.Run("remove under read-only", func(t *testing.T) {
		_, err := RemoveChild(s, types.Context{"locked"}, "child", 0, t0)
		assert.ErrorIs(t, err, ErrPolicyViolation)
	})

	t.Run("remove under unextendable", func(t *testing.T) {
		_, err := RemoveChild(s, types.Context{"closed"}, "child", 0, t0)
		assert.NoError(t, err)
	})

	t.Run("meta attributes bypass gate", func(t *testing.T) {
		_, err := InsertChild(s, types.Context{"locked"}, MetaUnextendable, 2, "id", t0)
		assert.NoError(t, err)
	})

	t.Run("subtree removal stops at read-only descendants", func(t *testing.T) {
		_, err := RemoveSubtree(s, nil, "locked", 0, t0)
		assert.ErrorIs(t, err, ErrPolicyViolation)
	})
}

func TestReplaceEmptyDestination(t *testing.T) {
	s := New()
	s = insert(t, s, nil, "a", 0)
	s = insert(t, s, nil, "", 1)

	b, err := ReplaceEmptyDestination(s, nil, 1, t0)
	require.NoError(t, err)
	next := s.Apply(b)
	require.NoError(t, Verify(next))

	children := LookupChildren(next, nil)
	require.Len(t, children, 1)
	assert.Equal(t, "a", children[0].Value)
	_, ok := LookupByText(next, "")
	assert.False(t, ok, "empty lexeme removed with its last occurrence")

	t.Run("placeholder with children kept", func(t *testing.T) {
		withChild := insert(t, s, types.Context{""}, "kid", 0)
		b, err := ReplaceEmptyDestination(withChild, nil, 1, t0)
		require.NoError(t, err)
		assert.True(t, b.Empty())
	})

	t.Run("non-empty destination kept", func(t *testing.T) {
		b, err := ReplaceEmptyDestination(s, nil, 0, t0)
		require.NoError(t, err)
		assert.True(t, b.Empty())
	})
}

func TestRemoveSubtree(t *testing.T) {
	s := New()
	s = insert(t, s, nil, "a", 0)
	s = insert(t, s, types.Context{"a"}, "a1", 0)
	s = insert(t, s, types.Context{"a", "a1"}, "a11", 0)
	s = insert(t, s, nil, "b", 1)
	s = insert(t, s, types.Context{"b"}, "a1", 0)

	b, err := RemoveSubtree(s, nil, "a", 0, t0)
	require.NoError(t, err)
	next := s.Apply(b)
	require.NoError(t, Verify(next))

	assert.False(t, HasChildren(next, types.Context{"a"}))
	assert.False(t, HasChildren(next, types.Context{"a", "a1"}))
	_, ok := LookupByText(next, "a11")
	assert.False(t, ok)

	l, ok := LookupByText(next, "a1")
	require.True(t, ok, "a1 still occurs under b")
	assert.Len(t, l.Contexts, 1)
}

func TestMoveChild(t *testing.T) {
	s := New()
	s = insert(t, s, nil, "a", 0)
	s = insert(t, s, types.Context{"a"}, "x", 0)
	s = insert(t, s, types.Context{"a", "x"}, "x1", 0)
	s = insert(t, s, nil, "b", 1)

	t.Run("to another context carries descendants", func(t *testing.T) {
		b, err := MoveChild(s, types.Context{"a"}, types.Context{"b"}, "x", 0, 0, t0)
		require.NoError(t, err)
		next := s.Apply(b)
		require.NoError(t, Verify(next))

		assert.False(t, HasChildren(next, types.Context{"a"}))
		children := LookupChildren(next, types.Context{"b"})
		require.Len(t, children, 1)
		assert.Equal(t, "x-0", children[0].ID, "id preserved")
		assert.Len(t, LookupChildren(next, types.Context{"b", "x"}), 1)
		assert.False(t, HasChildren(next, types.Context{"a", "x"}))
	})

	t.Run("reorder within context", func(t *testing.T) {
		b, err := MoveChild(s, nil, nil, "a", 0, 2, t0)
		require.NoError(t, err)
		next := s.Apply(b)
		require.NoError(t, Verify(next))
		children := LookupChildren(next, nil)
		require.Len(t, children, 2)
		assert.Equal(t, "b", children[0].Value)
		assert.Equal(t, "a", children[1].Value)
		assert.Len(t, LookupChildren(next, types.Context{"a"}), 1, "same context keeps children")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := MoveChild(s, nil, nil, "zzz", 0, 2, t0)
		assert.ErrorIs(t, err, ErrChildNotFound)
	})
}

func TestMoveChild_SameValueSiblingKeepsSubtree(t *testing.T) {
	s := New()
	s = insert(t, s, nil, "x", 0)
	s = insert(t, s, nil, "x", 1)
	s = insert(t, s, types.Context{"x"}, "kid", 0)
	s = insert(t, s, nil, "dest", 2)

	b, err := MoveChild(s, nil, types.Context{"dest"}, "x", 0, 0, t0)
	require.NoError(t, err)
	next := s.Apply(b)
	require.NoError(t, Verify(next))

	kept := LookupChildren(next, types.Context{"x"})
	require.Len(t, kept, 1, "x@1 still shows its children")
	assert.Equal(t, "kid", kept[0].Value)

	moved := LookupChildren(next, types.Context{"dest", "x"})
	require.Len(t, moved, 1)
	assert.Equal(t, "kid", moved[0].Value)

	l, ok := LookupByText(next, "kid")
	require.True(t, ok)
	assert.Len(t, l.Contexts, 2)
}

func TestMoveChild_IgnoresGatesOfMovedSubtree(t *testing.T) {
	tests := []struct {
		name     string
		children []string
	}{
		{"flag sorts last", []string{"c1", MetaUnextendable}},
		{"flag sorts first", []string{MetaUnextendable, "c1"}},
		{"readonly thought", []string{MetaReadOnly, "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s = insert(t, s, nil, "a", 0)
			s = insert(t, s, nil, "b", 1)
			s = insert(t, s, types.Context{"a"}, "x", 0)
			// Flags go in last so they do not gate building the fixture.
			for _, meta := range []bool{false, true} {
				for i, v := range tt.children {
					if IsMeta(v) == meta {
						s = insert(t, s, types.Context{"a", "x"}, v, float64(i))
					}
				}
			}

			b, err := MoveChild(s, types.Context{"a"}, types.Context{"b"}, "x", 0, 0, t0)
			require.NoError(t, err)
			next := s.Apply(b)
			require.NoError(t, Verify(next))

			got := LookupChildren(next, types.Context{"b", "x"})
			require.Len(t, got, len(tt.children))
			for i, v := range tt.children {
				assert.Equal(t, v, got[i].Value)
			}
			assert.False(t, HasChildren(next, types.Context{"a", "x"}))
		})
	}
}

func TestRankFor_Renumber(t *testing.T) {
	lo := 1.0
	hi := 1.0000000000000002 // next float64 after 1
	s := New()
	s = insert(t, s, nil, "a", lo)
	s = insert(t, s, nil, "b", hi)
	s = insert(t, s, types.Context{"elsewhere"}, "b", hi)

	r, b := RankFor(s, nil, rank.Intent{Mode: rank.After, Target: lo}, t0)
	require.False(t, b.Empty(), "precision exhaustion renumbers")
	staged := Stage(s, b)

	ib, err := InsertChild(staged, nil, "new", r, "id", t0)
	require.NoError(t, err)
	next := s.Apply(b.Merge(ib))
	require.NoError(t, Verify(next))

	children := LookupChildren(next, nil)
	require.Len(t, children, 3)
	assert.Equal(t, []string{"a", "new", "b"}, []string{children[0].Value, children[1].Value, children[2].Value})

	l, _ := LookupByText(next, "b")
	for _, occ := range l.Contexts {
		if occ.Context[0] == "elsewhere" {
			assert.Equal(t, hi, occ.Rank, "other contexts untouched")
		}
	}
}

func TestRankFor_NoRenumber(t *testing.T) {
	s := insert(t, New(), nil, "a", 0)
	r, b := RankFor(s, nil, rank.Intent{Mode: rank.Last}, t0)
	assert.Equal(t, 1.0, r)
	assert.True(t, b.Empty())
}

func TestStage(t *testing.T) {
	s := insert(t, New(), nil, "a", 0)
	b := NewBatch()
	staged := Stage(s, b)

	ib, err := InsertChild(staged, nil, "b", 1, "id", t0)
	require.NoError(t, err)
	b.Merge(ib)
	assert.Len(t, LookupChildren(staged, nil), 2, "staged reader sees pending writes")

	rb, err := RemoveChild(staged, nil, "a", 0, t0)
	require.NoError(t, err)
	b.Merge(rb)
	_, ok := staged.Lexeme(keys.Thought("a"))
	assert.False(t, ok, "deletions hide base records")
	assert.Len(t, LookupChildren(s, nil), 1, "base untouched")
}

// Random insert/remove sequences keep both indexes mirrored.
func TestInvariant_RandomBatches(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := []string{"a", "B", "c", "A", "d", ""}
	contexts := []types.Context{nil, {"a"}, {"b"}, {"a", "c"}}

	type edge struct {
		ctx   types.Context
		value string
		rank  float64
	}
	var live []edge

	s := New()
	for i := 0; i < 400; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(live))
			e := live[j]
			b, err := RemoveChild(s, e.ctx, e.value, e.rank, t0)
			require.NoError(t, err)
			s = s.Apply(b)
			live = append(live[:j], live[j+1:]...)
		} else {
			ctx := contexts[rng.Intn(len(contexts))]
			value := values[rng.Intn(len(values))]
			r, rb := RankFor(s, ctx, rank.Intent{Mode: rank.Last}, t0)
			ib, err := InsertChild(Stage(s, rb), ctx, value, r, "id", t0)
			require.NoError(t, err)
			s = s.Apply(rb.Merge(ib))
			live = append(live, edge{ctx, value, r})
		}
		require.NoError(t, Verify(s), "step %d", i)
	}
}
