package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// fixture builds:
//
//	a
//	  x
//	b
//	  x
//	    z
//	  y
func fixture(t *testing.T) *store.Snapshot {
	t.Helper()
	s := store.New()
	for _, e := range []struct {
		ctx   types.Context
		value string
		rank  float64
	}{
		{nil, "a", 0},
		{nil, "b", 1},
		{types.Context{"a"}, "x", 0},
		{types.Context{"b"}, "x", 0},
		{types.Context{"b"}, "y", 1},
		{types.Context{"b", "x"}, "z", 0},
	} {
		b, err := store.InsertChild(s, e.ctx, e.value, e.rank, e.value, time.Unix(0, 0))
		require.NoError(t, err)
		s = s.Apply(b)
	}
	return s
}

func p(vs ...any) types.Path {
	var out types.Path
	for i := 0; i < len(vs); i += 2 {
		out = append(out, types.Child{Value: vs[i].(string), Rank: float64(vs[i+1].(int))})
	}
	return out
}

func TestToContext(t *testing.T) {
	tests := []struct {
		name string
		path types.Path
		want types.Context
	}{
		{"empty", nil, types.Context{types.RootToken}},
		{"root marker", p(types.RootToken, 0), types.Context{types.RootToken}},
		{"root prefixed", p(types.RootToken, 0, "a", 0), types.Context{"a"}},
		{"plain", p("a", 0, "x", 3), types.Context{"a", "x"}},
		{"meta root kept", p(types.EMToken, 0, "settings", 0), types.Context{types.EMToken, "settings"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToContext(tt.path))
		})
	}
}

func TestParentOf(t *testing.T) {
	path := p("a", 0, "x", 0)
	parent := ParentOf(path)
	assert.Equal(t, p("a", 0), parent)
	assert.Nil(t, ParentOf(p("a", 0)))

	parent[0].Value = "changed"
	assert.Equal(t, "a", path[0].Value, "ParentOf must not alias its input")
}

func TestRootPaths(t *testing.T) {
	assert.True(t, IsRootPath(nil))
	assert.True(t, IsRootPath(p(types.RootToken, 0)))
	assert.False(t, IsRootPath(p("a", 0)))
	assert.True(t, IsMetaRootPath(p(types.EMToken, 0)))
	assert.False(t, IsMetaRootPath(p(types.EMToken, 0, "x", 0)))
}

func TestViews_Toggle(t *testing.T) {
	var v Views
	on := v.Toggle(p("a", 0, "x", 0))
	assert.True(t, on.Active(p("a", 5, "x", 9)), "ranks do not matter")
	assert.False(t, v.Active(p("a", 0, "x", 0)), "original set is unchanged")

	off := on.Toggle(p("a", 0, "x", 0))
	assert.False(t, off.Active(p("a", 0, "x", 0)))
	assert.True(t, on.Active(p("a", 0, "x", 0)))
	assert.False(t, on.Active(nil))
}

func TestSplitChain(t *testing.T) {
	path := p("a", 0, "x", 0, "b", 1, "z", 0)

	t.Run("no views", func(t *testing.T) {
		chain := SplitChain(nil, path)
		require.Len(t, chain, 1)
		assert.Equal(t, path, chain[0])
	})

	t.Run("split after viewed ancestor", func(t *testing.T) {
		v := Views(nil).Toggle(p("a", 0, "x", 0))
		chain := SplitChain(v, path)
		require.Len(t, chain, 2)
		assert.Equal(t, p("a", 0, "x", 0), chain[0])
		assert.Equal(t, p("b", 1, "z", 0), chain[1])
	})

	t.Run("viewed head does not split", func(t *testing.T) {
		v := Views(nil).Toggle(path)
		assert.Len(t, SplitChain(v, path), 1)
	})
}

func TestContextEntries(t *testing.T) {
	s := fixture(t)
	entries := ContextEntries(s, "x")
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Value)
	assert.Equal(t, float64(0), entries[0].Rank)
	assert.Equal(t, "b", entries[1].Value)
	assert.Equal(t, float64(1), entries[1].Rank)

	assert.Nil(t, ContextEntries(s, "missing"))
}

func TestResolveChain(t *testing.T) {
	s := fixture(t)
	v := Views(nil).Toggle(p("a", 0, "x", 0))

	t.Run("into another context", func(t *testing.T) {
		got := Resolve(s, v, p("a", 0, "x", 0, "b", 1, "z", 0))
		assert.Equal(t, types.Context{"b", "x", "z"}, got.Values())
		assert.Equal(t, float64(1), got[0].Rank, "context ranks are looked up")
	})

	t.Run("entry for own context", func(t *testing.T) {
		got := Resolve(s, v, p("a", 0, "x", 0, "a", 0))
		assert.Equal(t, types.Context{"a", "x"}, got.Values())
	})

	t.Run("no views is identity", func(t *testing.T) {
		path := p("b", 1, "y", 1)
		assert.Equal(t, path, Resolve(s, nil, path))
	})
}

func TestEffectiveContext(t *testing.T) {
	s := fixture(t)
	v := Views(nil).Toggle(p("a", 0, "x", 0))

	tests := []struct {
		name  string
		views Views
		path  types.Path
		want  types.Context
	}{
		{"top level", nil, p("a", 0), types.Context{types.RootToken}},
		{"nested", nil, p("b", 1, "y", 1), types.Context{"b"}},
		{"parent in context view", v, p("a", 0, "x", 0, "b", 1), types.Context{"a", "x"}},
		{"below a context view entry", v, p("a", 0, "x", 0, "b", 1, "z", 0), types.Context{"b", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveContext(s, tt.views, tt.path))
		})
	}
}

func TestSiblings(t *testing.T) {
	s := fixture(t)
	v := Views(nil).Toggle(p("a", 0, "x", 0))

	t.Run("real siblings", func(t *testing.T) {
		sibs := Siblings(s, nil, p("b", 1, "y", 1))
		require.Len(t, sibs, 2)
		assert.Equal(t, "x", sibs[0].Value)
		assert.Equal(t, "y", sibs[1].Value)
	})

	t.Run("context view entries", func(t *testing.T) {
		sibs := Siblings(s, v, p("a", 0, "x", 0, "b", 1))
		require.Len(t, sibs, 2)
		assert.Equal(t, "a", sibs[0].Value)
		assert.Equal(t, "b", sibs[1].Value)
	})

	t.Run("top level", func(t *testing.T) {
		sibs := Siblings(s, nil, p("a", 0))
		require.Len(t, sibs, 2)
	})
}
