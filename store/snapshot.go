// Package store holds the dual-index document model: a content index
// (normalized thought text → Lexeme) and a context index (normalized context
// → Parent). Every mutation is computed as a Batch against an immutable
// Reader and applied by the caller in one step, so the two indexes only ever
// change together.
package store

import (
	"github.com/skridlevsky/thoughtgraph/types"
)

// Reader is read access to both indexes. Records returned by a Reader are
// shared and must not be modified.
type Reader interface {
	Lexeme(key string) (*types.Lexeme, bool)
	Parent(key string) (*types.Parent, bool)
}

// Snapshot is an immutable, versioned view of both indexes.
type Snapshot struct {
	version uint64
	lexemes map[string]*types.Lexeme
	parents map[string]*types.Parent
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		lexemes: make(map[string]*types.Lexeme),
		parents: make(map[string]*types.Parent),
	}
}

// FromRecords builds a snapshot from already-keyed records, e.g. when
// loading from persistent storage. The maps are taken over by the snapshot.
func FromRecords(version uint64, lexemes map[string]*types.Lexeme, parents map[string]*types.Parent) *Snapshot {
	if lexemes == nil {
		lexemes = make(map[string]*types.Lexeme)
	}
	if parents == nil {
		parents = make(map[string]*types.Parent)
	}
	return &Snapshot{version: version, lexemes: lexemes, parents: parents}
}

// Version increases by one with every applied non-empty batch.
func (s *Snapshot) Version() uint64 { return s.version }

func (s *Snapshot) Lexeme(key string) (*types.Lexeme, bool) {
	l, ok := s.lexemes[key]
	return l, ok
}

func (s *Snapshot) Parent(key string) (*types.Parent, bool) {
	p, ok := s.parents[key]
	return p, ok
}

// LexemeCount returns the number of records in the content index.
func (s *Snapshot) LexemeCount() int { return len(s.lexemes) }

// ParentCount returns the number of records in the context index.
func (s *Snapshot) ParentCount() int { return len(s.parents) }

// RangeLexemes calls fn for every content-index record until fn returns false.
func (s *Snapshot) RangeLexemes(fn func(key string, l *types.Lexeme) bool) {
	for k, l := range s.lexemes {
		if !fn(k, l) {
			return
		}
	}
}

// RangeParents calls fn for every context-index record until fn returns false.
func (s *Snapshot) RangeParents(fn func(key string, p *types.Parent) bool) {
	for k, p := range s.parents {
		if !fn(k, p) {
			return
		}
	}
}

// Apply returns a new snapshot with the batch applied. The receiver is left
// untouched; both index maps are replaced wholesale.
func (s *Snapshot) Apply(b *Batch) *Snapshot {
	if b.Empty() {
		return s
	}

	lexemes := make(map[string]*types.Lexeme, len(s.lexemes)+len(b.Lexemes))
	for k, v := range s.lexemes {
		lexemes[k] = v
	}
	for k, v := range b.Lexemes {
		if v == nil {
			delete(lexemes, k)
		} else {
			lexemes[k] = v
		}
	}

	parents := make(map[string]*types.Parent, len(s.parents)+len(b.Parents))
	for k, v := range s.parents {
		parents[k] = v
	}
	for k, v := range b.Parents {
		if v == nil {
			delete(parents, k)
		} else {
			parents[k] = v
		}
	}

	return &Snapshot{version: s.version + 1, lexemes: lexemes, parents: parents}
}

// Batch is a set of index updates keyed like the indexes. A nil record means
// the key is deleted.
type Batch struct {
	Lexemes map[string]*types.Lexeme
	Parents map[string]*types.Parent
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{
		Lexemes: make(map[string]*types.Lexeme),
		Parents: make(map[string]*types.Parent),
	}
}

// Empty reports whether the batch changes nothing.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Lexemes) == 0 && len(b.Parents) == 0)
}

// Len returns the number of touched keys.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Lexemes) + len(b.Parents)
}

// Merge folds other into b; entries in other win. It returns b.
func (b *Batch) Merge(other *Batch) *Batch {
	if other == nil {
		return b
	}
	for k, v := range other.Lexemes {
		b.Lexemes[k] = v
	}
	for k, v := range other.Parents {
		b.Parents[k] = v
	}
	return b
}

// staged reads through a pending batch before falling back to its base.
type staged struct {
	base  Reader
	batch *Batch
}

// Stage returns a Reader that sees batch applied over base without
// materializing a new snapshot. The batch may keep growing; the Reader
// always reflects its current contents.
func Stage(base Reader, batch *Batch) Reader {
	return &staged{base: base, batch: batch}
}

func (s *staged) Lexeme(key string) (*types.Lexeme, bool) {
	if l, ok := s.batch.Lexemes[key]; ok {
		return l, l != nil
	}
	return s.base.Lexeme(key)
}

func (s *staged) Parent(key string) (*types.Parent, bool) {
	if p, ok := s.batch.Parents[key]; ok {
		return p, p != nil
	}
	return s.base.Parent(key)
}
