// Package importer grafts a tree of blocks into the document at a
// destination, computing one batch for the whole import.
package importer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/rank"
	"github.com/skridlevsky/thoughtgraph/resolve"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Options control an import.
type Options struct {
	// SkipRoot drops the first block and promotes its children in its place.
	SkipRoot bool
	// Now stamps created/updated times. Defaults to time.Now.
	Now func() time.Time
	// NewID generates child ids. Defaults to random UUIDs.
	NewID func() string
}

// Result is the outcome of an import.
type Result struct {
	Batch *store.Batch
	// LastTopLevel is the path of the last block inserted at the top level
	// of the import, or nil when nothing was imported.
	LastTopLevel types.Path
}

// Import computes the batch that inserts blocks after dest. An empty
// placeholder at dest is replaced. A destination that is a root marker
// imports at the end of that root's children.
func Import(r store.Reader, v resolve.Views, dest types.Path, blocks []types.Block, opts Options) (Result, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.SkipRoot {
		blocks = SkipRoot(blocks)
	}

	b := store.NewBatch()
	if len(blocks) == 0 {
		return Result{Batch: b}, nil
	}

	imp := &importer{
		staged: store.Stage(r, b),
		batch:  b,
		now:    opts.Now(),
		newID:  opts.NewID,
	}

	var (
		ctx               types.Context
		prefix            types.Path
		rankStart, rankUp float64
	)

	switch {
	case resolve.IsRootPath(dest), resolve.IsMetaRootPath(dest):
		ctx = resolve.ToContext(dest)
		if resolve.IsMetaRootPath(dest) {
			prefix = dest
		}
		rnk, rb := store.RankFor(imp.staged, ctx, rank.Intent{Mode: rank.Last}, imp.now)
		b.Merge(rb)
		rankStart, rankUp = rnk, 1

	default:
		ctx = resolve.EffectiveContext(r, v, dest)
		prefix = resolve.ParentOf(dest)
		head := resolve.Head(dest)

		if keys.Thought(head.Value) == "" {
			eb, err := store.ReplaceEmptyDestination(imp.staged, ctx, head.Rank, imp.now)
			if err != nil {
				return Result{}, fmt.Errorf("replace empty destination: %w", err)
			}
			b.Merge(eb)
		}

		rnk, rb := store.RankFor(imp.staged, ctx, rank.Intent{Mode: rank.After, Target: head.Rank}, imp.now)
		b.Merge(rb)
		rankStart, rankUp = rnk, 1
		next := math.Inf(1)
		for _, sib := range store.LookupChildren(imp.staged, ctx) {
			if sib.Rank > rankStart {
				next = sib.Rank
				rankUp = (sib.Rank - rankStart) / float64(max(1, CountBlocks(blocks)))
				break
			}
		}
		if !fits(rankStart, rankUp, next, len(blocks)) {
			start, mb := store.MakeRoom(imp.staged, ctx, rankStart, len(blocks), imp.now)
			b.Merge(mb)
			rankStart, rankUp = start, 1
		}
	}

	if err := imp.save(ctx, blocks, rankStart, rankUp); err != nil {
		return Result{}, err
	}

	last := blocks[len(blocks)-1]
	return Result{
		Batch: b,
		LastTopLevel: resolve.Join(prefix, types.Child{
			Value: strings.TrimSpace(last.Text),
			Rank:  rankStart + float64(len(blocks)-1)*rankUp,
		}),
	}, nil
}

// fits reports whether n ranks stepping from start by step are strictly
// increasing and stay below next at float64 precision.
func fits(start, step, next float64, n int) bool {
	prev := start
	for i := 1; i < n; i++ {
		rnk := start + float64(i)*step
		if rnk <= prev {
			return false
		}
		prev = rnk
	}
	return prev < next
}

// SkipRoot drops the first block, promoting its children ahead of the
// remaining blocks. A first block without children is simply dropped.
func SkipRoot(blocks []types.Block) []types.Block {
	if len(blocks) == 0 {
		return blocks
	}
	out := make([]types.Block, 0, len(blocks[0].Children)+len(blocks)-1)
	out = append(out, blocks[0].Children...)
	return append(out, blocks[1:]...)
}

// CountBlocks returns the number of blocks in a tree, descendants included.
func CountBlocks(blocks []types.Block) int {
	n := 0
	for _, blk := range blocks {
		n += 1 + CountBlocks(blk.Children)
	}
	return n
}

type importer struct {
	staged store.Reader
	batch  *store.Batch
	now    time.Time
	newID  func() string
}

func (imp *importer) save(ctx types.Context, blocks []types.Block, start, step float64) error {
	for i, blk := range blocks {
		value := strings.TrimSpace(blk.Text)
		rnk := start + float64(i)*step

		ib, err := store.InsertChild(imp.staged, ctx, value, rnk, imp.newID(), imp.now)
		if err != nil {
			return fmt.Errorf("import %q: %w", value, err)
		}
		imp.batch.Merge(ib)

		if len(blk.Children) == 0 {
			continue
		}
		sub := store.ChildContext(ctx, value)
		// A context that already has children (a repeated value) continues
		// after them.
		first, rb := store.RankFor(imp.staged, sub, rank.Intent{Mode: rank.Last}, imp.now)
		imp.batch.Merge(rb)
		if err := imp.save(sub, blk.Children, first, 1); err != nil {
			return err
		}
	}
	return nil
}
