// Package document is the single writer around the thought store. It owns
// the current snapshot, the cursor and the set of context views, turns
// intents into batches, applies them atomically and tells observers and the
// persister about every change.
package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skridlevsky/thoughtgraph/cursor"
	"github.com/skridlevsky/thoughtgraph/importer"
	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/rank"
	"github.com/skridlevsky/thoughtgraph/resolve"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
)

var (
	// ErrNoCursor is returned by intents that default to the cursor when
	// there is none.
	ErrNoCursor = fmt.Errorf("no cursor")
	// ErrInvalidMove is returned when a thought would be moved into its own
	// subtree or a move has no target.
	ErrInvalidMove = fmt.Errorf("invalid move")
	// ErrNotFound is returned when a path does not address a thought.
	ErrNotFound = fmt.Errorf("thought not found")
)

// Persister stores applied batches.
type Persister interface {
	SaveBatch(ctx context.Context, b *store.Batch) error
}

// Change is delivered to observers after every state change. Batch is nil
// when only the cursor or the context views changed.
type Change struct {
	Version uint64
	Intent  Intent
	Batch   *store.Batch
	Cursor  types.Path
}

// Result is returned by Dispatch. Path is the thought the intent produced or
// moved to, when there is one.
type Result struct {
	Version uint64
	Path    types.Path
	Changed bool
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Document) { d.log = l }
}

// WithPersister stores every applied batch.
func WithPersister(p Persister) Option {
	return func(d *Document) { d.persister = p }
}

// WithSnapshot starts from an existing snapshot, e.g. one loaded from disk.
func WithSnapshot(s *store.Snapshot) Option {
	return func(d *Document) { d.snap = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Document) { d.now = now }
}

// WithIDs overrides thought id generation.
func WithIDs(newID func() string) Option {
	return func(d *Document) { d.newID = newID }
}

// Document serializes all edits. Reads take a read lock and return values
// that stay valid after later edits.
type Document struct {
	mu        sync.RWMutex
	snap      *store.Snapshot
	cursor    types.Path
	views     resolve.Views
	log       *zap.Logger
	persister Persister
	now       func() time.Time
	newID     func() string

	obsMu     sync.Mutex
	observers map[int]func(Change)
	nextObs   int
}

// New creates an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		snap:      store.New(),
		log:       zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		observers: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Snapshot returns the current immutable snapshot.
func (d *Document) Snapshot() *store.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Children returns the sorted children of ctx.
func (d *Document) Children(ctx types.Context) []types.Child {
	return store.LookupChildren(d.Snapshot(), ctx)
}

// Thought returns the Lexeme for text.
func (d *Document) Thought(text string) (*types.Lexeme, bool) {
	return store.LookupByText(d.Snapshot(), text)
}

// Cursor returns a copy of the cursor path, nil when there is none.
func (d *Document) Cursor() types.Path {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return clonePath(d.cursor)
}

// Views returns the active context views.
func (d *Document) Views() resolve.Views {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.views
}

// InContextView reports whether the thought at path is shown in context view.
func (d *Document) InContextView(path types.Path) bool {
	return d.Views().Active(path)
}

// Verify checks the current snapshot for index inconsistencies.
func (d *Document) Verify() error {
	return store.Verify(d.Snapshot())
}

// Subscribe registers fn for every change and returns a function that
// removes it. Observers run after the writer lock is released, in the
// dispatching goroutine.
func (d *Document) Subscribe(fn func(Change)) func() {
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	return func() {
		d.obsMu.Lock()
		defer d.obsMu.Unlock()
		delete(d.observers, id)
	}
}

// Dispatch handles one intent. Either the whole resulting batch is applied
// or nothing is. When the persister fails the in-memory change stays
// applied and the error is returned alongside the result.
func (d *Document) Dispatch(ctx context.Context, in Intent) (Result, error) {
	d.mu.Lock()
	res, change, err := d.dispatch(ctx, in)
	d.mu.Unlock()

	if change != nil {
		d.notify(*change)
	}
	return res, err
}

func (d *Document) dispatch(ctx context.Context, in Intent) (Result, *Change, error) {
	now := d.now()

	var (
		b         *store.Batch
		path      types.Path
		setCursor bool
		err       error
	)
	switch in := in.(type) {
	case InsertChild:
		b, path, err = d.insertChild(in, now)
	case RemoveChild:
		b, err = d.removeChild(in, now)
	case MoveThought:
		b, path, err = d.moveThought(in, now)
		setCursor = true
	case NewThought:
		b, path, err = d.newThought(in, now)
		setCursor = true
	case Import:
		b, path, err = d.importBlocks(in, now)
		setCursor = path != nil
	case MoveCursor:
		return d.moveCursor(in)
	case SetCursor:
		return d.setCursor(in, in.Path)
	case ToggleContextView:
		return d.toggleContextView(in)
	default:
		return Result{}, nil, fmt.Errorf("unknown intent %T", in)
	}
	if err != nil {
		d.reject(in, err)
		return Result{Version: d.snap.Version()}, nil, err
	}
	return d.commit(ctx, in, b, path, setCursor)
}

// commit applies b, moves or repairs the cursor and persists the batch.
func (d *Document) commit(ctx context.Context, in Intent, b *store.Batch, path types.Path, setCursor bool) (Result, *Change, error) {
	if b.Empty() {
		return Result{Version: d.snap.Version(), Path: path}, nil, nil
	}

	d.snap = d.snap.Apply(b)
	if setCursor {
		d.cursor = clonePath(path)
	} else {
		d.repairCursor()
	}

	version := d.snap.Version()
	d.log.Debug("applied batch",
		zap.String("intent", intentName(in)),
		zap.Uint64("version", version),
		zap.Int("keys", b.Len()),
		zap.Int("lexemes", len(b.Lexemes)),
		zap.Int("parents", len(b.Parents)),
	)

	res := Result{Version: version, Path: path, Changed: true}
	change := &Change{Version: version, Intent: in, Batch: b, Cursor: clonePath(d.cursor)}

	if d.persister != nil {
		if err := d.persister.SaveBatch(ctx, b); err != nil {
			d.log.Warn("persist batch failed", zap.Uint64("version", version), zap.Error(err))
			return res, change, fmt.Errorf("persist batch %d: %w", version, err)
		}
	}
	return res, change, nil
}

func (d *Document) reject(in Intent, err error) {
	var fault *store.ConsistencyFault
	switch {
	case errors.As(err, &fault):
		d.log.Error("consistency fault",
			zap.String("intent", intentName(in)),
			zap.String("op", fault.Op),
			zap.Strings("context", []string(fault.Context)),
			zap.String("value", fault.Value),
			zap.Float64("rank", fault.Rank),
			zap.Bool("inContentIndex", fault.InContentIndex),
			zap.Bool("inContextIndex", fault.InContextIndex),
		)
	case errors.Is(err, store.ErrPolicyViolation), errors.Is(err, store.ErrDuplicateEdge):
		d.log.Info("edit rejected", zap.String("intent", intentName(in)), zap.Error(err))
	default:
		d.log.Debug("intent failed", zap.String("intent", intentName(in)), zap.Error(err))
	}
}

func (d *Document) notify(c Change) {
	d.obsMu.Lock()
	fns := make([]func(Change), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (d *Document) insertChild(in InsertChild, now time.Time) (*store.Batch, types.Path, error) {
	b := store.NewBatch()
	rnk := in.Rank
	if in.Append {
		var rb *store.Batch
		rnk, rb = store.RankFor(d.snap, in.Context, rank.Intent{Mode: rank.Last}, now)
		b.Merge(rb)
	}
	ib, err := store.InsertChild(store.Stage(d.snap, b), in.Context, in.Value, rnk, d.newID(), now)
	if err != nil {
		return nil, nil, err
	}
	b.Merge(ib)

	parent := resolve.PathOf(d.snap, in.Context.Rooted())
	return b, resolve.Join(parent, types.Child{Value: in.Value, Rank: rnk}), nil
}

func (d *Document) removeChild(in RemoveChild, now time.Time) (*store.Batch, error) {
	if in.Recursive {
		return store.RemoveSubtree(d.snap, in.Context, in.Value, in.Rank, now)
	}
	return store.RemoveChild(d.snap, in.Context, in.Value, in.Rank, now)
}

func (d *Document) moveThought(in MoveThought, now time.Time) (*store.Batch, types.Path, error) {
	from := resolve.Resolve(d.snap, d.views, in.From)
	if len(from) == 0 {
		return nil, nil, fmt.Errorf("move: empty source: %w", ErrNotFound)
	}
	fromCtx := resolve.ParentContext(from)
	head := resolve.Head(from)

	moving, ok := findChild(d.snap, fromCtx, head.Value, head.Rank)
	if !ok {
		return nil, nil, fmt.Errorf("move %q: %w", head.Value, ErrNotFound)
	}

	var (
		toCtx      types.Context
		parentPath types.Path
		intent     rank.Intent
	)
	switch in.Mode {
	case rank.Before, rank.After:
		if len(in.To) == 0 {
			return nil, nil, fmt.Errorf("move %s needs a target: %w", in.Mode, ErrInvalidMove)
		}
		to := resolve.Resolve(d.snap, d.views, in.To)
		toCtx = resolve.ParentContext(to)
		parentPath = resolve.ParentOf(to)
		intent = rank.Intent{Mode: in.Mode, Target: resolve.Head(to).Rank}
	default:
		to := resolve.Resolve(d.snap, d.views, in.To)
		toCtx = resolve.ToContext(to)
		if !resolve.IsRootPath(to) {
			parentPath = to
		}
		intent = rank.Intent{Mode: in.Mode}
	}

	sub := store.ChildContext(fromCtx, moving.Value)
	if len(toCtx) >= len(sub) && keys.EqualContext(toCtx[:len(sub)], sub) {
		return nil, nil, fmt.Errorf("move %q into its own subtree: %w", moving.Value, ErrInvalidMove)
	}

	b := store.NewBatch()
	toRank, rb := store.RankFor(d.snap, toCtx, intent, now)
	b.Merge(rb)
	staged := store.Stage(d.snap, b)

	// Renumbering may have shifted the moving thought's own rank.
	fromRank := moving.Rank
	if !rb.Empty() {
		for _, c := range store.LookupChildren(staged, fromCtx) {
			if c.ID == moving.ID && keys.Equal(c.Value, moving.Value) {
				fromRank = c.Rank
				break
			}
		}
	}

	mb, err := store.MoveChild(staged, fromCtx, toCtx, moving.Value, fromRank, toRank, now)
	if err != nil {
		return nil, nil, err
	}
	b.Merge(mb)
	return b, resolve.Join(parentPath, types.Child{Value: moving.Value, Rank: toRank, ID: moving.ID}), nil
}

func (d *Document) newThought(in NewThought, now time.Time) (*store.Batch, types.Path, error) {
	at := in.At
	if len(at) == 0 {
		at = d.cursor
	}

	b := store.NewBatch()
	id := d.newID()

	insert := func(ctx types.Context, intent rank.Intent, parent types.Path) (*store.Batch, types.Path, error) {
		rnk, rb := store.RankFor(d.snap, ctx, intent, now)
		b.Merge(rb)
		ib, err := store.InsertChild(store.Stage(d.snap, b), ctx, in.Value, rnk, id, now)
		if err != nil {
			return nil, nil, err
		}
		b.Merge(ib)
		return b, resolve.Join(parent, types.Child{Value: in.Value, Rank: rnk, ID: id}), nil
	}

	if resolve.IsRootPath(at) {
		return insert(types.Context{types.RootToken}, rank.Intent{Mode: rank.Last}, nil)
	}

	if in.Placement == PlaceSubthought {
		real := resolve.Resolve(d.snap, d.views, at)
		return insert(resolve.ToContext(real), rank.Intent{Mode: rank.Last}, at)
	}

	parent := resolve.ParentOf(at)
	if d.views.Active(parent) {
		return d.addAsContext(b, parent, in.Value, id, now)
	}

	mode := rank.After
	if in.Placement == PlaceBefore {
		mode = rank.Before
	}
	ctx := resolve.EffectiveContext(d.snap, d.views, at)
	return insert(ctx, rank.Intent{Mode: mode, Target: resolve.Head(at).Rank}, parent)
}

// addAsContext handles a new sibling inside a context view: the new value
// becomes a top-level thought holding the viewed thought, so it shows up as
// another context of it.
func (d *Document) addAsContext(b *store.Batch, viewed types.Path, value, id string, now time.Time) (*store.Batch, types.Path, error) {
	anchor := resolve.Head(viewed)
	root := types.Context{types.RootToken}

	rnk, rb := store.RankFor(d.snap, root, rank.Intent{Mode: rank.Last}, now)
	b.Merge(rb)
	ib, err := store.InsertChild(store.Stage(d.snap, b), root, value, rnk, id, now)
	if err != nil {
		return nil, nil, err
	}
	b.Merge(ib)

	sub := store.ChildContext(root, value)
	staged := store.Stage(d.snap, b)
	arnk, _ := store.RankFor(staged, sub, rank.Intent{Mode: rank.Last}, now)
	ab, err := store.InsertChild(staged, sub, anchor.Value, arnk, d.newID(), now)
	if err != nil {
		return nil, nil, err
	}
	b.Merge(ab)

	for _, entry := range resolve.ContextEntries(store.Stage(d.snap, b), anchor.Value) {
		if keys.Equal(entry.Value, value) {
			return b, resolve.Join(viewed, entry), nil
		}
	}
	return b, viewed, nil
}

func (d *Document) importBlocks(in Import, now time.Time) (*store.Batch, types.Path, error) {
	dest := in.Destination
	if len(dest) == 0 {
		dest = d.cursor
	}
	res, err := importer.Import(d.snap, d.views, dest, in.Blocks, importer.Options{
		SkipRoot: in.SkipRoot,
		Now:      func() time.Time { return now },
		NewID:    d.newID,
	})
	if err != nil {
		return nil, nil, err
	}
	return res.Batch, res.LastTopLevel, nil
}

func (d *Document) moveCursor(in MoveCursor) (Result, *Change, error) {
	var m cursor.Move
	if in.Direction == Prev {
		m = cursor.Prev(d.snap, d.views, d.cursor)
	} else {
		m = cursor.Next(d.snap, d.views, d.cursor)
	}
	if !m.Changed {
		return Result{Version: d.snap.Version(), Path: clonePath(m.Path)}, nil, nil
	}
	return d.setCursor(in, m.Path)
}

func (d *Document) setCursor(in Intent, path types.Path) (Result, *Change, error) {
	version := d.snap.Version()
	if d.cursor.Equal(path) && (d.cursor == nil) == (path == nil) {
		return Result{Version: version, Path: clonePath(path)}, nil, nil
	}
	d.cursor = clonePath(path)
	return Result{Version: version, Path: clonePath(path), Changed: true},
		&Change{Version: version, Intent: in, Cursor: clonePath(path)}, nil
}

func (d *Document) toggleContextView(in ToggleContextView) (Result, *Change, error) {
	path := in.Path
	if len(path) == 0 {
		path = d.cursor
	}
	if len(path) == 0 {
		return Result{Version: d.snap.Version()}, nil, fmt.Errorf("toggle context view: %w", ErrNoCursor)
	}
	d.views = d.views.Toggle(path)
	version := d.snap.Version()
	return Result{Version: version, Path: clonePath(path), Changed: true},
		&Change{Version: version, Intent: in, Cursor: clonePath(d.cursor)}, nil
}

// repairCursor keeps the cursor on an existing thought after an edit. A
// thought whose rank changed is found again by id; otherwise the cursor
// moves up until it reaches an existing ancestor.
func (d *Document) repairCursor() {
	path := d.cursor
	for len(path) > 0 {
		if fixed, ok := d.locate(path); ok {
			d.cursor = fixed
			return
		}
		path = resolve.ParentOf(path)
	}
	d.cursor = nil
}

func (d *Document) locate(path types.Path) (types.Path, bool) {
	head := resolve.Head(path)
	var byID *types.Child
	for _, s := range resolve.Siblings(d.snap, d.views, path) {
		if !keys.Equal(s.Value, head.Value) {
			continue
		}
		if s.Rank == head.Rank {
			return path, true
		}
		if head.ID != "" && s.ID == head.ID {
			c := s
			byID = &c
		}
	}
	if byID != nil {
		return resolve.Join(resolve.ParentOf(path), *byID), true
	}
	return nil, false
}

func findChild(r store.Reader, ctx types.Context, value string, rnk float64) (types.Child, bool) {
	for _, c := range store.LookupChildren(r, ctx) {
		if c.Rank == rnk && keys.Equal(c.Value, value) {
			return c, true
		}
	}
	return types.Child{}, false
}

func clonePath(p types.Path) types.Path {
	if p == nil {
		return nil
	}
	out := make(types.Path, len(p))
	copy(out, p)
	return out
}

func intentName(in Intent) string {
	switch in.(type) {
	case InsertChild:
		return "insert_child"
	case RemoveChild:
		return "remove_child"
	case MoveThought:
		return "move_thought"
	case NewThought:
		return "new_thought"
	case Import:
		return "import"
	case MoveCursor:
		return "move_cursor"
	case SetCursor:
		return "set_cursor"
	case ToggleContextView:
		return "toggle_context_view"
	}
	return fmt.Sprintf("%T", in)
}
