// Package simcache keeps simulated states of one world so a timeline can be
// scrubbed without re-simulating from the start. States are computed on
// demand or ahead of time by a background worker; full snapshots every K
// frames bound the cost of rebuilding after an invalidation to K steps.
package simcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/milk9111/motionsim/physics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrOutOfRange = errors.New("simcache: frame before the cache start")
	ErrClosed     = errors.New("simcache: cache closed")
)

// DefaultSnapshotEvery is the snapshot interval used when none is set.
const DefaultSnapshotEvery = 30

// Mutation changes a world, for example by adding a body or a joint.
type Mutation func(w *physics.World) error

type Config struct {
	// SnapshotEvery is K: a full snapshot is kept for every frame that is a
	// multiple of it.
	SnapshotEvery int
	Logger        *zap.Logger
}

// Status is a consistent view of the cache window.
type Status struct {
	CacheStartFrame int    `json:"cache_start_frame"`
	CacheEndFrame   int    `json:"cache_end_frame"`
	Cached          int    `json:"cached"`
	Snapshots       int    `json:"snapshots"`
	Generation      string `json:"generation"`
}

type mutation struct {
	// at is the frame the world is at when the mutation is applied; it
	// takes effect from frame at+1.
	at int
	fn Mutation
}

// Cache owns the simulation of one world. States for frames
// CacheStartFrame..CacheEndFrame are always contiguous. The head world sits
// at CacheEndFrame, or behind it while replaying after an invalidation.
type Cache struct {
	mu     sync.Mutex
	logger *zap.Logger
	every  int

	cacheStartFrame int
	cacheEndFrame   int
	cached          map[int]*physics.State
	snapshots       map[int]*physics.Snapshot
	mutations       []mutation

	head *physics.World
	// applied is set once the mutations for the head's frame have run.
	applied bool

	generation uuid.UUID
	cancel     context.CancelFunc
	group      *errgroup.Group
	closed     bool

	// prefetchCtx and prefetchEnd are the last Prefetch request, restarted
	// after an invalidation.
	prefetchCtx context.Context
	prefetchEnd int
}

// New takes ownership of base and caches from its current frame on.
func New(base *physics.World, cfg Config) *Cache {
	every := cfg.SnapshotEvery
	if every <= 0 {
		every = DefaultSnapshotEvery
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := base.Frame()
	c := &Cache{
		logger:          logger,
		every:           every,
		cacheStartFrame: start,
		cacheEndFrame:   start,
		cached:          map[int]*physics.State{start: base.State()},
		snapshots:       map[int]*physics.Snapshot{start: base.Snapshot()},
		head:            base,
		generation:      uuid.New(),
	}
	return c
}

func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		CacheStartFrame: c.cacheStartFrame,
		CacheEndFrame:   c.cacheEndFrame,
		Cached:          len(c.cached),
		Snapshots:       len(c.snapshots),
		Generation:      c.generation.String(),
	}
}

// Cached returns the state for frame if it is already computed.
func (c *Cache) Cached(frame int) (*physics.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.cached[frame]
	return s, ok
}

// StateAt returns the state for frame, simulating forward from the cache
// end if needed.
func (c *Cache) StateAt(ctx context.Context, frame int) (*physics.State, error) {
	if frame < c.Status().CacheStartFrame {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, frame)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		if s, ok := c.cached[frame]; ok {
			c.mu.Unlock()
			return s, nil
		}
		err := c.advance()
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

// advance steps the head one frame and stores the result. After an
// invalidation the head may sit behind the cache end; those frames are
// replayed without replacing the states already served. Callers hold mu.
func (c *Cache) advance() error {
	if err := c.applyPending(); err != nil {
		return err
	}
	s, err := c.head.Advance()
	if err != nil {
		return fmt.Errorf("simcache: step %d: %w", c.head.Frame()+1, err)
	}
	c.applied = false
	if s.Frame <= c.cacheEndFrame {
		return nil
	}
	c.cached[s.Frame] = s
	c.cacheEndFrame = s.Frame
	if s.Frame%c.every == 0 {
		c.snapshots[s.Frame] = c.head.Snapshot()
	}
	return nil
}

// applyPending runs the mutations registered for the head's frame. A
// failing mutation is dropped from the log and the head is rebuilt without
// it, so the next caller replays cleanly.
func (c *Cache) applyPending() error {
	if c.applied {
		return nil
	}
	at := c.head.Frame()
	for i, m := range c.mutations {
		if m.at != at {
			continue
		}
		if err := m.fn(c.head); err != nil {
			c.mutations = append(c.mutations[:i:i], c.mutations[i+1:]...)
			c.resetHead(at)
			c.logger.Warn("mutation dropped", zap.Int("frame", at+1), zap.Error(err))
			return fmt.Errorf("simcache: mutation at frame %d: %w", at+1, err)
		}
	}
	c.applied = true
	return nil
}

// Prefetch simulates up to frame end in the background. A running
// prefetch is replaced. Work done for a generation that has since been
// invalidated is dropped, and the prefetch is restarted for the new one.
func (c *Cache) Prefetch(ctx context.Context, end int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.prefetchCtx, c.prefetchEnd = ctx, end
	c.startLocked()
}

// startLocked replaces the worker with one prefetching up to prefetchEnd
// for the current generation.
func (c *Cache) startLocked() {
	c.stopLocked()

	pctx, cancel := context.WithCancel(c.prefetchCtx)
	g, gctx := errgroup.WithContext(pctx)
	gen, end := c.generation, c.prefetchEnd
	c.cancel, c.group = cancel, g

	c.logger.Debug("prefetch started", zap.Int("from", c.cacheEndFrame), zap.Int("to", end), zap.Stringer("generation", gen))
	g.Go(func() error {
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.mu.Lock()
			if c.generation != gen || c.closed || c.cacheEndFrame >= end {
				c.mu.Unlock()
				return nil
			}
			err := c.advance()
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("prefetch failed", zap.Error(err), zap.Stringer("generation", gen))
				return err
			}
		}
	})
}

// Wait blocks until the current prefetch finishes. Cancellation is not an
// error.
func (c *Cache) Wait() error {
	c.mu.Lock()
	g := c.group
	c.mu.Unlock()
	if g == nil {
		return nil
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// stopLocked cancels the running prefetch without waiting for it. The
// worker notices at its next step.
func (c *Cache) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Invalidate registers mutate to take effect from fromFrame and discards
// every cached state and snapshot it affects. The head is moved back to
// the closest snapshot at or before fromFrame-1; the replay happens step by
// step in StateAt or the prefetch worker, which is restarted towards its
// previous end. Errors from mutate surface from the call that reaches it
// and the mutation is then dropped.
//
// Invalidating from the cache start edits the start state itself: mutate
// runs on a fork of the start snapshot straight away and its error is
// returned here, leaving the cache untouched. A nil mutate only discards.
func (c *Cache) Invalidate(fromFrame int, mutate Mutation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if fromFrame < c.cacheStartFrame {
		return fmt.Errorf("%w: invalidate from %d", ErrOutOfRange, fromFrame)
	}
	if fromFrame == c.cacheStartFrame {
		return c.rebase(mutate)
	}

	c.stopLocked()
	old := c.generation
	c.generation = uuid.New()
	at := fromFrame - 1
	if mutate != nil {
		c.mutations = append(c.mutations, mutation{at: at, fn: mutate})
	}
	dropped := 0
	if at < c.cacheEndFrame {
		dropped = c.discardFrom(fromFrame)
		c.cacheEndFrame = at
	}
	if h := c.head.Frame(); h > at || (h == at && c.applied) {
		c.resetHead(at)
	}
	c.logger.Info("cache invalidated",
		zap.Int("from", fromFrame),
		zap.Int("dropped", dropped),
		zap.Int("cache_end", c.cacheEndFrame),
		zap.Stringer("old_generation", old),
		zap.Stringer("generation", c.generation),
	)
	c.restartLocked()
	return nil
}

// rebase rebuilds the cache on a mutated fork of the start snapshot.
func (c *Cache) rebase(mutate Mutation) error {
	start := c.cacheStartFrame
	w := c.snapshots[start].Fork(physics.WithLogger(c.logger))
	if mutate != nil {
		if err := mutate(w); err != nil {
			return fmt.Errorf("simcache: mutation at frame %d: %w", start, err)
		}
	}
	c.stopLocked()
	old := c.generation
	c.generation = uuid.New()
	dropped := len(c.cached)
	c.cached = map[int]*physics.State{start: w.State()}
	c.snapshots = map[int]*physics.Snapshot{start: w.Snapshot()}
	c.head, c.applied = w, false
	c.cacheEndFrame = start
	c.logger.Info("cache rebased",
		zap.Int("from", start),
		zap.Int("dropped", dropped),
		zap.Stringer("old_generation", old),
		zap.Stringer("generation", c.generation),
	)
	c.restartLocked()
	return nil
}

// restartLocked resumes a prefetch that an invalidation interrupted.
func (c *Cache) restartLocked() {
	if c.prefetchCtx == nil || c.cacheEndFrame >= c.prefetchEnd {
		return
	}
	c.startLocked()
}

// discardFrom drops states for frames >= from and snapshots after from-1.
func (c *Cache) discardFrom(from int) int {
	n := 0
	for f := range c.cached {
		if f >= from {
			delete(c.cached, f)
			n++
		}
	}
	for f := range c.snapshots {
		if f > from-1 {
			delete(c.snapshots, f)
		}
	}
	return n
}

// resetHead forks a fresh head from the closest snapshot at or before
// frame. The frames up to the cache end are replayed by advance.
func (c *Cache) resetHead(frame int) {
	base := c.closestSnapshot(frame)
	c.head = c.snapshots[base].Fork(physics.WithLogger(c.logger))
	c.applied = false
	c.logger.Debug("cache rewound", zap.Int("snapshot", base), zap.Int("target", frame))
}

func (c *Cache) closestSnapshot(frame int) int {
	best := c.cacheStartFrame
	for f := range c.snapshots {
		if f <= frame && f > best {
			best = f
		}
	}
	return best
}

// SnapshotFrames lists the frames holding a full snapshot, ascending.
func (c *Cache) SnapshotFrames() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.snapshots))
	for f := range c.snapshots {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Close stops the background worker and waits for it.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()
	return c.Wait()
}
