package cache

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/clusterfs/internal/cluster"
	"github.com/hupe1980/clusterfs/internal/format"
)

const (
	// DefaultCapacity is the number of headers cached when none is configured.
	DefaultCapacity = 31
	// MinCapacity lets an operation hold a cluster and its predecessor at once.
	MinCapacity = 2
)

// ErrNotCached is returned when a handle expected in the cache is missing.
var ErrNotCached = errors.New("cluster not cached")

// Backend reads and writes cluster headers.
type Backend interface {
	io.ReaderAt
	io.WriterAt
}

// Stats holds cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	WriteBack int64
}

// Options configures a ClusterCache.
type Options struct {
	// Capacity is the number of cached headers. Values below MinCapacity are raised.
	Capacity int
	// NewStrategy builds the eviction strategy. Defaults to NewLRU.
	NewStrategy func() Strategy
	// Logger receives debug records for evictions. Defaults to slog.Default().
	Logger *slog.Logger
}

// ClusterCache maps handles to cached cluster headers. It is not safe for
// concurrent use.
type ClusterCache struct {
	backend     Backend
	min         int
	arena       *cluster.Arena
	entries     map[format.Handle]cluster.Ref
	strategy    Strategy
	newStrategy func() Strategy
	logger      *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	writeBack atomic.Int64
}

// New creates a cache over backend for a container with the given minimum cluster size.
func New(backend Backend, minClusterSize int, opts Options) *ClusterCache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Capacity < MinCapacity {
		opts.Capacity = MinCapacity
	}
	if opts.NewStrategy == nil {
		opts.NewStrategy = NewLRU
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ClusterCache{
		backend:     backend,
		min:         minClusterSize,
		arena:       cluster.NewArena(opts.Capacity),
		entries:     make(map[format.Handle]cluster.Ref, opts.Capacity),
		strategy:    opts.NewStrategy(),
		newStrategy: opts.NewStrategy,
		logger:      opts.Logger,
	}
}

// Get returns the cluster at h, reading its header on a miss.
//
// The returned pointer is only valid until the next Get or Create: a later
// miss may evict it and reuse its record for another handle.
func (c *ClusterCache) Get(h format.Handle) (*cluster.Cluster, error) {
	if ref, ok := c.entries[h]; ok {
		c.hits.Add(1)
		c.strategy.Touch(h)
		return c.arena.Get(ref), nil
	}
	c.misses.Add(1)

	cl, err := c.install(h)
	if err != nil {
		return nil, err
	}
	// The record may still hold a previous occupant's fields.
	if err := cl.Reset(h.Offset(c.min), c.min); err != nil {
		c.drop(h)
		return nil, err
	}
	if err := cl.LoadHeader(c.backend); err != nil {
		c.drop(h)
		return nil, err
	}
	return cl, nil
}

// Create installs an empty, dirty cluster at h without reading the backend.
// An existing entry for h is reset in place.
func (c *ClusterCache) Create(h format.Handle) (*cluster.Cluster, error) {
	var cl *cluster.Cluster
	if ref, ok := c.entries[h]; ok {
		c.strategy.Touch(h)
		cl = c.arena.Get(ref)
	} else {
		var err error
		if cl, err = c.install(h); err != nil {
			return nil, err
		}
	}
	if err := cl.Reset(h.Offset(c.min), c.min); err != nil {
		return nil, err
	}
	cl.MarkDirty()
	return cl, nil
}

// Contains reports whether h is cached.
func (c *ClusterCache) Contains(h format.Handle) bool {
	_, ok := c.entries[h]
	return ok
}

// Dirty returns the cached handles with unsaved headers.
func (c *ClusterCache) Dirty() *roaring.Bitmap {
	rb := roaring.New()
	for h, ref := range c.entries {
		if c.arena.Get(ref).Dirty() {
			rb.Add(uint32(h))
		}
	}
	return rb
}

// Flush writes every dirty header back in ascending handle order.
func (c *ClusterCache) Flush() error {
	it := c.Dirty().Iterator()
	for it.HasNext() {
		h := format.Handle(it.Next())
		cl := c.arena.Get(c.entries[h])
		if err := cl.SaveHeader(c.backend); err != nil {
			return err
		}
		c.writeBack.Add(1)
	}
	return nil
}

// Resize flushes every dirty header, then rebuilds the cache with room for
// capacity headers. All previously returned pointers become invalid.
func (c *ClusterCache) Resize(capacity int) error {
	if err := c.Flush(); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	c.arena = cluster.NewArena(capacity)
	c.entries = make(map[format.Handle]cluster.Ref, capacity)
	c.strategy = c.newStrategy()
	return nil
}

// SetStrategy replaces the eviction strategy. Cached entries are re-registered
// in ascending handle order.
func (c *ClusterCache) SetStrategy(newStrategy func() Strategy) {
	if newStrategy == nil {
		newStrategy = NewLRU
	}
	c.newStrategy = newStrategy
	c.strategy = newStrategy()
	handles := roaring.New()
	for h := range c.entries {
		handles.Add(uint32(h))
	}
	it := handles.Iterator()
	for it.HasNext() {
		c.strategy.Insert(format.Handle(it.Next()))
	}
}

// Cap returns the capacity.
func (c *ClusterCache) Cap() int { return c.arena.Cap() }

// Len returns the number of cached headers.
func (c *ClusterCache) Len() int { return len(c.entries) }

// Stats returns cache counters.
func (c *ClusterCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		WriteBack: c.writeBack.Load(),
	}
}

// install takes a record for h, evicting the strategy's victim if the arena is full.
func (c *ClusterCache) install(h format.Handle) (*cluster.Cluster, error) {
	if c.arena.Len() == c.arena.Cap() {
		if err := c.evict(); err != nil {
			return nil, err
		}
	}
	ref, cl, err := c.arena.Alloc()
	if err != nil {
		return nil, err
	}
	c.entries[h] = ref
	c.strategy.Insert(h)
	return cl, nil
}

func (c *ClusterCache) evict() error {
	victim, ok := c.strategy.Victim()
	if !ok {
		return cluster.ErrArenaFull
	}
	ref, ok := c.entries[victim]
	if !ok {
		c.strategy.Remove(victim)
		return fmt.Errorf("%w: eviction victim %d", ErrNotCached, victim)
	}
	cl := c.arena.Get(ref)
	if cl.Dirty() {
		if err := cl.SaveHeader(c.backend); err != nil {
			return fmt.Errorf("evict %d: %w", victim, err)
		}
		c.writeBack.Add(1)
	}
	c.evictions.Add(1)
	c.logger.Debug("cluster evicted", "handle", victim)
	c.drop(victim)
	return nil
}

func (c *ClusterCache) drop(h format.Handle) {
	ref, ok := c.entries[h]
	if !ok {
		return
	}
	c.arena.Release(ref)
	delete(c.entries, h)
	c.strategy.Remove(h)
}
