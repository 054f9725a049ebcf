package chain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/clusterfs/internal/cache"
	"github.com/hupe1980/clusterfs/internal/cluster"
	"github.com/hupe1980/clusterfs/internal/format"
	"github.com/hupe1980/clusterfs/internal/growth"
	"github.com/hupe1980/clusterfs/internal/stream"
)

var (
	// ErrInvalidHandle is returned for handles outside the cluster stream.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrNotChainHead is returned when a chain operation targets a cluster
	// that is not the head of a live chain.
	ErrNotChainHead = errors.New("not a live chain head")
	// ErrCorruptChain is returned when a walk visits more clusters than exist.
	ErrCorruptChain = errors.New("chain loops or is corrupt")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
)

// Options configures an Engine.
type Options struct {
	// MinClusterSize is one of 16, 32, 64, 128 or 256. Fixed for the lifetime of a container.
	MinClusterSize int
	// Growth selects the growth curve used when a chain runs out of space.
	Growth growth.Strategy
	// CacheCapacity is the number of cached cluster headers (default 31).
	CacheCapacity int
	// NewCacheStrategy builds the cache eviction strategy (default LRU).
	NewCacheStrategy func() cache.Strategy
	// ManualFlush suppresses the implicit flush on Close.
	ManualFlush bool
	// SyncOnFlush fsyncs the file after every Flush.
	SyncOnFlush bool
	// Logger receives debug records. Defaults to slog.Default().
	Logger *slog.Logger
}

// Cursor is a position inside a chain: a cluster and an offset in its payload.
type Cursor struct {
	Cluster  format.Handle
	Position int
}

// Engine reads and writes cluster chains inside one container stream.
//
// Every read or write happens at the engine's current cursor. The engine is
// not safe for concurrent use; callers serialize access.
type Engine struct {
	s           *stream.Stream
	min         int
	policy      growth.Policy
	cache       *cache.ClusterCache
	header      format.Header
	headerDirty bool
	manualFlush bool
	syncOnFlush bool
	logger      *slog.Logger
	closed      bool

	cur Cursor
}

// Open attaches an engine to s. An empty stream is initialized with a fresh
// header; a non-empty one must carry a valid header.
func Open(s *stream.Stream, opts Options) (*Engine, error) {
	if opts.MinClusterSize == 0 {
		opts.MinClusterSize = format.DefaultMinClusterSize
	}
	if !format.ValidMinClusterSize(opts.MinClusterSize) {
		return nil, fmt.Errorf("%w: %d", format.ErrInvalidClusterSize, opts.MinClusterSize)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		s:           s,
		min:         opts.MinClusterSize,
		policy:      growth.New(opts.Growth, opts.MinClusterSize),
		manualFlush: opts.ManualFlush,
		syncOnFlush: opts.SyncOnFlush,
		logger:      opts.Logger,
	}
	e.cache = cache.New(s, opts.MinClusterSize, cache.Options{
		Capacity:    opts.CacheCapacity,
		NewStrategy: opts.NewCacheStrategy,
		Logger:      opts.Logger,
	})

	if s.Length() == 0 {
		e.header = format.NewHeader()
		e.headerDirty = true
		if err := e.Flush(); err != nil {
			return nil, fmt.Errorf("initialize container: %w", err)
		}
		return e, nil
	}

	buf := make([]byte, format.HeaderSize)
	if n, err := s.ReadAt(buf, 0); err != nil && !(errors.Is(err, io.EOF) && n == format.HeaderSize) {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: container has %d bytes", format.ErrShortHeader, n)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := e.header.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return e, nil
}

// MinClusterSize returns the container's minimum cluster size.
func (e *Engine) MinClusterSize() int { return e.min }

// Length returns the length of the underlying stream.
func (e *Engine) Length() int64 { return e.s.Length() }

// Header returns a copy of the in-memory file system header.
func (e *Engine) Header() format.Header { return e.header }

// Valid reports whether h addresses a position inside the cluster stream.
func (e *Engine) Valid(h format.Handle) bool {
	return h != format.NotSet &&
		h >= format.FirstHandle(e.min) &&
		int64(h) < e.s.Length()/int64(e.min)
}

// Cursor returns the current cursor.
func (e *Engine) Cursor() Cursor { return e.cur }

// Restore moves the engine to a cursor previously returned by Cursor.
func (e *Engine) Restore(c Cursor) error {
	if err := e.check(c.Cluster); err != nil {
		return err
	}
	cl, err := e.cache.Get(c.Cluster)
	if err != nil {
		return err
	}
	if c.Position < 0 || c.Position > cl.Length {
		return fmt.Errorf("%w: position %d in cluster of length %d", cluster.ErrCursorOverrun, c.Position, cl.Length)
	}
	e.cur = c
	return e.seek(cl)
}

// SetCurrent makes h the current cluster with the cursor at its payload start.
func (e *Engine) SetCurrent(h format.Handle) error {
	return e.Restore(Cursor{Cluster: h})
}

// Read fills buf from the current cursor, following next links across full
// clusters. It returns fewer bytes than requested, possibly 0, at the end of
// the chain.
func (e *Engine) Read(buf []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	total := 0
	for len(buf) > 0 {
		cl, err := e.current()
		if err != nil {
			return total, err
		}
		n := min(cl.Unread(), len(buf))
		if n == 0 {
			if cl.Size < cl.Length || cl.Next == format.NotSet {
				break
			}
			if err := e.moveTo(cl.Next); err != nil {
				return total, err
			}
			continue
		}
		if err := e.seek(cl); err != nil {
			return total, err
		}
		got, err := io.ReadFull(e.s, buf[:n])
		if err != nil {
			return total + got, fmt.Errorf("read cluster %d: %w", e.cur.Cluster, err)
		}
		if err := cl.IncPosition(n); err != nil {
			return total, err
		}
		e.cur.Position = cl.Position
		total += n
		buf = buf[n:]
	}
	return total, nil
}

// Write stores buf at the current cursor. When the current cluster is full it
// continues in the next linked cluster, or allocates one.
func (e *Engine) Write(buf []byte) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	total := 0
	for len(buf) > 0 {
		cl, err := e.current()
		if err != nil {
			return total, err
		}
		if cl.Available() == 0 {
			next := cl.Next
			if next == format.NotSet {
				if next, err = e.AllocCluster(e.cur.Cluster); err != nil {
					return total, err
				}
			}
			if next != e.cur.Cluster {
				if err := e.moveTo(next); err != nil {
					return total, err
				}
			}
			continue
		}
		n := min(cl.Available(), len(buf))
		if err := e.seek(cl); err != nil {
			return total, err
		}
		if _, err := e.s.Write(buf[:n]); err != nil {
			return total, fmt.Errorf("write cluster %d: %w", e.cur.Cluster, err)
		}
		if err := cl.IncPosition(n); err != nil {
			return total, err
		}
		e.cur.Position = cl.Position
		total += n
		buf = buf[n:]
	}
	return total, nil
}

// SkipToEnd walks the chain starting at hint (or head when hint is NotSet)
// to its logical end and places the cursor on the first unwritten byte.
// It returns the handle of the cluster it stopped on, usable as the next hint.
func (e *Engine) SkipToEnd(head, hint format.Handle) (format.Handle, error) {
	start := head
	if hint != format.NotSet {
		start = hint
	}
	if err := e.check(start); err != nil {
		return format.NotSet, err
	}
	h := start
	for steps := e.maxSteps(); ; steps-- {
		if steps == 0 {
			return format.NotSet, fmt.Errorf("%w: from %d", ErrCorruptChain, start)
		}
		cl, err := e.cache.Get(h)
		if err != nil {
			return format.NotSet, err
		}
		if cl.Size < cl.Length || cl.Next == format.NotSet {
			return h, e.Restore(Cursor{Cluster: h, Position: cl.Size})
		}
		h = cl.Next
	}
}

// SeekTo places the cursor at logical offset off of the chain starting at
// head. Offsets past the end are clamped; the reached offset is returned.
func (e *Engine) SeekTo(head format.Handle, off int64) (int64, error) {
	if err := e.check(head); err != nil {
		return 0, err
	}
	h := head
	var passed int64
	for steps := e.maxSteps(); ; steps-- {
		if steps == 0 {
			return 0, fmt.Errorf("%w: from %d", ErrCorruptChain, head)
		}
		cl, err := e.cache.Get(h)
		if err != nil {
			return 0, err
		}
		last := cl.Size < cl.Length || cl.Next == format.NotSet
		remaining := off - passed
		if remaining < int64(cl.Size) || (remaining == int64(cl.Size) && last) {
			return off, e.Restore(Cursor{Cluster: h, Position: int(remaining)})
		}
		if last {
			return passed + int64(cl.Size), e.Restore(Cursor{Cluster: h, Position: cl.Size})
		}
		passed += int64(cl.Size)
		h = cl.Next
	}
}

// ChainLength returns the number of logical bytes stored in the chain at head.
func (e *Engine) ChainLength(head format.Handle) (int64, error) {
	if err := e.check(head); err != nil {
		return 0, err
	}
	var total int64
	h := head
	for steps := e.maxSteps(); ; steps-- {
		if steps == 0 {
			return 0, fmt.Errorf("%w: from %d", ErrCorruptChain, head)
		}
		cl, err := e.cache.Get(h)
		if err != nil {
			return 0, err
		}
		total += int64(cl.Size)
		if cl.Size < cl.Length || cl.Next == format.NotSet {
			return total, nil
		}
		h = cl.Next
	}
}

// IsLiveHead reports whether h is a cluster whose prev link is NotSet.
// Free-list heads can also match; callers that need certainty consult FreeList.
func (e *Engine) IsLiveHead(h format.Handle) (bool, error) {
	if err := e.check(h); err != nil {
		return false, err
	}
	cl, err := e.cache.Get(h)
	if err != nil {
		return false, err
	}
	return cl.Prev == format.NotSet, nil
}

func (e *Engine) current() (*cluster.Cluster, error) {
	cl, err := e.cache.Get(e.cur.Cluster)
	if err != nil {
		return nil, err
	}
	cl.Position = e.cur.Position
	return cl, nil
}

func (e *Engine) moveTo(h format.Handle) error {
	if err := e.check(h); err != nil {
		return fmt.Errorf("follow link: %w", err)
	}
	e.cur = Cursor{Cluster: h}
	return nil
}

func (e *Engine) seek(cl *cluster.Cluster) error {
	_, err := e.s.Seek(cl.PayloadOffset()+int64(e.cur.Position), io.SeekStart)
	return err
}

func (e *Engine) check(h format.Handle) error {
	if e.closed {
		return ErrClosed
	}
	if !e.Valid(h) {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return nil
}

// maxSteps bounds every chain walk by the number of clusters that could exist.
func (e *Engine) maxSteps() int64 {
	return e.s.Length()/int64(e.min) + 1
}
