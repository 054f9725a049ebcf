package chain

import (
	"context"
	"fmt"

	"github.com/hupe1980/clusterfs/internal/cache"
	"github.com/hupe1980/clusterfs/internal/cluster"
	"github.com/hupe1980/clusterfs/internal/format"
	"github.com/hupe1980/clusterfs/internal/growth"
	"github.com/hupe1980/clusterfs/internal/resource"
)

// AllocCluster returns a cluster to write into.
//
// With prev == NotSet it starts a new chain: the most recently deleted chain
// is reused when the free list is non-empty, otherwise a minimum-size cluster
// is appended. With a prev it extends that chain: a tail cluster below the
// size cap grows in place and prev itself is returned; otherwise a new,
// larger cluster is appended and linked after prev.
func (e *Engine) AllocCluster(prev format.Handle) (format.Handle, error) {
	if e.closed {
		return format.NotSet, ErrClosed
	}
	if prev == format.NotSet {
		if e.header.FirstFree != format.NotSet {
			return e.popFree()
		}
		return e.appendCluster(e.min, format.NotSet)
	}

	if err := e.check(prev); err != nil {
		return format.NotSet, err
	}
	cl, err := e.cache.Get(prev)
	if err != nil {
		return format.NotSet, err
	}
	total := cl.Total()
	if cl.End() == e.s.Length() {
		if ext := e.policy.Extension(total); ext > 0 {
			if err := cl.IncLength(ext); err != nil {
				return format.NotSet, err
			}
			end := cl.End()
			if err := e.s.SetLength(end); err != nil {
				return format.NotSet, err
			}
			e.logger.Debug("cluster extended", "handle", prev, "total", total+ext)
			return prev, nil
		}
	}

	h, err := e.appendCluster(e.policy.Next(total), prev)
	if err != nil {
		return format.NotSet, err
	}
	// appendCluster may have evicted prev; refetch before linking.
	if cl, err = e.cache.Get(prev); err != nil {
		return format.NotSet, err
	}
	cl.Next = h
	cl.MarkDirty()
	return h, nil
}

// popFree detaches the head of the free list and hands its chain back for
// rewriting. The new free-list anchor is persisted before returning.
func (e *Engine) popFree() (format.Handle, error) {
	h := e.header.FirstFree
	if err := e.check(h); err != nil {
		return format.NotSet, fmt.Errorf("free list: %w", err)
	}
	cl, err := e.cache.Get(h)
	if err != nil {
		return format.NotSet, err
	}
	e.header.FirstFree = cl.Prev
	e.headerDirty = true
	cl.Prev = format.NotSet
	cl.MarkDirty()
	if err := e.Flush(); err != nil {
		return format.NotSet, err
	}
	e.logger.Debug("chain reused", "handle", h, "first_free", e.header.FirstFree)
	return h, nil
}

// appendCluster creates a cluster of the given total at the end of the stream.
func (e *Engine) appendCluster(total int, prev format.Handle) (format.Handle, error) {
	end := e.s.Length()
	h, err := format.HandleOf(end, e.min)
	if err != nil {
		return format.NotSet, fmt.Errorf("%w: stream ends at %d, run Repair", cluster.ErrMisaligned, end)
	}
	cl, err := e.cache.Create(h)
	if err != nil {
		return format.NotSet, err
	}
	cl.Prev = prev
	if err := cl.IncLength(total - format.ClusterHeaderSize); err != nil {
		return format.NotSet, err
	}
	if err := e.s.SetLength(cl.End()); err != nil {
		return format.NotSet, err
	}
	e.logger.Debug("cluster appended", "handle", h, "prev", prev, "total", total)
	return h, nil
}

// DeleteChain zeroes the size of every cluster in the chain at head and
// pushes head onto the free list. Links are kept so the chain can be reused
// whole. The change is flushed before returning.
func (e *Engine) DeleteChain(head format.Handle) error {
	if err := e.check(head); err != nil {
		return err
	}
	if head == e.header.FirstFree {
		return fmt.Errorf("%w: %d is already free", ErrNotChainHead, head)
	}
	cl, err := e.cache.Get(head)
	if err != nil {
		return err
	}
	if cl.Prev != format.NotSet {
		return fmt.Errorf("%w: %d has prev %d", ErrNotChainHead, head, cl.Prev)
	}

	h := head
	for steps := e.maxSteps(); h != format.NotSet; steps-- {
		if steps == 0 {
			return fmt.Errorf("%w: from %d", ErrCorruptChain, head)
		}
		if err := e.check(h); err != nil {
			return fmt.Errorf("delete chain %d: %w", head, err)
		}
		if cl, err = e.cache.Get(h); err != nil {
			return err
		}
		cl.Size = 0
		cl.MarkDirty()
		h = cl.Next
	}

	if cl, err = e.cache.Get(head); err != nil {
		return err
	}
	cl.Prev = e.header.FirstFree
	cl.MarkDirty()
	e.header.FirstFree = head
	e.headerDirty = true
	if e.cur.Cluster == head {
		e.cur.Position = 0
	}
	e.logger.Debug("chain deleted", "handle", head, "next_free", cl.Prev)
	return e.Flush()
}

// FreeList returns the heads of deleted chains, most recently deleted first.
func (e *Engine) FreeList() ([]format.Handle, error) {
	var out []format.Handle
	h := e.header.FirstFree
	for steps := e.maxSteps(); h != format.NotSet; steps-- {
		if steps == 0 {
			return out, fmt.Errorf("%w: free list", ErrCorruptChain)
		}
		if err := e.check(h); err != nil {
			return out, fmt.Errorf("free list: %w", err)
		}
		cl, err := e.cache.Get(h)
		if err != nil {
			return out, err
		}
		out = append(out, h)
		h = cl.Prev
	}
	return out, nil
}

// Scan visits every cluster header in file order, from the end of the file
// system header to the end of the stream. Dirty headers are flushed first so
// the scan sees current state. fn returns false to stop early. rc may be nil.
func (e *Engine) Scan(ctx context.Context, rc *resource.Controller, fn func(format.Handle, format.ClusterHeader) bool) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.Flush(); err != nil {
		return err
	}
	var buf [format.ClusterHeaderSize]byte
	length := e.s.Length()
	for off := int64(format.HeaderSize); off+format.ClusterHeaderSize <= length; {
		if err := rc.AcquireIO(ctx, format.ClusterHeaderSize); err != nil {
			return err
		}
		if _, err := e.s.ReadAt(buf[:], off); err != nil {
			return fmt.Errorf("scan at %d: %w", off, err)
		}
		hdr := format.DecodeClusterHeader(buf[:])
		if !fn(format.Handle(off/int64(e.min)), hdr) {
			return nil
		}
		off += alignUp(int64(hdr.Total()), int64(e.min))
	}
	return nil
}

// Repair pads the stream to the next minimum-cluster boundary after a torn
// append and returns the number of bytes added.
func (e *Engine) Repair() (int64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if err := e.Flush(); err != nil {
		return 0, err
	}
	length := e.s.Length()
	padded := alignUp(length, int64(e.min))
	if padded < format.HeaderSize {
		padded = format.HeaderSize
	}
	if padded == length {
		return 0, nil
	}
	if err := e.s.SetLength(padded); err != nil {
		return 0, fmt.Errorf("repair: %w", err)
	}
	e.logger.Info("container repaired", "from", length, "to", padded)
	return padded - length, nil
}

// Flush writes every dirty cluster header and the file system header, then
// flushes the stream. The cursor is preserved.
func (e *Engine) Flush() error {
	if err := e.cache.Flush(); err != nil {
		return err
	}
	if e.headerDirty {
		buf, err := e.header.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := e.s.WriteAt(buf, 0); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		e.headerDirty = false
	}
	if e.syncOnFlush {
		return e.s.Sync()
	}
	return e.s.Flush()
}

// Close flushes unless manual flush is on, then closes the stream.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	var ferr error
	if !e.manualFlush {
		ferr = e.Flush()
	}
	e.closed = true
	if err := e.s.Close(); err != nil {
		return err
	}
	return ferr
}

// ManualFlush reports whether Close skips the implicit flush.
func (e *Engine) ManualFlush() bool { return e.manualFlush }

// SetManualFlush toggles the implicit flush on Close.
func (e *Engine) SetManualFlush(v bool) { e.manualFlush = v }

// Growth returns the current growth strategy.
func (e *Engine) Growth() growth.Strategy { return e.policy.Strategy }

// SetGrowth changes the growth strategy for future allocations.
func (e *Engine) SetGrowth(s growth.Strategy) { e.policy.Strategy = s }

// CacheSize returns the header cache capacity.
func (e *Engine) CacheSize() int { return e.cache.Cap() }

// SetCacheSize flushes the header cache and rebuilds it with a new capacity.
func (e *Engine) SetCacheSize(n int) error { return e.cache.Resize(n) }

// SetCacheStrategy replaces the header cache eviction strategy.
func (e *Engine) SetCacheStrategy(newStrategy func() cache.Strategy) {
	e.cache.SetStrategy(newStrategy)
}

// Stats collects engine counters.
type Stats struct {
	Length    int64
	FirstFree format.Handle
	Cache     cache.Stats
	Stream    StreamStats
}

// StreamStats mirrors the stream counters.
type StreamStats struct {
	BytesRead    int64
	BytesWritten int64
	Flushes      int64
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	ss := e.s.Stats()
	return Stats{
		Length:    e.s.Length(),
		FirstFree: e.header.FirstFree,
		Cache:     e.cache.Stats(),
		Stream: StreamStats{
			BytesRead:    ss.BytesRead,
			BytesWritten: ss.BytesWritten,
			Flushes:      ss.Flushes,
		},
	}
}

func alignUp(n, to int64) int64 {
	if r := n % to; r != 0 {
		return n + to - r
	}
	return n
}
