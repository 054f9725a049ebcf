package clusterfs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/clusterfs/internal/chain"
	"github.com/hupe1980/clusterfs/internal/format"
	"github.com/hupe1980/clusterfs/internal/fs"
	"github.com/hupe1980/clusterfs/internal/resource"
	"github.com/hupe1980/clusterfs/internal/stream"
	"golang.org/x/sync/semaphore"
)

// FileSystem stores many variable-length files in one container file.
//
// A FileSystem is not safe for concurrent use. Callers that share one across
// goroutines bracket every operation sequence with Lock and Guard.Unlock.
type FileSystem struct {
	path    string
	engine  *chain.Engine
	rc      *resource.Controller
	sem     *semaphore.Weighted
	opts    options
	logger  *Logger
	metrics MetricsCollector
	closed  bool
}

// Open opens the container at path, creating it when it does not exist.
func Open(path string, optFns ...Option) (*FileSystem, error) {
	o := applyOptions(optFns)
	ctx := context.Background()

	fsys, err := open(path, o)
	if err != nil {
		o.logger.LogOpen(ctx, path, o.minClusterSize, 0, err)
		return nil, err
	}
	o.logger.LogOpen(ctx, path, o.minClusterSize, fsys.engine.Length(), nil)
	return fsys, nil
}

func open(path string, o options) (*FileSystem, error) {
	if !format.ValidMinClusterSize(o.minClusterSize) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidClusterSize, o.minClusterSize)
	}
	f, err := o.fsys.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}
	if !o.noFileLock {
		lf, err := fs.Locked(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		f = lf
	}
	s, err := stream.New(f, o.bufferSize)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	e, err := chain.Open(s, chain.Options{
		MinClusterSize:   o.minClusterSize,
		Growth:           o.growth,
		CacheCapacity:    o.cacheSize,
		NewCacheStrategy: o.cacheStrategy.factory(),
		ManualFlush:      o.manualFlush,
		SyncOnFlush:      o.syncOnFlush,
		Logger:           o.logger.WithPath(path).Logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return &FileSystem{
		path:    path,
		engine:  e,
		rc:      resource.NewController(resource.Config{IOLimitBytesPerSec: o.ioLimit}),
		sem:     semaphore.NewWeighted(1),
		opts:    o,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}, nil
}

// Path returns the container path.
func (fsys *FileSystem) Path() string { return fsys.path }

// MinClusterSize returns the container's minimum cluster size.
func (fsys *FileSystem) MinClusterSize() int { return fsys.opts.minClusterSize }

// AllocFile starts a new file and returns its handle with a writer positioned
// at its start. The most recently deleted file's clusters are reused first.
func (fsys *FileSystem) AllocFile() (Handle, *File, error) {
	start := time.Now()
	h, f, err := fsys.allocFile()
	fsys.metrics.RecordAlloc(time.Since(start), err)
	fsys.logger.LogAlloc(context.Background(), h, err)
	return h, f, err
}

func (fsys *FileSystem) allocFile() (Handle, *File, error) {
	if err := fsys.mutable(); err != nil {
		return NotSet, nil, err
	}
	h, err := fsys.engine.AllocCluster(NotSet)
	if err != nil {
		return NotSet, nil, translateError(err, NotSet)
	}
	if err := fsys.engine.SetCurrent(h); err != nil {
		return NotSet, nil, translateError(err, h)
	}
	return h, fsys.newFile(h, 0), nil
}

// AppendFile returns a writer positioned at the end of file h, and the handle
// of the cluster the end was found in. Pass that handle back as hint on the
// next call (or use File.Hint after writing) to skip walking the chain again.
// A zero hint walks from the head.
func (fsys *FileSystem) AppendFile(h, hint Handle) (*File, Handle, error) {
	if err := fsys.mutable(); err != nil {
		return nil, NotSet, err
	}
	if err := fsys.checkHead(h); err != nil {
		return nil, NotSet, err
	}
	last, err := fsys.engine.SkipToEnd(h, hint)
	if err != nil {
		return nil, NotSet, translateError(err, h)
	}
	f := fsys.newFile(h, -1)
	return f, last, nil
}

// RewriteFile discards the content of file h and returns a writer at its
// start. The handle is kept: the chain is deleted and immediately reallocated.
// ErrHandleNotReused is returned if the allocator hands out another chain.
func (fsys *FileSystem) RewriteFile(h Handle) (*File, error) {
	start := time.Now()
	f, err := fsys.rewriteFile(h)
	fsys.metrics.RecordRewrite(time.Since(start), err)
	fsys.logger.LogRewrite(context.Background(), h, err)
	return f, err
}

func (fsys *FileSystem) rewriteFile(h Handle) (*File, error) {
	if err := fsys.mutable(); err != nil {
		return nil, err
	}
	if err := fsys.checkHead(h); err != nil {
		return nil, err
	}
	if err := fsys.engine.DeleteChain(h); err != nil {
		return nil, translateError(err, h)
	}
	got, err := fsys.engine.AllocCluster(NotSet)
	if err != nil {
		return nil, translateError(err, h)
	}
	if got != h {
		return nil, fmt.Errorf("%w: wanted %d, got %d", ErrHandleNotReused, h, got)
	}
	if err := fsys.engine.SetCurrent(h); err != nil {
		return nil, translateError(err, h)
	}
	return fsys.newFile(h, 0), nil
}

// DeleteFile frees file h. Its clusters are reused by the next AllocFile.
// The free list is flushed before DeleteFile returns.
func (fsys *FileSystem) DeleteFile(h Handle) error {
	start := time.Now()
	err := fsys.deleteFile(h)
	fsys.metrics.RecordDelete(time.Since(start), err)
	fsys.logger.LogDelete(context.Background(), h, err)
	return err
}

func (fsys *FileSystem) deleteFile(h Handle) error {
	if err := fsys.mutable(); err != nil {
		return err
	}
	if err := fsys.checkHead(h); err != nil {
		return err
	}
	return translateError(fsys.engine.DeleteChain(h), h)
}

// OpenFile returns a seekable reader and writer over file h, positioned at
// its start.
func (fsys *FileSystem) OpenFile(h Handle) (*File, error) {
	if err := fsys.usable(); err != nil {
		return nil, err
	}
	if err := fsys.engine.SetCurrent(h); err != nil {
		return nil, translateError(err, h)
	}
	return fsys.newFile(h, 0), nil
}

// GetFileReader is OpenFile for callers that only read.
func (fsys *FileSystem) GetFileReader(h Handle) (*File, error) {
	return fsys.OpenFile(h)
}

// FileLength returns the number of bytes stored in file h.
func (fsys *FileSystem) FileLength(h Handle) (int64, error) {
	if err := fsys.usable(); err != nil {
		return 0, err
	}
	n, err := fsys.engine.ChainLength(h)
	return n, translateError(err, h)
}

// GetAllFiles returns the handles of every live file in container order.
//
// The free list is collected first; the cluster stream is then scanned from
// the header boundary, keeping cluster heads that are not free. keepGoing,
// if non-nil, is consulted before every cluster; when it returns false the
// scan stops and the handles found so far are returned with ErrAborted.
func (fsys *FileSystem) GetAllFiles(ctx context.Context, keepGoing func() bool) ([]Handle, error) {
	start := time.Now()
	handles, err := fsys.getAllFiles(ctx, keepGoing)
	fsys.metrics.RecordEnumerate(len(handles), time.Since(start), err)
	fsys.logger.LogEnumerate(ctx, len(handles), err)
	return handles, err
}

func (fsys *FileSystem) getAllFiles(ctx context.Context, keepGoing func() bool) ([]Handle, error) {
	if err := fsys.usable(); err != nil {
		return nil, err
	}
	free, err := fsys.freeSet()
	if err != nil {
		return nil, err
	}

	var (
		handles []Handle
		aborted bool
	)
	err = fsys.engine.Scan(ctx, fsys.rc, func(h format.Handle, hdr format.ClusterHeader) bool {
		if keepGoing != nil && !keepGoing() {
			aborted = true
			return false
		}
		if hdr.Prev == NotSet && !free.Contains(uint32(h)) {
			handles = append(handles, h)
		}
		return true
	})
	if err != nil {
		return handles, err
	}
	if aborted {
		return handles, ErrAborted
	}
	return handles, nil
}

func (fsys *FileSystem) freeSet() (*roaring.Bitmap, error) {
	free, err := fsys.engine.FreeList()
	if err != nil {
		return nil, err
	}
	rb := roaring.New()
	for _, h := range free {
		rb.Add(uint32(h))
	}
	return rb, nil
}

// Repair pads a container whose last append was torn to the next cluster
// boundary. It returns the number of zero bytes added. Chains are not checked.
func (fsys *FileSystem) Repair() (int64, error) {
	if err := fsys.mutable(); err != nil {
		return 0, err
	}
	padded, err := fsys.engine.Repair()
	fsys.metrics.RecordRepair(padded, err)
	fsys.logger.LogRepair(context.Background(), padded, err)
	return padded, err
}

// Flush writes every dirty cluster header and the file system header.
func (fsys *FileSystem) Flush() error {
	if err := fsys.usable(); err != nil {
		return err
	}
	return fsys.engine.Flush()
}

// Close flushes (unless manual flush is on) and closes the container.
func (fsys *FileSystem) Close() error {
	if fsys == nil || fsys.closed {
		return nil
	}
	fsys.closed = true
	return fsys.engine.Close()
}

// ManualFlush reports whether Close skips the implicit flush.
func (fsys *FileSystem) ManualFlush() bool { return fsys.engine.ManualFlush() }

// SetManualFlush toggles the implicit flush on Close.
func (fsys *FileSystem) SetManualFlush(v bool) { fsys.engine.SetManualFlush(v) }

// GrowthStrategy returns the growth strategy used for new clusters.
func (fsys *FileSystem) GrowthStrategy() GrowthStrategy { return fsys.engine.Growth() }

// SetGrowthStrategy changes the growth strategy for future allocations.
func (fsys *FileSystem) SetGrowthStrategy(s GrowthStrategy) { fsys.engine.SetGrowth(s) }

// CacheSize returns the number of cluster headers cached.
func (fsys *FileSystem) CacheSize() int { return fsys.engine.CacheSize() }

// SetCacheSize flushes the header cache and rebuilds it with room for n headers.
func (fsys *FileSystem) SetCacheSize(n int) error {
	if err := fsys.usable(); err != nil {
		return err
	}
	return fsys.engine.SetCacheSize(n)
}

// SetCacheStrategy replaces the header cache eviction order.
func (fsys *FileSystem) SetCacheStrategy(s CacheStrategy) {
	fsys.engine.SetCacheStrategy(s.factory())
}

func (fsys *FileSystem) usable() error {
	if fsys.closed {
		return ErrClosed
	}
	return nil
}

// mutable guards topology changes. With lock enforcement on, some Guard must
// be held.
func (fsys *FileSystem) mutable() error {
	if err := fsys.usable(); err != nil {
		return err
	}
	if fsys.opts.enforceLock && fsys.sem.TryAcquire(1) {
		fsys.sem.Release(1)
		return ErrLockNotHeld
	}
	return nil
}

// checkHead rejects handles that are invalid, name a cluster inside a chain,
// or name a deleted chain.
func (fsys *FileSystem) checkHead(h Handle) error {
	head, err := fsys.engine.IsLiveHead(h)
	if err != nil {
		return translateError(err, h)
	}
	if !head {
		return fmt.Errorf("%w: %d", ErrNotChainHead, h)
	}
	free, err := fsys.freeSet()
	if err != nil {
		return err
	}
	if free.Contains(uint32(h)) {
		return fmt.Errorf("%w: %d is free", ErrNotChainHead, h)
	}
	return nil
}
