package clusterfs

import (
	"context"
	"path"
	"strconv"
	"time"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/hupe1980/clusterfs/internal/resource"
)

// Export copies every live file to store as an object named
// prefix/<handle>. Reads are throttled by WithIOLimit. It returns the number
// of files and bytes copied; on error, the counts cover the files copied
// before it.
func (fsys *FileSystem) Export(ctx context.Context, store blobstore.Store, prefix string) (int, int64, error) {
	start := time.Now()
	files, n, err := fsys.export(ctx, store, prefix)
	fsys.metrics.RecordExport(files, n, time.Since(start), err)
	fsys.logger.LogExport(ctx, files, n, err)
	return files, n, err
}

func (fsys *FileSystem) export(ctx context.Context, store blobstore.Store, prefix string) (int, int64, error) {
	handles, err := fsys.GetAllFiles(ctx, nil)
	if err != nil {
		return 0, 0, err
	}

	var (
		files int
		total int64
	)
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return files, total, err
		}
		size, err := fsys.exportFile(ctx, store, ObjectName(prefix, h), h)
		if err != nil {
			return files, total, err
		}
		files++
		total += size
	}
	return files, total, nil
}

func (fsys *FileSystem) exportFile(ctx context.Context, store blobstore.Store, name string, h Handle) (int64, error) {
	size, err := fsys.FileLength(h)
	if err != nil {
		return 0, err
	}
	f, err := fsys.OpenFile(h)
	if err != nil {
		return 0, err
	}
	// f is not closed: reading leaves nothing to flush.
	r := resource.NewRateLimitedReader(ctx, f, fsys.rc)
	if err := store.Put(ctx, name, r, size); err != nil {
		return 0, err
	}
	fsys.logger.WithHandle(h).DebugContext(ctx, "file exported", "object", name, "bytes", size)
	return size, nil
}

// ObjectName returns the object name Export uses for file h.
func ObjectName(prefix string, h Handle) string {
	return path.Join(prefix, strconv.FormatUint(uint64(h), 10))
}
