package clusterfs

import (
	"context"

	"github.com/hupe1980/clusterfs/internal/format"
)

// Stats describes a container's layout and its header cache.
type Stats struct {
	// Length is the container size in bytes, header included.
	Length int64
	// Clusters is the number of clusters in the container.
	Clusters int
	// LiveFiles is the number of live chains.
	LiveFiles int
	// FreeChains is the number of deleted chains awaiting reuse.
	FreeChains int
	// UsedBytes is the sum of all cluster sizes (stored data).
	UsedBytes int64
	// CapacityBytes is the sum of all cluster payload capacities.
	CapacityBytes int64

	CacheHits      int64
	CacheMisses    int64
	CacheEvictions int64

	BytesRead    int64
	BytesWritten int64
	Flushes      int64
}

// Stats scans the container and returns a snapshot of its layout.
func (fsys *FileSystem) Stats(ctx context.Context) (Stats, error) {
	if err := fsys.usable(); err != nil {
		return Stats{}, err
	}
	free, err := fsys.freeSet()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	err = fsys.engine.Scan(ctx, fsys.rc, func(h format.Handle, hdr format.ClusterHeader) bool {
		st.Clusters++
		st.UsedBytes += int64(hdr.Size)
		st.CapacityBytes += int64(hdr.Length)
		if hdr.Prev == NotSet && !free.Contains(uint32(h)) {
			st.LiveFiles++
		}
		return true
	})
	if err != nil {
		return Stats{}, err
	}

	es := fsys.engine.Stats()
	st.Length = es.Length
	st.FreeChains = int(free.GetCardinality())
	st.CacheHits = es.Cache.Hits
	st.CacheMisses = es.Cache.Misses
	st.CacheEvictions = es.Cache.Evictions
	st.BytesRead = es.Stream.BytesRead
	st.BytesWritten = es.Stream.BytesWritten
	st.Flushes = es.Stream.Flushes
	return st, nil
}
