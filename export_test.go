package clusterfs

import (
	"context"
	"io"
	"testing"

	"github.com/hupe1980/clusterfs/blobstore"
	"github.com/hupe1980/clusterfs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	ctx := context.Background()
	blobs := testutil.NewRNG(8).Blobs(6, 1, 5000)

	stores := map[string]blobstore.Store{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(t.TempDir()),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			metrics := &BasicMetricsCollector{}
			fsys := openTestFS(t, testPath(t), WithMinClusterSize(32), WithIOLimit(1<<30), WithMetricsCollector(metrics))

			var (
				handles []Handle
				total   int64
			)
			for i, b := range blobs {
				h := putFile(t, fsys, b)
				if i == 2 {
					require.NoError(t, fsys.DeleteFile(h))
					continue
				}
				handles = append(handles, h)
				total += int64(len(b))
			}

			files, n, err := fsys.Export(ctx, store, "backup")
			require.NoError(t, err)
			assert.Equal(t, len(handles), files)
			assert.Equal(t, total, n)

			names, err := store.List(ctx, "backup/")
			require.NoError(t, err)
			assert.Len(t, names, len(handles))

			for _, h := range handles {
				rc, err := store.Open(ctx, ObjectName("backup", h))
				require.NoError(t, err)
				got, err := io.ReadAll(rc)
				require.NoError(t, err)
				require.NoError(t, rc.Close())
				assert.Equal(t, readFile(t, fsys, h), got)
			}

			stats := metrics.GetStats()
			assert.Equal(t, int64(1), stats.ExportCount)
			assert.Equal(t, int64(files), stats.ExportFiles)
			assert.Equal(t, n, stats.ExportBytes)
		})
	}
}

func TestExport_Canceled(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	putFile(t, fsys, []byte("data"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files, _, err := fsys.Export(ctx, blobstore.NewMemoryStore(), "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, files)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "backup/17", ObjectName("backup", 17))
	assert.Equal(t, "17", ObjectName("", 17))
}
