package clusterfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/clusterfs/internal/format"
	"github.com/hupe1980/clusterfs/internal/fs"
	"github.com/hupe1980/clusterfs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.bfs")
}

func openTestFS(t *testing.T, path string, opts ...Option) *FileSystem {
	t.Helper()
	fsys, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsys.Close() })
	return fsys
}

func putFile(t *testing.T, fsys *FileSystem, data []byte) Handle {
	t.Helper()
	h, w, err := fsys.AllocFile()
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return h
}

func readFile(t *testing.T, fsys *FileSystem, h Handle) []byte {
	t.Helper()
	r, err := fsys.GetFileReader(h)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return data
}

func TestScenarios(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16))
	first := format.FirstHandle(16)
	payload := testutil.NewRNG(1).Bytes(50)

	// A: a fresh container hands out the first handle after the header.
	h, w, err := fsys.AllocFile()
	require.NoError(t, err)
	assert.Equal(t, first, h)
	assert.Equal(t, int64(format.HeaderSize), h.Offset(16))
	_, err = w.Write(payload[:10])
	require.NoError(t, err)
	require.NoError(t, fsys.Flush())
	assert.Equal(t, payload[:10], readFile(t, fsys, h))

	// B: once another file sits behind the head, writing past its end links
	// a second cluster instead of growing in place.
	neighbour := putFile(t, fsys, []byte("n"))
	w, last, err := fsys.AppendFile(h, NotSet)
	require.NoError(t, err)
	assert.Equal(t, h, last)
	_, err = w.Write(payload[10:])
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, payload, readFile(t, fsys, h))

	_, last, err = fsys.AppendFile(h, NotSet)
	require.NoError(t, err)
	assert.Greater(t, last, neighbour, "tail cluster linked after the neighbour")
	st, err := fsys.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Clusters)

	handles, err := fsys.GetAllFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Handle{h, neighbour}, handles)

	// C: the deleted handle is reused and starts empty.
	require.NoError(t, fsys.DeleteFile(h))
	got, _, err := fsys.AllocFile()
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Empty(t, readFile(t, fsys, h))
}

func TestOpen_FirstHandlePerClusterSize(t *testing.T) {
	for _, size := range []int{16, 32, 64, 128, 256} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			fsys := openTestFS(t, testPath(t), WithMinClusterSize(size))
			h := putFile(t, fsys, []byte("x"))
			assert.Equal(t, Handle(format.HeaderSize/size), h)
			assert.Equal(t, size, fsys.MinClusterSize())
		})
	}
}

func TestOpen_InvalidClusterSize(t *testing.T) {
	_, err := Open(testPath(t), WithMinClusterSize(48))
	assert.ErrorIs(t, err, ErrInvalidClusterSize)
}

func TestOpen_HeaderMismatch(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		path := testPath(t)
		require.NoError(t, os.WriteFile(path, make([]byte, format.HeaderSize), 0o644))
		_, err := Open(path)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("short header", func(t *testing.T) {
		path := testPath(t)
		require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))
		_, err := Open(path)
		assert.ErrorIs(t, err, ErrShortHeader)
	})
}

func TestOpen_ExclusiveFileLock(t *testing.T) {
	path := testPath(t)
	fsys, err := Open(path)
	require.NoError(t, err)

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, fsys.Close())
	openTestFS(t, path)
}

func TestReopenPreservesFiles(t *testing.T) {
	path := testPath(t)
	rng := testutil.NewRNG(7)
	blobs := rng.Blobs(20, 0, 3000)

	fsys, err := Open(path, WithMinClusterSize(32), WithGrowthStrategy(Exponential))
	require.NoError(t, err)
	handles := make([]Handle, len(blobs))
	for i, b := range blobs {
		handles[i] = putFile(t, fsys, b)
	}
	require.NoError(t, fsys.Close())

	fsys = openTestFS(t, path, WithMinClusterSize(32))
	got, err := fsys.GetAllFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, handles, got)
	for i, h := range handles {
		assert.Equal(t, blobs[i], readFile(t, fsys, h), "file %d", h)
	}
}

func TestFreeListIsLIFO(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	h1 := putFile(t, fsys, []byte("one"))
	h2 := putFile(t, fsys, []byte("two"))
	h3 := putFile(t, fsys, []byte("three"))

	require.NoError(t, fsys.DeleteFile(h1))
	require.NoError(t, fsys.DeleteFile(h2))

	for _, want := range []Handle{h2, h1, h3 + 1} {
		h, w, err := fsys.AllocFile()
		require.NoError(t, err)
		assert.Equal(t, want, h)
		require.NoError(t, w.Close())
	}
	assert.Equal(t, []byte("three"), readFile(t, fsys, h3))
}

func TestDeleteFile_Errors(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	h := putFile(t, fsys, []byte("data"))
	require.NoError(t, fsys.DeleteFile(h))

	assert.ErrorIs(t, fsys.DeleteFile(h), ErrNotChainHead)

	var ih *ErrInvalidHandle
	require.ErrorAs(t, fsys.DeleteFile(h+100), &ih)
	assert.Equal(t, h+100, ih.Handle)
}

func TestRewriteFile_KeepsHandle(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16))
	rng := testutil.NewRNG(3)
	long := rng.Bytes(500)
	short := rng.Bytes(40)

	h := putFile(t, fsys, long)
	other := putFile(t, fsys, []byte("neighbour"))

	w, err := fsys.RewriteFile(h)
	require.NoError(t, err)
	assert.Equal(t, h, w.Handle())
	_, err = w.Write(short)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, short, readFile(t, fsys, h))
	assert.Equal(t, []byte("neighbour"), readFile(t, fsys, other))

	n, err := fsys.FileLength(h)
	require.NoError(t, err)
	assert.Equal(t, int64(len(short)), n)
}

func TestRewriteFile_NotReused(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	h1 := putFile(t, fsys, []byte("a"))
	putFile(t, fsys, []byte("b"))
	require.NoError(t, fsys.DeleteFile(h1))

	// h1 is already free: deleting it again is rejected before reallocation.
	_, err := fsys.RewriteFile(h1)
	assert.ErrorIs(t, err, ErrNotChainHead)
}

func TestAppendFile_Hint(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16))
	rng := testutil.NewRNG(11)
	data := rng.Bytes(4000)

	h := putFile(t, fsys, nil)
	putFile(t, fsys, []byte("blocks tail growth"))

	hint := NotSet
	for _, chunk := range rng.Chunks(data, 300) {
		w, last, err := fsys.AppendFile(h, hint)
		require.NoError(t, err)
		_, err = w.Write(chunk)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		if hint != NotSet {
			assert.Equal(t, hint, last)
		}
		hint = w.Hint()
	}
	assert.Equal(t, data, readFile(t, fsys, h))
}

func TestAppendFile_RejectsInnerCluster(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16))
	h := putFile(t, fsys, make([]byte, 10))
	putFile(t, fsys, []byte("x"))

	w, _, err := fsys.AppendFile(h, NotSet)
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 100))
	require.NoError(t, err)
	inner := w.Hint()
	require.NoError(t, w.Close())
	require.NotEqual(t, h, inner)

	_, _, err = fsys.AppendFile(inner, NotSet)
	assert.ErrorIs(t, err, ErrNotChainHead)
}

func TestInterleavedFiles(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16), WithCacheSize(2))
	rng := testutil.NewRNG(5)
	a, b := rng.Bytes(2000), rng.Bytes(1500)

	ha, wa, err := fsys.AllocFile()
	require.NoError(t, err)
	hb, wb, err := fsys.AllocFile()
	require.NoError(t, err)

	ca, cb := rng.Chunks(a, 37), rng.Chunks(b, 53)
	for i := 0; i < len(ca) || i < len(cb); i++ {
		if i < len(ca) {
			_, err := wa.Write(ca[i])
			require.NoError(t, err)
		}
		if i < len(cb) {
			_, err := wb.Write(cb[i])
			require.NoError(t, err)
		}
	}
	require.NoError(t, wa.Close())
	require.NoError(t, wb.Close())

	assert.Equal(t, a, readFile(t, fsys, ha))
	assert.Equal(t, b, readFile(t, fsys, hb))
}

func TestFile_Seek(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16))
	data := testutil.NewRNG(9).Bytes(200)
	h := putFile(t, fsys, data)

	f, err := fsys.OpenFile(h)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 10)
	pos, err := f.Seek(100, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(100), pos)
	_, err = io.ReadFull(f, buf)
	require.NoError(t, err)
	assert.Equal(t, data[100:110], buf)

	pos, err = f.Seek(10, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(120), pos)

	pos, err = f.Seek(-5, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(195), pos)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, data[195:], rest)

	pos, err = f.Seek(1000, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(200), pos, "clamped to the end")

	_, err = f.Seek(-1, io.SeekStart)
	assert.Error(t, err)

	n, err := f.Len()
	require.NoError(t, err)
	assert.Equal(t, int64(200), n)
}

func TestFile_OverwriteInPlace(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16))
	data := testutil.NewRNG(2).Bytes(100)
	h := putFile(t, fsys, data)

	f, err := fsys.OpenFile(h)
	require.NoError(t, err)
	_, err = f.Seek(40, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte("patched"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	want := bytes.Clone(data)
	copy(want[40:], "patched")
	assert.Equal(t, want, readFile(t, fsys, h))
}

func TestGetAllFiles(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	var handles []Handle
	for i := 0; i < 5; i++ {
		handles = append(handles, putFile(t, fsys, []byte{byte(i)}))
	}
	require.NoError(t, fsys.DeleteFile(handles[1]))
	require.NoError(t, fsys.DeleteFile(handles[3]))

	got, err := fsys.GetAllFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Handle{handles[0], handles[2], handles[4]}, got)

	t.Run("keepGoing aborts", func(t *testing.T) {
		calls := 0
		got, err := fsys.GetAllFiles(context.Background(), func() bool {
			calls++
			return calls <= 2
		})
		assert.ErrorIs(t, err, ErrAborted)
		assert.Equal(t, []Handle{handles[0]}, got)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := fsys.GetAllFiles(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRepair(t *testing.T) {
	path := testPath(t)
	fsys, err := Open(path)
	require.NoError(t, err)
	putFile(t, fsys, []byte("before"))
	require.NoError(t, fsys.Close())

	// Simulate a torn append.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fsys = openTestFS(t, path)
	_, _, err = fsys.AllocFile()
	assert.ErrorIs(t, err, ErrMisaligned)

	padded, err := fsys.Repair()
	require.NoError(t, err)
	assert.Equal(t, int64(format.DefaultMinClusterSize-5), padded)

	h := putFile(t, fsys, []byte("after"))
	assert.Equal(t, []byte("after"), readFile(t, fsys, h))

	padded, err = fsys.Repair()
	require.NoError(t, err)
	assert.Zero(t, padded)
}

func TestFaultInjection(t *testing.T) {
	errInjected := errors.New("disk full")
	faulty := fs.NewFaultyFS(nil)
	faulty.AddRule("test.bfs", fs.Fault{FailAfterBytes: format.HeaderSize, Err: errInjected})

	fsys, err := Open(testPath(t), withFileSystem(faulty), WithoutFileLock())
	require.NoError(t, err, "header fits the budget")
	defer func() { _ = fsys.Close() }()

	_, w, err := fsys.AllocFile()
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 1000))
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, int64(format.HeaderSize), faulty.Written())
}

func TestClosedFileSystem(t *testing.T) {
	fsys, err := Open(testPath(t))
	require.NoError(t, err)
	h := putFile(t, fsys, []byte("data"))
	f, err := fsys.OpenFile(h)
	require.NoError(t, err)

	require.NoError(t, fsys.Close())
	require.NoError(t, fsys.Close(), "second close is a no-op")

	_, _, err = fsys.AllocFile()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = fsys.OpenFile(h)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, f.Close())
	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrFileClosed)
}

func TestManualFlush(t *testing.T) {
	path := testPath(t)
	fsys, err := Open(path, WithManualFlush())
	require.NoError(t, err)
	assert.True(t, fsys.ManualFlush())
	fsys.SetManualFlush(false)
	assert.False(t, fsys.ManualFlush())
	require.NoError(t, fsys.Close())
}

func TestSetters(t *testing.T) {
	fsys := openTestFS(t, testPath(t))

	assert.Equal(t, Quadratic, fsys.GrowthStrategy())
	fsys.SetGrowthStrategy(Exponential)
	assert.Equal(t, Exponential, fsys.GrowthStrategy())

	assert.Equal(t, DefaultCacheSize, fsys.CacheSize())
	require.NoError(t, fsys.SetCacheSize(8))
	assert.Equal(t, 8, fsys.CacheSize())
	fsys.SetCacheStrategy(CacheFIFO)

	data := testutil.NewRNG(4).Bytes(5000)
	h := putFile(t, fsys, data)
	assert.Equal(t, data, readFile(t, fsys, h))
}

func TestStats(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	h1 := putFile(t, fsys, make([]byte, 10))
	putFile(t, fsys, make([]byte, 10))
	putFile(t, fsys, make([]byte, 10))
	require.NoError(t, fsys.DeleteFile(h1))

	st, err := fsys.Stats(context.Background())
	require.NoError(t, err)
	payload := int64(format.DefaultMinClusterSize - format.ClusterHeaderSize)
	assert.Equal(t, 3, st.Clusters)
	assert.Equal(t, 2, st.LiveFiles)
	assert.Equal(t, 1, st.FreeChains)
	assert.Equal(t, int64(20), st.UsedBytes)
	assert.Equal(t, 3*payload, st.CapacityBytes)
	assert.Equal(t, int64(format.HeaderSize+3*format.DefaultMinClusterSize), st.Length)
	assert.Positive(t, st.CacheHits)
}

func TestDeleteFile_OlderFreeChainTwice(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	h1 := putFile(t, fsys, []byte("one"))
	h2 := putFile(t, fsys, []byte("two"))
	require.NoError(t, fsys.DeleteFile(h1))
	require.NoError(t, fsys.DeleteFile(h2))

	// h1 ends the free list, so its prev is NotSet like a live head.
	assert.ErrorIs(t, fsys.DeleteFile(h1), ErrNotChainHead)
	_, _, err := fsys.AppendFile(h1, NotSet)
	assert.ErrorIs(t, err, ErrNotChainHead)

	handles, err := fsys.GetAllFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestSmallCache_ReadsOwnBytes(t *testing.T) {
	path := testPath(t)
	fsys, err := Open(path, WithMinClusterSize(16), WithCacheSize(2))
	require.NoError(t, err)

	names := []string{"axy", "bxy", "cxy", "dxy", "exy"}
	handles := make([]Handle, len(names))
	for i, n := range names {
		handles[i] = putFile(t, fsys, []byte(n))
	}
	for i, h := range handles {
		assert.Equal(t, []byte(names[i]), readFile(t, fsys, h), "file %d", h)
	}
	require.NoError(t, fsys.Close())

	fsys = openTestFS(t, path, WithMinClusterSize(16), WithCacheSize(2))
	for i, h := range handles {
		assert.Equal(t, []byte(names[i]), readFile(t, fsys, h), "file %d after reopen", h)
	}
}
