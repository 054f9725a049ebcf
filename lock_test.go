package clusterfs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_TryLock(t *testing.T) {
	fsys := openTestFS(t, testPath(t))

	g, ok := fsys.TryLock()
	require.True(t, ok)

	_, ok = fsys.TryLock()
	assert.False(t, ok, "held")

	g.Unlock()
	g.Unlock()

	g2, ok := fsys.TryLock()
	require.True(t, ok, "second Unlock must not release twice")
	_, ok = fsys.TryLock()
	assert.False(t, ok)
	g2.Unlock()
}

func TestLock_ContextCanceled(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	g, err := fsys.Lock(context.Background())
	require.NoError(t, err)
	defer g.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = fsys.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLock_SerializesWriters(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithMinClusterSize(16))
	ctx := context.Background()

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		handles = make(map[Handle]byte)
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			err := fsys.WithLock(ctx, func() error {
				h, w, err := fsys.AllocFile()
				if err != nil {
					return err
				}
				if _, err := w.Write([]byte{b, b, b, b, b, b, b, b}); err != nil {
					return err
				}
				mu.Lock()
				handles[h] = b
				mu.Unlock()
				return w.Close()
			})
			assert.NoError(t, err)
		}(byte(i))
	}
	wg.Wait()

	require.Len(t, handles, writers)
	for h, b := range handles {
		assert.Equal(t, []byte{b, b, b, b, b, b, b, b}, readFile(t, fsys, h))
	}
}

func TestLockEnforcement(t *testing.T) {
	fsys := openTestFS(t, testPath(t), WithLockEnforcement())
	ctx := context.Background()

	_, _, err := fsys.AllocFile()
	assert.ErrorIs(t, err, ErrLockNotHeld)

	var h Handle
	require.NoError(t, fsys.WithLock(ctx, func() error {
		var w *File
		var err error
		h, w, err = fsys.AllocFile()
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("guarded")); err != nil {
			return err
		}
		return w.Close()
	}))

	// Reads do not need the guard.
	assert.Equal(t, []byte("guarded"), readFile(t, fsys, h))

	f, err := fsys.OpenFile(h)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrLockNotHeld)

	assert.ErrorIs(t, fsys.DeleteFile(h), ErrLockNotHeld)
	_, err = fsys.RewriteFile(h)
	assert.ErrorIs(t, err, ErrLockNotHeld)
}
