package clusterfs

import (
	"context"
	"sync/atomic"
)

// Guard is held while a caller has exclusive use of a FileSystem.
// It is released with Unlock; further Unlock calls are no-ops.
type Guard struct {
	fsys     *FileSystem
	released atomic.Bool
}

// Lock waits until no other Guard is held, or ctx ends.
//
// The engine never locks on its own. Callers sharing a FileSystem take a
// Guard around every sequence of operations that must not interleave.
func (fsys *FileSystem) Lock(ctx context.Context) (*Guard, error) {
	if err := fsys.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Guard{fsys: fsys}, nil
}

// TryLock takes the lock without waiting. It reports false if it is held.
func (fsys *FileSystem) TryLock() (*Guard, bool) {
	if !fsys.sem.TryAcquire(1) {
		return nil, false
	}
	return &Guard{fsys: fsys}, true
}

// Unlock releases the guard.
func (g *Guard) Unlock() {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	g.fsys.sem.Release(1)
}

// WithLock runs fn while holding the lock.
func (fsys *FileSystem) WithLock(ctx context.Context, fn func() error) error {
	g, err := fsys.Lock(ctx)
	if err != nil {
		return err
	}
	defer g.Unlock()
	return fn()
}
