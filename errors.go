package clusterfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/clusterfs/internal/chain"
	"github.com/hupe1980/clusterfs/internal/cluster"
	"github.com/hupe1980/clusterfs/internal/compress"
	"github.com/hupe1980/clusterfs/internal/format"
	"github.com/hupe1980/clusterfs/internal/fs"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("clusterfs: file system closed")
	// ErrFileClosed is returned by File methods after File.Close.
	ErrFileClosed = errors.New("clusterfs: file closed")
	// ErrHandleNotReused is returned when RewriteFile does not get its handle
	// back from the allocator.
	ErrHandleNotReused = errors.New("clusterfs: rewrite did not reuse handle")
	// ErrNotChainHead is returned when a handle names a cluster that is not
	// the head of a live file.
	ErrNotChainHead = chain.ErrNotChainHead
	// ErrCorruptChain is returned when a chain loops or links outside the container.
	ErrCorruptChain = chain.ErrCorruptChain
	// ErrAborted is returned by GetAllFiles when the caller's predicate stops it.
	ErrAborted = errors.New("clusterfs: enumeration aborted")
	// ErrLocked is returned by Open when another process holds the container.
	ErrLocked = fs.ErrLocked
	// ErrLockNotHeld is returned by mutating operations when lock enforcement
	// is on and no Guard is held.
	ErrLockNotHeld = errors.New("clusterfs: lock not held")

	ErrInvalidMagic       = format.ErrInvalidMagic
	ErrInvalidVersion     = format.ErrInvalidVersion
	ErrInvalidClusterSize = format.ErrInvalidClusterSize
	ErrShortHeader        = format.ErrShortHeader
	ErrMisaligned         = cluster.ErrMisaligned
	ErrClusterTooLarge    = cluster.ErrClusterTooLarge
	ErrCursorOverrun      = cluster.ErrCursorOverrun
	ErrUnknownCodec       = compress.ErrUnknownCodec
)

// ErrInvalidHandle indicates a handle outside the cluster stream.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidHandle struct {
	Handle Handle
	cause  error
}

func (e *ErrInvalidHandle) Error() string {
	return fmt.Sprintf("clusterfs: invalid handle %d", e.Handle)
}

func (e *ErrInvalidHandle) Unwrap() error { return e.cause }

func translateError(err error, h Handle) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, chain.ErrInvalidHandle) {
		return &ErrInvalidHandle{Handle: h, cause: err}
	}
	if errors.Is(err, chain.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}
