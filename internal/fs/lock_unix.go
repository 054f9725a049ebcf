//go:build unix

package fs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Lock takes an exclusive, non-blocking advisory lock on f.
// It returns ErrLocked when another descriptor already holds it.
func Lock(f File) error {
	fd, ok := fdOf(f)
	if !ok {
		return nil
	}
	if err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return fmt.Errorf("flock: %w", err)
	}
	return nil
}

// Unlock releases a lock taken by Lock.
func Unlock(f File) error {
	fd, ok := fdOf(f)
	if !ok {
		return nil
	}
	return unix.Flock(int(fd), unix.LOCK_UN)
}
