package fs

import "errors"

// ErrLocked is returned when the container is held by another open handle.
var ErrLocked = errors.New("file is locked by another process")

func fdOf(f File) (uintptr, bool) {
	d, ok := f.(interface{ Fd() uintptr })
	if !ok {
		return 0, false
	}
	fd := d.Fd()
	return fd, fd != ^uintptr(0)
}

// Locked takes the lock on f and returns a File whose Close releases the
// lock before closing f.
func Locked(f File) (File, error) {
	if err := Lock(f); err != nil {
		return nil, err
	}
	return &lockedFile{File: f}, nil
}

type lockedFile struct {
	File
}

func (l *lockedFile) Close() error {
	uerr := Unlock(l.File)
	if err := l.File.Close(); err != nil {
		return err
	}
	return uerr
}
