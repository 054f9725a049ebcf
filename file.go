package clusterfs

import (
	"errors"
	"io"

	"github.com/hupe1980/clusterfs/internal/chain"
)

// File is a seekable stream over one file's chain.
//
// Files share the container's single engine: each call restores the file's
// own cursor before touching the engine, so several Files may be used in
// turn. They must not be used concurrently.
type File struct {
	fsys   *FileSystem
	head   Handle
	cur    chain.Cursor
	pos    int64 // logical offset, -1 until known
	closed bool
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

var errNegativeOffset = errors.New("clusterfs: negative offset")

func (fsys *FileSystem) newFile(h Handle, pos int64) *File {
	return &File{
		fsys: fsys,
		head: h,
		cur:  fsys.engine.Cursor(),
		pos:  pos,
	}
}

// Handle returns the file's handle.
func (f *File) Handle() Handle { return f.head }

// Hint returns the cluster the cursor is in. After appending, pass it to
// AppendFile to resume without walking the chain.
func (f *File) Hint() Handle { return f.cur.Cluster }

// Read implements io.Reader. It returns io.EOF at the end of the file.
func (f *File) Read(p []byte) (int, error) {
	if err := f.enter(); err != nil {
		return 0, err
	}
	n, err := f.fsys.engine.Read(p)
	f.leave(n)
	if err != nil {
		return n, translateError(err, f.head)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. Bytes past the end of the file extend it;
// bytes before the end overwrite in place.
func (f *File) Write(p []byte) (int, error) {
	if err := f.enter(); err != nil {
		return 0, err
	}
	if err := f.fsys.mutable(); err != nil {
		return 0, err
	}
	n, err := f.fsys.engine.Write(p)
	f.leave(n)
	return n, translateError(err, f.head)
}

// Seek implements io.Seeker. Offsets past the end of the file are clamped to
// the end; the clamped offset is returned.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.enter(); err != nil {
		return 0, err
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		pos, err := f.position()
		if err != nil {
			return 0, err
		}
		target = pos + offset
	case io.SeekEnd:
		n, err := f.fsys.engine.ChainLength(f.head)
		if err != nil {
			return 0, translateError(err, f.head)
		}
		target = n + offset
	default:
		return 0, errors.New("clusterfs: invalid whence")
	}
	if target < 0 {
		return 0, errNegativeOffset
	}
	reached, err := f.fsys.engine.SeekTo(f.head, target)
	if err != nil {
		return 0, translateError(err, f.head)
	}
	f.cur = f.fsys.engine.Cursor()
	f.pos = reached
	return reached, nil
}

// Len returns the number of bytes stored in the file.
func (f *File) Len() (int64, error) {
	if err := f.enter(); err != nil {
		return 0, err
	}
	n, err := f.fsys.engine.ChainLength(f.head)
	return n, translateError(err, f.head)
}

// Close releases the file and flushes the container unless manual flush is on.
// Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.fsys.closed || f.fsys.ManualFlush() {
		return nil
	}
	return f.fsys.Flush()
}

func (f *File) enter() error {
	if f.closed {
		return ErrFileClosed
	}
	if err := f.fsys.usable(); err != nil {
		return err
	}
	return translateError(f.fsys.engine.Restore(f.cur), f.head)
}

func (f *File) leave(n int) {
	f.cur = f.fsys.engine.Cursor()
	if f.pos >= 0 {
		f.pos += int64(n)
	}
}

// position returns the logical offset. Files opened by AppendFile learn it
// lazily: their cursor sits at the end until they seek.
func (f *File) position() (int64, error) {
	if f.pos < 0 {
		n, err := f.fsys.engine.ChainLength(f.head)
		if err != nil {
			return 0, translateError(err, f.head)
		}
		f.pos = n
	}
	return f.pos, nil
}
