// Package stream provides a buffered, seekable view of a container file.
//
// Writes are coalesced into a single write-back window that is flushed when a
// non-contiguous write arrives, when a read overlaps it, or on Flush. Reads
// always go to the file after any overlapping window has been flushed, so the
// stream never returns stale bytes.
package stream

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/clusterfs/internal/fs"
)

// DefaultBufferSize is the size of the write-back window.
const DefaultBufferSize = 64 * 1024

var (
	ErrClosed        = errors.New("stream closed")
	ErrNegativeSeek  = errors.New("negative position")
	ErrInvalidWhence = errors.New("invalid whence")
)

// Stats counts bytes moved through the stream.
type Stats struct {
	BytesRead    int64
	BytesWritten int64
	Flushes      int64
}

// Stream is a buffered seekable stream. It is not safe for concurrent use.
type Stream struct {
	f      fs.File
	pos    int64
	length int64

	buf    []byte
	bufOff int64

	closed bool

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	flushes      atomic.Int64
}

// New wraps f. bufferSize <= 0 selects DefaultBufferSize.
func New(f fs.File, bufferSize int) (*Stream, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	size, err := fs.Size(f)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	return &Stream{
		f:      f,
		length: size,
		buf:    make([]byte, 0, bufferSize),
	}, nil
}

// Position returns the current position.
func (s *Stream) Position() int64 { return s.pos }

// Length returns the logical length, including buffered writes.
func (s *Stream) Length() int64 { return s.length }

// Seek implements io.Seeker.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		next = s.length + offset
	default:
		return s.pos, ErrInvalidWhence
	}
	if next < 0 {
		return s.pos, ErrNegativeSeek
	}
	s.pos = next
	return next, nil
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.ReadAt(p, s.pos)
	s.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// ReadAt implements io.ReaderAt.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.length {
		return 0, io.EOF
	}
	if s.overlaps(off, int64(len(p))) {
		if err := s.Flush(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.ReadAt(p, off)
	s.bytesRead.Add(int64(n))
	return n, err
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.WriteAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

// WriteAt implements io.WriterAt.
func (s *Stream) WriteAt(p []byte, off int64) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	contiguous := len(s.buf) > 0 && off == s.bufOff+int64(len(s.buf))
	if !contiguous || len(s.buf)+len(p) > cap(s.buf) {
		if err := s.Flush(); err != nil {
			return 0, err
		}
	}

	if len(p) >= cap(s.buf) {
		n, err := s.f.WriteAt(p, off)
		s.bytesWritten.Add(int64(n))
		s.extend(off + int64(n))
		return n, err
	}

	if len(s.buf) == 0 {
		s.bufOff = off
	}
	s.buf = append(s.buf, p...)
	s.extend(off + int64(len(p)))
	return len(p), nil
}

// SetLength truncates or zero-extends the stream to n bytes.
func (s *Stream) SetLength(n int64) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.Flush(); err != nil {
		return err
	}
	if err := s.f.Truncate(n); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	s.length = n
	return nil
}

// Flush writes the pending window to the file.
func (s *Stream) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	n, err := s.f.WriteAt(s.buf, s.bufOff)
	s.bytesWritten.Add(int64(n))
	s.flushes.Add(1)
	if err != nil {
		// keep the unwritten tail so a later Flush can retry
		s.buf = append(s.buf[:0], s.buf[n:]...)
		s.bufOff += int64(n)
		return fmt.Errorf("flush: %w", err)
	}
	s.buf = s.buf[:0]
	return nil
}

// Sync flushes and fsyncs the file.
func (s *Stream) Sync() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.f.Sync()
}

// Close flushes and closes the file.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	ferr := s.Flush()
	s.closed = true
	if err := s.f.Close(); err != nil {
		return err
	}
	return ferr
}

// Stats returns I/O counters.
func (s *Stream) Stats() Stats {
	return Stats{
		BytesRead:    s.bytesRead.Load(),
		BytesWritten: s.bytesWritten.Load(),
		Flushes:      s.flushes.Load(),
	}
}

func (s *Stream) overlaps(off, n int64) bool {
	if len(s.buf) == 0 {
		return false
	}
	return off < s.bufOff+int64(len(s.buf)) && s.bufOff < off+n
}

func (s *Stream) extend(end int64) {
	if end > s.length {
		s.length = end
	}
}
