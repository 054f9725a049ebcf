// Package cluster holds the in-memory view of one on-disk cluster and the
// arena that recycles those views.
package cluster

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/clusterfs/internal/format"
)

var (
	// ErrMisaligned is returned when an offset is not a multiple of the minimum cluster size.
	ErrMisaligned = errors.New("cluster offset not aligned")
	// ErrClusterTooLarge is returned when a cluster would outgrow the 16-bit length field.
	ErrClusterTooLarge = errors.New("cluster exceeds maximum size")
	// ErrCursorOverrun is returned when the cursor would move past the cluster capacity.
	ErrCursorOverrun = errors.New("cursor past cluster length")
)

// Cluster is the in-memory header of one cluster plus a read/write cursor.
//
// Size is the high-water mark of written payload bytes and Length the payload
// capacity; Size <= Length <= format.MaxPayload(min) always holds.
type Cluster struct {
	Offset   int64
	Prev     format.Handle
	Next     format.Handle
	Size     int
	Length   int
	Position int

	min   int
	dirty bool
}

// Reset repoints c at a new on-disk location and clears every field.
func (c *Cluster) Reset(offset int64, minClusterSize int) error {
	if offset%int64(minClusterSize) != 0 {
		return fmt.Errorf("%w: offset %d, min cluster size %d", ErrMisaligned, offset, minClusterSize)
	}
	*c = Cluster{Offset: offset, min: minClusterSize}
	return nil
}

// Handle returns Offset / minClusterSize.
func (c *Cluster) Handle() format.Handle {
	return format.Handle(c.Offset / int64(c.min))
}

// PayloadOffset is the absolute offset of the first payload byte.
func (c *Cluster) PayloadOffset() int64 {
	return c.Offset + format.ClusterHeaderSize
}

// Total is the on-disk footprint, header included.
func (c *Cluster) Total() int {
	return format.ClusterHeaderSize + c.Length
}

// End is the offset just past the cluster.
func (c *Cluster) End() int64 {
	return c.Offset + int64(c.Total())
}

// Available is the capacity left for writing at the cursor.
func (c *Cluster) Available() int { return c.Length - c.Position }

// Unread is the number of written bytes left for reading at the cursor.
func (c *Cluster) Unread() int {
	if c.Position >= c.Size {
		return 0
	}
	return c.Size - c.Position
}

// Dirty reports whether the header differs from disk.
func (c *Cluster) Dirty() bool { return c.dirty }

// MarkDirty flags the header for the next SaveHeader.
func (c *Cluster) MarkDirty() { c.dirty = true }

// Header returns the on-disk representation.
func (c *Cluster) Header() format.ClusterHeader {
	return format.ClusterHeader{
		Prev:   c.Prev,
		Next:   c.Next,
		Size:   uint16(c.Size),
		Length: uint16(c.Length),
	}
}

// SetHeader copies h into c without touching the cursor or dirty flag.
func (c *Cluster) SetHeader(h format.ClusterHeader) {
	c.Prev = h.Prev
	c.Next = h.Next
	c.Size = int(h.Size)
	c.Length = int(h.Length)
}

// LoadHeader reads the 12-byte header at Offset.
func (c *Cluster) LoadHeader(r io.ReaderAt) error {
	var buf [format.ClusterHeaderSize]byte
	if _, err := r.ReadAt(buf[:], c.Offset); err != nil {
		return fmt.Errorf("load cluster header at %d: %w", c.Offset, err)
	}
	c.SetHeader(format.DecodeClusterHeader(buf[:]))
	c.Position = 0
	c.dirty = false
	return nil
}

// SaveHeader writes the header if dirty. The cursor is reset either way.
func (c *Cluster) SaveHeader(w io.WriterAt) error {
	defer func() { c.Position = 0 }()
	if !c.dirty {
		return nil
	}
	var buf [format.ClusterHeaderSize]byte
	c.Header().Encode(buf[:])
	if _, err := w.WriteAt(buf[:], c.Offset); err != nil {
		return fmt.Errorf("save cluster header at %d: %w", c.Offset, err)
	}
	c.dirty = false
	return nil
}

// IncLength grows the payload capacity by n bytes.
func (c *Cluster) IncLength(n int) error {
	if c.Length+n > format.MaxPayload(c.min) {
		return fmt.Errorf("%w: %d + %d > %d", ErrClusterTooLarge, c.Length, n, format.MaxPayload(c.min))
	}
	c.Length += n
	c.dirty = true
	return nil
}

// IncPosition advances the cursor by n bytes, raising Size when the cursor
// passes the previous high-water mark.
func (c *Cluster) IncPosition(n int) error {
	if c.Position+n > c.Length {
		return fmt.Errorf("%w: %d + %d > %d", ErrCursorOverrun, c.Position, n, c.Length)
	}
	c.Position += n
	if c.Position > c.Size {
		c.Size = c.Position
		c.dirty = true
	}
	return nil
}
