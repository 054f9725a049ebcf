// Package format defines the on-disk layout of a cluster file system container.
//
// A container starts with a fixed 256-byte header followed by a stream of
// clusters. Every cluster starts at a multiple of the minimum cluster size and
// carries a 12-byte header:
//
//	[prev:4][next:4][size:2][length:2][payload:length]
//
// All integers are little endian.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the size of the file system header at offset 0.
	HeaderSize = 256
	// ClusterHeaderSize is the size of the per-cluster header.
	ClusterHeaderSize = 12
	// Version is the only supported container version.
	Version = 1
	// Magic identifies a container. It is stored with a one byte length prefix.
	Magic = "BlobFileSystem"
	// DefaultMinClusterSize is used when the caller does not pick one.
	DefaultMinClusterSize = 64
)

var (
	ErrInvalidMagic       = errors.New("invalid magic string")
	ErrInvalidVersion     = errors.New("unsupported version")
	ErrInvalidClusterSize = errors.New("invalid minimum cluster size")
	ErrShortHeader        = errors.New("short header")
)

// Handle addresses a cluster: its byte offset divided by the minimum cluster size.
type Handle uint32

// NotSet is the sentinel handle. It never addresses a cluster.
const NotSet Handle = 0

// ValidMinClusterSize reports whether n is one of 16, 32, 64, 128 or 256.
func ValidMinClusterSize(n int) bool {
	switch n {
	case 16, 32, 64, 128, 256:
		return true
	}
	return false
}

// MaxClusterSize is the largest on-disk size (header included) of a cluster.
// It keeps size and length inside their 16-bit fields.
func MaxClusterSize(minClusterSize int) int {
	return 0x10000 - minClusterSize
}

// MaxPayload is the largest payload capacity of a single cluster.
func MaxPayload(minClusterSize int) int {
	return MaxClusterSize(minClusterSize) - ClusterHeaderSize
}

// Offset converts a handle into its byte offset.
func (h Handle) Offset(minClusterSize int) int64 {
	return int64(h) * int64(minClusterSize)
}

// HandleOf converts an aligned byte offset into a handle.
func HandleOf(offset int64, minClusterSize int) (Handle, error) {
	if offset%int64(minClusterSize) != 0 {
		return NotSet, fmt.Errorf("offset %d not a multiple of %d", offset, minClusterSize)
	}
	return Handle(offset / int64(minClusterSize)), nil
}

// FirstHandle is the handle of the first cluster after the header.
func FirstHandle(minClusterSize int) Handle {
	return Handle(HeaderSize / minClusterSize)
}

// Header is the file system header at offset 0.
type Header struct {
	Version   int32
	FirstFree Handle // head of the deleted-chain free list
}

// NewHeader returns the header of an empty container.
func NewHeader() Header {
	return Header{Version: Version}
}

// MarshalBinary encodes the header into its fixed 256-byte form.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(len(Magic))
	n := 1 + copy(buf[1:], Magic)
	binary.LittleEndian.PutUint32(buf[n:], uint32(h.Version))
	binary.LittleEndian.PutUint32(buf[n+4:], uint32(h.FirstFree))
	// remainder reserved
	return buf, nil
}

// UnmarshalBinary decodes and validates a header.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: got %d bytes", ErrShortHeader, len(buf))
	}
	if int(buf[0]) != len(Magic) || string(buf[1:1+len(Magic)]) != Magic {
		return fmt.Errorf("%w: got %q", ErrInvalidMagic, buf[1:1+len(Magic)])
	}
	n := 1 + len(Magic)
	version := int32(binary.LittleEndian.Uint32(buf[n:]))
	if version != Version {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, version)
	}
	h.Version = version
	h.FirstFree = Handle(binary.LittleEndian.Uint32(buf[n+4:]))
	return nil
}

// ClusterHeader is the fixed prefix of every cluster.
type ClusterHeader struct {
	Prev   Handle
	Next   Handle
	Size   uint16 // bytes written, high-water mark
	Length uint16 // payload capacity
}

// Encode writes the header into buf, which must hold ClusterHeaderSize bytes.
func (c ClusterHeader) Encode(buf []byte) {
	_ = buf[ClusterHeaderSize-1]
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.Prev))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.Next))
	binary.LittleEndian.PutUint16(buf[8:10], c.Size)
	binary.LittleEndian.PutUint16(buf[10:12], c.Length)
}

// DecodeClusterHeader reads a header from buf.
func DecodeClusterHeader(buf []byte) ClusterHeader {
	_ = buf[ClusterHeaderSize-1]
	return ClusterHeader{
		Prev:   Handle(binary.LittleEndian.Uint32(buf[0:4])),
		Next:   Handle(binary.LittleEndian.Uint32(buf[4:8])),
		Size:   binary.LittleEndian.Uint16(buf[8:10]),
		Length: binary.LittleEndian.Uint16(buf[10:12]),
	}
}

// Total is the on-disk footprint of the cluster, header included.
func (c ClusterHeader) Total() int {
	return ClusterHeaderSize + int(c.Length)
}
