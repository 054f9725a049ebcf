// Package compress encodes blob payloads into self-describing frames.
//
// Frame layout: [codec:1][raw length:4][payload]. The raw length is little
// endian. A frame whose codec is None carries the payload verbatim; Encode
// falls back to None whenever compression does not pay off.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression algorithm.
type Codec uint8

const (
	// None stores the payload verbatim.
	None Codec = 0
	// LZ4 is LZ4 block compression (fast, good for hot data).
	LZ4 Codec = 1
	// Zstd is Zstandard compression (better ratio, good for cold data).
	Zstd Codec = 2
)

// FrameHeaderSize is the size of the frame prefix.
const FrameHeaderSize = 5

var (
	ErrShortFrame      = errors.New("frame too small for header")
	ErrUnknownCodec    = errors.New("unknown codec")
	ErrSizeMismatch    = errors.New("decompressed size mismatch")
	ErrPayloadTooLarge = errors.New("payload exceeds 4 GiB")
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	}
	return fmt.Sprintf("Codec(%d)", uint8(c))
}

// ParseCodec parses the output of Codec.String.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data with codec and returns a frame.
func Encode(data []byte, codec Codec) ([]byte, error) {
	if uint64(len(data)) > 0xFFFFFFFF {
		return nil, ErrPayloadTooLarge
	}

	var compressed []byte
	switch codec {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		compressed = buf[:n] // n == 0 means incompressible
	case Zstd:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}

	// Store verbatim if compression doesn't help (ratio > 0.9).
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		codec, compressed = None, data
	}

	frame := make([]byte, FrameHeaderSize+len(compressed))
	frame[0] = byte(codec)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(data)))
	copy(frame[FrameHeaderSize:], compressed)
	return frame, nil
}

// Decode reverses Encode.
func Decode(frame []byte) ([]byte, error) {
	codec, size, err := Peek(frame)
	if err != nil {
		return nil, err
	}
	payload := frame[FrameHeaderSize:]

	switch codec {
	case None:
		if uint32(len(payload)) != size {
			return nil, fmt.Errorf("%w: frame holds %d of %d bytes", ErrSizeMismatch, len(payload), size)
		}
		return payload, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if uint32(n) != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if uint32(len(out)) != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
}

// Peek returns the codec and raw length recorded in a frame header.
func Peek(frame []byte) (Codec, uint32, error) {
	if len(frame) < FrameHeaderSize {
		return None, 0, ErrShortFrame
	}
	return Codec(frame[0]), binary.LittleEndian.Uint32(frame[1:]), nil
}
