package compress

import (
	"testing"

	"github.com/hupe1980/clusterfs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	rng := testutil.NewRNG(42)
	text := rng.Text(64 * 1024)
	noise := rng.Bytes(4096)

	for _, codec := range []Codec{None, LZ4, Zstd} {
		t.Run(codec.String(), func(t *testing.T) {
			for _, data := range [][]byte{text, noise, {}} {
				frame, err := Encode(data, codec)
				require.NoError(t, err)

				got, err := Decode(frame)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.Equal(t, data, got)
			}
		})
	}
}

func TestEncode_FallsBackToNone(t *testing.T) {
	noise := testutil.NewRNG(1).Bytes(4096)

	frame, err := Encode(noise, Zstd)
	require.NoError(t, err)
	codec, size, err := Peek(frame)
	require.NoError(t, err)
	assert.Equal(t, None, codec)
	assert.Equal(t, uint32(4096), size)
	assert.Len(t, frame, FrameHeaderSize+4096)
}

func TestEncode_Compresses(t *testing.T) {
	text := testutil.NewRNG(1).Text(64 * 1024)

	for _, codec := range []Codec{LZ4, Zstd} {
		frame, err := Encode(text, codec)
		require.NoError(t, err)
		got, _, err := Peek(frame)
		require.NoError(t, err)
		assert.Equal(t, codec, got)
		assert.Less(t, len(frame), len(text)/2)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortFrame)

	_, err = Decode([]byte{9, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrUnknownCodec)

	_, err = Decode([]byte{0, 10, 0, 0, 0, 'a'})
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestParseCodec(t *testing.T) {
	for _, c := range []Codec{None, LZ4, Zstd} {
		got, err := ParseCodec(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCodec("brotli")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
