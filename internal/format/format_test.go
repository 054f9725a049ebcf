package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_Layout(t *testing.T) {
	h := Header{Version: Version, FirstFree: 42}
	buf, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	assert.Equal(t, byte(len(Magic)), buf[0])
	assert.Equal(t, Magic, string(buf[1:15]))
	assert.Equal(t, []byte{1, 0, 0, 0}, buf[15:19])
	assert.Equal(t, []byte{42, 0, 0, 0}, buf[19:23])
	for _, b := range buf[23:] {
		assert.Zero(t, b)
	}

	var got Header
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Equal(t, h, got)
}

func TestHeader_Invalid(t *testing.T) {
	good, _ := NewHeader().MarshalBinary()

	t.Run("short", func(t *testing.T) {
		var h Header
		assert.ErrorIs(t, h.UnmarshalBinary(good[:100]), ErrShortHeader)
	})

	t.Run("magic", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[3] = 'X'
		var h Header
		assert.ErrorIs(t, h.UnmarshalBinary(bad), ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[15] = 2
		var h Header
		assert.ErrorIs(t, h.UnmarshalBinary(bad), ErrInvalidVersion)
	})
}

func TestClusterHeader_Encode(t *testing.T) {
	c := ClusterHeader{Prev: 0x01020304, Next: 7, Size: 0x0a0b, Length: 0xfff0}
	buf := make([]byte, ClusterHeaderSize)
	c.Encode(buf)

	assert.Equal(t, []byte{4, 3, 2, 1, 7, 0, 0, 0, 0x0b, 0x0a, 0xf0, 0xff}, buf)
	assert.Equal(t, c, DecodeClusterHeader(buf))
	assert.Equal(t, 0xfff0+ClusterHeaderSize, c.Total())
}

func TestHandles(t *testing.T) {
	for _, min := range []int{16, 32, 64, 128, 256} {
		assert.True(t, ValidMinClusterSize(min))
		assert.LessOrEqual(t, MaxPayload(min), 0xffff)

		first := FirstHandle(min)
		assert.Equal(t, int64(HeaderSize), first.Offset(min))

		h, err := HandleOf(first.Offset(min), min)
		require.NoError(t, err)
		assert.Equal(t, first, h)
	}

	assert.False(t, ValidMinClusterSize(8))
	assert.False(t, ValidMinClusterSize(100))
	assert.Equal(t, Handle(1), FirstHandle(256))

	_, err := HandleOf(257, 16)
	assert.Error(t, err)
}
