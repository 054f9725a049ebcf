package clusterfs

import (
	"testing"

	"github.com/hupe1980/clusterfs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobs(t *testing.T) {
	rng := testutil.NewRNG(42)
	text := rng.Text(20000)
	noise := rng.Bytes(3000)

	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			fsys := openTestFS(t, testPath(t), WithCodec(codec))

			h, err := fsys.PutBlob(text)
			require.NoError(t, err)
			got, err := fsys.GetBlob(h)
			require.NoError(t, err)
			assert.Equal(t, text, got)

			stored, err := fsys.FileLength(h)
			require.NoError(t, err)
			if codec == CodecNone {
				assert.Greater(t, stored, int64(len(text)))
			} else {
				assert.Less(t, stored, int64(len(text)/2))
			}

			require.NoError(t, fsys.ReplaceBlob(h, noise))
			got, err = fsys.GetBlob(h)
			require.NoError(t, err)
			assert.Equal(t, noise, got)

			empty, err := fsys.PutBlob(nil)
			require.NoError(t, err)
			got, err = fsys.GetBlob(empty)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestGetBlob_NotAFrame(t *testing.T) {
	fsys := openTestFS(t, testPath(t))
	h := putFile(t, fsys, []byte{9, 9})

	_, err := fsys.GetBlob(h)
	assert.Error(t, err)
}
