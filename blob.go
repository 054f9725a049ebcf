package clusterfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hupe1980/clusterfs/internal/compress"
)

// PutBlob stores data as a new file, compressed with the configured codec,
// and returns its handle.
func (fsys *FileSystem) PutBlob(data []byte) (Handle, error) {
	frame, err := compress.Encode(data, fsys.opts.codec)
	if err != nil {
		return NotSet, err
	}
	h, f, err := fsys.AllocFile()
	if err != nil {
		return NotSet, err
	}
	if err := writeAll(f, frame); err != nil {
		return NotSet, err
	}
	return h, nil
}

// ReplaceBlob rewrites file h with data, keeping the handle.
func (fsys *FileSystem) ReplaceBlob(h Handle, data []byte) error {
	frame, err := compress.Encode(data, fsys.opts.codec)
	if err != nil {
		return err
	}
	f, err := fsys.RewriteFile(h)
	if err != nil {
		return err
	}
	return writeAll(f, frame)
}

// GetBlob reads file h and decodes the frame written by PutBlob or
// ReplaceBlob. The codec is taken from the frame, not from the options.
func (fsys *FileSystem) GetBlob(h Handle) ([]byte, error) {
	f, err := fsys.OpenFile(h)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}
	data, err := compress.Decode(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("blob %d: %w", h, err)
	}
	return data, nil
}

func writeAll(f *File, p []byte) error {
	if _, err := f.Write(p); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
