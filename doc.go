// Package clusterfs stores many variable-length binary files in a single
// container file.
//
// Each file is a chain of clusters addressed by a small integer Handle. A
// chain grows in place while its last cluster is the physical tail of the
// container and otherwise links a new, larger cluster. Deleted chains are kept
// whole on a free list and handed back, most recent first, to the next
// AllocFile.
//
// # Quick Start
//
//	fsys, _ := clusterfs.Open("data.bfs")
//	defer fsys.Close()
//
//	h, w, _ := fsys.AllocFile()
//	w.Write([]byte("hello"))
//	w.Close()
//
//	r, _ := fsys.OpenFile(h)
//	data, _ := io.ReadAll(r)
//
// Appending resumes at the end of a file; the returned hint skips the chain
// walk on the next append:
//
//	w, hint, _ := fsys.AppendFile(h, clusterfs.NotSet)
//	w.Write(more)
//	w, hint, _ = fsys.AppendFile(h, w.Hint())
//
// # Blobs
//
// PutBlob, GetBlob and ReplaceBlob store whole payloads as compressed frames:
//
//	fsys, _ := clusterfs.Open("data.bfs", clusterfs.WithCodec(clusterfs.CodecZstd))
//	h, _ := fsys.PutBlob(payload)
//	payload, _ = fsys.GetBlob(h)
//
// # On-Disk Format
//
// The first 256 bytes hold the header: the length-prefixed magic
// "BlobFileSystem", a version and the head of the free list. Clusters follow,
// each at an offset that is a multiple of the minimum cluster size:
//
//	[prev:4][next:4][size:2][length:2][payload:length]
//
// All integers are little endian. A Handle is offset / minimum cluster size.
// The minimum cluster size is not recorded in the header; reopen a container
// with the size it was created with.
//
// # Concurrency
//
// A FileSystem is not safe for concurrent use. Bracket each operation
// sequence with Lock and Guard.Unlock; WithLockEnforcement turns unguarded
// mutations into ErrLockNotHeld. The container file itself carries an
// advisory lock so a second process cannot open it.
//
// # Durability
//
// There is no journal. Headers are cached and written by Flush, by Close and
// whenever a chain is deleted or reused. A crash during an append can leave a
// torn tail; Repair pads it to the next cluster boundary.
//
// # Export
//
// Export copies every live file to a blobstore.Store (local directory, MinIO
// or S3):
//
//	files, size, err := fsys.Export(ctx, blobstore.NewLocalStore("backup"), "data")
package clusterfs
