// Package s3 provides an Amazon S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("us-east-1"))
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "containers/")
//
//	n, size, err := fsys.Export(ctx, store, "logs.bfs")
//
// # Features
//
//   - Single PutObject with CRC32C checksum for objects up to one part
//   - Multipart uploads through the transfer manager for larger or unsized objects
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
