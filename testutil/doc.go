// Package testutil provides testing utilities for clusterfs.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded generators for blob payloads and helpers that build
// mixed workloads of small and large blobs.
//
// # Payload Generation
//
//	rng := testutil.NewRNG(seed)
//	blob := rng.Bytes(4096)
//	blobs := rng.Blobs(100, 1, 70_000) // sizes in [1, 70000]
//
// # Compressible Data
//
//	text := rng.Text(1 << 20) // repetitive, compresses well
package testutil
