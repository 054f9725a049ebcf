// Package cache keeps a bounded set of cluster headers in memory.
//
// Records live in a fixed cluster.Arena. A miss on a full cache evicts the
// strategy's victim: its header is written back if dirty and its slot is
// handed to the incoming cluster, so the cache never holds more records than
// its capacity.
//
// # Strategies
//
//   - LRU (default): evicts the least recently used header
//   - FIFO: evicts the oldest inserted header
//
// Dirty headers are written back in ascending handle order on Flush, using a
// roaring bitmap to sort them, so write-back is sequential on disk.
package cache
