package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	r.rand.Read(b)
	return b
}

// Blobs returns num payloads with sizes drawn uniformly from [minSize, maxSize].
// Uses a single backing array for efficiency.
func (r *RNG) Blobs(num, minSize, maxSize int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizes := make([]int, num)
	total := 0
	for i := range sizes {
		sizes[i] = minSize + r.rand.Intn(maxSize-minSize+1)
		total += sizes[i]
	}

	data := make([]byte, total)
	r.rand.Read(data)

	blobs := make([][]byte, num)
	off := 0
	for i, n := range sizes {
		blobs[i] = data[off : off+n : off+n]
		off += n
	}
	return blobs
}

var words = []string{
	"cluster", "chain", "handle", "header", "free", "list",
	"blob", "stream", "growth", "cache", "flush", "repair",
}

// Text returns n bytes of space-separated words. The output is highly
// compressible, unlike Bytes.
func (r *RNG) Text(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := make([]byte, 0, n+16)
	for len(b) < n {
		b = append(b, words[r.rand.Intn(len(words))]...)
		b = append(b, ' ')
	}
	return b[:n]
}

// Chunks splits data into consecutive pieces of pseudo-random length in
// [1, maxChunk].
func (r *RNG) Chunks(data []byte, maxChunk int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out [][]byte
	for len(data) > 0 {
		n := min(len(data), 1+r.rand.Intn(maxChunk))
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}
