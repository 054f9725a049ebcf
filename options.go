package clusterfs

import (
	"log/slog"

	"github.com/hupe1980/clusterfs/internal/cache"
	"github.com/hupe1980/clusterfs/internal/compress"
	"github.com/hupe1980/clusterfs/internal/format"
	"github.com/hupe1980/clusterfs/internal/fs"
	"github.com/hupe1980/clusterfs/internal/growth"
)

// Handle addresses a file: the byte offset of its head cluster divided by the
// minimum cluster size.
type Handle = format.Handle

// NotSet is the zero handle. It never addresses a file.
const NotSet = format.NotSet

// GrowthStrategy selects how large the next cluster of a growing file is.
type GrowthStrategy = growth.Strategy

const (
	// Quadratic adds one minimum cluster per hop (default).
	Quadratic = growth.Quadratic
	// Exponential doubles the chain capacity every hop.
	Exponential = growth.Exponential
)

// Codec selects the compression used by PutBlob and ReplaceBlob.
type Codec = compress.Codec

const (
	CodecNone = compress.None
	CodecLZ4  = compress.LZ4
	CodecZstd = compress.Zstd
)

// ParseGrowthStrategy parses "quadratic" or "exponential".
func ParseGrowthStrategy(name string) (GrowthStrategy, error) {
	return growth.ParseStrategy(name)
}

// ParseCodec parses "none", "lz4" or "zstd".
func ParseCodec(name string) (Codec, error) {
	return compress.ParseCodec(name)
}

// CacheStrategy selects the eviction order of the cluster header cache.
type CacheStrategy uint8

const (
	// CacheLRU evicts the least recently used header (default).
	CacheLRU CacheStrategy = iota
	// CacheFIFO evicts the oldest cached header.
	CacheFIFO
)

func (s CacheStrategy) factory() func() cache.Strategy {
	if s == CacheFIFO {
		return cache.NewFIFO
	}
	return cache.NewLRU
}

// DefaultCacheSize is the number of cluster headers cached by default.
const DefaultCacheSize = cache.DefaultCapacity

type options struct {
	minClusterSize   int
	growth           GrowthStrategy
	cacheSize        int
	cacheStrategy    CacheStrategy
	manualFlush      bool
	syncOnFlush      bool
	bufferSize       int
	codec            Codec
	ioLimit          int64
	noFileLock       bool
	enforceLock      bool
	metricsCollector MetricsCollector
	logger           *Logger
	fsys             fs.FileSystem
}

// Option configures Open.
type Option func(*options)

// WithMinClusterSize sets the minimum cluster size of a new container: one of
// 16, 32, 64, 128 or 256. It must match the value the container was created
// with; the size is not recorded in the header.
func WithMinClusterSize(n int) Option {
	return func(o *options) {
		o.minClusterSize = n
	}
}

// WithGrowthStrategy selects the growth curve for extending files.
func WithGrowthStrategy(s GrowthStrategy) Option {
	return func(o *options) {
		o.growth = s
	}
}

// WithCacheSize sets the number of cached cluster headers.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithCacheStrategy selects the header cache eviction order.
func WithCacheStrategy(s CacheStrategy) Option {
	return func(o *options) {
		o.cacheStrategy = s
	}
}

// WithManualFlush suppresses the implicit flush on Close.
// Dirty headers are lost unless Flush is called.
func WithManualFlush() Option {
	return func(o *options) {
		o.manualFlush = true
	}
}

// WithSyncOnFlush fsyncs the container after every flush.
func WithSyncOnFlush() Option {
	return func(o *options) {
		o.syncOnFlush = true
	}
}

// WithBufferSize sets the size of the stream write-back buffer.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithCodec sets the codec used by PutBlob and ReplaceBlob.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithIOLimit caps the read throughput of GetAllFiles and Export in bytes
// per second. 0 means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithoutFileLock skips the exclusive advisory lock on the container file.
func WithoutFileLock() Option {
	return func(o *options) {
		o.noFileLock = true
	}
}

// WithLockEnforcement makes every mutating operation fail with
// ErrLockNotHeld unless a Guard is held.
func WithLockEnforcement() Option {
	return func(o *options) {
		o.enforceLock = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &clusterfs.BasicMetricsCollector{}
//	fsys, _ := clusterfs.Open("data.bfs", clusterfs.WithMetricsCollector(metrics))
//	// ... use fsys ...
//	stats := metrics.GetStats()
//	fmt.Printf("Allocs: %d, Avg latency: %dns\n", stats.AllocCount, stats.AllocAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := clusterfs.NewJSONLogger(slog.LevelInfo)
//	fsys, _ := clusterfs.Open("data.bfs", clusterfs.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		minClusterSize:   format.DefaultMinClusterSize,
		growth:           Quadratic,
		cacheSize:        DefaultCacheSize,
		codec:            CodecNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fsys:             fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
