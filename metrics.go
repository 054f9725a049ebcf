package clusterfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    allocCounter     prometheus.Counter
//	    enumerateLatency prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAlloc(duration time.Duration, err error) {
//	    p.allocCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordAlloc is called after each AllocFile.
	// duration is the total time taken, err is nil if successful.
	RecordAlloc(duration time.Duration, err error)

	// RecordDelete is called after each DeleteFile.
	RecordDelete(duration time.Duration, err error)

	// RecordRewrite is called after each RewriteFile.
	RecordRewrite(duration time.Duration, err error)

	// RecordEnumerate is called after each GetAllFiles scan.
	// found is the number of live files returned.
	RecordEnumerate(found int, duration time.Duration, err error)

	// RecordRepair is called after each Repair with the bytes padded.
	RecordRepair(padded int64, err error)

	// RecordExport is called after each Export.
	RecordExport(files int, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAlloc(time.Duration, error)              {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)             {}
func (NoopMetricsCollector) RecordRewrite(time.Duration, error)            {}
func (NoopMetricsCollector) RecordEnumerate(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordRepair(int64, error)                     {}
func (NoopMetricsCollector) RecordExport(int, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocCount          atomic.Int64
	AllocErrors         atomic.Int64
	AllocTotalNanos     atomic.Int64
	DeleteCount         atomic.Int64
	DeleteErrors        atomic.Int64
	RewriteCount        atomic.Int64
	RewriteErrors       atomic.Int64
	EnumerateCount      atomic.Int64
	EnumerateErrors     atomic.Int64
	EnumerateTotalNanos atomic.Int64
	RepairCount         atomic.Int64
	RepairBytes         atomic.Int64
	ExportCount         atomic.Int64
	ExportFiles         atomic.Int64
	ExportBytes         atomic.Int64
	ExportErrors        atomic.Int64
}

// RecordAlloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAlloc(duration time.Duration, err error) {
	b.AllocCount.Add(1)
	b.AllocTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordRewrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRewrite(duration time.Duration, err error) {
	b.RewriteCount.Add(1)
	if err != nil {
		b.RewriteErrors.Add(1)
	}
}

// RecordEnumerate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEnumerate(found int, duration time.Duration, err error) {
	b.EnumerateCount.Add(1)
	b.EnumerateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EnumerateErrors.Add(1)
	}
}

// RecordRepair implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRepair(padded int64, err error) {
	b.RepairCount.Add(1)
	b.RepairBytes.Add(padded)
}

// RecordExport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExport(files int, bytes int64, duration time.Duration, err error) {
	b.ExportCount.Add(1)
	b.ExportFiles.Add(int64(files))
	b.ExportBytes.Add(bytes)
	if err != nil {
		b.ExportErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocCount:        b.AllocCount.Load(),
		AllocErrors:       b.AllocErrors.Load(),
		AllocAvgNanos:     avg(b.AllocTotalNanos.Load(), b.AllocCount.Load()),
		DeleteCount:       b.DeleteCount.Load(),
		DeleteErrors:      b.DeleteErrors.Load(),
		RewriteCount:      b.RewriteCount.Load(),
		RewriteErrors:     b.RewriteErrors.Load(),
		EnumerateCount:    b.EnumerateCount.Load(),
		EnumerateErrors:   b.EnumerateErrors.Load(),
		EnumerateAvgNanos: avg(b.EnumerateTotalNanos.Load(), b.EnumerateCount.Load()),
		RepairCount:       b.RepairCount.Load(),
		RepairBytes:       b.RepairBytes.Load(),
		ExportCount:       b.ExportCount.Load(),
		ExportFiles:       b.ExportFiles.Load(),
		ExportBytes:       b.ExportBytes.Load(),
		ExportErrors:      b.ExportErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocCount        int64
	AllocErrors       int64
	AllocAvgNanos     int64
	DeleteCount       int64
	DeleteErrors      int64
	RewriteCount      int64
	RewriteErrors     int64
	EnumerateCount    int64
	EnumerateErrors   int64
	EnumerateAvgNanos int64
	RepairCount       int64
	RepairBytes       int64
	ExportCount       int64
	ExportFiles       int64
	ExportBytes       int64
	ExportErrors      int64
}
