package vulnquery

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordInitialize is called after each runtime bring-up attempt.
	// duration is the total time taken, err is nil if successful.
	RecordInitialize(duration time.Duration, err error)

	// RecordDiscovery is called after each partition discovery.
	// partitions is the number of partitions found.
	RecordDiscovery(partitions int, duration time.Duration)

	// RecordQuery is called after each query operation.
	// rows is the number of rows returned after deduplication,
	// err is nil if successful.
	RecordQuery(rows int, duration time.Duration, err error)

	// RecordPartitionSkip is called for each partition skipped after a
	// local failure. oversized distinguishes client-side size/memory
	// limits from generic transport failure.
	RecordPartitionSkip(oversized bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInitialize(time.Duration, error)   {}
func (NoopMetricsCollector) RecordDiscovery(int, time.Duration)      {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordPartitionSkip(bool)                {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InitCount           atomic.Int64
	InitErrors          atomic.Int64
	DiscoveryCount      atomic.Int64
	DiscoveryPartitions atomic.Int64
	QueryCount          atomic.Int64
	QueryErrors         atomic.Int64
	QueryRows           atomic.Int64
	QueryTotalNanos     atomic.Int64
	PartitionsSkipped   atomic.Int64
	OversizedSkipped    atomic.Int64
}

// RecordInitialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInitialize(_ time.Duration, err error) {
	b.InitCount.Add(1)
	if err != nil {
		b.InitErrors.Add(1)
	}
}

// RecordDiscovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDiscovery(partitions int, _ time.Duration) {
	b.DiscoveryCount.Add(1)
	b.DiscoveryPartitions.Add(int64(partitions))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(rows int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryRows.Add(int64(rows))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordPartitionSkip implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPartitionSkip(oversized bool) {
	b.PartitionsSkipped.Add(1)
	if oversized {
		b.OversizedSkipped.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InitCount:           b.InitCount.Load(),
		InitErrors:          b.InitErrors.Load(),
		DiscoveryCount:      b.DiscoveryCount.Load(),
		DiscoveryPartitions: b.DiscoveryPartitions.Load(),
		QueryCount:          b.QueryCount.Load(),
		QueryErrors:         b.QueryErrors.Load(),
		QueryRows:           b.QueryRows.Load(),
		QueryAvgNanos:       b.getAvgQueryNanos(),
		PartitionsSkipped:   b.PartitionsSkipped.Load(),
		OversizedSkipped:    b.OversizedSkipped.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InitCount           int64
	InitErrors          int64
	DiscoveryCount      int64
	DiscoveryPartitions int64
	QueryCount          int64
	QueryErrors         int64
	QueryRows           int64
	QueryAvgNanos       int64
	PartitionsSkipped   int64
	OversizedSkipped    int64
}
