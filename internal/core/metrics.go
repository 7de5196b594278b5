package core

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/observ"
)

// Metrics aggregates the counters and rolling timings spec.md §4.10
// requires. Counters are atomic so both the dispatcher and the scheduler
// can update them without a shared lock (spec.md §5); the latency sample
// window is small and mutex-guarded, mirroring the teacher's
// observ.Observe histogram bookkeeping.
type Metrics struct {
	ticksReceived     atomic.Int64
	updatesFlushed    atomic.Int64
	flushesAttempted  atomic.Int64
	flushesSucceeded  atomic.Int64
	gapCount          atomic.Int64
	reconnectCount    atomic.Int64

	mu             sync.Mutex
	flushLatencies []time.Duration // bounded ring of recent flush latencies
}

const maxLatencySamples = 256

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncTicksReceived() {
	m.ticksReceived.Add(1)
	observ.IncCounter("ticks_received", nil)
}

func (m *Metrics) IncGaps() {
	m.gapCount.Add(1)
	observ.IncCounter("sequence_gaps", nil)
}

func (m *Metrics) IncReconnect() {
	m.reconnectCount.Add(1)
	observ.IncCounter("producer_reconnects", nil)
}

// RecordFlush records the outcome and latency of one scheduler flush
// attempt (spec.md §4.8).
func (m *Metrics) RecordFlush(succeeded bool, updateCount int, elapsed time.Duration) {
	m.flushesAttempted.Add(1)
	observ.IncCounter("flushes_attempted", nil)
	if succeeded {
		m.flushesSucceeded.Add(1)
		m.updatesFlushed.Add(int64(updateCount))
		observ.IncCounter("flushes_succeeded", nil)
		observ.IncCounterBy("updates_flushed", nil, float64(updateCount))
	}
	observ.Observe("flush_latency_ms", float64(elapsed.Milliseconds()), nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLatencies = append(m.flushLatencies, elapsed)
	if len(m.flushLatencies) > maxLatencySamples {
		m.flushLatencies = m.flushLatencies[len(m.flushLatencies)-maxLatencySamples:]
	}
}

func (m *Metrics) latencyStats() (avgMs, p95Ms float64) {
	m.mu.Lock()
	samples := append([]time.Duration(nil), m.flushLatencies...)
	m.mu.Unlock()

	if len(samples) == 0 {
		return 0, 0
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	avgMs = float64(total.Milliseconds()) / float64(len(samples))

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	idx := int(float64(len(samples)) * 0.95)
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	p95Ms = float64(samples[idx].Milliseconds())
	return avgMs, p95Ms
}

// MetricsSnapshot is the read-only view from spec.md §4.10.
type MetricsSnapshot struct {
	TicksReceived              int64
	UpdatesFlushed             int64
	FlushesAttempted           int64
	FlushesSucceeded           int64
	AvgFlushLatencyMs          float64
	P95FlushLatencyMs          float64
	StaleCount                 int64
	ReconnectCount             int64
	GapCount                   int64
	RetentionTotalEvicted      int64
	LastRetentionEvictionBatch int64
	InstrumentCount            int64
}

// Snapshot assembles the current read-only metrics view. staleCount and
// retention totals are supplied by the caller (the dispatcher, which owns
// the freshness tracker and retention store) since Metrics itself tracks
// only the counters intrinsic to ticks and flushes.
func (m *Metrics) Snapshot(staleCount, retentionTotalEvicted, lastEvictionBatch, instrumentCount int64) MetricsSnapshot {
	avg, p95 := m.latencyStats()
	return MetricsSnapshot{
		TicksReceived:              m.ticksReceived.Load(),
		UpdatesFlushed:             m.updatesFlushed.Load(),
		FlushesAttempted:           m.flushesAttempted.Load(),
		FlushesSucceeded:           m.flushesSucceeded.Load(),
		AvgFlushLatencyMs:          avg,
		P95FlushLatencyMs:          p95,
		StaleCount:                 staleCount,
		ReconnectCount:             m.reconnectCount.Load(),
		GapCount:                   m.gapCount.Load(),
		RetentionTotalEvicted:      retentionTotalEvicted,
		LastRetentionEvictionBatch: lastEvictionBatch,
		InstrumentCount:            instrumentCount,
	}
}
