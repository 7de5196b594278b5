package observ

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus mirrors of the metrics snapshot (spec.md §4.10), registered
// globally alongside the JSON dump in metrics.go. Grounded on
// etalazz-vsa's internal/ratelimiter/telemetry/churn package, which
// registers a small fixed set of global counters/gauges/histograms at
// package init rather than per-label dynamic registration — label
// cardinality here (symbol counts) is unbounded over a trading day, so
// this module only exports pipeline-wide aggregates, not per-symbol
// series.
var (
	promTicksReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickpipeline_ticks_received_total",
		Help: "Total ticks delivered to the dispatcher.",
	})
	promSequenceGaps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickpipeline_sequence_gaps_total",
		Help: "Total ticks classified as a sequence gap.",
	})
	promFlushesAttempted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickpipeline_flushes_attempted_total",
		Help: "Total scheduler flush attempts that reached the sink, plus batches discarded by the backoff gate under discard_on_skip.",
	})
	promFlushesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickpipeline_flushes_succeeded_total",
		Help: "Total scheduler flush attempts that the sink accepted.",
	})
	promUpdatesFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickpipeline_updates_flushed_total",
		Help: "Total cell updates successfully written to the sink.",
	})
	promFlushLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tickpipeline_flush_latency_ms",
		Help:    "Latency of scheduler flush attempts, in milliseconds.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
	})
	promStaleCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tickpipeline_stale_instruments",
		Help: "Instruments currently flagged stale.",
	})
	promReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickpipeline_producer_reconnects_total",
		Help: "Total producer reconnect events, when exposed by the producer.",
	})
	promRetentionEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickpipeline_retention_evicted_total",
		Help: "Total retention-queue entries evicted across all symbols.",
	})
	promBackoffConsecutiveFailures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tickpipeline_backoff_consecutive_failures",
		Help: "Current consecutive sink failure count in the resilience gate.",
	})
)

func init() {
	prometheus.MustRegister(
		promTicksReceived,
		promSequenceGaps,
		promFlushesAttempted,
		promFlushesSucceeded,
		promUpdatesFlushed,
		promFlushLatency,
		promStaleCount,
		promReconnects,
		promRetentionEvicted,
		promBackoffConsecutiveFailures,
	)
}

// PrometheusHandler serves the Prometheus exposition format, separate
// from the JSON dump Handler() serves.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// SyncPrometheus copies the current in-process registry's aggregate
// counters/gauges, and any flush-latency samples recorded since the last
// call, into the Prometheus collectors. It is cheap enough to
// call once per flush-scheduler tick; there is no per-event Prometheus
// write on the dispatcher's hot path.
func SyncPrometheus() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	promTicksReceived.Add(float64(sumCounterLocked("ticks_received")) - prevTicksReceived)
	prevTicksReceived = float64(sumCounterLocked("ticks_received"))

	promSequenceGaps.Add(float64(sumCounterLocked("sequence_gaps")) - prevSequenceGaps)
	prevSequenceGaps = float64(sumCounterLocked("sequence_gaps"))

	promFlushesAttempted.Add(float64(sumCounterLocked("flushes_attempted")) - prevFlushesAttempted)
	prevFlushesAttempted = float64(sumCounterLocked("flushes_attempted"))

	promFlushesSucceeded.Add(float64(sumCounterLocked("flushes_succeeded")) - prevFlushesSucceeded)
	prevFlushesSucceeded = float64(sumCounterLocked("flushes_succeeded"))

	promUpdatesFlushed.Add(float64(sumCounterLocked("updates_flushed")) - prevUpdatesFlushed)
	prevUpdatesFlushed = float64(sumCounterLocked("updates_flushed"))

	promReconnects.Add(float64(sumCounterLocked("producer_reconnects")) - prevReconnects)
	prevReconnects = float64(sumCounterLocked("producer_reconnects"))

	promRetentionEvicted.Add(float64(sumCounterLocked("retention_evicted")) - prevRetentionEvicted)
	prevRetentionEvicted = float64(sumCounterLocked("retention_evicted"))

	if v, ok := firstGaugeLocked("stale_count"); ok {
		promStaleCount.Set(v)
	}
	if v, ok := firstGaugeLocked("backoff_consecutive_failures"); ok {
		promBackoffConsecutiveFailures.Set(v)
	}
	if m, ok := reg.hist["flush_latency_ms"]; ok {
		samples := m[""]
		for _, v := range samples[prevFlushLatencySamples:] {
			promFlushLatency.Observe(v)
		}
		prevFlushLatencySamples = len(samples)
	}
}

// prev* track the last value synced for each monotonic counter, since
// Prometheus counters only support Add (never Set) but the in-process
// registry stores absolute totals.
var (
	prevTicksReceived     float64
	prevSequenceGaps      float64
	prevFlushesAttempted  float64
	prevFlushesSucceeded  float64
	prevUpdatesFlushed    float64
	prevReconnects        float64
	prevRetentionEvicted  float64

	prevFlushLatencySamples int // flush_latency_ms samples already observed
)

func sumCounterLocked(name string) int64 {
	var total int64
	if m, ok := reg.counters[name]; ok {
		for _, v := range m {
			total += v
		}
	}
	return total
}

func firstGaugeLocked(name string) (float64, bool) {
	if m, ok := reg.gauges[name]; ok {
		for _, v := range m {
			return v, true
		}
	}
	return 0, false
}
