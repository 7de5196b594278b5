package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64     // name -> labelsKey -> count
	gauges   map[string]map[string]float64   // name -> labelsKey -> value
	hist     map[string]map[string][]float64
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
	hist:     map[string]map[string][]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	k := canonLabels(labels)
	m[k] += int64(value)
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	k := canonLabels(labels)
	m[k] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := canonLabels(labels)
	m[k] = append(m[k], value)
}

// RecordHistogram records a histogram observation
func RecordHistogram(name string, value float64, labels map[string]string) {
	Observe(name, value, labels)
}

// RecordGauge records a gauge value
func RecordGauge(name string, value float64, labels map[string]string) {
	SetGauge(name, value, labels)
}

// RecordDuration records a duration metric
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(duration.Milliseconds()), labels)
}

// Handler serves a basic JSON dump of the registry, for quick checks
// alongside the Prometheus exporter in prometheus.go.
func Handler() http.Handler {
	type dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{Counters: reg.counters, Gauges: reg.gauges, Hist: reg.hist})
	})
}

// HealthStatus represents overall pipeline health status.
type HealthStatus struct {
	Status    string                 `json:"status"`    // "healthy", "degraded", "failed"
	Timestamp string                 `json:"timestamp"` // ISO 8601
	Uptime    string                 `json:"uptime"`    // duration since start
	Version   string                 `json:"version"`   // build version
	Metrics   HealthMetrics          `json:"metrics"`   // key pipeline metrics
	Details   map[string]interface{} `json:"details"`   // additional health details
}

// HealthMetrics mirrors the metrics snapshot fields from spec.md §4.10.
type HealthMetrics struct {
	TicksReceived         int64   `json:"ticks_received"`
	UpdatesFlushed        int64   `json:"updates_flushed"`
	FlushesAttempted      int64   `json:"flushes_attempted"`
	FlushesSucceeded      int64   `json:"flushes_succeeded"`
	FlushSuccessRate      float64 `json:"flush_success_rate"`
	FlushLatencyAvgMs     float64 `json:"flush_latency_avg_ms"`
	FlushLatencyP95Ms     float64 `json:"flush_latency_p95_ms"`
	StaleCount            int64   `json:"stale_count"`
	ReconnectCount        int64   `json:"reconnect_count"`
	RetentionTotalEvicted int64   `json:"retention_total_evicted"`
}

var (
	startTime = time.Now()
	version   = "dev" // set via build flags
)

// SetVersion sets the version string for health reports.
func SetVersion(v string) {
	version = v
}

// HealthHandler serves a health endpoint summarizing the tick pipeline's
// operational state, for use by a process supervisor or load balancer.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()

		health := HealthStatus{
			Status:    calculateOverallHealthStatus(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Version:   version,
			Metrics:   calculateHealthMetrics(),
			Details:   gatherHealthDetails(),
		}

		statusCode := http.StatusOK
		switch health.Status {
		case "degraded":
			statusCode = http.StatusPartialContent // 206
		case "failed":
			statusCode = http.StatusServiceUnavailable // 503
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(health)
	})
}

func calculateOverallHealthStatus() string {
	if hasFailedComponents() {
		return "failed"
	}
	if hasDegradedComponents() {
		return "degraded"
	}
	return "healthy"
}

func sumCounter(name string) int64 {
	var total int64
	if m, ok := reg.counters[name]; ok {
		for _, v := range m {
			total += v
		}
	}
	return total
}

func firstGauge(name string) (float64, bool) {
	if m, ok := reg.gauges[name]; ok {
		for _, v := range m {
			return v, true
		}
	}
	return 0, false
}

func p95Of(name string) int64 {
	if m, ok := reg.hist[name]; ok {
		for _, samples := range m {
			if len(samples) == 0 {
				continue
			}
			sorted := make([]float64, len(samples))
			copy(sorted, samples)
			sort.Float64s(sorted)
			idx := int(float64(len(sorted)) * 0.95)
			if idx >= len(sorted) {
				idx = len(sorted) - 1
			}
			return int64(sorted[idx])
		}
	}
	return 0
}

func avgOf(name string) float64 {
	if m, ok := reg.hist[name]; ok {
		for _, samples := range m {
			if len(samples) == 0 {
				continue
			}
			var total float64
			for _, v := range samples {
				total += v
			}
			return total / float64(len(samples))
		}
	}
	return 0
}

// calculateHealthMetrics computes HealthMetrics from the raw registry.
func calculateHealthMetrics() HealthMetrics {
	m := HealthMetrics{
		TicksReceived:         sumCounter("ticks_received"),
		UpdatesFlushed:        sumCounter("updates_flushed"),
		FlushesAttempted:      sumCounter("flushes_attempted"),
		FlushesSucceeded:      sumCounter("flushes_succeeded"),
		FlushLatencyAvgMs:     avgOf("flush_latency_ms"),
		FlushLatencyP95Ms:     float64(p95Of("flush_latency_ms")),
		ReconnectCount:        sumCounter("producer_reconnects"),
		RetentionTotalEvicted: sumCounter("retention_evicted"),
	}
	if m.FlushesAttempted > 0 {
		m.FlushSuccessRate = float64(m.FlushesSucceeded) / float64(m.FlushesAttempted)
	}
	if staleCount, ok := firstGauge("stale_count"); ok {
		m.StaleCount = int64(staleCount)
	}
	return m
}

// hasFailedComponents reports a failed pipeline: the resilience gate has
// been shedding most flush attempts.
func hasFailedComponents() bool {
	attempted := sumCounter("flushes_attempted")
	succeeded := sumCounter("flushes_succeeded")
	if attempted > 10 && float64(succeeded)/float64(attempted) < 0.1 {
		return true
	}
	return false
}

// hasDegradedComponents reports elevated flush latency or a rising stale
// count, short of outright failure.
func hasDegradedComponents() bool {
	if p95Of("flush_latency_ms") > 5000 {
		return true
	}
	if staleCount, ok := firstGauge("stale_count"); ok && staleCount > 0 {
		return true
	}
	return false
}

func gatherHealthDetails() map[string]interface{} {
	details := make(map[string]interface{})
	details["gap_total"] = sumCounter("sequence_gaps")
	details["ticks_rejected"] = sumCounter("tick_rejected")
	if backoffState, ok := firstGauge("backoff_consecutive_failures"); ok {
		details["backoff_consecutive_failures"] = int(backoffState)
	}
	return details
}

// Health is a trivial liveness probe, independent of pipeline state.
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
