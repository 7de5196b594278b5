package core

import (
	"time"

	"github.com/arvindsheth/sheetfeed/internal/observ"
)

// BackoffGate is the exponential-backoff sink resilience wrapper from
// spec.md §4.9. It is owned exclusively by the scheduler task (spec.md
// §5) and needs no internal synchronization.
type BackoffGate struct {
	base         time.Duration
	max          time.Duration
	warnEveryNth int

	consecutiveFailures int
	lastFailureAt        time.Time
}

// NewBackoffGate builds a gate with the base/max delay and warn cadence
// from spec.md §6 configuration.
func NewBackoffGate(base, max time.Duration, warnEveryNth int) *BackoffGate {
	return &BackoffGate{base: base, max: max, warnEveryNth: warnEveryNth}
}

// delay is base_delay · 2^(consecutive_failures-1) clamped to max
// (spec.md §4.9).
func (g *BackoffGate) delay() time.Duration {
	if g.consecutiveFailures <= 0 {
		return 0
	}
	d := g.base
	for i := 1; i < g.consecutiveFailures; i++ {
		d *= 2
		if d >= g.max {
			return g.max
		}
	}
	if d > g.max {
		d = g.max
	}
	return d
}

// Open reports whether now is past the current backoff window (spec.md
// §4.9 "in backoff window" check).
func (g *BackoffGate) Open(now time.Time) bool {
	if g.consecutiveFailures == 0 {
		return true
	}
	return !now.Before(g.lastFailureAt.Add(g.delay()))
}

// RecordSuccess resets the gate's failure state and logs one INFO line
// with the count that just recovered, if there was an outage.
func (g *BackoffGate) RecordSuccess() {
	if g.consecutiveFailures > 0 {
		observ.Log("sink_recovered", map[string]any{"failures_recovered": g.consecutiveFailures})
		observ.SetGauge("backoff_consecutive_failures", 0, nil)
	}
	g.consecutiveFailures = 0
	g.lastFailureAt = time.Time{}
}

// RecordFailure increments the failure count, records the time, and logs
// per the cadence in spec.md §4.9: first failure WARN with the next
// delay, failures 2-3 INFO, beyond that one WARN every N-th failure.
func (g *BackoffGate) RecordFailure(now time.Time) {
	g.consecutiveFailures++
	g.lastFailureAt = now
	observ.SetGauge("backoff_consecutive_failures", float64(g.consecutiveFailures), nil)

	next := g.delay()
	switch {
	case g.consecutiveFailures == 1:
		observ.Log("sink_failure", map[string]any{"consecutive_failures": g.consecutiveFailures, "next_delay_ms": next.Milliseconds(), "level": "warn"})
	case g.consecutiveFailures <= 3:
		observ.Log("sink_failure", map[string]any{"consecutive_failures": g.consecutiveFailures, "next_delay_ms": next.Milliseconds(), "level": "info"})
	case g.warnEveryNth > 0 && g.consecutiveFailures%g.warnEveryNth == 0:
		observ.Log("sink_failure", map[string]any{"consecutive_failures": g.consecutiveFailures, "next_delay_ms": next.Milliseconds(), "level": "warn"})
	}
}

// ConsecutiveFailures exposes the current streak, for the metrics
// snapshot and health reporting.
func (g *BackoffGate) ConsecutiveFailures() int { return g.consecutiveFailures }
