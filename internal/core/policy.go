package core

import (
	"sync"
	"time"
)

// BatchPolicy decides when the scheduler should flush (spec.md §4.6). It
// is pure state — it never touches the buffer itself.
type BatchPolicy struct {
	mu              sync.Mutex
	highWatermark   int
	maxAge          time.Duration
	prioritySymbols map[string]bool

	count            int
	firstObservedAt  time.Time
	priorityTriggered bool
}

// NewBatchPolicy builds a policy with the count/age/priority rules from
// spec.md §6 configuration.
func NewBatchPolicy(highWatermark int, maxAge time.Duration, prioritySymbols []string) *BatchPolicy {
	set := make(map[string]bool, len(prioritySymbols))
	for _, s := range prioritySymbols {
		set[s] = true
	}
	return &BatchPolicy{
		highWatermark:   highWatermark,
		maxAge:          maxAge,
		prioritySymbols: set,
	}
}

// Observe records one update since the last reset: it is called by the
// dispatcher alongside every coalescing-buffer enqueue so the policy can
// track accumulated count, time-since-first-observed, and the priority
// rule, without the policy needing to inspect the buffer itself.
func (p *BatchPolicy) Observe(symbol string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	if p.firstObservedAt.IsZero() {
		p.firstObservedAt = now
	}
	if p.prioritySymbols[symbol] {
		p.priorityTriggered = true
	}
}

// ShouldFlush implements the count, age, and priority rules (spec.md
// §4.6). Property 7 (monotonicity) holds because Observe only ever grows
// count/sets firstObservedAt/latches priorityTriggered — nothing in this
// method can make a previously-true result turn false before Reset.
func (p *BatchPolicy) ShouldFlush(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.priorityTriggered {
		return true
	}
	if p.count >= p.highWatermark {
		return true
	}
	if !p.firstObservedAt.IsZero() && now.Sub(p.firstObservedAt) >= p.maxAge {
		return true
	}
	return false
}

// Reset returns the policy to its "no quotes since flush" state.
func (p *BatchPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count = 0
	p.firstObservedAt = time.Time{}
	p.priorityTriggered = false
}
