package core

import (
	"sync"
	"time"
)

type freshState int

const (
	stateFresh freshState = iota
	stateStale
	stateRecoveredPending
)

// FreshnessTracker implements the fresh/stale/recovered-pending transition
// table from spec.md §4.4. The source this was distilled from never
// removed a symbol from the stale set once added (spec.md §9 notes this as
// a defect); here DrainNewlyStale reports only symbols currently in the
// stale state, so a symbol that has since been observed (and so moved to
// recovered-pending) stops appearing immediately.
type FreshnessTracker struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	state    map[string]freshState
}

func NewFreshnessTracker() *FreshnessTracker {
	return &FreshnessTracker{
		lastSeen: make(map[string]time.Time),
		state:    make(map[string]freshState),
	}
}

// Observe records exchangeTime as the latest-seen instant for symbol. If
// the symbol was stale, it moves to recovered-pending (spec.md §4.4).
func (f *FreshnessTracker) Observe(symbol string, exchangeTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen[symbol] = exchangeTime
	if f.state[symbol] == stateStale {
		f.state[symbol] = stateRecoveredPending
	}
}

// DrainNewlyStale scans every tracked symbol, moves any fresh symbol whose
// silence has reached threshold into the stale state, and returns a
// snapshot of every symbol currently stale (spec.md §4.4).
func (f *FreshnessTracker) DrainNewlyStale(threshold time.Duration, now time.Time) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for symbol, last := range f.lastSeen {
		if f.state[symbol] == stateFresh && now.Sub(last) >= threshold {
			f.state[symbol] = stateStale
		}
	}

	var stale []string
	for symbol, st := range f.state {
		if st == stateStale {
			stale = append(stale, symbol)
		}
	}
	return stale
}

// DrainRecovered returns and clears the set of symbols that moved from
// stale to recovered-pending since the last drain (spec.md §4.4).
func (f *FreshnessTracker) DrainRecovered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var recovered []string
	for symbol, st := range f.state {
		if st == stateRecoveredPending {
			recovered = append(recovered, symbol)
			f.state[symbol] = stateFresh
		}
	}
	return recovered
}

// IsStale reports whether symbol is currently in the stale state, for
// instrument-state bookkeeping in the dispatcher.
func (f *FreshnessTracker) IsStale(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[symbol] == stateStale
}

// StaleCount returns the number of symbols currently stale, for the
// metrics snapshot (spec.md §4.10).
func (f *FreshnessTracker) StaleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, st := range f.state {
		if st == stateStale {
			n++
		}
	}
	return n
}
