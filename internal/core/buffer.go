package core

import (
	"sync"
	"time"
)

// CoalescingBuffer is the keyed pending-write store from spec.md §4.5: at
// most one entry per cell address, last-write-wins. It is the sole
// interchange between the dispatcher and the scheduler (spec.md §5), so
// Enqueue and Drain share one mutex and Drain observes a consistent
// snapshot.
type CoalescingBuffer struct {
	mu               sync.Mutex
	entries          map[CellAddress]CellUpdate
	oldestEnqueuedAt time.Time
}

func NewCoalescingBuffer() *CoalescingBuffer {
	return &CoalescingBuffer{entries: make(map[CellAddress]CellUpdate)}
}

// Enqueue replaces any prior pending value at update.Address. now stamps
// oldest_enqueued_at the first time the buffer receives a write after a
// drain (spec.md §4.5).
func (b *CoalescingBuffer) Enqueue(update CellUpdate, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		b.oldestEnqueuedAt = now
	}
	b.entries[update.Address] = update
}

// Drain returns every current entry, in arbitrary order, and atomically
// clears the buffer and oldest_enqueued_at (spec.md §4.5).
func (b *CoalescingBuffer) Drain() []CellUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return nil
	}
	out := make([]CellUpdate, 0, len(b.entries))
	for _, u := range b.entries {
		out = append(out, u)
	}
	b.entries = make(map[CellAddress]CellUpdate)
	b.oldestEnqueuedAt = time.Time{}
	return out
}

// Len is O(1): the number of distinct pending cell addresses.
func (b *CoalescingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// OldestEnqueuedAt reports when the current pending set started
// accumulating, or the zero Time if the buffer is empty.
func (b *CoalescingBuffer) OldestEnqueuedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.oldestEnqueuedAt
}
