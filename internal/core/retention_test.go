package core

import (
	"testing"
	"time"
)

func TestRetentionCountBound(t *testing.T) {
	r := NewRetentionStore(2, time.Hour)

	r.OnNewTick("X", 1, t0)
	r.OnNewTick("X", 2, t0.Add(time.Second))
	res := r.OnNewTick("X", 3, t0.Add(2*time.Second))

	if res.EvictedThisCall != 1 {
		t.Fatalf("expected 1 eviction, got %d", res.EvictedThisCall)
	}
	if res.CurrentLen != 2 {
		t.Fatalf("expected current_len=2, got %d", res.CurrentLen)
	}
	if res.TotalEvicted != 1 {
		t.Fatalf("expected total_evicted=1, got %d", res.TotalEvicted)
	}
}

func TestRetentionAgeBound(t *testing.T) {
	r := NewRetentionStore(1000, 5*time.Second)

	r.OnNewTick("X", 1, t0)
	res := r.OnNewTick("X", 2, t0.Add(10*time.Second))

	if res.EvictedThisCall != 1 {
		t.Fatalf("expected age-based eviction, got %d", res.EvictedThisCall)
	}
	if res.CurrentLen != 1 {
		t.Fatalf("expected current_len=1 after age eviction, got %d", res.CurrentLen)
	}
}

func TestRetentionBoundsHoldAfterEveryCall(t *testing.T) {
	r := NewRetentionStore(3, 5*time.Second)
	now := t0
	for i := 0; i < 50; i++ {
		now = now.Add(time.Second)
		res := r.OnNewTick("X", int64(i), now)
		if res.CurrentLen > 3 {
			t.Fatalf("queue length %d exceeds max_ticks_per_symbol", res.CurrentLen)
		}
	}
}

func TestRetentionPerSymbolIsolation(t *testing.T) {
	r := NewRetentionStore(1, time.Hour)
	r.OnNewTick("X", 1, t0)
	res := r.OnNewTick("Y", 1, t0)
	if res.EvictedThisCall != 0 {
		t.Fatalf("symbol Y's retention should be independent of X, got eviction %d", res.EvictedThisCall)
	}
}
