package core

import (
	"testing"
	"time"
)

func newTestDispatcher() (*Dispatcher, *CoalescingBuffer) {
	buffer := NewCoalescingBuffer()
	policy := NewBatchPolicy(1000, time.Hour, nil)
	metrics := NewMetrics()
	retention := NewRetentionStore(100, 5*time.Minute)
	freshness := NewFreshnessTracker()
	d := NewDispatcher(buffer, policy, metrics, retention, freshness, 5*time.Second)
	return d, buffer
}

// S1 — single symbol, sequential ticks.
func TestScenarioS1SequentialTicks(t *testing.T) {
	d, buffer := newTestDispatcher()

	q1 := Quote{Last: nullDecimal(mustDecimal(t, "100")), EventTime: t0}
	q2 := Quote{Last: nullDecimal(mustDecimal(t, "101")), EventTime: t0.Add(time.Second)}

	d.Process(q1, "X", 1, t0)
	d.Process(q2, "X", 2, t0.Add(time.Second))

	drained := buffer.Drain()
	var lastVal *CellUpdate
	for i := range drained {
		if drained[i].Address.ColumnName == ColLast {
			lastVal = &drained[i]
		}
	}
	if lastVal == nil || !lastVal.Value.Decimal.Equal(mustDecimal(t, "101")) {
		t.Fatalf("expected coalesced Last=101, got %+v", lastVal)
	}

	inst, ok := d.registry.Get("X")
	if !ok {
		t.Fatal("instrument X not found")
	}
	if inst.GapCount != 0 {
		t.Fatalf("expected gap_count=0, got %d", inst.GapCount)
	}
	if inst.LastSequence != 2 {
		t.Fatalf("expected last_sequence=2, got %d", inst.LastSequence)
	}
	if inst.RowIndex != 2 {
		t.Fatalf("expected first symbol assigned row 2, got %d", inst.RowIndex)
	}
}

// S2 — gap.
func TestScenarioS2Gap(t *testing.T) {
	d, buffer := newTestDispatcher()

	r1 := d.Process(Quote{EventTime: t0}, "X", 5, t0)
	r2 := d.Process(Quote{EventTime: t0.Add(time.Second)}, "X", 10, t0.Add(time.Second))

	if r1.Classification != First {
		t.Fatalf("expected first classification, got %v", r1.Classification)
	}
	if r2.Classification != Gap {
		t.Fatalf("expected gap classification, got %v", r2.Classification)
	}

	inst, _ := d.registry.Get("X")
	if inst.GapCount != 1 {
		t.Fatalf("expected gap_count=1, got %d", inst.GapCount)
	}
	if inst.LastSequence != 10 {
		t.Fatalf("expected last_sequence=10, got %d", inst.LastSequence)
	}
	if buffer.Len() == 0 {
		t.Fatalf("expected both ticks to produce enqueues")
	}
}

// S3 — duplicate.
func TestScenarioS3Duplicate(t *testing.T) {
	d, buffer := newTestDispatcher()

	d.Process(Quote{EventTime: t0}, "X", 3, t0)
	beforeLen := buffer.Len()
	r2 := d.Process(Quote{EventTime: t0.Add(time.Second)}, "X", 3, t0.Add(time.Second))

	if r2.Classification != Duplicate {
		t.Fatalf("expected duplicate, got %v", r2.Classification)
	}
	if buffer.Len() != beforeLen {
		t.Fatalf("duplicate must not enqueue: buffer grew from %d to %d", beforeLen, buffer.Len())
	}

	inst, _ := d.registry.Get("X")
	if inst.LastSequence != 3 {
		t.Fatalf("expected last_sequence=3, got %d", inst.LastSequence)
	}
}

// S4 — out-of-order timestamp.
func TestScenarioS4OutOfOrderRejected(t *testing.T) {
	d, _ := newTestDispatcher()

	d.Process(Quote{EventTime: t0.Add(10 * time.Second)}, "X", 2, t0.Add(10*time.Second))
	inst, _ := d.registry.Get("X")
	snapshotTime := inst.LastUpdateTime
	snapshotSeq := inst.LastSequence

	r2 := d.Process(Quote{EventTime: t0}, "X", 1, t0)
	if !r2.Rejected {
		t.Fatalf("expected second call to be rejected")
	}
	if inst.LastUpdateTime != snapshotTime || inst.LastSequence != snapshotSeq {
		t.Fatalf("rejected call must not mutate instrument state")
	}
}

// S5 — coalescing.
func TestScenarioS5CoalescingBoundsWriteCount(t *testing.T) {
	d, buffer := newTestDispatcher()

	for i := 0; i < 100; i++ {
		q := Quote{Last: nullDecimal(mustDecimal(t, "1")), EventTime: t0.Add(time.Duration(i) * time.Millisecond)}
		d.Process(q, "X", int64(i+1), t0.Add(time.Duration(i)*time.Millisecond))
	}

	drained := buffer.Drain()
	// management columns (Symbol, LastUpdate, IsStale, GapCount, Sequence) + Last
	const maxExpected = 6
	if len(drained) > maxExpected {
		t.Fatalf("expected at most %d coalesced cell writes for one symbol, got %d", maxExpected, len(drained))
	}
}

// S6 rows are unique, stable, insertion-order.
func TestRowIndicesAreStableInsertionOrder(t *testing.T) {
	d, _ := newTestDispatcher()

	d.Process(Quote{EventTime: t0}, "X", 1, t0)
	d.Process(Quote{EventTime: t0}, "Y", 1, t0)
	d.Process(Quote{EventTime: t0.Add(time.Second)}, "X", 2, t0.Add(time.Second))

	x, _ := d.registry.Get("X")
	y, _ := d.registry.Get("Y")
	if x.RowIndex != 2 || y.RowIndex != 3 {
		t.Fatalf("expected stable insertion-order rows X=2,Y=3, got X=%d,Y=%d", x.RowIndex, y.RowIndex)
	}
}
