package core

import (
	"testing"
	"time"
)

func addr(row int) CellAddress {
	return CellAddress{SheetName: SheetMarketData, ColumnName: ColLast, RowIndex: row}
}

func TestCoalescingIdempotence(t *testing.T) {
	b := NewCoalescingBuffer()
	a := addr(2)
	for i := 0; i < 100; i++ {
		b.Enqueue(CellUpdate{Address: a, Value: IntegerValue(int64(i))}, t0)
	}
	if b.Len() != 1 {
		t.Fatalf("expected exactly one coalesced entry, got %d", b.Len())
	}
	drained := b.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected drain to return exactly one update, got %d", len(drained))
	}
	if drained[0].Value.Integer != 99 {
		t.Fatalf("expected last-write-wins value 99, got %d", drained[0].Value.Integer)
	}
}

func TestDrainClearsBuffer(t *testing.T) {
	b := NewCoalescingBuffer()
	b.Enqueue(CellUpdate{Address: addr(2), Value: IntegerValue(1)}, t0)
	b.Drain()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after drain, got len=%d", b.Len())
	}
	if !b.OldestEnqueuedAt().IsZero() {
		t.Fatalf("expected oldest_enqueued_at cleared after drain")
	}
}

func TestDistinctAddressesBothSurvive(t *testing.T) {
	b := NewCoalescingBuffer()
	b.Enqueue(CellUpdate{Address: addr(2), Value: IntegerValue(1)}, t0)
	b.Enqueue(CellUpdate{Address: addr(3), Value: IntegerValue(2)}, t0)
	if b.Len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", b.Len())
	}
}

func TestOldestEnqueuedAtStampedOnFirstInsertAfterDrain(t *testing.T) {
	b := NewCoalescingBuffer()
	b.Enqueue(CellUpdate{Address: addr(2), Value: IntegerValue(1)}, t0)
	b.Enqueue(CellUpdate{Address: addr(3), Value: IntegerValue(2)}, t0.Add(time.Second))
	if !b.OldestEnqueuedAt().Equal(t0) {
		t.Fatalf("expected oldest_enqueued_at to stick to the first insertion, got %v", b.OldestEnqueuedAt())
	}
}
