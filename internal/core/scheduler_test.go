package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/config"
	"github.com/arvindsheth/sheetfeed/internal/core"
	"github.com/arvindsheth/sheetfeed/internal/sink"
)

func TestFlushNowDrainsAndWritesToSink(t *testing.T) {
	buffer := core.NewCoalescingBuffer()
	policy := core.NewBatchPolicy(1000, time.Hour, nil)
	metrics := core.NewMetrics()
	gate := core.NewBackoffGate(10*time.Millisecond, time.Second, 5)
	recorder := sink.NewRecorder()

	buffer.Enqueue(core.CellUpdate{
		Address: core.CellAddress{SheetName: core.SheetMarketData, ColumnName: core.ColLast, RowIndex: 2},
		Value:   core.IntegerValue(42),
	}, time.Now())

	s := core.NewFlushScheduler(buffer, policy, metrics, gate, recorder, 50*time.Millisecond, config.FlushPolicyPeekThenCommit, 200*time.Millisecond)
	s.FlushNow(context.Background())

	if recorder.WriteCount() != 1 {
		t.Fatalf("expected sink to receive 1 write, got %d", recorder.WriteCount())
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected buffer drained after flush_now")
	}
}

func TestPeekThenCommitLeavesBufferUntouchedWhenGateClosed(t *testing.T) {
	buffer := core.NewCoalescingBuffer()
	policy := core.NewBatchPolicy(1, time.Hour, nil)
	metrics := core.NewMetrics()
	gate := core.NewBackoffGate(time.Hour, time.Hour, 5)
	// force the gate closed
	gate.RecordFailure(time.Now())

	recorder := sink.NewRecorder()
	s := core.NewFlushScheduler(buffer, policy, metrics, gate, recorder, 10*time.Millisecond, config.FlushPolicyPeekThenCommit, 200*time.Millisecond)

	addr := core.CellAddress{SheetName: core.SheetMarketData, ColumnName: core.ColLast, RowIndex: 2}
	buffer.Enqueue(core.CellUpdate{Address: addr, Value: core.IntegerValue(1)}, time.Now())
	policy.Observe("X", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	s.Stop()

	if recorder.WriteCount() != 0 {
		t.Fatalf("sink should not have been called while gate is closed")
	}
	if buffer.Len() != 1 {
		t.Fatalf("peek-then-commit must leave the buffer untouched when the gate is closed, got len=%d", buffer.Len())
	}
}

func TestDiscardOnSkipDrainsAndDiscardsWhenGateClosed(t *testing.T) {
	buffer := core.NewCoalescingBuffer()
	policy := core.NewBatchPolicy(1, time.Hour, nil)
	metrics := core.NewMetrics()
	gate := core.NewBackoffGate(time.Hour, time.Hour, 5)
	gate.RecordFailure(time.Now())

	recorder := sink.NewRecorder()
	s := core.NewFlushScheduler(buffer, policy, metrics, gate, recorder, 10*time.Millisecond, config.FlushPolicyDiscardOnSkip, 200*time.Millisecond)

	addr := core.CellAddress{SheetName: core.SheetMarketData, ColumnName: core.ColLast, RowIndex: 2}
	buffer.Enqueue(core.CellUpdate{Address: addr, Value: core.IntegerValue(1)}, time.Now())
	policy.Observe("X", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	s.Stop()

	if recorder.WriteCount() != 0 {
		t.Fatalf("sink should not have been called while gate is closed")
	}
	if buffer.Len() != 0 {
		t.Fatalf("discard-on-skip must drain the buffer even when the gate is closed")
	}
}

func TestSchedulerRecoversAfterFailures(t *testing.T) {
	buffer := core.NewCoalescingBuffer()
	policy := core.NewBatchPolicy(1, time.Hour, nil)
	metrics := core.NewMetrics()
	gate := core.NewBackoffGate(10*time.Millisecond, 20*time.Millisecond, 5)
	recorder := sink.NewFailingRecorder(2)

	s := core.NewFlushScheduler(buffer, policy, metrics, gate, recorder, 5*time.Millisecond, config.FlushPolicyPeekThenCommit, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Stop()
	}()

	addr := core.CellAddress{SheetName: core.SheetMarketData, ColumnName: core.ColLast, RowIndex: 2}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		buffer.Enqueue(core.CellUpdate{Address: addr, Value: core.IntegerValue(1)}, time.Now())
		policy.Observe("X", time.Now())
		if recorder.WriteCount() > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if recorder.WriteCount() == 0 {
		t.Fatalf("expected scheduler to eventually succeed after transient failures")
	}
}
