package core

import (
	"testing"
	"time"
)

func TestBatchPolicyCountRule(t *testing.T) {
	p := NewBatchPolicy(3, time.Hour, nil)
	for i := 0; i < 2; i++ {
		p.Observe("X", t0)
	}
	if p.ShouldFlush(t0) {
		t.Fatalf("should not flush before reaching high_watermark")
	}
	p.Observe("X", t0)
	if !p.ShouldFlush(t0) {
		t.Fatalf("should flush once count reaches high_watermark")
	}
}

func TestBatchPolicyAgeRule(t *testing.T) {
	p := NewBatchPolicy(1000, time.Second, nil)
	p.Observe("X", t0)
	if p.ShouldFlush(t0.Add(500 * time.Millisecond)) {
		t.Fatalf("should not flush before max_age elapses")
	}
	if !p.ShouldFlush(t0.Add(time.Second)) {
		t.Fatalf("should flush once max_age elapses")
	}
}

func TestBatchPolicyPriorityRule(t *testing.T) {
	p := NewBatchPolicy(1000, time.Hour, []string{"PRIORITY"})
	p.Observe("PRIORITY", t0)
	if !p.ShouldFlush(t0) {
		t.Fatalf("priority symbol should trigger immediate flush")
	}
}

func TestBatchPolicyMonotonicityUntilReset(t *testing.T) {
	p := NewBatchPolicy(1, time.Hour, nil)
	p.Observe("X", t0)
	if !p.ShouldFlush(t0) {
		t.Fatalf("expected should_flush true immediately after reaching watermark")
	}
	for _, later := range []time.Time{t0.Add(time.Second), t0.Add(time.Minute), t0.Add(time.Hour)} {
		if !p.ShouldFlush(later) {
			t.Fatalf("should_flush must stay true until reset, failed at %v", later)
		}
	}
	p.Reset()
	if p.ShouldFlush(t0.Add(time.Hour)) {
		t.Fatalf("should_flush must return false immediately after reset")
	}
}
