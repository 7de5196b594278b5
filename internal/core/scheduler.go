package core

import (
	"context"
	"sync"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/config"
	"github.com/arvindsheth/sheetfeed/internal/observ"
)

// FlushScheduler is the periodic loop from spec.md §4.8: on each tick it
// consults the batch policy, drains the coalescing buffer, and pushes the
// drained batch through the resilience wrapper to the sink. Grounded on
// etalazz-vsa's Worker.commitLoop/runFinalFlush ticker+stopChan shape,
// adapted from a two-loop (commit/evict) worker to this single
// flush loop, since retention eviction here happens inline in the
// dispatcher rather than on its own schedule.
type FlushScheduler struct {
	buffer  *CoalescingBuffer
	policy  *BatchPolicy
	metrics *Metrics
	gate    *BackoffGate
	sink    Sink

	flushInterval    time.Duration
	flushPolicy      config.FlushPolicy
	gracefulShutdown time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewFlushScheduler wires a scheduler against its collaborators.
// flushPolicy selects between peek-then-commit (default, spec.md §9) and
// discard-on-skip.
func NewFlushScheduler(buffer *CoalescingBuffer, policy *BatchPolicy, metrics *Metrics, gate *BackoffGate, sink Sink, flushInterval time.Duration, flushPolicy config.FlushPolicy, gracefulShutdown time.Duration) *FlushScheduler {
	return &FlushScheduler{
		buffer:           buffer,
		policy:           policy,
		metrics:          metrics,
		gate:             gate,
		sink:             sink,
		flushInterval:    flushInterval,
		flushPolicy:      flushPolicy,
		gracefulShutdown: gracefulShutdown,
		stopChan:         make(chan struct{}),
	}
}

// Start launches the periodic flush loop. ctx cancellation is the
// cooperative shutdown signal spec.md §5 describes; the loop also
// observes its own stopChan so Stop can be called without a context.
func (s *FlushScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runFlushCycle(ctx)
			case <-ctx.Done():
				s.runFinalFlush()
				return
			case <-s.stopChan:
				s.runFinalFlush()
				return
			}
		}
	}()
}

// Stop signals the loop to exit; it performs one bounded flush_now before
// returning (spec.md §5 cancellation/graceful-shutdown).
func (s *FlushScheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// runFlushCycle implements one scheduler tick (spec.md §4.8). Any error
// from the sink path is caught inside attemptSinkCall and never
// propagates — the loop always survives to the next tick.
func (s *FlushScheduler) runFlushCycle(ctx context.Context) {
	now := time.Now()
	observ.SyncPrometheus()

	if !s.policy.ShouldFlush(now) {
		return
	}
	if s.buffer.Len() == 0 {
		return
	}

	switch s.flushPolicy {
	case config.FlushPolicyPeekThenCommit:
		// Only drain once the gate confirms it will accept the call, so a
		// closed gate leaves quiet symbols' last values sitting in the
		// buffer instead of discarding them (spec.md §9).
		if !s.gate.Open(now) {
			return
		}
		batch := s.buffer.Drain()
		s.attemptSinkCall(ctx, batch, now)
	case config.FlushPolicyDiscardOnSkip:
		batch := s.buffer.Drain()
		if !s.gate.Open(now) {
			s.metrics.RecordFlush(false, 0, 0)
			observ.Log("flush_skipped_discarded", map[string]any{"discarded_updates": len(batch)})
			return
		}
		s.attemptSinkCall(ctx, batch, now)
	}
}

// runFinalFlush is the bounded flush_now called on shutdown (spec.md §5,
// §4.8).
func (s *FlushScheduler) runFinalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), s.gracefulShutdown)
	defer cancel()
	s.FlushNow(ctx)
}

// FlushNow forces an immediate flush regardless of the batch policy,
// still subject to the resilience gate (spec.md §4.8).
func (s *FlushScheduler) FlushNow(ctx context.Context) {
	if s.buffer.Len() == 0 {
		return
	}
	now := time.Now()
	if !s.gate.Open(now) {
		return
	}
	batch := s.buffer.Drain()
	s.attemptSinkCall(ctx, batch, now)
}

func (s *FlushScheduler) attemptSinkCall(ctx context.Context, batch []CellUpdate, now time.Time) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	err := s.sink.WriteBatch(ctx, batch)
	elapsed := time.Since(start)

	if err != nil {
		s.gate.RecordFailure(now)
		s.metrics.RecordFlush(false, len(batch), elapsed)
		return
	}

	s.gate.RecordSuccess()
	s.metrics.RecordFlush(true, len(batch), elapsed)
	s.policy.Reset()
}
