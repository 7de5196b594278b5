package core

import (
	"sync"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/observ"
)

// Dispatcher is the entry point from the producer (spec.md §4.7). It owns
// the single critical section spec.md §5 requires: registry, retention,
// and freshness are mutated only while Dispatcher.mu is held, so a
// producer calling from multiple goroutines sees each dispatcher step
// apply atomically.
type Dispatcher struct {
	mu sync.Mutex

	registry   *Registry
	retention  *RetentionStore
	freshness  *FreshnessTracker
	buffer     *CoalescingBuffer
	policy     *BatchPolicy
	metrics    *Metrics

	staleThreshold time.Duration
}

// NewDispatcher wires the dispatcher's collaborators together. Buffer,
// policy, and metrics are shared with the flush scheduler; retention and
// freshness are private to the dispatcher's critical section.
func NewDispatcher(buffer *CoalescingBuffer, policy *BatchPolicy, metrics *Metrics, retention *RetentionStore, freshness *FreshnessTracker, staleThreshold time.Duration) *Dispatcher {
	return &Dispatcher{
		registry:       NewRegistry(),
		retention:      retention,
		freshness:      freshness,
		buffer:         buffer,
		policy:         policy,
		metrics:        metrics,
		staleThreshold: staleThreshold,
	}
}

// Process validates and applies one tick (spec.md §4.7). sequence ==
// SequenceNone means the producer attached no sequence. now is the
// dispatcher's wall-clock processing instant, distinct from
// quote.EventTime, used to stamp buffer/policy bookkeeping.
func (d *Dispatcher) Process(quote Quote, symbol string, sequence int64, now time.Time) UpdateResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.metrics.IncTicksReceived()

	inst, _ := d.registry.ResolveOrCreate(symbol)
	result := inst.TryUpdate(quote, sequence)

	if result.Rejected {
		observ.Log("tick_rejected", map[string]any{"symbol": symbol, "reason": result.RejectReason})
		observ.IncCounter("tick_rejected", nil)
		return result
	}
	if result.Classification == Duplicate {
		observ.Log("tick_duplicate", map[string]any{"symbol": symbol, "sequence": sequence})
		return result
	}
	if result.Classification == Gap {
		observ.Log("tick_gap", map[string]any{"symbol": symbol, "sequence": sequence, "gap_count": result.GapsSoFar})
		d.metrics.IncGaps()
	}

	d.freshness.Observe(symbol, quote.EventTime)
	wasStale := inst.Stale
	inst.Stale = d.freshness.IsStale(symbol)
	if wasStale && !inst.Stale {
		observ.Log("instrument_recovered", map[string]any{"symbol": symbol})
	}
	observ.SetGauge("stale_count", float64(d.freshness.StaleCount()), nil)

	d.retention.OnNewTick(symbol, sequence, quote.EventTime)

	d.enqueueCellUpdates(inst, now)
	d.policy.Observe(symbol, now)

	return result
}

func (d *Dispatcher) enqueueCellUpdates(inst *InstrumentState, now time.Time) {
	row := inst.RowIndex
	put := func(col string, v CellValue) {
		d.buffer.Enqueue(CellUpdate{Address: CellAddress{SheetName: SheetMarketData, ColumnName: col, RowIndex: row}, Value: v}, now)
	}

	put(ColSymbol, TextValue(inst.Symbol))
	put(ColLastUpdate, InstantValue(inst.LastUpdateTime))
	put(ColIsStale, BooleanValue(inst.Stale))
	put(ColGapCount, IntegerValue(int64(inst.GapCount)))
	if inst.LastSequence != SequenceNone {
		put(ColSequence, IntegerValue(inst.LastSequence))
	}

	q := inst.LastQuote
	if q == nil {
		return
	}
	if q.Last.Valid {
		put(ColLast, DecimalValue(q.Last.Decimal))
	}
	if q.Bid.Valid {
		put(ColBid, DecimalValue(q.Bid.Decimal))
	}
	if q.Ask.Valid {
		put(ColAsk, DecimalValue(q.Ask.Decimal))
	}
	if q.BidSize.Valid {
		put(ColBidSize, DecimalValue(q.BidSize.Decimal))
	}
	if q.AskSize.Valid {
		put(ColAskSize, DecimalValue(q.AskSize.Decimal))
	}
	if q.Volume != nil {
		put(ColVolume, IntegerValue(*q.Volume))
	}
	if q.Change.Valid {
		put(ColChange, DecimalValue(q.Change.Decimal))
	}
	if q.Open.Valid {
		put(ColOpen, DecimalValue(q.Open.Decimal))
	}
	if q.High.Valid {
		put(ColHigh, DecimalValue(q.High.Decimal))
	}
	if q.Low.Valid {
		put(ColLow, DecimalValue(q.Low.Decimal))
	}
}

// QueueHeartbeat writes the cumulative-counters row on the Metrics sheet
// (spec.md §4.7, row 2 per §6).
func (d *Dispatcher) QueueHeartbeat(now time.Time, snapshot MetricsSnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	const row = 2
	put := func(col string, v CellValue) {
		d.buffer.Enqueue(CellUpdate{Address: CellAddress{SheetName: SheetMetrics, ColumnName: col, RowIndex: row}, Value: v}, now)
	}

	put(ColTimestamp, InstantValue(now))
	put(ColTotalQuotes, IntegerValue(snapshot.TicksReceived))
	put(ColTotalGaps, IntegerValue(snapshot.GapCount))
	put(ColStaleCount, IntegerValue(int64(d.freshness.StaleCount())))
	put(ColInstrumentCount, IntegerValue(int64(d.registry.Len())))
	put(ColRetentionTotalEvicted, IntegerValue(d.retention.TotalEvicted()))
	put(ColRetentionLastEvictionUtc, InstantValue(now))
	put(ColRetentionLastBatchEvicted, IntegerValue(d.retention.LastEvictionBatch()))
}

// Snapshot returns every currently tracked instrument (for tests and
// heartbeat bookkeeping that needs direct instrument access).
func (d *Dispatcher) Snapshot() []*InstrumentState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Snapshot()
}

// StaleCount, InstrumentCount, RetentionTotalEvicted, and
// RetentionLastEvictionBatch expose the dispatcher's collaborators'
// current figures to callers outside the critical section (e.g. the
// heartbeat loop building a MetricsSnapshot).
func (d *Dispatcher) StaleCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.freshness.StaleCount())
}

func (d *Dispatcher) InstrumentCount() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.registry.Len())
}

func (d *Dispatcher) RetentionTotalEvicted() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retention.TotalEvicted()
}

func (d *Dispatcher) RetentionLastEvictionBatch() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retention.LastEvictionBatch()
}
