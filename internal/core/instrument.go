package core

import "time"

// InstrumentState is the per-symbol mutable aggregate from spec.md §3. It
// is mutated through TryUpdate, except for the Stale flag, which the
// dispatcher sets directly; both happen inside the dispatcher's single
// critical section (spec.md §5).
type InstrumentState struct {
	Symbol         string
	VariantTag     VariantTag
	LastQuote      *Quote
	LastUpdateTime time.Time
	LastSequence   int64
	GapCount       int
	Stale          bool
	RowIndex       int
}

// NewInstrumentState creates a fresh instrument at the given row, with no
// sequence cursor and no prior update (spec.md §3 lifecycle).
func NewInstrumentState(symbol string, rowIndex int) *InstrumentState {
	return &InstrumentState{
		Symbol:       symbol,
		VariantTag:   ClassifyVariant(symbol),
		LastSequence: SequenceNone,
		RowIndex:     rowIndex,
	}
}

// UpdateResult is the outcome of TryUpdate (spec.md §4.2 step 5).
type UpdateResult struct {
	Accepted       bool
	Rejected       bool
	RejectReason   string
	Classification Classification
	GapsSoFar      int
}

// TryUpdate applies one tick to the instrument (spec.md §4.2). The only
// rejection path is an out-of-order event_time; every other classification
// mutates last_update_time, and all but no-sequence also set
// last_sequence (duplicates accept the
// timestamp implicitly — see spec.md §4.2 — but the dispatcher uses
// Classification, not Accepted, to decide whether to enqueue cell writes).
func (inst *InstrumentState) TryUpdate(quote Quote, sequence int64) UpdateResult {
	if !inst.LastUpdateTime.IsZero() && quote.EventTime.Before(inst.LastUpdateTime) {
		return UpdateResult{Rejected: true, RejectReason: "stale-timestamp"}
	}

	cls := Classify(inst.LastSequence, sequence)
	if cls == Gap {
		inst.GapCount++
	}

	sanitized := quote.Sanitize()
	inst.LastQuote = &sanitized
	inst.LastUpdateTime = quote.EventTime
	if cls != NoSequence {
		inst.LastSequence = sequence
	}

	return UpdateResult{
		Accepted:       true,
		Classification: cls,
		GapsSoFar:      inst.GapCount,
	}
}
