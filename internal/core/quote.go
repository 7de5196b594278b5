// Package core implements the in-process tick pipeline: the per-symbol
// state model, sequence/freshness/retention tracking, coalescing update
// buffer, flush scheduler, and sink resilience wrapper described in
// spec.md. It has no dependency on any concrete producer or sink — the
// Sink capability interface it consumes is defined here (sink.go) and
// implemented in internal/sink, and producers in internal/producer call
// into the Dispatcher.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is an immutable snapshot of one instrument's market-data fields
// at an event time (spec.md §3). Optional decimal fields use
// shopspring/decimal rather than float64 so cents-level values survive a
// round trip through logging and the sink unchanged.
type Quote struct {
	Bid           decimal.NullDecimal
	BidSize       decimal.NullDecimal
	Ask           decimal.NullDecimal
	AskSize       decimal.NullDecimal
	Last          decimal.NullDecimal
	Change        decimal.NullDecimal // the only field allowed to be negative
	Open          decimal.NullDecimal
	High          decimal.NullDecimal
	Low           decimal.NullDecimal
	PreviousClose decimal.NullDecimal
	Turnover      decimal.NullDecimal
	Volume        *int64
	Operations    *int64
	EventTime     time.Time
}

// Sanitize returns a copy of q with every negative non-Change field
// coerced to absent, per spec.md §3. It does not mutate q.
func (q Quote) Sanitize() Quote {
	out := q
	out.Bid = dropNegative(q.Bid)
	out.BidSize = dropNegative(q.BidSize)
	out.Ask = dropNegative(q.Ask)
	out.AskSize = dropNegative(q.AskSize)
	out.Last = dropNegative(q.Last)
	out.Open = dropNegative(q.Open)
	out.High = dropNegative(q.High)
	out.Low = dropNegative(q.Low)
	out.PreviousClose = dropNegative(q.PreviousClose)
	out.Turnover = dropNegative(q.Turnover)
	// Change is intentionally left untouched — it is the one field
	// allowed to carry a negative value.
	if q.Volume != nil && *q.Volume < 0 {
		out.Volume = nil
	}
	if q.Operations != nil && *q.Operations < 0 {
		out.Operations = nil
	}
	return out
}

func dropNegative(d decimal.NullDecimal) decimal.NullDecimal {
	if d.Valid && d.Decimal.IsNegative() {
		return decimal.NullDecimal{}
	}
	return d
}

// VariantTag classifies a symbol by its settlement convention
// (SPEC_FULL.md, resolving the Open Question spec.md §3 leaves implicit).
type VariantTag int

const (
	VariantSpot VariantTag = iota
	VariantSettlement24h
	VariantOther
)

func (v VariantTag) String() string {
	switch v {
	case VariantSpot:
		return "spot"
	case VariantSettlement24h:
		return "settlement-24h"
	default:
		return "other"
	}
}

// ClassifyVariant derives a symbol's VariantTag from its naming
// convention: a trailing ".D" suffix marks a 24-hour settlement
// instrument, a bare alphabetic symbol is spot, anything else is other.
func ClassifyVariant(symbol string) VariantTag {
	if len(symbol) > 2 && symbol[len(symbol)-2:] == ".D" {
		return VariantSettlement24h
	}
	for _, r := range symbol {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return VariantOther
		}
	}
	if symbol == "" {
		return VariantOther
	}
	return VariantSpot
}
