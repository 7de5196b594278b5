// Package producer implements the Producer capability set spec.md §9
// models as {start, stop}: a pluggable source of (symbol, quote,
// sequence) triples delivered into the dispatcher. Producers are named
// external collaborators in spec.md §1 — this package supplies the demo
// and replay variants spec.md calls out by name, so the pipeline is
// runnable end to end without a real market-data feed.
package producer

import (
	"context"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/core"
)

// Producer is the producer-side capability set from spec.md §9.
type Producer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Dispatch is the entry point a producer calls into per spec.md §6:
// process(quote, symbol, sequence) where sequence == core.SequenceNone
// denotes no-sequence. It is satisfied by *core.Dispatcher.
type Dispatch interface {
	Process(quote core.Quote, symbol string, sequence int64, now time.Time) core.UpdateResult
}
