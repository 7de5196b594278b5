package core

import "context"

// Sink is the consumer-side capability set from spec.md §9: {open,
// write_batch, flush, close}. The core depends on this capability, never
// on a concrete spreadsheet/recorder variant (design note, spec.md §9).
// Write returns once durably accepted; Flush persists previously accepted
// writes; both may fail with any error, which the resilience wrapper
// (resilience.go) turns into backoff rather than propagating to the
// producer.
type Sink interface {
	Open(ctx context.Context) error
	WriteBatch(ctx context.Context, batch []CellUpdate) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}
