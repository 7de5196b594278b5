// Package sink provides concrete implementations of the core.Sink
// capability (spec.md §9's {open, write_batch, flush, close} set): an
// in-memory recorder for tests and a stdout JSON-line recorder for
// manual/demo runs. The interface itself lives in internal/core (core.Sink)
// since the scheduler that consumes it is defined there; this package only
// supplies implementations, avoiding an import cycle.
package sink
