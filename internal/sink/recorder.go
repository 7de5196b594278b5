package sink

import (
	"context"
	"sync"

	"github.com/arvindsheth/sheetfeed/internal/core"
)

// Recorder is an in-memory Sink that keeps the latest write per cell
// address plus a full write history, for use in tests. It never fails, so exercising the resilience wrapper's
// backoff path requires the FailingRecorder variant below.
type Recorder struct {
	mu      sync.Mutex
	opened  bool
	closed  bool
	latest  map[core.CellAddress]core.CellValue
	history []core.CellUpdate
}

func NewRecorder() *Recorder {
	return &Recorder{latest: make(map[core.CellAddress]core.CellValue)}
}

func (r *Recorder) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = true
	return nil
}

func (r *Recorder) WriteBatch(ctx context.Context, batch []core.CellUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range batch {
		r.latest[u.Address] = u.Value
		r.history = append(r.history, u)
	}
	return nil
}

func (r *Recorder) Flush(ctx context.Context) error { return nil }

func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Latest returns the last written value at address, for test assertions.
func (r *Recorder) Latest(addr core.CellAddress) (core.CellValue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.latest[addr]
	return v, ok
}

// History returns every write ever accepted, in call order.
func (r *Recorder) History() []core.CellUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.CellUpdate, len(r.history))
	copy(out, r.history)
	return out
}

// WriteCount is the number of individual cell updates ever accepted
// (distinct from Len on the coalescing buffer, which counts distinct
// pending addresses after coalescing).
func (r *Recorder) WriteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// FailingRecorder wraps a Recorder and fails its first failUntil
// WriteBatch calls, passing later ones through to the Recorder, so tests
// can exercise the resilience wrapper's backoff gate deterministically.
type FailingRecorder struct {
	*Recorder
	mu         sync.Mutex
	attempts   int
	failUntil  int
}

// NewFailingRecorder builds a recorder whose first failUntil WriteBatch
// calls return an error before succeeding.
func NewFailingRecorder(failUntil int) *FailingRecorder {
	return &FailingRecorder{Recorder: NewRecorder(), failUntil: failUntil}
}

func (f *FailingRecorder) WriteBatch(ctx context.Context, batch []core.CellUpdate) error {
	f.mu.Lock()
	f.attempts++
	attempt := f.attempts
	f.mu.Unlock()

	if attempt <= f.failUntil {
		return errSimulatedSinkFailure
	}
	return f.Recorder.WriteBatch(ctx, batch)
}

type sinkError string

func (e sinkError) Error() string { return string(e) }

const errSimulatedSinkFailure = sinkError("simulated sink failure")
