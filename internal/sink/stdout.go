package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/core"
)

// StdoutRecorder is a Sink that appends one JSON line per batch to a
// writer (stdout by default), grounded on the teacher's outbox.go
// append-one-JSON-line-per-entry pattern.
type StdoutRecorder struct {
	mu  sync.Mutex
	w   *bufio.Writer
	out io.Writer
}

type stdoutBatchEntry struct {
	WrittenAt time.Time         `json:"written_at"`
	Batch     []core.CellUpdate `json:"batch"`
}

// NewStdoutRecorder builds a recorder writing to w (os.Stdout if nil).
func NewStdoutRecorder(w io.Writer) *StdoutRecorder {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutRecorder{w: bufio.NewWriter(w), out: w}
}

func (s *StdoutRecorder) Open(ctx context.Context) error { return nil }

func (s *StdoutRecorder) WriteBatch(ctx context.Context, batch []core.CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := stdoutBatchEntry{WrittenAt: time.Now().UTC(), Batch: batch}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *StdoutRecorder) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

func (s *StdoutRecorder) Close(ctx context.Context) error {
	return s.Flush(ctx)
}
