package producer

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/core"
	"github.com/arvindsheth/sheetfeed/internal/observ"
	"github.com/shopspring/decimal"
)

// replayRecord is one line of a replay file: a (symbol, quote, sequence)
// triple plus the event time, JSON-line encoded (the teacher's outbox.go
// append-one-JSON-object-per-line convention, read back instead of
// appended to).
type replayRecord struct {
	Symbol    string              `json:"symbol"`
	Sequence  int64               `json:"sequence"`
	EventTime time.Time           `json:"event_time"`
	Last      decimal.NullDecimal `json:"last,omitempty"`
	Bid       decimal.NullDecimal `json:"bid,omitempty"`
	Ask       decimal.NullDecimal `json:"ask,omitempty"`
	Volume    *int64              `json:"volume,omitempty"`
}

// Replay reads a newline-delimited JSON file of replayRecords and feeds
// them to the dispatcher, pacing delivery by the gap between successive
// records' event times (scaled by Speed) rather than wall-clock real
// time, so a recorded trading session can be replayed faster or slower
// than it happened.
type Replay struct {
	dispatch Dispatch
	path     string
	speed    float64

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewReplay builds a replay producer over the JSONL file at path. speed
// == 1.0 replays at the original pace; speed == 0 replays as fast as
// possible.
func NewReplay(dispatch Dispatch, path string, speed float64) *Replay {
	return &Replay{dispatch: dispatch, path: path, speed: speed, stopChan: make(chan struct{})}
}

func (r *Replay) Start(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer f.Close()
		r.run(ctx, f)
	}()
	return nil
}

func (r *Replay) run(ctx context.Context, f *os.File) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var prevEventTime time.Time
	count := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec replayRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			observ.Log("replay_record_skipped", map[string]any{"error": err.Error()})
			continue
		}

		if r.speed > 0 && !prevEventTime.IsZero() {
			gap := rec.EventTime.Sub(prevEventTime)
			if gap > 0 {
				time.Sleep(time.Duration(float64(gap) / r.speed))
			}
		}
		prevEventTime = rec.EventTime

		q := core.Quote{
			Last:      rec.Last,
			Bid:       rec.Bid,
			Ask:       rec.Ask,
			Volume:    rec.Volume,
			EventTime: rec.EventTime,
		}
		r.dispatch.Process(q, rec.Symbol, rec.Sequence, time.Now().UTC())
		count++
	}
	observ.Log("replay_finished", map[string]any{"path": r.path, "records": count})
}

func (r *Replay) Stop(ctx context.Context) error {
	close(r.stopChan)
	r.wg.Wait()
	return nil
}
