package producer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/core"
	"github.com/arvindsheth/sheetfeed/internal/observ"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Demo is a synthetic tick generator: it walks a small fixed set of
// symbols around a random-walk last price, pacing emission with
// golang.org/x/time/rate the way the teacher's polygon.go adapter paces
// outbound HTTP calls. It exists so the pipeline can be exercised and
// demoed without any real feed (spec.md §1, SUPPLEMENTED FEATURES #2).
type Demo struct {
	dispatch Dispatch
	symbols  []string
	limiter  *rate.Limiter
	runID    string

	mu       sync.Mutex
	sequence map[string]int64
	last     map[string]float64

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDemo builds a demo producer emitting up to ticksPerSecond ticks per
// second, spread across symbols.
func NewDemo(dispatch Dispatch, symbols []string, ticksPerSecond float64) *Demo {
	seq := make(map[string]int64, len(symbols))
	last := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		seq[s] = 0
		last[s] = 100 + rand.Float64()*50
	}
	return &Demo{
		dispatch: dispatch,
		symbols:  symbols,
		limiter:  rate.NewLimiter(rate.Limit(ticksPerSecond), int(ticksPerSecond)+1),
		runID:    uuid.NewString(),
		sequence: seq,
		last:     last,
		stopChan: make(chan struct{}),
	}
}

func (d *Demo) Start(ctx context.Context) error {
	observ.Log("demo_producer_started", map[string]any{"run_id": d.runID, "symbols": d.symbols})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-d.stopChan:
				return
			default:
			}
			d.emitOne()
		}
	}()
	return nil
}

func (d *Demo) emitOne() {
	symbol := d.symbols[rand.Intn(len(d.symbols))]

	d.mu.Lock()
	d.last[symbol] += (rand.Float64() - 0.5) * 0.5
	d.sequence[symbol]++
	last := d.last[symbol]
	seq := d.sequence[symbol]
	d.mu.Unlock()

	q := core.Quote{
		Last:      decimal.NewNullDecimal(decimal.NewFromFloat(last).Round(2)),
		Bid:       decimal.NewNullDecimal(decimal.NewFromFloat(last - 0.01).Round(2)),
		Ask:       decimal.NewNullDecimal(decimal.NewFromFloat(last + 0.01).Round(2)),
		EventTime: time.Now().UTC(),
	}
	d.dispatch.Process(q, symbol, seq, time.Now().UTC())
}

func (d *Demo) Stop(ctx context.Context) error {
	close(d.stopChan)
	d.wg.Wait()
	observ.Log("demo_producer_stopped", map[string]any{"run_id": d.runID})
	return nil
}
