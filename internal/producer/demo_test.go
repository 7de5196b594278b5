package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/arvindsheth/sheetfeed/internal/producer"
)

func TestDemoEmitsTicksForConfiguredSymbols(t *testing.T) {
	dispatch := &fakeDispatch{}
	d := producer.NewDemo(dispatch, []string{"X", "Y"}, 200)

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for dispatch.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	_ = d.Stop(context.Background())

	if dispatch.count() == 0 {
		t.Fatalf("expected demo producer to emit at least one tick")
	}
}
