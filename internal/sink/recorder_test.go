package sink_test

import (
	"context"
	"testing"

	"github.com/arvindsheth/sheetfeed/internal/core"
	"github.com/arvindsheth/sheetfeed/internal/sink"
)

func TestRecorderKeepsLatestPerAddress(t *testing.T) {
	r := sink.NewRecorder()
	addr := core.CellAddress{SheetName: core.SheetMarketData, ColumnName: core.ColLast, RowIndex: 2}

	_ = r.WriteBatch(context.Background(), []core.CellUpdate{{Address: addr, Value: core.IntegerValue(1)}})
	_ = r.WriteBatch(context.Background(), []core.CellUpdate{{Address: addr, Value: core.IntegerValue(2)}})

	v, ok := r.Latest(addr)
	if !ok || v.Integer != 2 {
		t.Fatalf("expected latest value 2, got %+v (ok=%v)", v, ok)
	}
	if r.WriteCount() != 2 {
		t.Fatalf("expected history to record both writes, got %d", r.WriteCount())
	}
}

func TestFailingRecorderFailsThenSucceeds(t *testing.T) {
	r := sink.NewFailingRecorder(2)
	batch := []core.CellUpdate{{Address: core.CellAddress{SheetName: core.SheetMarketData, ColumnName: core.ColLast, RowIndex: 2}, Value: core.IntegerValue(1)}}

	if err := r.WriteBatch(context.Background(), batch); err == nil {
		t.Fatalf("expected first attempt to fail")
	}
	if err := r.WriteBatch(context.Background(), batch); err == nil {
		t.Fatalf("expected second attempt to fail")
	}
	if err := r.WriteBatch(context.Background(), batch); err != nil {
		t.Fatalf("expected third attempt to succeed, got %v", err)
	}
	if r.WriteCount() != 1 {
		t.Fatalf("expected exactly one successful write recorded, got %d", r.WriteCount())
	}
}
