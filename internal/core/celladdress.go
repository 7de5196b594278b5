package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CellAddress pins a write to a single cell: a sheet, a human-readable
// column name (never a spreadsheet letter), and a row. Rows below 2 are
// reserved for headers (spec.md §3).
type CellAddress struct {
	SheetName  string
	ColumnName string
	RowIndex   int
}

// Fixed sheet names and column tags from spec.md §6. Sinks must create
// any column name outside this set rather than reject it, but the
// dispatcher only ever emits these.
const (
	SheetMarketData = "MarketData"
	SheetMetrics    = "Metrics"

	ColSymbol       = "Symbol"
	ColLastUpdate   = "LastUpdate"
	ColIsStale      = "IsStale"
	ColGapCount     = "GapCount"
	ColSequence     = "Sequence"
	ColLast         = "Last"
	ColBid          = "Bid"
	ColAsk          = "Ask"
	ColBidSize      = "BidSize"
	ColAskSize      = "AskSize"
	ColVolume       = "Volume"
	ColChange       = "Change"
	ColOpen         = "Open"
	ColHigh         = "High"
	ColLow          = "Low"
	ColTimestamp    = "Timestamp"

	ColTotalQuotes              = "TotalQuotes"
	ColTotalGaps                = "TotalGaps"
	ColStaleCount               = "StaleCount"
	ColInstrumentCount          = "InstrumentCount"
	ColRetentionTotalEvicted    = "RetentionTotalEvicted"
	ColRetentionLastEvictionUtc = "RetentionLastEvictionUtc"
	ColRetentionLastBatchEvicted = "RetentionLastBatchEvicted"
)

// CellKind discriminates the CellValue tagged union (spec.md §3).
type CellKind int

const (
	KindAbsent CellKind = iota
	KindText
	KindInteger
	KindDecimal
	KindBoolean
	KindInstant
)

// CellValue is a tagged union over {text, integer, decimal, boolean,
// instant, absent}. Only the field matching Kind is meaningful.
type CellValue struct {
	Kind    CellKind
	Text    string
	Integer int64
	Decimal decimal.Decimal
	Boolean bool
	Instant time.Time
}

func TextValue(s string) CellValue          { return CellValue{Kind: KindText, Text: s} }
func IntegerValue(i int64) CellValue        { return CellValue{Kind: KindInteger, Integer: i} }
func DecimalValue(d decimal.Decimal) CellValue { return CellValue{Kind: KindDecimal, Decimal: d} }
func BooleanValue(b bool) CellValue         { return CellValue{Kind: KindBoolean, Boolean: b} }
func InstantValue(t time.Time) CellValue    { return CellValue{Kind: KindInstant, Instant: t} }
func AbsentValue() CellValue                { return CellValue{Kind: KindAbsent} }

// CellUpdate is a pending write of a value to an address (spec.md §3).
type CellUpdate struct {
	Address CellAddress
	Value   CellValue
}
