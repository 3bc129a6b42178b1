// Package journal provides append-only records of trades, signals and
// portfolio snapshots. Two backends are available: CSV files matching the
// original log layout, and a SQLite database for querying and reporting.
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one executed trade.
type TradeRecord struct {
	TradeID       string
	Timestamp     time.Time
	Strategy      string
	Symbol        string
	Action        string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	PnL           decimal.Decimal
	TriggerReason string
	FeeUSD        decimal.Decimal
	Balance       decimal.Decimal
}

// SignalRecord is one strategy evaluation, whether or not it traded. Blocked
// signals carry the gate's rejection reason.
type SignalRecord struct {
	Timestamp     time.Time
	Strategy      string
	Symbol        string
	Signal        string
	Price         decimal.Decimal
	TriggerMet    bool
	BlockedReason string
}

// SnapshotRecord is one per-cycle portfolio snapshot.
type SnapshotRecord struct {
	Timestamp         time.Time
	ConservativeValue decimal.Decimal
	AggressiveValue   decimal.Decimal
	TotalValue        decimal.Decimal
	Cash              decimal.Decimal
	OpenPositions     int
	TotalTrades       int
	DailyLoss         decimal.Decimal
	TotalLoss         decimal.Decimal
}

// Journal records trading activity. Implementations must be safe for use from
// the single trading loop; they are not required to be goroutine-safe.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSignal(SignalRecord) error
	RecordSnapshot(SnapshotRecord) error
	Close() error
}

// Reader lists recorded trades, newest first. Both backends implement it;
// the trade history feeds reporting and rebuilds risk counters on restart.
type Reader interface {
	ListTrades(limit int) ([]TradeRecord, error)
}
