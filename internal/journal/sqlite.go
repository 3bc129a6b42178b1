package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteJournal records trading activity in a SQLite database. Unlike the CSV
// backend it also supports reading trades back for reporting.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the journal database at path.
func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// RecordTrade inserts one executed trade.
func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, timestamp, strategy, symbol, action, price, quantity, pnl, trigger_reason, fee_usd, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Timestamp.UTC().Format(time.RFC3339), t.Strategy, t.Symbol,
		t.Action, t.Price.String(), t.Quantity.String(), t.PnL.String(),
		t.TriggerReason, t.FeeUSD.String(), t.Balance.String(),
	)
	return err
}

// RecordSignal inserts one strategy evaluation.
func (j *SQLiteJournal) RecordSignal(s SignalRecord) error {
	triggerMet := 0
	if s.TriggerMet {
		triggerMet = 1
	}
	_, err := j.db.Exec(`
		INSERT INTO signals
		(timestamp, strategy, symbol, signal, price, trigger_met, blocked_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Timestamp.UTC().Format(time.RFC3339), s.Strategy, s.Symbol, s.Signal,
		s.Price.String(), triggerMet, s.BlockedReason,
	)
	return err
}

// RecordSnapshot inserts one portfolio snapshot.
func (j *SQLiteJournal) RecordSnapshot(s SnapshotRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(timestamp, conservative_value, aggressive_value, total_value, cash, open_positions, total_trades, daily_loss, total_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Timestamp.UTC().Format(time.RFC3339), s.ConservativeValue.String(),
		s.AggressiveValue.String(), s.TotalValue.String(), s.Cash.String(),
		s.OpenPositions, s.TotalTrades, s.DailyLoss.String(), s.TotalLoss.String(),
	)
	return err
}

// ListTrades returns the most recent trades, newest first. A non-positive
// limit returns everything.
func (j *SQLiteJournal) ListTrades(limit int) ([]TradeRecord, error) {
	query := `
		SELECT trade_id, timestamp, strategy, symbol, action, price, quantity, pnl, trigger_reason, fee_usd, balance
		FROM trades ORDER BY timestamp DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var ts, price, qty, pnl, fee, balance string
		if err := rows.Scan(&t.TradeID, &ts, &t.Strategy, &t.Symbol, &t.Action,
			&price, &qty, &pnl, &t.TriggerReason, &fee, &balance); err != nil {
			return nil, err
		}
		t.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp in trade %s: %w", t.TradeID, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if t.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, err
		}
		if t.FeeUSD, err = decimal.NewFromString(fee); err != nil {
			return nil, err
		}
		if t.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
