package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	tradeHeader = []string{
		"trade_id", "timestamp", "strategy", "symbol", "action", "price",
		"quantity", "pnl", "trigger_reason", "fee_usd", "balance",
	}
	signalHeader = []string{
		"timestamp", "strategy", "symbol", "signal", "price", "trigger_met",
		"blocked_reason",
	}
	snapshotHeader = []string{
		"timestamp", "conservative_value", "aggressive_value", "total_value",
		"cash", "open_positions", "total_trades", "daily_loss", "total_loss",
	}
)

// CSVJournal appends trades, signals and snapshots to three CSV files under
// the data directory. Files survive restarts; headers are written only when a
// file is created.
type CSVJournal struct {
	dir       string
	trades    *csv.Writer
	signals   *csv.Writer
	snapshots *csv.Writer
	tf        *os.File
	sf        *os.File
	pf        *os.File
}

// NewCSV opens (or creates) the trade, signal and snapshot logs in dir.
func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	tf, tw, err := openAppendCSV(filepath.Join(dir, "trade_log.csv"), tradeHeader)
	if err != nil {
		return nil, err
	}
	sf, sw, err := openAppendCSV(filepath.Join(dir, "signal_log.csv"), signalHeader)
	if err != nil {
		tf.Close()
		return nil, err
	}
	pf, pw, err := openAppendCSV(filepath.Join(dir, "snapshot_log.csv"), snapshotHeader)
	if err != nil {
		tf.Close()
		sf.Close()
		return nil, err
	}

	return &CSVJournal{dir: dir, trades: tw, signals: sw, snapshots: pw, tf: tf, sf: sf, pf: pf}, nil
}

func openAppendCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

// RecordTrade appends one executed trade.
func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.TradeID,
		t.Timestamp.UTC().Format(time.RFC3339),
		t.Strategy,
		t.Symbol,
		t.Action,
		t.Price.String(),
		t.Quantity.String(),
		t.PnL.String(),
		t.TriggerReason,
		t.FeeUSD.String(),
		t.Balance.String(),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

// RecordSignal appends one strategy evaluation.
func (j *CSVJournal) RecordSignal(s SignalRecord) error {
	err := j.signals.Write([]string{
		s.Timestamp.UTC().Format(time.RFC3339),
		s.Strategy,
		s.Symbol,
		s.Signal,
		s.Price.String(),
		strconv.FormatBool(s.TriggerMet),
		s.BlockedReason,
	})
	if err != nil {
		return err
	}
	j.signals.Flush()
	return j.signals.Error()
}

// RecordSnapshot appends one portfolio snapshot.
func (j *CSVJournal) RecordSnapshot(s SnapshotRecord) error {
	err := j.snapshots.Write([]string{
		s.Timestamp.UTC().Format(time.RFC3339),
		s.ConservativeValue.String(),
		s.AggressiveValue.String(),
		s.TotalValue.String(),
		s.Cash.String(),
		strconv.Itoa(s.OpenPositions),
		strconv.Itoa(s.TotalTrades),
		s.DailyLoss.String(),
		s.TotalLoss.String(),
	})
	if err != nil {
		return err
	}
	j.snapshots.Flush()
	return j.snapshots.Error()
}

// ListTrades reads the trade log back, newest first. A limit of zero or less
// returns everything. Rows already on disk before this session are included.
func (j *CSVJournal) ListTrades(limit int) ([]TradeRecord, error) {
	f, err := os.Open(filepath.Join(j.dir, "trade_log.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open trade log: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read trade log: %w", err)
	}

	var trades []TradeRecord
	// Skip the header; rows append oldest first on disk.
	for i := len(rows) - 1; i >= 1; i-- {
		record, err := parseTradeRow(rows[i])
		if err != nil {
			return nil, err
		}
		trades = append(trades, record)
		if limit > 0 && len(trades) == limit {
			break
		}
	}
	return trades, nil
}

func parseTradeRow(row []string) (TradeRecord, error) {
	if len(row) != len(tradeHeader) {
		return TradeRecord{}, fmt.Errorf("malformed trade row with %d columns", len(row))
	}

	ts, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return TradeRecord{}, fmt.Errorf("bad trade timestamp %q: %w", row[1], err)
	}

	record := TradeRecord{
		TradeID:       row[0],
		Timestamp:     ts,
		Strategy:      row[2],
		Symbol:        row[3],
		Action:        row[4],
		TriggerReason: row[8],
	}
	for _, field := range []struct {
		dst *decimal.Decimal
		val string
	}{
		{&record.Price, row[5]},
		{&record.Quantity, row[6]},
		{&record.PnL, row[7]},
		{&record.FeeUSD, row[9]},
		{&record.Balance, row[10]},
	} {
		if *field.dst, err = decimal.NewFromString(field.val); err != nil {
			return TradeRecord{}, fmt.Errorf("bad trade value %q: %w", field.val, err)
		}
	}
	return record, nil
}

// Close flushes and closes all three logs.
func (j *CSVJournal) Close() error {
	var firstErr error
	for _, w := range []*csv.Writer{j.trades, j.signals, j.snapshots} {
		w.Flush()
		if err := w.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range []*os.File{j.tf, j.sf, j.pf} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
