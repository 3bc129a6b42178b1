package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-trading-agent/internal/journal"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/reporting"
)

func newReportCmd() *cobra.Command {
	var (
		dataDir   string
		excelPath string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show portfolio state and recent trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(dataDir, excelPath, limit)
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data", "d", "data", "data directory holding state and journal")
	cmd.Flags().StringVar(&excelPath, "excel", "", "also export a workbook to this path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent trades to show")
	return cmd
}

func runReport(dataDir, excelPath string, limit int) error {
	store, err := ledger.NewFileStore(filepath.Join(dataDir, stateFileName))
	if err != nil {
		return err
	}
	if !store.Exists() {
		return fmt.Errorf("no portfolio state found in %s", dataDir)
	}

	// Open read-only: zero capital would be rejected on a fresh init, which
	// is exactly what we want for a report.
	ldg, err := ledger.Open(store, decimal.Zero)
	if err != nil {
		return err
	}
	snap := ldg.Snapshot()

	console := reporting.NewConsoleReporter(os.Stdout)
	console.PrintPortfolio(snap)

	trades, err := loadTrades(dataDir, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load trades: %v\n", err)
	} else {
		console.PrintTrades(trades)
	}

	if excelPath != "" {
		excel := reporting.NewExcelReporter()
		if err := excel.WriteWorkbook(excelPath, snap, trades); err != nil {
			return fmt.Errorf("failed to write workbook: %w", err)
		}
		fmt.Printf("Workbook written to %s\n", excelPath)
	}
	return nil
}

// loadTrades prefers the SQLite journal and falls back to the CSV trade log.
func loadTrades(dataDir string, limit int) ([]journal.TradeRecord, error) {
	dbPath := filepath.Join(dataDir, "journal.sqlite")
	if _, err := os.Stat(dbPath); err == nil {
		db, err := journal.NewSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.ListTrades(limit)
	}

	csvPath := filepath.Join(dataDir, "trade_log.csv")
	if _, err := os.Stat(csvPath); err != nil {
		return nil, fmt.Errorf("no journal found in %s", dataDir)
	}

	jnl, err := journal.NewCSV(dataDir)
	if err != nil {
		return nil, err
	}
	defer jnl.Close()
	return jnl.ListTrades(limit)
}
