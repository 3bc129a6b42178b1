package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-trading-agent/internal/journal"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
)

// ExcelReporter exports the trade journal and portfolio summary to a
// workbook.
type ExcelReporter struct{}

// NewExcelReporter creates an Excel reporter.
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteWorkbook writes a Trades sheet and a Summary sheet to path.
func (r *ExcelReporter) WriteWorkbook(path string, snap ledger.Snapshot, trades []journal.TradeRecord) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, trades, headerStyle); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, summarySheet, snap, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, trades []journal.TradeRecord, headerStyle int) error {
	headers := []string{"Trade ID", "Timestamp", "Strategy", "Symbol", "Action", "Price", "Quantity", "P&L", "Fee", "Balance", "Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", lastCol, headerStyle); err != nil {
		return err
	}

	for row, trade := range trades {
		values := []interface{}{
			trade.TradeID,
			trade.Timestamp.Format("2006-01-02 15:04:05"),
			trade.Strategy,
			trade.Symbol,
			trade.Action,
			trade.Price.InexactFloat64(),
			trade.Quantity.InexactFloat64(),
			trade.PnL.InexactFloat64(),
			trade.FeeUSD.InexactFloat64(),
			trade.Balance.InexactFloat64(),
			trade.TriggerReason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return fx.SetColWidth(sheet, "A", "K", 18)
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, snap ledger.Snapshot, headerStyle int) error {
	if err := fx.SetCellValue(sheet, "A1", "Metric"); err != nil {
		return err
	}
	if err := fx.SetCellValue(sheet, "B1", "Value"); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return err
	}

	total := snap.ConservativeValue.Add(snap.AggressiveValue)
	rows := [][2]interface{}{
		{"Total Value", total.InexactFloat64()},
		{"Cash", snap.Cash.InexactFloat64()},
		{"Conservative Value", snap.ConservativeValue.InexactFloat64()},
		{"Aggressive Value", snap.AggressiveValue.InexactFloat64()},
		{"Baseline Aggressive", snap.BaselineAggressive.InexactFloat64()},
		{"Open Positions", len(snap.Positions)},
		{"Total Trades", snap.TotalTrades},
	}
	for i, row := range rows {
		cellA, _ := excelize.CoordinatesToCellName(1, i+2)
		cellB, _ := excelize.CoordinatesToCellName(2, i+2)
		if err := fx.SetCellValue(sheet, cellA, row[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cellB, row[1]); err != nil {
			return err
		}
	}

	return fx.SetColWidth(sheet, "A", "B", 22)
}
