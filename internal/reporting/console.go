// Package reporting renders portfolio state and trade history for the
// operator: a console view and an Excel export.
package reporting

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-trading-agent/internal/journal"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
)

// ConsoleReporter prints portfolio summaries and trade history as rounded
// tables.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// PrintPortfolio renders the current portfolio state.
func (r *ConsoleReporter) PrintPortfolio(snap ledger.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("PORTFOLIO")
	t.SetStyle(table.StyleRounded)

	total := snap.ConservativeValue.Add(snap.AggressiveValue)
	t.AppendRows([]table.Row{
		{"💰 Total Value", "$" + total.StringFixed(2)},
		{"💵 Cash", "$" + snap.Cash.StringFixed(2)},
		{"🏦 Conservative", "$" + snap.ConservativeValue.StringFixed(2)},
		{"🚀 Aggressive", "$" + snap.AggressiveValue.StringFixed(2)},
		{"📊 Baseline Aggr.", "$" + snap.BaselineAggressive.StringFixed(2)},
		{"🔄 Total Trades", fmt.Sprintf("%d", snap.TotalTrades)},
	})
	if snap.LastRebalance != nil {
		t.AppendRow(table.Row{"⚖️  Last Rebalance", snap.LastRebalance.Format("2006-01-02")})
	}
	if snap.LastSkim != nil {
		t.AppendRow(table.Row{"✂️  Last Skim", snap.LastSkim.Format("2006-01-02")})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 15, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(r.out)

	r.printPositions(snap)
}

func (r *ConsoleReporter) printPositions(snap ledger.Snapshot) {
	if len(snap.Positions) == 0 {
		fmt.Fprintln(r.out, "No open positions.")
		return
	}

	symbols := make([]string, 0, len(snap.Positions))
	for sym := range snap.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Size", "Entry Price", "Cost Basis", "Opened"})

	for _, sym := range symbols {
		pos := snap.Positions[sym]
		t.AppendRow(table.Row{
			sym,
			pos.Size.StringFixed(6),
			"$" + pos.EntryPrice.StringFixed(2),
			"$" + pos.Size.Mul(pos.EntryPrice).StringFixed(2),
			pos.OpenedAt.Format("2006-01-02"),
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintTrades renders recent trades, newest first.
func (r *ConsoleReporter) PrintTrades(trades []journal.TradeRecord) {
	if len(trades) == 0 {
		fmt.Fprintln(r.out, "No trades recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("RECENT TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Symbol", "Action", "Price", "Quantity", "P&L", "Reason"})

	for _, trade := range trades {
		t.AppendRow(table.Row{
			trade.Timestamp.Format("2006-01-02 15:04"),
			trade.Symbol,
			trade.Action,
			"$" + trade.Price.StringFixed(2),
			trade.Quantity.StringFixed(6),
			"$" + trade.PnL.StringFixed(2),
			trade.TriggerReason,
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}
