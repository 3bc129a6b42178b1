package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trading-agent/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-agent/internal/journal"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/risk"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

type memoryJournal struct {
	trades  []journal.TradeRecord
	signals []journal.SignalRecord
}

func (m *memoryJournal) RecordTrade(t journal.TradeRecord) error {
	m.trades = append(m.trades, t)
	return nil
}

func (m *memoryJournal) RecordSignal(s journal.SignalRecord) error {
	m.signals = append(m.signals, s)
	return nil
}

func (m *memoryJournal) RecordSnapshot(journal.SnapshotRecord) error { return nil }
func (m *memoryJournal) Close() error                                { return nil }

type failingExecutor struct{ calls int }

func (f *failingExecutor) Execute(context.Context, exchange.OrderRequest) (*exchange.Fill, error) {
	f.calls++
	return nil, fmt.Errorf("venue unavailable")
}
func (f *failingExecutor) Mode() string { return "failing" }

type noFundsExecutor struct{}

func (noFundsExecutor) Execute(context.Context, exchange.OrderRequest) (*exchange.Fill, error) {
	return nil, fmt.Errorf("%w: order rejected by venue", exchange.ErrInsufficientBalance)
}
func (noFundsExecutor) Mode() string { return "live-test" }

type decliner struct{}

func (decliner) Confirm(TradeIntent) (bool, error) { return false, nil }

type fixture struct {
	ledger  *ledger.Ledger
	gate    *risk.Gate
	journal *memoryJournal
	orch    *Orchestrator
}

func newFixture(t *testing.T, exec exchange.Executor, approver Approver) *fixture {
	t.Helper()

	store, err := ledger.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	ldg, err := ledger.Open(store, decimal.NewFromInt(1000))
	require.NoError(t, err)

	gate := risk.NewGate(risk.Limits{
		MaxDailyLoss:       decimal.NewFromInt(100),
		MaxTotalLoss:       decimal.NewFromInt(300),
		MaxPositionSize:    decimal.NewFromInt(100),
		MinTradeInterval:   5 * time.Minute,
		MaxTradesPerSymbol: 3,
	})

	jnl := &memoryJournal{}
	return &fixture{
		ledger:  ldg,
		gate:    gate,
		journal: jnl,
		orch:    New(ldg, gate, exec, jnl, approver, nil),
	}
}

func buyIntent(amount string) TradeIntent {
	return TradeIntent{
		Symbol:    "BTC",
		Side:      SideBuy,
		Price:     d("100"),
		AmountUSD: d(amount),
		Strategy:  "drift",
		Reason:    "dip buy",
	}
}

// TestProcess_HoldIsNoop verifies HOLD intents do nothing at all.
func TestProcess_HoldIsNoop(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	outcome, err := f.orch.Process(context.Background(), TradeIntent{Symbol: "BTC", Side: SideHold})
	require.NoError(t, err)
	assert.Nil(t, outcome)
	assert.True(t, f.ledger.Cash().Equal(d("1000")))
	assert.Empty(t, f.journal.trades)
}

// TestProcess_PaperBuyCommits verifies the full pipeline: fill, ledger
// mutation, risk counter and trade journal.
func TestProcess_PaperBuyCommits(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	outcome, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.True(t, outcome.Accepted)
	assert.NotEmpty(t, outcome.TradeID)
	assert.True(t, outcome.ExecutedPrice.Equal(d("100")))
	assert.True(t, outcome.FeeUSD.IsZero(), "paper fills carry no fee, got %s", outcome.FeeUSD)

	// 1000 - 50, no fee in paper mode.
	assert.True(t, f.ledger.Cash().Equal(d("950")))
	pos, ok := f.ledger.Position("BTC")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d("0.5")))

	assert.Equal(t, 1, f.gate.TradeCount("BTC"))
	require.Len(t, f.journal.trades, 1)
	assert.Equal(t, "BUY", f.journal.trades[0].Action)
}

// TestProcess_SellRealizesLoss verifies the realized P&L reaches the risk
// counters.
func TestProcess_SellRealizesLoss(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	_, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.NoError(t, err)

	// Step past the cooldown.
	later := time.Now().Add(10 * time.Minute)
	f.gate.SetClock(func() time.Time { return later })

	sell := TradeIntent{
		Symbol:    "BTC",
		Side:      SideSell,
		Price:     d("90"),
		AmountUSD: d("45"), // full 0.5 position at the lower price
		Strategy:  "drift",
		Reason:    "stop loss",
	}
	outcome, err := f.orch.Process(context.Background(), sell)
	require.NoError(t, err)
	require.True(t, outcome.Accepted)

	assert.True(t, outcome.RealizedPnL.IsNegative())
	assert.True(t, f.gate.DailyLoss().GreaterThan(decimal.Zero))
	assert.Equal(t, 2, f.gate.TradeCount("BTC"))

	_, open := f.ledger.Position("BTC")
	assert.False(t, open)
}

// TestProcess_GateRejection verifies a denied trade is an outcome, not an
// error, and leaves no side effects anywhere.
func TestProcess_GateRejection(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	outcome, err := f.orch.Process(context.Background(), buyIntent("500"))
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "PositionTooLarge", outcome.Reason)

	assert.True(t, f.ledger.Cash().Equal(d("1000")))
	assert.Equal(t, 0, f.gate.TradeCount("BTC"))
	assert.Empty(t, f.journal.trades)
}

// TestProcess_Cooldown verifies back-to-back trades on one symbol are
// throttled.
func TestProcess_Cooldown(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	_, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.NoError(t, err)

	outcome, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "TradeTooSoon", outcome.Reason)
	assert.Equal(t, 1, f.gate.TradeCount("BTC"))
}

// TestProcess_UserDeclined verifies a refused confirmation blocks the trade
// before it reaches the venue.
func TestProcess_UserDeclined(t *testing.T) {
	failing := &failingExecutor{}
	f := newFixture(t, failing, decliner{})

	outcome, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ReasonUserDeclined, outcome.Reason)
	assert.Equal(t, 0, failing.calls, "declined trades must never reach the exchange")
	assert.True(t, f.ledger.Cash().Equal(d("1000")))
}

// TestProcess_ExecutorFailure verifies a failed dispatch surfaces as an
// error with no ledger or risk mutation.
func TestProcess_ExecutorFailure(t *testing.T) {
	f := newFixture(t, &failingExecutor{}, nil)

	outcome, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.Error(t, err)
	assert.Nil(t, outcome)

	assert.True(t, f.ledger.Cash().Equal(d("1000")))
	assert.Equal(t, 0, f.gate.TradeCount("BTC"))
	assert.Empty(t, f.journal.trades)
}

// TestProcess_VenueInsufficientBalance verifies the venue's no-funds
// rejection becomes a blocked outcome, not a failed cycle, with no counters
// consumed.
func TestProcess_VenueInsufficientBalance(t *testing.T) {
	f := newFixture(t, noFundsExecutor{}, nil)

	outcome, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "InsufficientFunds", outcome.Reason)

	assert.True(t, f.ledger.Cash().Equal(d("1000")))
	assert.Equal(t, 0, f.gate.TradeCount("BTC"))
	assert.Empty(t, f.journal.trades)
}

// TestProcess_SameSymbolSequence verifies the second intent for a symbol
// builds on the first's committed cash and position.
func TestProcess_SameSymbolSequence(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	outcome, err := f.orch.Process(context.Background(), buyIntent("50"))
	require.NoError(t, err)
	require.True(t, outcome.Accepted)

	later := time.Now().Add(10 * time.Minute)
	f.gate.SetClock(func() time.Time { return later })

	second := buyIntent("40")
	second.Price = d("80")
	outcome, err = f.orch.Process(context.Background(), second)
	require.NoError(t, err)
	require.True(t, outcome.Accepted)

	// 0.5 at 100 plus 0.5 at 80: size 1, weighted entry (50+40)/1.
	pos, ok := f.ledger.Position("BTC")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d("1")), "got size %s", pos.Size)
	assert.True(t, pos.EntryPrice.Equal(d("90")), "got entry %s", pos.EntryPrice)
	assert.True(t, f.ledger.Cash().Equal(d("910")))
	assert.Equal(t, 2, f.gate.TradeCount("BTC"))
}

// TestProcess_LedgerRejection verifies typed ledger errors come back as a
// blocked outcome with the shared reason vocabulary.
func TestProcess_LedgerRejection(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	// Drain cash so the gate allows the amount but the ledger cannot.
	_, err := f.ledger.ApplyBuy("ETH", d("100"), d("950"), decimal.Zero)
	require.NoError(t, err)

	outcome, err := f.orch.Process(context.Background(), buyIntent("100"))
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "InsufficientFunds", outcome.Reason)
	assert.Equal(t, 0, f.gate.TradeCount("BTC"))
}

// TestProcess_InvalidIntent verifies malformed intents are blocked up
// front.
func TestProcess_InvalidIntent(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	intent := buyIntent("50")
	intent.Price = decimal.Zero
	outcome, err := f.orch.Process(context.Background(), intent)
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "InvalidPrice", outcome.Reason)

	intent = buyIntent("0")
	outcome, err = f.orch.Process(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "InvalidAmount", outcome.Reason)
}

// TestProcess_SequentialConsistency verifies a burst of intents on several
// symbols keeps ledger cash and risk counts consistent.
func TestProcess_SequentialConsistency(t *testing.T) {
	f := newFixture(t, exchange.NewPaperExecutor(decimal.Zero), nil)

	symbols := []string{"BTC", "ETH", "SOL"}
	for _, sym := range symbols {
		intent := buyIntent("50")
		intent.Symbol = sym
		outcome, err := f.orch.Process(context.Background(), intent)
		require.NoError(t, err)
		require.True(t, outcome.Accepted)
	}

	// 1000 - 3 * 50.
	assert.True(t, f.ledger.Cash().Equal(d("850")), "got %s", f.ledger.Cash())
	for _, sym := range symbols {
		assert.Equal(t, 1, f.gate.TradeCount(sym))
	}
	assert.Len(t, f.journal.trades, 3)
}
