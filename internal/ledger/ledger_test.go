package ledger

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	ldg, err := Open(store, decimal.NewFromInt(1000))
	require.NoError(t, err)
	return ldg
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// TestOpen_FreshPortfolio verifies the 70/30 split on initialization.
func TestOpen_FreshPortfolio(t *testing.T) {
	ldg := newTestLedger(t)

	snap := ldg.Snapshot()
	assert.True(t, snap.Cash.Equal(d("1000")))
	assert.True(t, snap.ConservativeValue.Equal(d("700")))
	assert.True(t, snap.AggressiveValue.Equal(d("300")))
	assert.True(t, snap.BaselineAggressive.Equal(d("300")))
	assert.Empty(t, snap.Positions)
}

// TestOpen_RejectsNonPositiveCapital verifies fresh portfolios need capital.
func TestOpen_RejectsNonPositiveCapital(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	_, err = Open(store, decimal.Zero)
	assert.Error(t, err)
}

// TestApplyBuy_WeightedAverageEntry verifies the fee-inclusive cost basis
// across consecutive buys.
func TestApplyBuy_WeightedAverageEntry(t *testing.T) {
	ldg := newTestLedger(t)

	pos, err := ldg.ApplyBuy("BTC", d("50"), d("100"), d("1"))
	require.NoError(t, err)
	assert.True(t, pos.Size.Equal(d("2")))
	assert.True(t, pos.EntryPrice.Equal(d("50.5")), "entry should include the fee: got %s", pos.EntryPrice)

	pos, err = ldg.ApplyBuy("BTC", d("60"), d("120"), d("1"))
	require.NoError(t, err)

	// old cost 2*50.5=101, new cost 121, new size 2 + 120/60 = 4.
	assert.True(t, pos.Size.Equal(d("4")))
	assert.InDelta(t, 55.5, pos.EntryPrice.InexactFloat64(), 1e-6)

	assert.True(t, ldg.Cash().Equal(d("778")))
}

// TestApplyBuy_InsufficientFunds verifies a rejected buy leaves no trace.
func TestApplyBuy_InsufficientFunds(t *testing.T) {
	ldg := newTestLedger(t)

	_, err := ldg.ApplyBuy("BTC", d("50"), d("2000"), d("1"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "InsufficientFunds", RejectionReason(err))

	assert.True(t, ldg.Cash().Equal(d("1000")))
	_, ok := ldg.Position("BTC")
	assert.False(t, ok)
}

// TestApplyBuy_RejectsBadInputs verifies price and amount validation.
func TestApplyBuy_RejectsBadInputs(t *testing.T) {
	ldg := newTestLedger(t)

	_, err := ldg.ApplyBuy("BTC", decimal.Zero, d("100"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = ldg.ApplyBuy("BTC", d("50"), d("-10"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// TestApplySell_RealizedPnL verifies proceeds, P&L and cash conservation on
// a full round trip.
func TestApplySell_RealizedPnL(t *testing.T) {
	ldg := newTestLedger(t)

	_, err := ldg.ApplyBuy("BTC", d("50"), d("100"), decimal.Zero)
	require.NoError(t, err)

	result, err := ldg.ApplySell("BTC", d("55"), d("2"), d("1"))
	require.NoError(t, err)

	assert.True(t, result.Proceeds.Equal(d("110")))
	assert.True(t, result.RealizedPnL.Equal(d("9")), "got %s", result.RealizedPnL)
	assert.True(t, result.Closed)

	// 1000 - 100 + 110 - 1 fee.
	assert.True(t, ldg.Cash().Equal(d("1009")))
	_, ok := ldg.Position("BTC")
	assert.False(t, ok)
}

// TestApplySell_PartialKeepsEntryPrice verifies a sell never reprices the
// remaining position.
func TestApplySell_PartialKeepsEntryPrice(t *testing.T) {
	ldg := newTestLedger(t)

	bought, err := ldg.ApplyBuy("ETH", d("100"), d("200"), decimal.Zero)
	require.NoError(t, err)

	result, err := ldg.ApplySell("ETH", d("120"), d("1"), decimal.Zero)
	require.NoError(t, err)
	assert.False(t, result.Closed)

	pos, ok := ldg.Position("ETH")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d("1")))
	assert.True(t, pos.EntryPrice.Equal(bought.EntryPrice))
}

// TestApplySell_Oversized verifies selling more than held is rejected
// without mutating state.
func TestApplySell_Oversized(t *testing.T) {
	ldg := newTestLedger(t)

	_, err := ldg.ApplyBuy("BTC", d("50"), d("100"), decimal.Zero)
	require.NoError(t, err)

	_, err = ldg.ApplySell("BTC", d("55"), d("3"), decimal.Zero)
	require.ErrorIs(t, err, ErrOversizedSell)
	assert.Equal(t, "OversizedSell", RejectionReason(err))

	pos, ok := ldg.Position("BTC")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d("2")))
	assert.True(t, ldg.Cash().Equal(d("900")))
}

// TestApplySell_NoPosition verifies selling a flat symbol is rejected.
func TestApplySell_NoPosition(t *testing.T) {
	ldg := newTestLedger(t)

	_, err := ldg.ApplySell("SOL", d("100"), d("1"), decimal.Zero)
	assert.ErrorIs(t, err, ErrNoPosition)
	assert.Equal(t, "NoPosition", RejectionReason(err))
}

// TestApplySell_DustCloses verifies a residual below the epsilon closes the
// position.
func TestApplySell_DustCloses(t *testing.T) {
	ldg := newTestLedger(t)

	_, err := ldg.ApplyBuy("BTC", d("50"), d("100"), decimal.Zero)
	require.NoError(t, err)

	result, err := ldg.ApplySell("BTC", d("50"), d("1.99999"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, result.Closed)

	_, ok := ldg.Position("BTC")
	assert.False(t, ok)
}

// failingStore accepts the first saves then fails, to exercise rollback.
type failingStore struct {
	saves     int
	failAfter int
}

func (s *failingStore) Save(*State) error {
	s.saves++
	if s.saves > s.failAfter {
		return fmt.Errorf("disk full")
	}
	return nil
}

func (s *failingStore) Load() (*State, error) { return nil, fmt.Errorf("not implemented") }
func (s *failingStore) Exists() bool          { return false }

// TestApplyBuy_PersistFailureRollsBack verifies a failed save undoes the
// in-memory mutation.
func TestApplyBuy_PersistFailureRollsBack(t *testing.T) {
	store := &failingStore{failAfter: 1} // init save succeeds
	ldg, err := Open(store, decimal.NewFromInt(1000))
	require.NoError(t, err)

	_, err = ldg.ApplyBuy("BTC", d("50"), d("100"), d("1"))
	require.Error(t, err)

	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "buy", persistErr.Op)

	assert.True(t, ldg.Cash().Equal(d("1000")))
	_, ok := ldg.Position("BTC")
	assert.False(t, ok)
	assert.Equal(t, 0, ldg.Snapshot().TotalTrades)
}

// TestApplySell_PersistFailureRollsBack verifies sells roll back too.
func TestApplySell_PersistFailureRollsBack(t *testing.T) {
	store := &failingStore{failAfter: 2} // init and buy succeed
	ldg, err := Open(store, decimal.NewFromInt(1000))
	require.NoError(t, err)

	_, err = ldg.ApplyBuy("BTC", d("50"), d("100"), decimal.Zero)
	require.NoError(t, err)

	_, err = ldg.ApplySell("BTC", d("55"), d("2"), decimal.Zero)
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)

	pos, ok := ldg.Position("BTC")
	require.True(t, ok)
	assert.True(t, pos.Size.Equal(d("2")))
	assert.True(t, ldg.Cash().Equal(d("900")))
}

// TestFileStore_RoundTrip verifies a reopened ledger sees identical state.
func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	ldg, err := Open(store, decimal.NewFromInt(1000))
	require.NoError(t, err)

	_, err = ldg.ApplyBuy("BTC", d("50"), d("100"), d("1"))
	require.NoError(t, err)
	require.NoError(t, ldg.Revalue(d("650"), d("350")))

	reopened, err := Open(store, decimal.Zero)
	require.NoError(t, err)

	before := ldg.Snapshot()
	after := reopened.Snapshot()
	assert.True(t, before.Cash.Equal(after.Cash))
	assert.True(t, before.ConservativeValue.Equal(after.ConservativeValue))
	assert.True(t, before.AggressiveValue.Equal(after.AggressiveValue))
	assert.Equal(t, before.TotalTrades, after.TotalTrades)
	require.Contains(t, after.Positions, "BTC")
	assert.True(t, before.Positions["BTC"].Size.Equal(after.Positions["BTC"].Size))
	assert.True(t, before.Positions["BTC"].EntryPrice.Equal(after.Positions["BTC"].EntryPrice))
}

// TestSkimAndRebalance verifies the allocation mutations stamp their
// timestamps and move value between buckets.
func TestSkimAndRebalance(t *testing.T) {
	ldg := newTestLedger(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ldg.SetClock(func() time.Time { return now })

	require.NoError(t, ldg.Revalue(d("700"), d("420")))
	require.NoError(t, ldg.ApplySkim(d("120")))

	snap := ldg.Snapshot()
	assert.True(t, snap.AggressiveValue.Equal(d("300")))
	assert.True(t, snap.ConservativeValue.Equal(d("820")))
	require.NotNil(t, snap.LastSkim)
	assert.Equal(t, now, *snap.LastSkim)

	require.NoError(t, ldg.MarkRebalanced(d("784"), d("336")))
	snap = ldg.Snapshot()
	assert.True(t, snap.BaselineAggressive.Equal(d("336")))
	require.NotNil(t, snap.LastRebalance)
	assert.Equal(t, now, *snap.LastRebalance)
}

// TestSnapshot_TotalValue verifies marking with and without prices.
func TestSnapshot_TotalValue(t *testing.T) {
	ldg := newTestLedger(t)

	_, err := ldg.ApplyBuy("BTC", d("50"), d("100"), decimal.Zero)
	require.NoError(t, err)

	snap := ldg.Snapshot()
	withPrice := snap.TotalValue(map[string]decimal.Decimal{"BTC": d("60")})
	assert.True(t, withPrice.Equal(d("1020")), "got %s", withPrice)

	atCost := snap.TotalValue(nil)
	assert.True(t, atCost.Equal(d("1000")))
}
