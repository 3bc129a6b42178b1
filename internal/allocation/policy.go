// Package allocation derives position sizing and portfolio triggers from the
// ledger's tracked sub-portfolio values. All queries are pure; the trading
// loop decides whether to act on them and stamps the corresponding ledger
// timestamps afterwards.
package allocation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the allocation knobs. The zero value is unusable; construct
// with DefaultPolicy and override as needed.
type Policy struct {
	// SharePerTrade is the fraction of the sub-portfolio value committed to a
	// single trade.
	SharePerTrade decimal.Decimal

	// MinTradeSize is the smallest order worth placing; below it a cycle is
	// skipped rather than traded.
	MinTradeSize decimal.Decimal

	// RebalanceInterval is how long the portfolio may drift before a
	// rebalance is due.
	RebalanceInterval time.Duration

	// SkimTrigger is the growth multiple of the aggressive sub-portfolio over
	// its baseline that triggers a profit skim.
	SkimTrigger decimal.Decimal
}

// DefaultPolicy returns the standard allocation policy: 10% of allocation per
// trade, $5 minimum, 90-day rebalance, skim at 1.4x baseline.
func DefaultPolicy() Policy {
	return Policy{
		SharePerTrade:     decimal.NewFromFloat(0.10),
		MinTradeSize:      decimal.NewFromInt(5),
		RebalanceInterval: 90 * 24 * time.Hour,
		SkimTrigger:       decimal.NewFromFloat(1.40),
	}
}

// PositionSize returns the USD size for the next trade:
// min(allocationValue * share, maxPositionSize, availableCash), floored at
// MinTradeSize. Returns zero when the floor cannot be met, meaning "skip this
// cycle".
func (p Policy) PositionSize(allocationValue, availableCash, maxPositionSize decimal.Decimal) decimal.Decimal {
	size := allocationValue.Mul(p.SharePerTrade)
	if maxPositionSize.LessThan(size) {
		size = maxPositionSize
	}
	if availableCash.LessThan(size) {
		size = availableCash
	}
	if size.LessThan(p.MinTradeSize) {
		return decimal.Zero
	}
	return size
}

// ShouldRebalance reports whether the rebalance interval has elapsed since
// the last rebalance. An unset timestamp means a rebalance has never run and
// one is due.
func (p Policy) ShouldRebalance(lastRebalance *time.Time, now time.Time) bool {
	if lastRebalance == nil {
		return true
	}
	return now.Sub(*lastRebalance) >= p.RebalanceInterval
}

// ShouldSkim reports whether the aggressive sub-portfolio has grown past the
// skim trigger relative to its baseline.
func (p Policy) ShouldSkim(aggressiveValue, baselineAggressive decimal.Decimal) bool {
	if !baselineAggressive.IsPositive() {
		return false
	}
	return aggressiveValue.GreaterThanOrEqual(baselineAggressive.Mul(p.SkimTrigger))
}

// SkimAmount returns the excess above baseline to move back into the
// conservative allocation. Zero when there is nothing to skim.
func (p Policy) SkimAmount(aggressiveValue, baselineAggressive decimal.Decimal) decimal.Decimal {
	excess := aggressiveValue.Sub(baselineAggressive)
	if excess.IsNegative() {
		return decimal.Zero
	}
	return excess
}
