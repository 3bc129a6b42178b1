package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-trading-agent/internal/executor"
)

// DriftConfig holds the thresholds for the drift strategy, all expressed as
// fractions (0.02 means 2%).
type DriftConfig struct {
	DipPct        decimal.Decimal // buy when price dips this far below the local high
	TakeProfitPct decimal.Decimal // sell when gain over entry reaches this
	StopLossPct   decimal.Decimal // sell when loss under entry reaches this
}

// DefaultDriftConfig returns the thresholds used in deployment.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		DipPct:        decimal.NewFromFloat(0.02),
		TakeProfitPct: decimal.NewFromFloat(0.04),
		StopLossPct:   decimal.NewFromFloat(0.03),
	}
}

// DriftStrategy buys dips below a rolling local high and exits positions on
// a fixed take-profit or stop-loss against the entry price. The local high
// resets after each buy so consecutive entries need fresh dips.
type DriftStrategy struct {
	config DriftConfig
	highs  map[string]decimal.Decimal
}

// NewDriftStrategy creates a drift strategy. Zero thresholds fall back to
// defaults.
func NewDriftStrategy(config DriftConfig) *DriftStrategy {
	defaults := DefaultDriftConfig()
	if config.DipPct.IsZero() {
		config.DipPct = defaults.DipPct
	}
	if config.TakeProfitPct.IsZero() {
		config.TakeProfitPct = defaults.TakeProfitPct
	}
	if config.StopLossPct.IsZero() {
		config.StopLossPct = defaults.StopLossPct
	}
	return &DriftStrategy{
		config: config,
		highs:  make(map[string]decimal.Decimal),
	}
}

func (s *DriftStrategy) Name() string {
	return "drift"
}

// Evaluate tracks the local high for the symbol and emits at most one intent
// per observation. Exits take priority over entries.
func (s *DriftStrategy) Evaluate(input Input) Signal {
	high, seen := s.highs[input.Symbol]
	if !seen || input.Price.GreaterThan(high) {
		high = input.Price
		s.highs[input.Symbol] = high
	}

	hold := Signal{
		Intent: executor.TradeIntent{
			Symbol:   input.Symbol,
			Side:     executor.SideHold,
			Price:    input.Price,
			Strategy: s.Name(),
		},
	}

	if input.Position != nil && input.Position.Size.IsPositive() {
		entry := input.Position.EntryPrice
		change := input.Price.Sub(entry).Div(entry)
		notional := input.Price.Mul(input.Position.Size)

		if change.GreaterThanOrEqual(s.config.TakeProfitPct) {
			return s.sell(input, notional, fmt.Sprintf("take profit: +%s%% over entry", pct(change)))
		}
		if change.LessThanOrEqual(s.config.StopLossPct.Neg()) {
			return s.sell(input, notional, fmt.Sprintf("stop loss: %s%% under entry", pct(change)))
		}

		hold.Note = fmt.Sprintf("holding, %s%% from entry", pct(change))
		return hold
	}

	drawdown := high.Sub(input.Price).Div(high)
	if drawdown.GreaterThanOrEqual(s.config.DipPct) && input.BudgetUSD.IsPositive() {
		// Measure the next dip from the entry, not the stale high.
		s.highs[input.Symbol] = input.Price

		return Signal{
			Intent: executor.TradeIntent{
				Symbol:    input.Symbol,
				Side:      executor.SideBuy,
				Price:     input.Price,
				AmountUSD: input.BudgetUSD,
				Strategy:  s.Name(),
				Reason:    fmt.Sprintf("dip buy: -%s%% from local high", pct(drawdown)),
			},
			TriggerMet: true,
		}
	}

	hold.Note = fmt.Sprintf("flat, -%s%% from local high", pct(drawdown))
	return hold
}

func (s *DriftStrategy) sell(input Input, notional decimal.Decimal, reason string) Signal {
	return Signal{
		Intent: executor.TradeIntent{
			Symbol:    input.Symbol,
			Side:      executor.SideSell,
			Price:     input.Price,
			AmountUSD: notional,
			Strategy:  s.Name(),
			Reason:    reason,
		},
		TriggerMet: true,
	}
}

func pct(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).Abs().StringFixed(2)
}
