package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason is the machine-readable rejection reason attached to a denied trade.
// These strings flow into the signal log's blocked_reason column unchanged.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonDailyLossLimit   Reason = "DailyLossLimitReached"
	ReasonTotalLossLimit   Reason = "TotalLossLimitReached"
	ReasonPositionTooLarge Reason = "PositionTooLarge"
	ReasonTradeTooSoon     Reason = "TradeTooSoon"
	ReasonMaxDailyTrades   Reason = "MaxDailyTradesExceeded"
	ReasonUserDeclined     Reason = "UserDeclined"
)

// Decision is the outcome of a gate evaluation. Approval never has side
// effects; throttling counters move only when a trade actually executes.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// TradeEvent is one journaled execution, used to rebuild the gate's counters
// after a restart.
type TradeEvent struct {
	Symbol string
	Time   time.Time
	PnL    decimal.Decimal
}

// Limits parameterizes the gate. Loaded from the deployment phase config at
// startup and never mutated at runtime.
type Limits struct {
	MaxDailyLoss       decimal.Decimal
	MaxTotalLoss       decimal.Decimal
	MaxPositionSize    decimal.Decimal
	MinTradeInterval   time.Duration
	MaxTradesPerSymbol int
}

// DefaultMinTradeInterval is the per-symbol cooldown between trades.
const DefaultMinTradeInterval = 5 * time.Minute

// DefaultMaxTradesPerSymbol is the per-symbol daily trade cap.
const DefaultMaxTradesPerSymbol = 5

// withDefaults fills the optional throttling knobs.
func (l Limits) withDefaults() Limits {
	if l.MinTradeInterval == 0 {
		l.MinTradeInterval = DefaultMinTradeInterval
	}
	if l.MaxTradesPerSymbol == 0 {
		l.MaxTradesPerSymbol = DefaultMaxTradesPerSymbol
	}
	return l
}
