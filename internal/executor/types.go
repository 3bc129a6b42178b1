// Package executor turns approved trade intents into committed ledger
// mutations. It is the only path through which strategy signals reach the
// exchange and the ledger.
package executor

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

// TradeIntent is a strategy's proposal. AmountUSD is the notional value to
// buy or sell; for sells it is converted to base size at the intent price.
type TradeIntent struct {
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	AmountUSD decimal.Decimal
	Strategy  string
	Reason    string
}

// TradeOutcome is the result of processing an intent. A blocked trade is a
// normal outcome, not an error: Accepted is false and Reason carries the
// gate or ledger rejection.
type TradeOutcome struct {
	Accepted          bool
	Reason            string
	TradeID           string
	ExecutedPrice     decimal.Decimal
	ExecutedAmountUSD decimal.Decimal
	FeeUSD            decimal.Decimal
	RealizedPnL       decimal.Decimal
}

// ReasonUserDeclined marks a trade the operator refused at the confirmation
// prompt.
const ReasonUserDeclined = "UserDeclined"
