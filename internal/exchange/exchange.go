// Package exchange defines the order execution boundary. The orchestrator
// talks to an Executor and never learns whether fills come from the paper
// simulator or a live venue.
package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is returned by executors when the venue rejects an
// order for lack of funds. The orchestrator treats it as a policy rejection
// rather than a failed cycle.
var ErrInsufficientBalance = errors.New("insufficient balance on venue")

// OrderRequest asks for a market order sized in quote currency (USD).
type OrderRequest struct {
	Symbol    string
	Side      string // "BUY" or "SELL"
	AmountUSD decimal.Decimal
	// RefPrice is the price the signal was evaluated at. The paper executor
	// fills at this price; live executors ignore it.
	RefPrice decimal.Decimal
}

// Fill describes an executed order.
type Fill struct {
	OrderID         string
	Price           decimal.Decimal
	FilledAmountUSD decimal.Decimal
	FeeUSD          decimal.Decimal
}

// Executor executes market orders.
type Executor interface {
	Execute(ctx context.Context, req OrderRequest) (*Fill, error)
	Mode() string
}

// PriceSource returns the current price for a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}
