package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-trading-agent/pkg/id"
)

// PaperExecutor simulates fills instantly at the signal's reference price.
// Fills are free unless a fee rate is set; pass one to mirror the live taker
// fee when comparing paper and live runs.
type PaperExecutor struct {
	feeRate decimal.Decimal
}

// NewPaperExecutor creates a paper executor charging feeRate per fill.
func NewPaperExecutor(feeRate decimal.Decimal) *PaperExecutor {
	return &PaperExecutor{feeRate: feeRate}
}

// Execute fills the order at req.RefPrice with the simulated fee applied.
func (e *PaperExecutor) Execute(ctx context.Context, req OrderRequest) (*Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.RefPrice.IsPositive() {
		return nil, fmt.Errorf("paper fill requires a positive reference price, got %s", req.RefPrice)
	}
	if !req.AmountUSD.IsPositive() {
		return nil, fmt.Errorf("paper fill requires a positive amount, got %s", req.AmountUSD)
	}

	return &Fill{
		OrderID:         id.New(),
		Price:           req.RefPrice,
		FilledAmountUSD: req.AmountUSD,
		FeeUSD:          req.AmountUSD.Mul(e.feeRate),
	}, nil
}

// Mode identifies the executor in logs and journals.
func (e *PaperExecutor) Mode() string {
	return "paper"
}
