// Package strategy produces trade intents from observed prices. Strategies
// are pure signal generators: sizing is decided by the allocation policy and
// safety by the risk gate, both outside this package.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-trading-agent/internal/executor"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
)

// Input is one observation for one symbol.
type Input struct {
	Symbol string
	Price  decimal.Decimal
	// Position is the currently open position, nil when flat.
	Position *ledger.Position
	// BudgetUSD is the buy size the allocation policy allows right now.
	BudgetUSD decimal.Decimal
}

// Signal is a strategy's answer for one observation. TriggerMet is false for
// plain HOLD signals; Note explains the decision either way for the journal.
type Signal struct {
	Intent     executor.TradeIntent
	TriggerMet bool
	Note       string
}

// Strategy evaluates one observation at a time. Implementations keep their
// own per-symbol state and are not goroutine-safe.
type Strategy interface {
	Name() string
	Evaluate(input Input) Signal
}
