package strategy

import "github.com/ducminhle1904/crypto-trading-agent/internal/executor"

// HoldStrategy never trades. Used to run the full loop (pricing, snapshots,
// journaling) without market exposure.
type HoldStrategy struct{}

func NewHoldStrategy() *HoldStrategy {
	return &HoldStrategy{}
}

func (s *HoldStrategy) Name() string {
	return "hold"
}

func (s *HoldStrategy) Evaluate(input Input) Signal {
	return Signal{
		Intent: executor.TradeIntent{
			Symbol:   input.Symbol,
			Side:     executor.SideHold,
			Price:    input.Price,
			Strategy: s.Name(),
		},
		Note: "observation only",
	}
}
