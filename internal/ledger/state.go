package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionEpsilon is the size below which a position is considered dust and
// removed from the ledger.
var PositionEpsilon = decimal.NewFromFloat(0.0001)

// Position represents an open holding in one trading symbol.
type Position struct {
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// State is the durable portfolio record. It is the exact shape written to the
// state file, so every field carries a JSON tag.
type State struct {
	InitialCapital     decimal.Decimal      `json:"initial_capital"`
	Cash               decimal.Decimal      `json:"cash"`
	Positions          map[string]*Position `json:"positions"`
	ConservativeValue  decimal.Decimal      `json:"conservative_value"`
	AggressiveValue    decimal.Decimal      `json:"aggressive_value"`
	BaselineAggressive decimal.Decimal      `json:"baseline_aggressive"`
	LastRebalance      *time.Time           `json:"last_rebalance"`
	LastSkim           *time.Time           `json:"last_skim"`
	TotalTrades        int                  `json:"total_trades"`
	CreatedAt          time.Time            `json:"created_at"`
	LastUpdated        time.Time            `json:"last_updated"`
}

// NewState creates a fresh portfolio split 70/30 between the conservative and
// aggressive sub-portfolios.
func NewState(initialCapital decimal.Decimal, now time.Time) *State {
	conservative := initialCapital.Mul(decimal.NewFromFloat(0.70))
	aggressive := initialCapital.Sub(conservative)

	return &State{
		InitialCapital:     initialCapital,
		Cash:               initialCapital,
		Positions:          make(map[string]*Position),
		ConservativeValue:  conservative,
		AggressiveValue:    aggressive,
		BaselineAggressive: aggressive,
		CreatedAt:          now.UTC(),
		LastUpdated:        now.UTC(),
	}
}

// clone returns a deep copy of the state. Used for rollback and snapshots.
func (s *State) clone() *State {
	cp := *s
	cp.Positions = make(map[string]*Position, len(s.Positions))
	for sym, pos := range s.Positions {
		p := *pos
		cp.Positions[sym] = &p
	}
	if s.LastRebalance != nil {
		t := *s.LastRebalance
		cp.LastRebalance = &t
	}
	if s.LastSkim != nil {
		t := *s.LastSkim
		cp.LastSkim = &t
	}
	return &cp
}

// Snapshot is a read-only, consistent view of the ledger used for logging and
// strategy evaluation.
type Snapshot struct {
	Cash               decimal.Decimal
	Positions          map[string]Position
	ConservativeValue  decimal.Decimal
	AggressiveValue    decimal.Decimal
	BaselineAggressive decimal.Decimal
	LastRebalance      *time.Time
	LastSkim           *time.Time
	TotalTrades        int
	LastUpdated        time.Time
}

// TotalValue returns cash plus all open positions marked at the supplied
// prices. Symbols without a price are marked at cost basis.
func (s Snapshot) TotalValue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := s.Cash
	for sym, pos := range s.Positions {
		price, ok := prices[sym]
		if !ok {
			price = pos.EntryPrice
		}
		total = total.Add(pos.Size.Mul(price))
	}
	return total
}
