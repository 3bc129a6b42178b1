package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the root aggregate for cash, positions and trade history. It is
// the only writer of durable portfolio state: every mutating call persists
// before returning, and a failed persist rolls the in-memory change back so
// the mutation is all-or-nothing with respect to durability.
type Ledger struct {
	mu    sync.Mutex
	state *State
	store Store
	clock func() time.Time
}

// SellResult describes the ledger-side effect of a completed sell.
type SellResult struct {
	Proceeds    decimal.Decimal
	RealizedPnL decimal.Decimal
	Closed      bool
}

// Open loads the ledger from the store, or initializes a fresh portfolio with
// the given capital when no prior state exists.
func Open(store Store, initialCapital decimal.Decimal) (*Ledger, error) {
	l := &Ledger{store: store, clock: time.Now}

	if store.Exists() {
		state, err := store.Load()
		if err != nil {
			return nil, err
		}
		l.state = state
		return l, nil
	}

	if !initialCapital.IsPositive() {
		return nil, fmt.Errorf("initial capital must be positive, got %s", initialCapital)
	}

	l.state = NewState(initialCapital, l.clock())
	if err := store.Save(l.state); err != nil {
		return nil, &PersistError{Op: "init", Underlying: err}
	}
	return l, nil
}

// SetClock overrides the time source. Used by tests.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// ApplyBuy deducts amountUSD plus fee from cash and folds the purchase into
// the symbol's position at a volume-weighted, fee-inclusive cost basis.
func (l *Ledger) ApplyBuy(symbol string, price, amountUSD, feeUSD decimal.Decimal) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !price.IsPositive() {
		return Position{}, fmt.Errorf("%w: %s for %s", ErrInvalidPrice, price, symbol)
	}
	if !amountUSD.IsPositive() {
		return Position{}, fmt.Errorf("%w: %s for %s", ErrInvalidAmount, amountUSD, symbol)
	}

	totalCost := amountUSD.Add(feeUSD)
	if l.state.Cash.LessThan(totalCost) {
		return Position{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, totalCost, l.state.Cash)
	}

	prev := l.state.clone()

	size := amountUSD.Div(price)
	now := l.clock().UTC()

	pos, exists := l.state.Positions[symbol]
	if !exists {
		pos = &Position{OpenedAt: now}
		l.state.Positions[symbol] = pos
	}

	// Weighted average cost basis, fees included.
	oldCost := pos.Size.Mul(pos.EntryPrice)
	newSize := pos.Size.Add(size)
	pos.EntryPrice = oldCost.Add(totalCost).Div(newSize)
	pos.Size = newSize

	l.state.Cash = l.state.Cash.Sub(totalCost)
	l.state.TotalTrades++
	l.state.LastUpdated = now

	if err := l.store.Save(l.state); err != nil {
		l.state = prev
		return Position{}, &PersistError{Op: "buy", Underlying: err}
	}

	return *pos, nil
}

// ApplySell reduces the symbol's position by size at the given price,
// crediting proceeds minus fee to cash and realizing P&L against the cost
// basis. The entry price is never changed by a sell. Dust below
// PositionEpsilon closes the position entirely.
func (l *Ledger) ApplySell(symbol string, price, size, feeUSD decimal.Decimal) (SellResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !price.IsPositive() {
		return SellResult{}, fmt.Errorf("%w: %s for %s", ErrInvalidPrice, price, symbol)
	}
	if !size.IsPositive() {
		return SellResult{}, fmt.Errorf("%w: sell size %s for %s", ErrInvalidAmount, size, symbol)
	}

	pos, exists := l.state.Positions[symbol]
	if !exists {
		return SellResult{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}
	if size.GreaterThan(pos.Size) {
		return SellResult{}, fmt.Errorf("%w: selling %s, holding %s of %s", ErrOversizedSell, size, pos.Size, symbol)
	}

	prev := l.state.clone()

	proceeds := price.Mul(size)
	realized := price.Sub(pos.EntryPrice).Mul(size).Sub(feeUSD)
	now := l.clock().UTC()

	pos.Size = pos.Size.Sub(size)
	closed := pos.Size.LessThan(PositionEpsilon)
	if closed {
		delete(l.state.Positions, symbol)
	}

	l.state.Cash = l.state.Cash.Add(proceeds).Sub(feeUSD)
	l.state.TotalTrades++
	l.state.LastUpdated = now

	if err := l.store.Save(l.state); err != nil {
		l.state = prev
		return SellResult{}, &PersistError{Op: "sell", Underlying: err}
	}

	return SellResult{Proceeds: proceeds, RealizedPnL: realized, Closed: closed}, nil
}

// Revalue updates the tracked sub-portfolio valuations. Called once per cycle
// after marking open positions to market.
func (l *Ledger) Revalue(conservative, aggressive decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state.clone()
	l.state.ConservativeValue = conservative
	l.state.AggressiveValue = aggressive
	l.state.LastUpdated = l.clock().UTC()

	if err := l.store.Save(l.state); err != nil {
		l.state = prev
		return &PersistError{Op: "revalue", Underlying: err}
	}
	return nil
}

// ApplySkim moves amount of excess aggressive gains back into the
// conservative sub-portfolio and stamps the skim time.
func (l *Ledger) ApplySkim(amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !amount.IsPositive() {
		return fmt.Errorf("%w: skim amount %s", ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(l.state.AggressiveValue) {
		return fmt.Errorf("%w: skim %s exceeds aggressive value %s", ErrInvalidAmount, amount, l.state.AggressiveValue)
	}

	prev := l.state.clone()
	now := l.clock().UTC()

	l.state.AggressiveValue = l.state.AggressiveValue.Sub(amount)
	l.state.ConservativeValue = l.state.ConservativeValue.Add(amount)
	l.state.LastSkim = &now
	l.state.LastUpdated = now

	if err := l.store.Save(l.state); err != nil {
		l.state = prev
		return &PersistError{Op: "skim", Underlying: err}
	}
	return nil
}

// MarkRebalanced resets the sub-portfolio split to the given values and
// stamps the rebalance time.
func (l *Ledger) MarkRebalanced(conservative, aggressive decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state.clone()
	now := l.clock().UTC()

	l.state.ConservativeValue = conservative
	l.state.AggressiveValue = aggressive
	l.state.BaselineAggressive = aggressive
	l.state.LastRebalance = &now
	l.state.LastUpdated = now

	if err := l.store.Save(l.state); err != nil {
		l.state = prev
		return &PersistError{Op: "rebalance", Underlying: err}
	}
	return nil
}

// Persist flushes the current state to the store. Used for the final write on
// shutdown; regular mutations persist themselves.
func (l *Ledger) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.LastUpdated = l.clock().UTC()
	if err := l.store.Save(l.state); err != nil {
		return &PersistError{Op: "flush", Underlying: err}
	}
	return nil
}

// Snapshot returns a read-only, consistent view of the ledger.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Cash:               l.state.Cash,
		Positions:          make(map[string]Position, len(l.state.Positions)),
		ConservativeValue:  l.state.ConservativeValue,
		AggressiveValue:    l.state.AggressiveValue,
		BaselineAggressive: l.state.BaselineAggressive,
		TotalTrades:        l.state.TotalTrades,
		LastUpdated:        l.state.LastUpdated,
	}
	for sym, pos := range l.state.Positions {
		snap.Positions[sym] = *pos
	}
	if l.state.LastRebalance != nil {
		t := *l.state.LastRebalance
		snap.LastRebalance = &t
	}
	if l.state.LastSkim != nil {
		t := *l.state.LastSkim
		snap.LastSkim = &t
	}
	return snap
}

// Cash returns the available quote-currency balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Cash
}

// Position returns the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.state.Positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}
