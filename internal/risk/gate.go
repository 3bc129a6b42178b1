package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Gate is the stateful rule engine that approves or denies a proposed trade
// against loss limits, position-size limits and trade-frequency limits.
//
// Daily counters reset when the UTC calendar date advances; the reset is
// idempotent and runs at the top of every evaluation. Accumulated losses are
// never negative: realized gains reduce the total-loss counter (floored at
// zero) but never reduce the daily counter, which only resets.
type Gate struct {
	mu     sync.Mutex
	limits Limits
	clock  func() time.Time

	dailyLoss        decimal.Decimal
	totalLoss        decimal.Decimal
	lastResetDate    time.Time // midnight UTC of the current trading day
	tradeCountsToday map[string]int
	lastTradeTime    map[string]time.Time
}

// NewGate creates a risk gate with the given limits. The trading day starts
// on the first evaluation, so an injected clock sees consistent dates.
func NewGate(limits Limits) *Gate {
	return &Gate{
		limits:           limits.withDefaults(),
		clock:            time.Now,
		tradeCountsToday: make(map[string]int),
		lastTradeTime:    make(map[string]time.Time),
	}
}

// SetClock overrides the time source. Used by tests.
func (g *Gate) SetClock(clock func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clock = clock
}

// Approve evaluates every gate in order and returns the first rejection, or
// an allowed decision. It has no side effects beyond the idempotent daily
// reset, so a rejected or failed execution never pollutes the throttling
// counters.
func (g *Gate) Approve(symbol string, amountUSD decimal.Decimal) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock().UTC()
	g.resetIfNewDay(now)

	if g.dailyLoss.GreaterThanOrEqual(g.limits.MaxDailyLoss) {
		return Decision{Reason: ReasonDailyLossLimit}
	}
	if g.totalLoss.GreaterThanOrEqual(g.limits.MaxTotalLoss) {
		return Decision{Reason: ReasonTotalLossLimit}
	}
	if amountUSD.GreaterThan(g.limits.MaxPositionSize) {
		return Decision{Reason: ReasonPositionTooLarge}
	}
	if last, ok := g.lastTradeTime[symbol]; ok {
		if now.Sub(last) < g.limits.MinTradeInterval {
			return Decision{Reason: ReasonTradeTooSoon}
		}
	}
	if g.tradeCountsToday[symbol] >= g.limits.MaxTradesPerSymbol {
		return Decision{Reason: ReasonMaxDailyTrades}
	}

	return Decision{Allowed: true}
}

// Record folds an executed trade into the gate's counters. Must be called
// only after the trade actually executed and was committed to the ledger.
func (g *Gate) Record(symbol string, realizedPnL decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock().UTC()
	g.resetIfNewDay(now)

	if realizedPnL.IsNegative() {
		loss := realizedPnL.Neg()
		g.dailyLoss = g.dailyLoss.Add(loss)
		g.totalLoss = g.totalLoss.Add(loss)
	} else if realizedPnL.IsPositive() {
		// Gains claw back the total-loss counter but never below zero, and
		// never touch the daily counter.
		g.totalLoss = g.totalLoss.Sub(realizedPnL)
		if g.totalLoss.IsNegative() {
			g.totalLoss = decimal.Zero
		}
	}

	g.tradeCountsToday[symbol]++
	g.lastTradeTime[symbol] = now
}

// Replay rebuilds the counters from journaled trades, oldest first. Called
// once at startup before any Approve, so a restart does not forget
// accumulated losses or today's throttling state. Trades from earlier days
// contribute to the total-loss counter only.
func (g *Gate) Replay(events []TradeEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock().UTC()
	g.resetIfNewDay(now)

	today := midnightUTC(now)
	for _, ev := range events {
		sameDay := !midnightUTC(ev.Time).Before(today)

		if ev.PnL.IsNegative() {
			loss := ev.PnL.Neg()
			g.totalLoss = g.totalLoss.Add(loss)
			if sameDay {
				g.dailyLoss = g.dailyLoss.Add(loss)
			}
		} else if ev.PnL.IsPositive() {
			g.totalLoss = g.totalLoss.Sub(ev.PnL)
			if g.totalLoss.IsNegative() {
				g.totalLoss = decimal.Zero
			}
		}

		if !sameDay {
			continue
		}
		g.tradeCountsToday[ev.Symbol]++
		if ev.Time.UTC().After(g.lastTradeTime[ev.Symbol]) {
			g.lastTradeTime[ev.Symbol] = ev.Time.UTC()
		}
	}
}

// TotalLossBreached reports whether the hard total-loss stop has triggered.
// Callers should treat repeated triggering as a signal to halt the process.
func (g *Gate) TotalLossBreached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalLoss.GreaterThanOrEqual(g.limits.MaxTotalLoss)
}

// DailyLoss returns the accumulated realized loss for the current UTC day.
func (g *Gate) DailyLoss() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay(g.clock().UTC())
	return g.dailyLoss
}

// TotalLoss returns the accumulated realized loss since process start.
func (g *Gate) TotalLoss() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalLoss
}

// TradeCount returns today's executed-trade count for a symbol.
func (g *Gate) TradeCount(symbol string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetIfNewDay(g.clock().UTC())
	return g.tradeCountsToday[symbol]
}

// Limits returns the configured limits.
func (g *Gate) Limits() Limits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limits
}

// resetIfNewDay zeroes the daily counters when the UTC date has advanced.
// Caller must hold the mutex.
func (g *Gate) resetIfNewDay(now time.Time) {
	today := midnightUTC(now)
	if today.After(g.lastResetDate) {
		g.dailyLoss = decimal.Zero
		g.tradeCountsToday = make(map[string]int)
		g.lastResetDate = today
	}
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
