// Package bot runs the trading loop: fetch prices, evaluate the strategy,
// funnel intents through the orchestrator and keep the portfolio snapshots
// and allocation maintenance up to date.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-trading-agent/internal/allocation"
	"github.com/ducminhle1904/crypto-trading-agent/internal/config"
	"github.com/ducminhle1904/crypto-trading-agent/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-agent/internal/executor"
	"github.com/ducminhle1904/crypto-trading-agent/internal/journal"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/logger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/monitoring"
	"github.com/ducminhle1904/crypto-trading-agent/internal/notifications"
	"github.com/ducminhle1904/crypto-trading-agent/internal/risk"
	"github.com/ducminhle1904/crypto-trading-agent/internal/safety"
	"github.com/ducminhle1904/crypto-trading-agent/internal/strategy"
)

// ErrHalted is returned by Run when the kill switch or the total-loss stop
// ended trading. The process should exit cleanly, not restart.
var ErrHalted = errors.New("trading halted")

const priceFetchTimeout = 10 * time.Second

// Bot wires all components into a periodic trading cycle.
type Bot struct {
	cfg        *config.Config
	phase      config.Phase
	ledger     *ledger.Ledger
	gate       *risk.Gate
	policy     allocation.Policy
	orch       *executor.Orchestrator
	strategy   strategy.Strategy
	prices     exchange.PriceSource
	journal    journal.Journal
	killSwitch *safety.KillSwitch
	breaker    *safety.CircuitBreaker
	notifier   notifications.Notifier
	health     *monitoring.HealthChecker
	log        *logger.Logger
	clock      func() time.Time
}

// Deps collects the bot's collaborators. All fields are required except
// Journal, Notifier and Health.
type Deps struct {
	Config     *config.Config
	Phase      config.Phase
	Ledger     *ledger.Ledger
	Gate       *risk.Gate
	Policy     allocation.Policy
	Orch       *executor.Orchestrator
	Strategy   strategy.Strategy
	Prices     exchange.PriceSource
	Journal    journal.Journal
	KillSwitch *safety.KillSwitch
	Notifier   notifications.Notifier
	Health     *monitoring.HealthChecker
	Log        *logger.Logger
}

// New creates a bot from its dependencies.
func New(deps Deps) *Bot {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}
	return &Bot{
		cfg:        deps.Config,
		phase:      deps.Phase,
		ledger:     deps.Ledger,
		gate:       deps.Gate,
		policy:     deps.Policy,
		orch:       deps.Orch,
		strategy:   deps.Strategy,
		prices:     deps.Prices,
		journal:    deps.Journal,
		killSwitch: deps.KillSwitch,
		breaker:    safety.NewCircuitBreaker("price-feed", 5, 30*time.Second),
		notifier:   notifier,
		health:     deps.Health,
		log:        deps.Log,
		clock:      time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (b *Bot) SetClock(clock func() time.Time) {
	b.clock = clock
}

// Run executes cycles until the context ends or trading halts. The final
// ledger flush happens before returning.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Status("trading loop started: mode=%s phase=%s interval=%s symbols=%v",
		b.cfg.Mode, b.cfg.Phase, b.cfg.CycleInterval, b.cfg.AllSymbols())

	ticker := time.NewTicker(b.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		if err := b.runCycle(ctx); err != nil {
			b.flush()
			return err
		}

		select {
		case <-ctx.Done():
			b.log.Status("shutdown requested")
			b.flush()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle executes one full pass over all configured symbols.
func (b *Bot) runCycle(ctx context.Context) error {
	start := time.Now()
	defer func() {
		monitoring.ObserveCycleDuration(time.Since(start).Seconds())
	}()

	if b.killSwitch.Engaged() {
		b.log.Warning("kill switch engaged at %s, halting", b.killSwitch.Path())
		b.alert("error", "Kill switch engaged, trading halted.")
		return ErrHalted
	}

	if b.gate.TotalLossBreached() {
		b.log.Error("total loss limit reached (%s), halting and engaging kill switch", b.gate.TotalLoss().StringFixed(2))
		if err := b.killSwitch.Trip("total loss limit reached"); err != nil {
			b.log.LogError("kill switch trip", err)
		}
		b.alert("error", fmt.Sprintf("Total loss limit reached: $%s. Trading halted.", b.gate.TotalLoss().StringFixed(2)))
		return ErrHalted
	}

	prices := make(map[string]decimal.Decimal)
	for _, symbol := range b.cfg.AllSymbols() {
		price, err := b.fetchPrice(ctx, symbol)
		if err != nil {
			b.log.LogError(fmt.Sprintf("price fetch %s", symbol), err)
			monitoring.RecordError("price_fetch")
			continue
		}
		prices[symbol] = price
		monitoring.UpdatePrice(symbol, price.InexactFloat64())

		if err := b.evaluateSymbol(ctx, symbol, price); err != nil {
			return err
		}
	}

	b.revalue(prices)
	b.maintainAllocation()
	b.recordSnapshot()
	if b.health != nil {
		b.health.CycleCompleted()
	}
	return nil
}

func (b *Bot) fetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := b.breaker.Call(func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, priceFetchTimeout)
		defer cancel()

		p, err := b.prices.Price(fetchCtx, symbol)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	return price, err
}

// evaluateSymbol runs the strategy for one symbol and processes any intent.
// Persist failures stop the loop; everything else is survivable.
func (b *Bot) evaluateSymbol(ctx context.Context, symbol string, price decimal.Decimal) error {
	input := strategy.Input{
		Symbol:    symbol,
		Price:     price,
		BudgetUSD: b.budgetFor(symbol),
	}
	if pos, ok := b.ledger.Position(symbol); ok {
		input.Position = &pos
	}

	signal := b.strategy.Evaluate(input)
	outcome, err := b.processSignal(ctx, signal)
	if err != nil {
		var persistErr *ledger.PersistError
		if errors.As(err, &persistErr) {
			b.log.Error("ledger persist failed, halting: %v", err)
			b.alert("error", fmt.Sprintf("Ledger persist failed: %v. Trading halted.", err))
			if terr := b.killSwitch.Trip("ledger persist failure"); terr != nil {
				b.log.LogError("kill switch trip", terr)
			}
			return ErrHalted
		}
		// Execution and confirmation failures skip the symbol this cycle.
		b.log.LogError(fmt.Sprintf("signal processing %s", symbol), err)
		monitoring.RecordError("signal_processing")
		if b.health != nil {
			b.health.ReportError(err)
		}
		return nil
	}

	b.journalSignal(signal, outcome)
	return nil
}

func (b *Bot) processSignal(ctx context.Context, signal strategy.Signal) (*executor.TradeOutcome, error) {
	if signal.Intent.Side == executor.SideHold {
		return nil, nil
	}
	return b.orch.Process(ctx, signal.Intent)
}

// budgetFor sizes the next buy from the symbol's bucket value, the phase's
// position cap and available cash.
func (b *Bot) budgetFor(symbol string) decimal.Decimal {
	snap := b.ledger.Snapshot()

	bucketValue := snap.ConservativeValue
	if b.cfg.IsAggressive(symbol) {
		bucketValue = snap.AggressiveValue
	}

	return b.policy.PositionSize(bucketValue, snap.Cash, b.phase.MaxPositionSize)
}

// revalue marks the two buckets to market: each bucket owns its share of
// cash plus its symbols' positions at current prices.
func (b *Bot) revalue(prices map[string]decimal.Decimal) {
	snap := b.ledger.Snapshot()

	conservative := snap.Cash.Mul(b.cfg.Allocation.Conservative)
	aggressive := snap.Cash.Mul(b.cfg.Allocation.Aggressive)

	for symbol, pos := range snap.Positions {
		value := pos.Size.Mul(pos.EntryPrice)
		if price, ok := prices[symbol]; ok {
			value = pos.Size.Mul(price)
		}
		if b.cfg.IsAggressive(symbol) {
			aggressive = aggressive.Add(value)
		} else {
			conservative = conservative.Add(value)
		}
	}

	if err := b.ledger.Revalue(conservative, aggressive); err != nil {
		b.log.LogError("revalue", err)
		monitoring.RecordError("persist")
		return
	}

	monitoring.UpdatePortfolioValue("conservative", conservative.InexactFloat64())
	monitoring.UpdatePortfolioValue("aggressive", aggressive.InexactFloat64())
	monitoring.UpdatePortfolioValue("total", conservative.Add(aggressive).InexactFloat64())
	monitoring.UpdateLossCounters(b.gate.DailyLoss().InexactFloat64(), b.gate.TotalLoss().InexactFloat64())
}

// maintainAllocation applies the skim and rebalance rules after revaluation.
func (b *Bot) maintainAllocation() {
	snap := b.ledger.Snapshot()
	now := b.clock().UTC()

	if b.policy.ShouldSkim(snap.AggressiveValue, snap.BaselineAggressive) {
		amount := b.policy.SkimAmount(snap.AggressiveValue, snap.BaselineAggressive)
		if err := b.ledger.ApplySkim(amount); err != nil {
			b.log.LogError("skim", err)
			monitoring.RecordError("persist")
		} else {
			b.log.Status("skimmed $%s of aggressive gains into conservative bucket", amount.StringFixed(2))
			b.alert("success", fmt.Sprintf("Skimmed $%s of aggressive gains.", amount.StringFixed(2)))
		}
		return
	}

	if b.policy.ShouldRebalance(snap.LastRebalance, now) {
		total := snap.ConservativeValue.Add(snap.AggressiveValue)
		conservative := total.Mul(b.cfg.Allocation.Conservative)
		aggressive := total.Mul(b.cfg.Allocation.Aggressive)

		if err := b.ledger.MarkRebalanced(conservative, aggressive); err != nil {
			b.log.LogError("rebalance", err)
			monitoring.RecordError("persist")
		} else {
			b.log.Status("rebalanced to %s/%s split: conservative $%s, aggressive $%s",
				b.cfg.Allocation.Conservative, b.cfg.Allocation.Aggressive,
				conservative.StringFixed(2), aggressive.StringFixed(2))
		}
	}
}

func (b *Bot) recordSnapshot() {
	if b.journal == nil {
		return
	}

	snap := b.ledger.Snapshot()
	record := journal.SnapshotRecord{
		Timestamp:         b.clock().UTC(),
		ConservativeValue: snap.ConservativeValue,
		AggressiveValue:   snap.AggressiveValue,
		TotalValue:        snap.ConservativeValue.Add(snap.AggressiveValue),
		Cash:              snap.Cash,
		OpenPositions:     len(snap.Positions),
		TotalTrades:       snap.TotalTrades,
		DailyLoss:         b.gate.DailyLoss(),
		TotalLoss:         b.gate.TotalLoss(),
	}
	if err := b.journal.RecordSnapshot(record); err != nil {
		b.log.LogError("snapshot journal write", err)
		monitoring.RecordError("journal")
	}
}

func (b *Bot) journalSignal(signal strategy.Signal, outcome *executor.TradeOutcome) {
	if b.journal == nil {
		return
	}

	record := journal.SignalRecord{
		Timestamp:  b.clock().UTC(),
		Strategy:   signal.Intent.Strategy,
		Symbol:     signal.Intent.Symbol,
		Signal:     string(signal.Intent.Side),
		Price:      signal.Intent.Price,
		TriggerMet: signal.TriggerMet,
	}
	if outcome != nil && !outcome.Accepted {
		record.BlockedReason = outcome.Reason
	}
	if record.Signal == "" {
		record.Signal = string(executor.SideHold)
	}
	if err := b.journal.RecordSignal(record); err != nil {
		b.log.LogError("signal journal write", err)
		monitoring.RecordError("journal")
	}
}

func (b *Bot) flush() {
	if err := b.ledger.Persist(); err != nil {
		b.log.LogError("final persist", err)
	}
}

func (b *Bot) alert(level, message string) {
	if err := b.notifier.SendAlert(level, message); err != nil {
		b.log.LogError("notification", err)
	}
}
