package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ducminhle1904/crypto-trading-agent/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-agent/internal/journal"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/logger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/monitoring"
	"github.com/ducminhle1904/crypto-trading-agent/internal/risk"
	"github.com/ducminhle1904/crypto-trading-agent/pkg/id"
)

// Orchestrator funnels every trade intent through risk approval, optional
// operator confirmation, exchange dispatch and the ledger commit. Risk
// counters are updated only after the ledger accepted the trade, so blocked
// or failed attempts never consume the frequency budget.
type Orchestrator struct {
	ledger   *ledger.Ledger
	gate     *risk.Gate
	exec     exchange.Executor
	journal  journal.Journal
	approver Approver
	log      *logger.Logger
	clock    func() time.Time
}

// New creates an orchestrator. journal may be nil when trade journaling is
// disabled; approver defaults to AutoApprover when nil.
func New(ldg *ledger.Ledger, gate *risk.Gate, exec exchange.Executor, jnl journal.Journal, approver Approver, log *logger.Logger) *Orchestrator {
	if approver == nil {
		approver = AutoApprover{}
	}
	return &Orchestrator{
		ledger:   ldg,
		gate:     gate,
		exec:     exec,
		journal:  jnl,
		approver: approver,
		log:      log,
		clock:    time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (o *Orchestrator) SetClock(clock func() time.Time) {
	o.clock = clock
}

// Process runs one intent through the full pipeline. A HOLD intent returns
// (nil, nil). Gate and ledger rejections come back as a non-accepted outcome;
// an error return means the trade may not have committed and the caller
// should treat the cycle as failed.
func (o *Orchestrator) Process(ctx context.Context, intent TradeIntent) (*TradeOutcome, error) {
	if intent.Side == SideHold || intent.Side == "" {
		return nil, nil
	}
	if intent.Side != SideBuy && intent.Side != SideSell {
		return nil, fmt.Errorf("unknown intent side %q for %s", intent.Side, intent.Symbol)
	}

	if reason := validateIntent(intent); reason != "" {
		return o.blocked(intent, reason), nil
	}

	if decision := o.gate.Approve(intent.Symbol, intent.AmountUSD); !decision.Allowed {
		return o.blocked(intent, string(decision.Reason)), nil
	}

	ok, err := o.approver.Confirm(intent)
	if err != nil {
		return nil, fmt.Errorf("confirmation failed for %s %s: %w", intent.Side, intent.Symbol, err)
	}
	if !ok {
		return o.blocked(intent, ReasonUserDeclined), nil
	}

	fill, err := o.exec.Execute(ctx, exchange.OrderRequest{
		Symbol:    intent.Symbol,
		Side:      string(intent.Side),
		AmountUSD: intent.AmountUSD,
		RefPrice:  intent.Price,
	})
	if err != nil {
		if errors.Is(err, exchange.ErrInsufficientBalance) {
			// The venue holds the truth about funds in live mode; treat its
			// rejection like a ledger rejection.
			return o.blocked(intent, "InsufficientFunds"), nil
		}
		monitoring.RecordError("execution")
		if o.log != nil {
			o.log.LogError(fmt.Sprintf("%s %s execution", intent.Side, intent.Symbol), err)
		}
		return nil, fmt.Errorf("execution failed for %s %s: %w", intent.Side, intent.Symbol, err)
	}

	outcome, err := o.commit(intent, fill)
	if err != nil {
		return nil, err
	}
	if !outcome.Accepted {
		return outcome, nil
	}

	o.gate.Record(intent.Symbol, outcome.RealizedPnL)
	monitoring.RecordTrade(intent.Symbol, string(intent.Side), outcome.ExecutedAmountUSD.InexactFloat64())

	if o.log != nil {
		o.log.Trade("%s %s $%s at $%s fee $%s pnl $%s [%s]",
			intent.Side, intent.Symbol,
			outcome.ExecutedAmountUSD.StringFixed(2),
			outcome.ExecutedPrice.StringFixed(2),
			outcome.FeeUSD.StringFixed(4),
			outcome.RealizedPnL.StringFixed(2),
			intent.Reason)
	}

	o.journalTrade(intent, outcome)
	return outcome, nil
}

// commit applies the fill to the ledger. Typed ledger rejections become a
// blocked outcome; persist failures bubble up as errors because the trade
// already happened on the venue and the operator must reconcile.
func (o *Orchestrator) commit(intent TradeIntent, fill *exchange.Fill) (*TradeOutcome, error) {
	outcome := &TradeOutcome{
		Accepted:          true,
		TradeID:           id.New(),
		ExecutedPrice:     fill.Price,
		ExecutedAmountUSD: fill.FilledAmountUSD,
		FeeUSD:            fill.FeeUSD,
	}

	var err error
	switch intent.Side {
	case SideBuy:
		_, err = o.ledger.ApplyBuy(intent.Symbol, fill.Price, fill.FilledAmountUSD, fill.FeeUSD)
	case SideSell:
		size := fill.FilledAmountUSD.Div(fill.Price)
		var result ledger.SellResult
		result, err = o.ledger.ApplySell(intent.Symbol, fill.Price, size, fill.FeeUSD)
		outcome.RealizedPnL = result.RealizedPnL
	}

	if err == nil {
		return outcome, nil
	}

	var persistErr *ledger.PersistError
	if errors.As(err, &persistErr) {
		monitoring.RecordError("persist")
		if o.log != nil {
			o.log.LogError(fmt.Sprintf("%s %s ledger commit", intent.Side, intent.Symbol), err)
		}
		return nil, err
	}

	return o.blocked(intent, ledger.RejectionReason(err)), nil
}

func (o *Orchestrator) blocked(intent TradeIntent, reason string) *TradeOutcome {
	monitoring.RecordBlockedTrade(reason)
	if o.log != nil {
		o.log.LogBlockedSignal(intent.Strategy, intent.Symbol, string(intent.Side), reason)
	}
	return &TradeOutcome{Reason: reason}
}

func (o *Orchestrator) journalTrade(intent TradeIntent, outcome *TradeOutcome) {
	if o.journal == nil {
		return
	}

	record := journal.TradeRecord{
		TradeID:       outcome.TradeID,
		Timestamp:     o.clock().UTC(),
		Strategy:      intent.Strategy,
		Symbol:        intent.Symbol,
		Action:        string(intent.Side),
		Price:         outcome.ExecutedPrice,
		Quantity:      outcome.ExecutedAmountUSD.Div(outcome.ExecutedPrice),
		PnL:           outcome.RealizedPnL,
		TriggerReason: intent.Reason,
		FeeUSD:        outcome.FeeUSD,
		Balance:       o.ledger.Cash(),
	}
	if err := o.journal.RecordTrade(record); err != nil {
		monitoring.RecordError("journal")
		if o.log != nil {
			o.log.LogError("trade journal write", err)
		}
	}
}

// validateIntent rejects malformed intents with the same reason strings the
// ledger uses, so journals show one vocabulary.
func validateIntent(intent TradeIntent) string {
	if intent.Symbol == "" {
		return "InvalidSymbol"
	}
	if !intent.Price.IsPositive() {
		return "InvalidPrice"
	}
	if !intent.AmountUSD.IsPositive() {
		return "InvalidAmount"
	}
	return ""
}
