package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-trading-agent/internal/allocation"
	"github.com/ducminhle1904/crypto-trading-agent/internal/bot"
	"github.com/ducminhle1904/crypto-trading-agent/internal/config"
	"github.com/ducminhle1904/crypto-trading-agent/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-agent/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-trading-agent/internal/executor"
	"github.com/ducminhle1904/crypto-trading-agent/internal/journal"
	"github.com/ducminhle1904/crypto-trading-agent/internal/ledger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/logger"
	"github.com/ducminhle1904/crypto-trading-agent/internal/monitoring"
	"github.com/ducminhle1904/crypto-trading-agent/internal/notifications"
	"github.com/ducminhle1904/crypto-trading-agent/internal/pricing"
	"github.com/ducminhle1904/crypto-trading-agent/internal/risk"
	"github.com/ducminhle1904/crypto-trading-agent/internal/safety"
	"github.com/ducminhle1904/crypto-trading-agent/internal/strategy"
)

const stateFileName = "portfolio_state.json"

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/agent.yaml", "path to the agent config file")
	return cmd
}

func runBot(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	phases, err := config.LoadPhases(cfg.PhasesFile)
	if err != nil {
		return err
	}
	phase, err := config.SelectPhase(phases, cfg.Phase)
	if err != nil {
		return err
	}
	fmt.Printf("Phase %s (%s): capital $%s, daily loss limit $%s, total loss limit $%s, max position $%s\n",
		cfg.Phase, phase.Description, phase.Capital.StringFixed(2),
		phase.MaxDailyLoss.StringFixed(2), phase.MaxTotalLoss.StringFixed(2),
		phase.MaxPositionSize.StringFixed(2))

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogDir, cfg.Mode, cfg.Phase)
	if err != nil {
		return err
	}
	defer log.Close()

	store, err := ledger.NewFileStore(filepath.Join(cfg.DataDir, stateFileName))
	if err != nil {
		return err
	}
	ldg, err := ledger.Open(store, phase.Capital)
	if err != nil {
		return err
	}

	gate := risk.NewGate(risk.Limits{
		MaxDailyLoss:       phase.MaxDailyLoss,
		MaxTotalLoss:       phase.MaxTotalLoss,
		MaxPositionSize:    phase.MaxPositionSize,
		MinTradeInterval:   time.Duration(cfg.Risk.MinTradeIntervalSeconds) * time.Second,
		MaxTradesPerSymbol: cfg.Risk.MaxTradesPerSymbol,
	})

	jnl, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer jnl.Close()

	if err := restoreRiskState(gate, jnl); err != nil {
		return err
	}

	exec, approver, err := buildExecution(cfg, phase)
	if err != nil {
		return err
	}

	orch := executor.New(ldg, gate, exec, jnl, approver, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rest := pricing.NewRESTClient()
	feed := pricing.NewFeed(cfg.AllSymbols(), rest)
	go feed.Run(ctx)

	var notifier notifications.Notifier = notifications.NopNotifier{}
	if cfg.Notifications.TelegramEnabled {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChat)
	}

	health := monitoring.NewHealthChecker(cfg.CycleInterval)
	startHTTPServers(cfg, health, log)

	agent := bot.New(bot.Deps{
		Config:     cfg,
		Phase:      phase,
		Ledger:     ldg,
		Gate:       gate,
		Policy:     allocation.DefaultPolicy(),
		Orch:       orch,
		Strategy:   buildStrategy(cfg),
		Prices:     feed,
		Journal:    jnl,
		KillSwitch: safety.NewKillSwitch(cfg.DataDir),
		Notifier:   notifier,
		Health:     health,
		Log:        log,
	})

	err = agent.Run(ctx)
	switch {
	case errors.Is(err, bot.ErrHalted):
		health.SetHalted(true)
		fmt.Println("Trading halted by safety stop.")
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Println("Shutdown complete.")
		return nil
	default:
		return err
	}
}

// buildStrategy selects the configured strategy. Config validation already
// rejected unknown names.
func buildStrategy(cfg *config.Config) strategy.Strategy {
	if cfg.Strategy.Name == "hold" {
		return strategy.NewHoldStrategy()
	}
	return strategy.NewDriftStrategy(strategy.DriftConfig{
		DipPct:        cfg.Strategy.DipPct,
		TakeProfitPct: cfg.Strategy.TakeProfitPct,
		StopLossPct:   cfg.Strategy.StopLossPct,
	})
}

// restoreRiskState replays the trade journal into the gate so loss limits
// and per-symbol throttles survive a restart. A journal that cannot be read
// aborts startup: trading with forgotten losses is worse than not trading.
func restoreRiskState(gate *risk.Gate, jnl journal.Journal) error {
	reader, ok := jnl.(journal.Reader)
	if !ok {
		return nil
	}

	trades, err := reader.ListTrades(0)
	if err != nil {
		return fmt.Errorf("failed to replay trade journal: %w", err)
	}

	// ListTrades returns newest first; replay wants chronological order.
	events := make([]risk.TradeEvent, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		events = append(events, risk.TradeEvent{
			Symbol: trades[i].Symbol,
			Time:   trades[i].Timestamp,
			PnL:    trades[i].PnL,
		})
	}
	gate.Replay(events)
	return nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.JournalBackend {
	case "sqlite":
		return journal.NewSQLite(filepath.Join(cfg.DataDir, "journal.sqlite"))
	default:
		return journal.NewCSV(cfg.DataDir)
	}
}

func buildExecution(cfg *config.Config, phase config.Phase) (exchange.Executor, executor.Approver, error) {
	if cfg.Mode == "paper" {
		return exchange.NewPaperExecutor(decimal.Zero), executor.AutoApprover{}, nil
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	})

	var approver executor.Approver = executor.AutoApprover{}
	if phase.RequireConfirmation {
		approver = &executor.ConsoleApprover{In: os.Stdin, Out: os.Stdout}
	}
	return bybit.NewExecutor(client), approver, nil
}

func startHTTPServers(cfg *config.Config, health *monitoring.HealthChecker, log *logger.Logger) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.LogError("metrics server", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HealthPort)
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			log.LogError("health server", err)
		}
	}()
}
