// Package config loads the agent configuration from a YAML file with
// environment overrides for secrets and deployment switches.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the complete agent configuration.
type Config struct {
	// Mode selects "paper" or "live" execution.
	Mode string `yaml:"mode"`
	// Phase names the active deployment phase in the phases file.
	Phase string `yaml:"phase"`

	CycleInterval time.Duration `yaml:"-"`
	// CycleIntervalSeconds is the YAML-facing form of CycleInterval.
	CycleIntervalSeconds int `yaml:"cycle_interval_seconds"`

	DataDir        string `yaml:"data_dir"`
	LogDir         string `yaml:"log_dir"`
	PhasesFile     string `yaml:"phases_file"`
	JournalBackend string `yaml:"journal_backend"` // "csv" or "sqlite"

	MetricsPort int `yaml:"metrics_port"`
	HealthPort  int `yaml:"health_port"`

	Symbols       SymbolsConfig      `yaml:"symbols"`
	Allocation    AllocationConfig   `yaml:"allocation"`
	Strategy      StrategyConfig     `yaml:"strategy"`
	Risk          RiskConfig         `yaml:"risk"`
	Exchange      ExchangeConfig     `yaml:"exchange"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// SymbolsConfig lists the tradable symbols per allocation bucket.
type SymbolsConfig struct {
	Conservative []string `yaml:"conservative"`
	Aggressive   []string `yaml:"aggressive"`
}

// AllocationConfig is the capital split between the two buckets. The two
// fractions must sum to 1.
type AllocationConfig struct {
	Conservative decimal.Decimal `yaml:"conservative"`
	Aggressive   decimal.Decimal `yaml:"aggressive"`
}

// StrategyConfig selects the strategy and holds the drift thresholds as
// fractions. "hold" runs the full loop without ever trading.
type StrategyConfig struct {
	Name          string          `yaml:"name"` // "drift" or "hold"
	DipPct        decimal.Decimal `yaml:"dip_pct"`
	TakeProfitPct decimal.Decimal `yaml:"take_profit_pct"`
	StopLossPct   decimal.Decimal `yaml:"stop_loss_pct"`
}

// RiskConfig holds the frequency gates; loss limits come from the phase.
type RiskConfig struct {
	MinTradeIntervalSeconds int `yaml:"min_trade_interval_seconds"`
	MaxTradesPerSymbol      int `yaml:"max_trades_per_symbol"`
}

// ExchangeConfig selects the live trading environment. Credentials come from
// the environment, never from the file.
type ExchangeConfig struct {
	Testnet bool `yaml:"testnet"`
	Demo    bool `yaml:"demo"`

	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// NotificationConfig holds Telegram alerting settings. The token and chat id
// come from the environment.
type NotificationConfig struct {
	TelegramEnabled bool `yaml:"telegram_enabled"`

	TelegramToken string `yaml:"-"`
	TelegramChat  string `yaml:"-"`
}

// Load reads the YAML config, applies defaults, environment overrides and
// validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = "paper"
	}
	if c.CycleIntervalSeconds <= 0 {
		c.CycleIntervalSeconds = 300
	}
	c.CycleInterval = time.Duration(c.CycleIntervalSeconds) * time.Second

	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.JournalBackend == "" {
		c.JournalBackend = "csv"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}
	if c.HealthPort == 0 {
		c.HealthPort = 8080
	}
	if len(c.Symbols.Conservative) == 0 && len(c.Symbols.Aggressive) == 0 {
		c.Symbols.Conservative = []string{"BTC", "ETH"}
		c.Symbols.Aggressive = []string{"SOL"}
	}
	if c.Allocation.Conservative.IsZero() && c.Allocation.Aggressive.IsZero() {
		c.Allocation.Conservative = decimal.NewFromFloat(0.70)
		c.Allocation.Aggressive = decimal.NewFromFloat(0.30)
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "drift"
	}
	if c.Risk.MinTradeIntervalSeconds <= 0 {
		c.Risk.MinTradeIntervalSeconds = 300
	}
	if c.Risk.MaxTradesPerSymbol <= 0 {
		c.Risk.MaxTradesPerSymbol = 5
	}
}

// applyEnv overlays secrets and deployment switches from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("TRADING_MODE"); v != "" {
		c.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("DEPLOYMENT_PHASE"); v != "" {
		c.Phase = v
	}
	c.Exchange.APIKey = os.Getenv("BYBIT_API_KEY")
	c.Exchange.APISecret = os.Getenv("BYBIT_API_SECRET")
	c.Notifications.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Notifications.TelegramChat = os.Getenv("TELEGRAM_CHAT_ID")
}

// Validate rejects configurations that would trade with broken assumptions.
func (c *Config) Validate() error {
	if c.Mode != "paper" && c.Mode != "live" {
		return fmt.Errorf("mode must be paper or live, got %q", c.Mode)
	}
	if c.Phase == "" {
		return fmt.Errorf("phase is required")
	}
	if c.JournalBackend != "csv" && c.JournalBackend != "sqlite" {
		return fmt.Errorf("journal_backend must be csv or sqlite, got %q", c.JournalBackend)
	}

	sum := c.Allocation.Conservative.Add(c.Allocation.Aggressive)
	tolerance := decimal.NewFromFloat(0.001)
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("allocation fractions must sum to 1, got %s", sum)
	}
	if c.Allocation.Conservative.IsNegative() || c.Allocation.Aggressive.IsNegative() {
		return fmt.Errorf("allocation fractions must not be negative")
	}

	if c.Strategy.Name != "drift" && c.Strategy.Name != "hold" {
		return fmt.Errorf("strategy name must be drift or hold, got %q", c.Strategy.Name)
	}
	if c.Strategy.DipPct.IsNegative() || c.Strategy.TakeProfitPct.IsNegative() || c.Strategy.StopLossPct.IsNegative() {
		return fmt.Errorf("strategy thresholds must not be negative")
	}

	if c.Mode == "live" {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("live mode requires BYBIT_API_KEY and BYBIT_API_SECRET")
		}
	}
	if c.Notifications.TelegramEnabled {
		if c.Notifications.TelegramToken == "" || c.Notifications.TelegramChat == "" {
			return fmt.Errorf("telegram alerts require TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
		}
	}
	return nil
}

// AllSymbols returns the conservative and aggressive symbols in a stable
// order, conservative first.
func (c *Config) AllSymbols() []string {
	out := make([]string, 0, len(c.Symbols.Conservative)+len(c.Symbols.Aggressive))
	out = append(out, c.Symbols.Conservative...)
	out = append(out, c.Symbols.Aggressive...)
	return out
}

// IsAggressive reports whether a symbol belongs to the aggressive bucket.
func (c *Config) IsAggressive(symbol string) bool {
	for _, s := range c.Symbols.Aggressive {
		if s == symbol {
			return true
		}
	}
	return false
}
