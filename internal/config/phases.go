package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// Phase is one rung of the deployment ladder. Loss and size limits are
// absolute USD amounts for the phase's capital.
type Phase struct {
	Description         string          `json:"description"`
	Capital             decimal.Decimal `json:"capital"`
	MaxDailyLoss        decimal.Decimal `json:"max_daily_loss"`
	MaxTotalLoss        decimal.Decimal `json:"max_total_loss"`
	MaxPositionSize     decimal.Decimal `json:"max_position_size"`
	RequireConfirmation bool            `json:"require_confirmation"`
}

// DefaultPhases returns the built-in deployment ladder, used when no phases
// file is configured.
func DefaultPhases() map[string]Phase {
	return map[string]Phase{
		"paper_validation": {
			Description:         "Paper trading with simulated capital",
			Capital:             decimal.NewFromInt(1000),
			MaxDailyLoss:        decimal.NewFromInt(50),
			MaxTotalLoss:        decimal.NewFromInt(200),
			MaxPositionSize:     decimal.NewFromInt(100),
			RequireConfirmation: false,
		},
		"micro_capital": {
			Description:         "First real money, every trade confirmed",
			Capital:             decimal.NewFromInt(100),
			MaxDailyLoss:        decimal.NewFromInt(5),
			MaxTotalLoss:        decimal.NewFromInt(20),
			MaxPositionSize:     decimal.NewFromInt(10),
			RequireConfirmation: true,
		},
		"small_capital": {
			Description:         "Confirmed trading at moderate size",
			Capital:             decimal.NewFromInt(500),
			MaxDailyLoss:        decimal.NewFromInt(20),
			MaxTotalLoss:        decimal.NewFromInt(75),
			MaxPositionSize:     decimal.NewFromInt(50),
			RequireConfirmation: true,
		},
		"scaling": {
			Description:         "Unattended trading at full size",
			Capital:             decimal.NewFromInt(2000),
			MaxDailyLoss:        decimal.NewFromInt(60),
			MaxTotalLoss:        decimal.NewFromInt(250),
			MaxPositionSize:     decimal.NewFromInt(200),
			RequireConfirmation: false,
		},
	}
}

// LoadPhases reads the deployment phases file, or returns the built-in
// ladder when path is empty.
func LoadPhases(path string) (map[string]Phase, error) {
	if path == "" {
		return DefaultPhases(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phases file %s: %w", path, err)
	}

	var phases map[string]Phase
	if err := json.Unmarshal(data, &phases); err != nil {
		return nil, fmt.Errorf("failed to parse phases file %s: %w", path, err)
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("phases file %s defines no phases", path)
	}

	for name, phase := range phases {
		if err := validatePhase(phase); err != nil {
			return nil, fmt.Errorf("phase %q: %w", name, err)
		}
	}
	return phases, nil
}

// SelectPhase resolves the configured phase name against the ladder.
func SelectPhase(phases map[string]Phase, name string) (Phase, error) {
	phase, ok := phases[name]
	if !ok {
		return Phase{}, fmt.Errorf("unknown deployment phase %q", name)
	}
	return phase, nil
}

func validatePhase(p Phase) error {
	if !p.Capital.IsPositive() {
		return fmt.Errorf("capital must be positive, got %s", p.Capital)
	}
	if !p.MaxDailyLoss.IsPositive() || !p.MaxTotalLoss.IsPositive() {
		return fmt.Errorf("loss limits must be positive")
	}
	if p.MaxDailyLoss.GreaterThan(p.MaxTotalLoss) {
		return fmt.Errorf("max_daily_loss %s exceeds max_total_loss %s", p.MaxDailyLoss, p.MaxTotalLoss)
	}
	if !p.MaxPositionSize.IsPositive() {
		return fmt.Errorf("max_position_size must be positive, got %s", p.MaxPositionSize)
	}
	return nil
}
