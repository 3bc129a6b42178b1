package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoad_AppliesDefaults verifies a minimal file gets the full default
// set.
func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "phase: paper_validation\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "paper", cfg.Mode)
	assert.Equal(t, 5*time.Minute, cfg.CycleInterval)
	assert.Equal(t, "csv", cfg.JournalBackend)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Symbols.Conservative)
	assert.Equal(t, []string{"SOL"}, cfg.Symbols.Aggressive)
	assert.True(t, cfg.Allocation.Conservative.Equal(decimal.RequireFromString("0.7")))
	assert.Equal(t, "drift", cfg.Strategy.Name)
	assert.Equal(t, 300, cfg.Risk.MinTradeIntervalSeconds)
	assert.Equal(t, 5, cfg.Risk.MaxTradesPerSymbol)
}

// TestLoad_SelectsHoldStrategy verifies the observation-only strategy is
// selectable and unknown names are refused.
func TestLoad_SelectsHoldStrategy(t *testing.T) {
	path := writeConfig(t, "phase: paper_validation\nstrategy:\n  name: hold\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hold", cfg.Strategy.Name)

	path = writeConfig(t, "phase: paper_validation\nstrategy:\n  name: momentum\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy name")
}

// TestLoad_RejectsBadAllocation verifies the fractions must sum to one.
func TestLoad_RejectsBadAllocation(t *testing.T) {
	path := writeConfig(t, `
phase: paper_validation
allocation:
  conservative: 0.70
  aggressive: 0.25
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

// TestLoad_AllocationTolerance verifies rounding within a tenth of a
// percent is accepted.
func TestLoad_AllocationTolerance(t *testing.T) {
	path := writeConfig(t, `
phase: paper_validation
allocation:
  conservative: 0.7004
  aggressive: 0.2999
`)

	_, err := Load(path)
	assert.NoError(t, err)
}

// TestLoad_RejectsUnknownMode verifies the mode whitelist.
func TestLoad_RejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, "phase: paper_validation\nmode: dryrun\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}

// TestLoad_LiveRequiresCredentials verifies live mode without API keys is
// refused.
func TestLoad_LiveRequiresCredentials(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")
	path := writeConfig(t, "phase: micro_capital\nmode: live\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BYBIT_API_KEY")
}

// TestLoad_EnvOverrides verifies environment switches win over the file.
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRADING_MODE", "live")
	t.Setenv("DEPLOYMENT_PHASE", "small_capital")
	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_API_SECRET", "secret")

	path := writeConfig(t, "phase: paper_validation\nmode: paper\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "live", cfg.Mode)
	assert.Equal(t, "small_capital", cfg.Phase)
	assert.Equal(t, "key", cfg.Exchange.APIKey)
}

// TestIsAggressive verifies bucket membership.
func TestIsAggressive(t *testing.T) {
	path := writeConfig(t, "phase: paper_validation\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsAggressive("SOL"))
	assert.False(t, cfg.IsAggressive("BTC"))
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, cfg.AllSymbols())
}

// TestLoadPhases_Defaults verifies the built-in ladder is valid and
// selectable.
func TestLoadPhases_Defaults(t *testing.T) {
	phases, err := LoadPhases("")
	require.NoError(t, err)

	phase, err := SelectPhase(phases, "micro_capital")
	require.NoError(t, err)
	assert.True(t, phase.Capital.Equal(decimal.NewFromInt(100)))
	assert.True(t, phase.RequireConfirmation)

	_, err = SelectPhase(phases, "nonexistent")
	assert.Error(t, err)
}

// TestLoadPhases_FromFile verifies the JSON ladder loads with decimal
// fields intact.
func TestLoadPhases_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phases.json")
	content := `{
		"custom": {
			"capital": "250.50",
			"max_daily_loss": "10",
			"max_total_loss": "40",
			"max_position_size": "25",
			"require_confirmation": true
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	phases, err := LoadPhases(path)
	require.NoError(t, err)

	phase, err := SelectPhase(phases, "custom")
	require.NoError(t, err)
	assert.True(t, phase.Capital.Equal(decimal.RequireFromString("250.50")))
}

// TestLoadPhases_RejectsInvertedLimits verifies daily loss cannot exceed
// total loss.
func TestLoadPhases_RejectsInvertedLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phases.json")
	content := `{
		"broken": {
			"capital": "100",
			"max_daily_loss": "50",
			"max_total_loss": "20",
			"max_position_size": "10"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadPhases(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_daily_loss")
}
