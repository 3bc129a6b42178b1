package safety

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKillSwitch_TripAndRelease verifies the sentinel file lifecycle.
func TestKillSwitch_TripAndRelease(t *testing.T) {
	ks := NewKillSwitch(t.TempDir())

	assert.False(t, ks.Engaged())

	require.NoError(t, ks.Trip("total loss limit breached"))
	assert.True(t, ks.Engaged())

	content, err := os.ReadFile(ks.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "total loss limit breached")

	require.NoError(t, ks.Release())
	assert.False(t, ks.Engaged())
}

// TestKillSwitch_ReleaseIdempotent verifies releasing a disengaged switch is
// not an error.
func TestKillSwitch_ReleaseIdempotent(t *testing.T) {
	ks := NewKillSwitch(t.TempDir())

	assert.NoError(t, ks.Release())
	assert.NoError(t, ks.Release())
}

// TestKillSwitch_DetectsManualFile verifies an operator touching the file by
// hand engages the switch.
func TestKillSwitch_DetectsManualFile(t *testing.T) {
	dir := t.TempDir()
	ks := NewKillSwitch(dir)

	require.NoError(t, os.WriteFile(ks.Path(), []byte("manual halt\n"), 0644))
	assert.True(t, ks.Engaged())
}

// TestCircuitBreaker_OpensAfterThreshold verifies consecutive failures trip
// the breaker and further calls are rejected without running fn.
func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("prices", 3, time.Hour)
	boom := fmt.Errorf("upstream down")

	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker prices is open")
	assert.False(t, called, "open breaker must not invoke fn")
}

// TestCircuitBreaker_SuccessResetsCount verifies a success clears the
// failure streak.
func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("prices", 3, time.Hour)
	boom := fmt.Errorf("upstream down")

	cb.Call(func() error { return boom })
	cb.Call(func() error { return boom })
	require.NoError(t, cb.Call(func() error { return nil }))

	cb.Call(func() error { return boom })
	cb.Call(func() error { return boom })
	assert.Equal(t, StateClosed, cb.State())
}

// TestCircuitBreaker_HalfOpenRecovery verifies the probe after the timeout
// closes the breaker on success and reopens it on failure.
func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("prices", 1, 10*time.Millisecond)
	boom := fmt.Errorf("upstream down")

	cb.Call(func() error { return boom })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	// Probe fails: straight back to open.
	err := cb.Call(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	// Probe succeeds: closed again.
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

// TestCircuitBreaker_Defaults verifies zero values get replaced.
func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("prices", 0, 0)
	assert.Equal(t, 5, cb.failureThreshold)
	assert.Equal(t, 30*time.Second, cb.timeout)
}
