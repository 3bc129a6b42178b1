// Package safety holds the operational guards that can stop trading without
// touching portfolio state: the on-disk kill switch and the circuit breaker
// around flaky upstreams.
package safety

import (
	"fmt"
	"os"
	"path/filepath"
)

// KillSwitchFile is the sentinel checked at the top of every trading cycle.
const KillSwitchFile = "kill_switch.flag"

// KillSwitch stops the bot when a sentinel file exists in the data
// directory. Operators create the file by hand (or via Trip) to halt trading
// without shell access to the process.
type KillSwitch struct {
	path string
}

// NewKillSwitch creates a kill switch watching dataDir.
func NewKillSwitch(dataDir string) *KillSwitch {
	return &KillSwitch{path: filepath.Join(dataDir, KillSwitchFile)}
}

// Engaged reports whether the sentinel file exists.
func (k *KillSwitch) Engaged() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// Trip creates the sentinel file so the next cycle halts.
func (k *KillSwitch) Trip(reason string) error {
	if err := os.WriteFile(k.path, []byte(reason+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to engage kill switch: %w", err)
	}
	return nil
}

// Release removes the sentinel file.
func (k *KillSwitch) Release() error {
	if err := os.Remove(k.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release kill switch: %w", err)
	}
	return nil
}

// Path returns the sentinel file location, for operator-facing messages.
func (k *KillSwitch) Path() string {
	return k.path
}
