package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store abstracts durable storage for the portfolio state.
type Store interface {
	Save(state *State) error
	Load() (*State, error)
	Exists() bool
}

// FileStore persists the state as a JSON file, rewritten atomically on every
// save so a crash mid-write never corrupts the previous valid state.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path, creating the
// parent directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the state file.
func (fs *FileStore) Path() string {
	return fs.path
}

// Exists reports whether a state file is already present.
func (fs *FileStore) Exists() bool {
	_, err := os.Stat(fs.path)
	return err == nil
}

// Save writes the state to a temporary file and renames it into place.
func (fs *FileStore) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := fs.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := os.Rename(tempFile, fs.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to move state file: %w", err)
	}

	return nil
}

// Load reads and validates the state file. A corrupt state file is a fatal
// condition for the caller; trading blind against an unknown ledger is worse
// than refusing to start.
func (fs *FileStore) Load() (*State, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupted state file %s: %w", fs.path, err)
	}

	if state.Positions == nil {
		state.Positions = make(map[string]*Position)
	}
	if state.Cash.IsNegative() {
		return nil, fmt.Errorf("corrupted state file %s: negative cash balance %s", fs.path, state.Cash)
	}
	for sym, pos := range state.Positions {
		if !pos.Size.IsPositive() {
			return nil, fmt.Errorf("corrupted state file %s: non-positive size for %s", fs.path, sym)
		}
	}

	return &state, nil
}
