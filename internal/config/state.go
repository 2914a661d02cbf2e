package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// State is the on-disk record of the active library, so the service reopens
// the same library across restarts without LIBRARY_ROOT in the environment.
type State struct {
	LibraryRoot string    `toml:"library_root"`
	SwitchedAt  time.Time `toml:"switched_at"`
}

// LoadState reads the state file. A missing file is not an error; it returns
// an empty State.
func LoadState(path string) (*State, error) {
	var state State
	if _, err := toml.DecodeFile(path, &state); err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
	return &state, nil
}

// SaveState writes the state file atomically (write-then-rename).
func SaveState(path string, state *State) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}

	enc := toml.NewEncoder(f)
	if err := enc.Encode(state); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
