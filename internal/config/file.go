package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the well-known name of the binary config under the user's
// config directory.
const FileName = "xsplit.bin"

// Path returns the per-user binary config location:
// $XDG_CONFIG_HOME/xsplit.bin, falling back to ~/.config/xsplit.bin.
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, FileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", FileName)
}

// WriteFile encodes the entries and writes them atomically (temp file +
// rename), so the engine's poll never observes a torn config.
func WriteFile(path string, entries []OutputConfig) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), FileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Remove deletes the binary config, putting the engine into
// pass-through. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove config: %w", err)
	}
	return nil
}

// ReadFile reads and decodes the binary config. A missing file yields
// no entries: pass-through.
func ReadFile(path string) ([]OutputConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Decode(data)
}
