package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the config file location used when --config is
// not given. The HSYNC_CONFIG_PATH environment variable takes precedence,
// then ~/.config/hsync.toml.
func DefaultConfigPath() (string, error) {
	if path := os.Getenv("HSYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "hsync.toml"), nil
}
