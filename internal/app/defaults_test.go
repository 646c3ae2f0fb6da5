package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigPath(t *testing.T) {
	t.Run("uses env var when set", func(t *testing.T) {
		t.Setenv("HSYNC_CONFIG_PATH", "/custom/hsync.toml")

		got, err := DefaultConfigPath()
		if err != nil {
			t.Fatalf("DefaultConfigPath() error = %v", err)
		}
		if got != "/custom/hsync.toml" {
			t.Errorf("DefaultConfigPath() = %q, want /custom/hsync.toml", got)
		}
	})

	t.Run("falls back to home dir default", func(t *testing.T) {
		t.Setenv("HSYNC_CONFIG_PATH", "")

		got, err := DefaultConfigPath()
		if err != nil {
			t.Fatalf("DefaultConfigPath() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()
		want := filepath.Join(homeDir, ".config", "hsync.toml")
		if got != want {
			t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
		}
	})
}
