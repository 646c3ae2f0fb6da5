package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for hsync. Every field has a
// matching command-line flag; flag values override file values.
type Config struct {
	Source       string   `toml:"source"`
	Dest         string   `toml:"dest"`
	DB           string   `toml:"db"`
	Log          string   `toml:"log"`
	Bwlimit      string   `toml:"bwlimit"`  // e.g. "40M", empty = unlimited
	Checksum     string   `toml:"checksum"` // md5, sha1, sha256 or blake2b
	Exclude      []string `toml:"exclude"`  // glob patterns left out of the sync
	DeleteExtras bool     `toml:"delete_extras"`
	Rescan       bool     `toml:"rescan"`
	BlockSize    string   `toml:"block_size"` // e.g. "1M"
	QueueCap     int      `toml:"queue_capacity"`
	Quiet        bool     `toml:"quiet"`
}

// Defaults returns a Config carrying the built-in defaults.
func Defaults() *Config {
	return &Config{
		DB:        "hsync.db",
		Log:       "hsync.log",
		Checksum:  "sha256",
		BlockSize: "1M",
		QueueCap:  20,
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader on top of the defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Defaults()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}
