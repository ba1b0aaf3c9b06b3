// Package config handles rill.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a rill.toml configuration file.
type Config struct {
	REPL   REPL   `toml:"repl"`
	Server Server `toml:"server"`
	Debug  Debug  `toml:"debug"`

	// Dir is the directory containing the rill.toml file (set at load time).
	Dir string `toml:"-"`
}

// REPL configures the interactive loop.
type REPL struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"`
	Color   bool   `toml:"color"`
}

// Server configures the eval service.
type Server struct {
	Addr string `toml:"addr"`
}

// Debug configures diagnostics output.
type Debug struct {
	Trace bool `toml:"trace"`
}

// Default returns the configuration used when no rill.toml is found.
func Default() *Config {
	return &Config{
		REPL: REPL{
			Prompt:  ">> ",
			History: defaultHistoryPath(),
			Color:   true,
		},
		Server: Server{
			Addr: "127.0.0.1:7455",
		},
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rill", "history.db")
}

// Load parses a rill.toml file from the given directory. Missing fields
// fall back to defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "rill.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return cfg, nil
}

// FindAndLoad walks up from startDir looking for a rill.toml file.
// Returns the defaults if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "rill.toml")); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
