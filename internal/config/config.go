// Package config handles the ~/.cips directory and config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CIPSDir is the name of the directory created under the user's home.
const CIPSDir = ".cips"

const defaultConfigYAML = `# cips configuration
version: 1

# Database path. Overridden by --db or $CIPS_DB.
# db: ~/.cips/cips.db

# Extra branch names tried after the built-in sequence is exhausted.
# extra_branches: [kilo, lima, mike]

# Default token budget for resurrection primers.
primer_tokens: 2000
`

// Config models ~/.cips/config.yaml.
type Config struct {
	Version       int      `yaml:"version"`
	DB            string   `yaml:"db,omitempty"`
	ExtraBranches []string `yaml:"extra_branches,omitempty"`
	PrimerTokens  int      `yaml:"primer_tokens,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{Version: 1, PrimerTokens: 2000}
}

// Dir returns the cips home directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, CIPSDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// Load reads config.yaml from the cips home directory, writing the
// default file on first use. A missing or unreadable home directory
// falls back to defaults rather than failing the command.
func Load() *Config {
	dir, err := Dir()
	if err != nil {
		return Default()
	}
	path := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
		return Default()
	}
	if err != nil {
		return Default()
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default()
	}
	if cfg.PrimerTokens <= 0 {
		cfg.PrimerTokens = 2000
	}
	return cfg
}

// LoadFile reads a config from an explicit path, for tests and
// non-standard layouts.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.PrimerTokens <= 0 {
		cfg.PrimerTokens = 2000
	}
	return cfg, nil
}

// DBPath resolves the database location: explicit flag, then $CIPS_DB,
// then the config file, then ~/.cips/cips.db.
func (c *Config) DBPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("CIPS_DB"); env != "" {
		return env
	}
	if c.DB != "" {
		return expandHome(c.DB)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, CIPSDir, "cips.db")
}

func expandHome(p string) string {
	if len(p) >= 2 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
