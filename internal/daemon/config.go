// Package daemon holds the long-running server configuration. Config is
// a TOML file at ~/.pocketledger/config.toml; every field has a default
// so a missing file is not an error.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Budget  BudgetConfig  `toml:"budget"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig configures persistence. An empty Path means in-memory.
type StoreConfig struct {
	Path string `toml:"path"`
}

// BudgetConfig configures budgeting behaviour.
type BudgetConfig struct {
	// AllowOverspend lets expense validation pass with a warning
	// instead of failing when an envelope would go negative.
	AllowOverspend bool `toml:"allow_overspend"`

	// ForecastMonths is the default forecast horizon.
	ForecastMonths int `toml:"forecast_months"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8421,
		},
		Store: StoreConfig{
			Path: filepath.Join(homeDir(), "ledger.db"),
		},
		Budget: BudgetConfig{
			AllowOverspend: true,
			ForecastMonths: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfigPath returns ~/.pocketledger/config.toml.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), "config.toml")
}

// LoadConfig reads the TOML file at path over the defaults. A missing
// file returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pocketledger"
	}
	return filepath.Join(home, ".pocketledger")
}
