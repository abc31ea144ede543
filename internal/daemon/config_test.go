package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8421 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8421)
	}
	if cfg.API.Addr() != "127.0.0.1:8421" {
		t.Errorf("API.Addr() = %q, want %q", cfg.API.Addr(), "127.0.0.1:8421")
	}
	if cfg.Store.Path == "" {
		t.Error("Store.Path should default to a file under the home directory")
	}
	if !cfg.Budget.AllowOverspend {
		t.Error("Budget.AllowOverspend should be true by default")
	}
	if cfg.Budget.ForecastMonths != 3 {
		t.Errorf("Budget.ForecastMonths = %d, want 3", cfg.Budget.ForecastMonths)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true by default")
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 8421 {
		t.Errorf("API.Port = %d, want default 8421", cfg.API.Port)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[api]
host = "0.0.0.0"
port = 9000

[store]
path = "/tmp/test-ledger.db"

[budget]
allow_overspend = false
forecast_months = 6
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9000 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Store.Path != "/tmp/test-ledger.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Budget.AllowOverspend {
		t.Error("allow_overspend should be overridden to false")
	}
	if cfg.Budget.ForecastMonths != 6 {
		t.Errorf("ForecastMonths = %d, want 6", cfg.Budget.ForecastMonths)
	}
	// Sections absent from the file keep their defaults.
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should keep its default")
	}
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[api\nport ="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}
