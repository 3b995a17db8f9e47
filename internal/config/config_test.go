package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidateForCollectMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "collect"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate in collect mode: %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "collect"

[trading]
symbol = "ETHUSDC"
maker_order_timeout = "90s"

[server]
port = 9100
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Trading.Symbol != "ETHUSDC" {
		t.Fatalf("symbol = %q, want ETHUSDC", cfg.Trading.Symbol)
	}
	if cfg.Trading.MakerOrderTimeout.Duration != 90*time.Second {
		t.Fatalf("maker_order_timeout = %v, want 90s", cfg.Trading.MakerOrderTimeout.Duration)
	}
	if cfg.Server.Port != 9100 {
		t.Fatalf("server port = %d, want 9100", cfg.Server.Port)
	}
	// Untouched fields keep their defaults.
	if cfg.Trading.MaxPositions != 2 {
		t.Fatalf("max_positions = %d, want default 2", cfg.Trading.MaxPositions)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("ConfigPath = %q, want %q", cfg.ConfigPath, path)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "collect"

[binance]
api_key = "from-file"
`)

	t.Setenv("SCALPBOT_BINANCE_API_KEY", "from-env")
	t.Setenv("SCALPBOT_TRADING_CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("SCALPBOT_TRADING_TICK_INTERVAL", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Binance.ApiKey != "from-env" {
		t.Fatalf("api_key = %q, env override did not win", cfg.Binance.ApiKey)
	}
	if cfg.Trading.ConfidenceThreshold != 0.55 {
		t.Fatalf("confidence_threshold = %v, want 0.55", cfg.Trading.ConfidenceThreshold)
	}
	if cfg.Trading.TickInterval.Duration != 3*time.Second {
		t.Fatalf("tick_interval = %v, want 3s", cfg.Trading.TickInterval.Duration)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "simulate" }},
		{"empty symbol", func(c *Config) { c.Trading.Symbol = " " }},
		{"zero capital", func(c *Config) { c.Trading.CapitalPerTrade = 0 }},
		{"stop loss out of range", func(c *Config) { c.Trading.StopLossPct = 1.5 }},
		{"threshold out of range", func(c *Config) { c.Trading.ConfidenceThreshold = 1.2 }},
		{"too few cooldowns", func(c *Config) { c.Trading.SlotCooldowns = nil }},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Mode = "collect"
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate accepted invalid config")
			}
		})
	}
}

func TestValidateRequiresCredentialsForTrading(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("trade mode without api credentials should fail validation")
	}

	cfg.Binance.ApiKey = "k"
	cfg.Binance.SecretKey = "s"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("trade mode with credentials should validate: %v", err)
	}
}
