package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Scanner.Workers != 8 || cfg.Scanner.BondTimeout != 30*time.Second {
		t.Errorf("Unexpected scanner defaults: %+v", cfg.Scanner)
	}
	if cfg.Cache.TTL != 10*time.Minute || cfg.Cache.Redis.Prefix != "bondsignal:" {
		t.Errorf("Unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Engine.MinBars != 30 || cfg.Engine.Scoring.MaxRaw != 150 {
		t.Errorf("Engine defaults not applied: %+v", cfg.Engine)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Missing file should yield defaults: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected default addr, got %q", cfg.Server.Addr)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bondsignal.yaml")
	data := `
scanner:
  workers: 3
  bond_timeout: 5s
engine:
  min_bars: 40
  regime:
    adx_threshold: 25
  scoring:
    weights:
      technical: 80
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Scanner.Workers != 3 || cfg.Scanner.BondTimeout != 5*time.Second {
		t.Errorf("Scanner overlay not applied: %+v", cfg.Scanner)
	}
	if cfg.Engine.MinBars != 40 || cfg.Engine.Regime.ADXThreshold != 25 {
		t.Errorf("Engine overlay not applied")
	}
	// untouched siblings keep their defaults
	if cfg.Engine.Scoring.Weights.Technical != 80 || cfg.Engine.Scoring.Weights.Volume != 60 {
		t.Errorf("Unexpected weights: %+v", cfg.Engine.Scoring.Weights)
	}
	if cfg.Engine.Regime.Swing.RSIOversold != 35 {
		t.Errorf("Expected swing defaults to survive, got %+v", cfg.Engine.Regime.Swing)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/srv/bars")
	t.Setenv(EnvHTTPURL, "http://bars.internal:9000")
	t.Setenv(EnvRedisAddr, "localhost:6379")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Data.Dir != "/srv/bars" || cfg.Data.HTTPURL != "http://bars.internal:9000" {
		t.Errorf("Data overrides not applied: %+v", cfg.Data)
	}
	if cfg.Cache.Redis.Addr != "localhost:6379" || cfg.Log.Level != "debug" {
		t.Errorf("Overrides not applied")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"workers", func(c *Config) { c.Scanner.Workers = 0 }, "Workers"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "Level"},
		{"http url", func(c *Config) { c.Data.HTTPURL = "not a url" }, "HTTPURL"},
		{"rsi order", func(c *Config) { c.Engine.Regime.Trend.RSIOverbought = 20 }, "RSIOverbought"},
		{"macd order", func(c *Config) { c.Engine.Indicator.MACDSlow = 5 }, "MACDSlow"},
		{"ladder", func(c *Config) { c.Engine.Risk.LadderATR = nil }, "LadderATR"},
		{"score bands", func(c *Config) { c.Engine.Scoring.Buy = 90 }, "StrongBuy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected error about %s, got %v", tt.field, err)
			}
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("scanner: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error")
	}
}
