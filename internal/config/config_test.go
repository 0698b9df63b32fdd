package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	path := writeConfig(t, `
pair:
  hl_symbol: "BTC"
  pdx_symbol: "BTC-USD-PERP"
display:
  depth: 5
  tick_ms: 250
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)

	if cfg.Pair.HLSymbol != "BTC" {
		t.Errorf("hl_symbol = %q, want BTC", cfg.Pair.HLSymbol)
	}
	if cfg.Display.Depth != 5 {
		t.Errorf("depth = %d, want 5", cfg.Display.Depth)
	}
	if cfg.Display.TickMS != 250 {
		t.Errorf("tick_ms = %d, want 250", cfg.Display.TickMS)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
pair:
  hl_symbol: "ETH"
  pdx_symbol: "ETH-USD-PERP"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Display.Depth != 10 {
		t.Errorf("default depth = %d, want 10", cfg.Display.Depth)
	}
	if cfg.Display.TickMS != 100 {
		t.Errorf("default tick_ms = %d, want 100", cfg.Display.TickMS)
	}
	if cfg.Venues.HL.WSURL == "" || cfg.Venues.PDX.WSURL == "" {
		t.Error("default venue endpoints should be set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with defaults: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidateRanges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing hl symbol", func(c *Config) { c.Pair.HLSymbol = "" }},
		{"missing pdx symbol", func(c *Config) { c.Pair.PDXSymbol = "" }},
		{"depth too low", func(c *Config) { c.Display.Depth = 0 }},
		{"depth too high", func(c *Config) { c.Display.Depth = 11 }},
		{"tick too fast", func(c *Config) { c.Display.TickMS = 49 }},
		{"tick too slow", func(c *Config) { c.Display.TickMS = 2001 }},
		{"missing hl ws url", func(c *Config) { c.Venues.HL.WSURL = "" }},
		{"missing pdx rest url", func(c *Config) { c.Venues.PDX.RESTURL = "" }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig(t)
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("%s: expected validation error", tc.name)
			}
		})
	}
}

func TestValidateRangeBounds(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Display.Depth = 1
	cfg.Display.TickMS = 50
	if err := cfg.Validate(); err != nil {
		t.Errorf("lower bounds should be valid: %v", err)
	}

	cfg.Display.Depth = 10
	cfg.Display.TickMS = 2000
	if err := cfg.Validate(); err != nil {
		t.Errorf("upper bounds should be valid: %v", err)
	}
}

func TestTickDuration(t *testing.T) {
	t.Parallel()
	d := DisplayConfig{TickMS: 250}
	if d.Tick().Milliseconds() != 250 {
		t.Errorf("Tick() = %v, want 250ms", d.Tick())
	}
}
