// Package config defines all configuration for the aggregator.
// Config is loaded from a YAML file (default: configs/config.yaml); the
// path can be overridden via the AGG_CONFIG environment variable and the
// log level via AGG_LOG.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Pair    PairConfig    `mapstructure:"pair"`
	Display DisplayConfig `mapstructure:"display"`
	Venues  VenuesConfig  `mapstructure:"venues"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PairConfig names the instrument on each venue.
type PairConfig struct {
	HLSymbol  string `mapstructure:"hl_symbol"`
	PDXSymbol string `mapstructure:"pdx_symbol"`
}

// DisplayConfig tunes the merged view and refresh cadence.
//
//   - Depth:  merged book depth per side (1..=10).
//   - TickMS: UI refresh interval in milliseconds (50..=2000).
type DisplayConfig struct {
	Depth  int `mapstructure:"depth"`
	TickMS int `mapstructure:"tick_ms"`
}

// Tick returns the refresh interval as a duration.
func (d DisplayConfig) Tick() time.Duration {
	return time.Duration(d.TickMS) * time.Millisecond
}

// VenuesConfig holds the endpoints of both venues. Overridable so tests and
// forks can point the feeds at local servers.
type VenuesConfig struct {
	HL  VenueEndpoints `mapstructure:"hl"`
	PDX VenueEndpoints `mapstructure:"pdx"`
}

// VenueEndpoints is one venue's WebSocket and REST base URLs.
type VenueEndpoints struct {
	WSURL   string `mapstructure:"ws_url"`
	RESTURL string `mapstructure:"rest_url"`
}

// LoggingConfig controls the structured log output. Level comes from the
// AGG_LOG environment variable, not the file, so it can be flipped per run.
type LoggingConfig struct {
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load reads config from a YAML file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("display.depth", 10)
	v.SetDefault("display.tick_ms", 100)
	v.SetDefault("venues.hl.ws_url", "wss://api.hyperliquid.xyz/ws")
	v.SetDefault("venues.hl.rest_url", "https://api.hyperliquid.xyz")
	v.SetDefault("venues.pdx.ws_url", "wss://ws.api.prod.paradex.trade/v1")
	v.SetDefault("venues.pdx.rest_url", "https://api.prod.paradex.trade/v1")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Pair.HLSymbol == "" {
		return fmt.Errorf("pair.hl_symbol is required")
	}
	if c.Pair.PDXSymbol == "" {
		return fmt.Errorf("pair.pdx_symbol is required")
	}
	if c.Display.Depth < 1 || c.Display.Depth > 10 {
		return fmt.Errorf("display.depth must be within 1..10, got %d", c.Display.Depth)
	}
	if c.Display.TickMS < 50 || c.Display.TickMS > 2000 {
		return fmt.Errorf("display.tick_ms must be within 50..2000, got %d", c.Display.TickMS)
	}
	if c.Venues.HL.WSURL == "" || c.Venues.HL.RESTURL == "" {
		return fmt.Errorf("venues.hl endpoints are required")
	}
	if c.Venues.PDX.WSURL == "" || c.Venues.PDX.RESTURL == "" {
		return fmt.Errorf("venues.pdx endpoints are required")
	}
	return nil
}
