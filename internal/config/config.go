// Package config holds runtime settings for the vpnctl CLI.
package config

import "time"

// Config holds runtime settings.
//
// Fields:
//   - APIBaseURL: base URL of the management service.
//   - RequestTimeout: end-to-end bound for every API call.
type Config struct {
	APIBaseURL     string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000"
	c.RequestTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from a JSON file when one was named with -c/--config. Command-line
// overrides for individual fields are applied later by the CLI layer, so
// the precedence is defaults < file < flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	return cfg
}
