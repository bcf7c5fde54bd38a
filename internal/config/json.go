package config

import (
	"encoding/json"
	"os"

	"github.com/articvpn/vpnctl/internal/flagx"
	"github.com/articvpn/vpnctl/internal/timex"
)

// jsonConfig is a DTO used exclusively for JSON unmarshalling. It relies
// on timex.Duration so the file can specify the timeout either as a string
// like "15s" or as integer nanoseconds.
type jsonConfig struct {
	APIBaseURL     string         `json:"api_base_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJSON overlays cfg with values from the JSON file named by the
// -c/--config flag. When no file was named the function returns without
// touching cfg; a named file that cannot be read or parsed panics, since
// running against a half-applied config is worse than not starting.
func parseJSON(cfg *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
