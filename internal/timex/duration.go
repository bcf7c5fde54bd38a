// Package timex provides a time.Duration wrapper that can be unmarshalled
// from JSON either as a string like "15s" or as integer nanoseconds.
package timex

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration for use in JSON config DTOs.
type Duration struct {
	Duration time.Duration
}

// UnmarshalJSON accepts "1m30s"-style strings and plain numbers
// (interpreted as nanoseconds).
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(data))
	}
}

// MarshalJSON renders the duration in the string form accepted by
// UnmarshalJSON.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}
