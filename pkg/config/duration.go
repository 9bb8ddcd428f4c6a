package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that reads either a Go duration string ("90s",
// "5m") or a number of seconds, and writes a duration string.
type Duration struct {
	time.Duration
}

func Seconds(s float64) Duration {
	return Duration{time.Duration(s * float64(time.Second))}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch val := v.(type) {
	case float64:
		*d = Seconds(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration '%s': %w", val, err)
		}
		d.Duration = parsed
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("invalid duration: expected string or number, got %T", v)
	}
	return nil
}
