package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses a config duration field, substituting defaultValue
// when the field was left blank.
func DurationOrDefault(value, defaultValue string) (time.Duration, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		raw = strings.TrimSpace(defaultValue)
	}
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return d, nil
}
