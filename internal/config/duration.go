package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses an optional Go-duration config value such as
// "200ms" or "1m30s". An empty or blank value means "unset" and parses to
// zero so the component's own default applies; negatives are rejected.
func ParseDurationField(name, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: bad duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", name, raw)
	}
	return d, nil
}
