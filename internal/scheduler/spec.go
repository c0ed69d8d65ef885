package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field cron specs plus descriptors
// (@hourly, @every 30m, ...).
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NormalizeSpec turns a user-facing schedule into a parser-ready spec.
// Plain Go durations ("30m", "1h15m") become "@every" descriptors; anything
// else must already be a valid cron spec.
func NormalizeSpec(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty schedule")
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d < time.Minute {
			return "", fmt.Errorf("schedule %q: interval below 1m", s)
		}
		s = "@every " + d.String()
	}

	if _, err := scheduleParser.Parse(s); err != nil {
		return "", fmt.Errorf("schedule %q: %w", s, err)
	}
	return s, nil
}
