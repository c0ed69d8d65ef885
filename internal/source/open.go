package source

import (
	"fmt"
	"strings"

	logx "digestbot/pkg/logx"
)

// Open builds the configured source driver.
func Open(cfg Config, log logx.Logger) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "postgrest":
		return openRPC(cfg, log)
	case "rss":
		return openRSS(cfg, log)
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
}
