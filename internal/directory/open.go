package directory

import (
	"errors"
	"strings"
	"time"

	logx "digestbot/pkg/logx"
)

// Open initializes the configured directory driver and wraps it with the
// TTL lookup cache.
func Open(cfg Config, log logx.Logger) (Directory, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		d   Directory
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "postgrest":
		d, err = openRPC(cfg, log)
	case "sqlite", "sqlite3":
		d, err = openSQLite(cfg, log)
	case "":
		return nil, errors.New("directory driver is required")
	default:
		return nil, errors.New("unknown directory driver: " + cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return NewCached(d, ttl), nil
}
