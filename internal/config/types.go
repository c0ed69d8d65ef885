package config

// Config is the root of digestbot's configuration file.
//
// The file may be JSON or YAML; YAML is coerced to JSON and decoded strictly
// (unknown fields are rejected). String fields support ${ENV} expansion so
// secrets like the bot token and the data-source key can live in the
// environment (or a .env file) instead of the config file.
//
// All durations are Go duration strings (e.g. "200ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Directory DirectoryConfig `json:"directory"`
	Source    SourceConfig    `json:"source"`
	Mailer    MailerConfig    `json:"mailer"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs are admins: they see the /admin panel and may broadcast.
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is an optional chat id that receives warning-level log lines.
	GroupLog    string `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// DirectoryConfig selects the category/subscription store.
//
// Driver values:
//   - "postgrest": a PostgREST-style RPC endpoint (hosted Postgres)
//   - "sqlite": a local SQLite database file
type DirectoryConfig struct {
	Driver      string `json:"driver"`
	URL         string `json:"url,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	// CacheTTL bounds the category/description lookup cache. Default 24h.
	CacheTTL string `json:"cache_ttl,omitempty"`
}

// SourceConfig selects where new items come from.
//
// Driver values:
//   - "postgrest": an RPC that returns only not-yet-broadcast items and
//     marks them consumed server-side
//   - "rss": one or more feeds polled via gofeed
type SourceConfig struct {
	Driver   string   `json:"driver"`
	URL      string   `json:"url,omitempty"`
	APIKey   string   `json:"api_key,omitempty"`
	Function string   `json:"function,omitempty"` // postgrest RPC name
	Feeds    []string `json:"feeds,omitempty"`    // rss driver
}

// MailerConfig controls segmentation and dispatch pacing.
//
// Defaults (when fields are omitted/zero):
//   - part_limit: 4000
//   - part_delay: "200ms"
//   - recipient_delay: "200ms"
//   - rate_per_sec: 25
//   - fetch_timeout: "30s"
//   - history_size: 50
type MailerConfig struct {
	PartLimit      int    `json:"part_limit,omitempty"`
	PartDelay      string `json:"part_delay,omitempty"`
	RecipientDelay string `json:"recipient_delay,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
	FetchTimeout   string `json:"fetch_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// SchedulerConfig controls periodic category mailings.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone is an IANA TZ name, e.g. "Europe/Moscow".
	Timezone string          `json:"timezone,omitempty"`
	Mailings []MailingConfig `json:"mailings,omitempty"`
}

// MailingConfig binds one category to a trigger schedule.
// Schedule accepts cron specs ("15 8-18 * * *", "@hourly") or intervals ("30m").
type MailingConfig struct {
	CategoryID int64  `json:"category_id"`
	Schedule   string `json:"schedule"`
}
