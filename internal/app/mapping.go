package app

import (
	"digestbot/internal/config"
	"digestbot/internal/directory"
	"digestbot/internal/mailer"
	"digestbot/internal/scheduler"
	"digestbot/internal/source"
	logx "digestbot/pkg/logx"
)

// The mapping helpers translate the file-facing config structs into each
// component's own config. Durations are validated here so a broken
// hot-reload is rejected before anything is applied.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapDirectoryConfig(cfg *config.Config) (directory.Config, error) {
	busy, err := config.ParseDurationField("directory.busy_timeout", cfg.Directory.BusyTimeout)
	if err != nil {
		return directory.Config{}, err
	}
	ttl, err := config.ParseDurationField("directory.cache_ttl", cfg.Directory.CacheTTL)
	if err != nil {
		return directory.Config{}, err
	}
	return directory.Config{
		Driver:      cfg.Directory.Driver,
		URL:         cfg.Directory.URL,
		APIKey:      cfg.Directory.APIKey,
		Path:        cfg.Directory.Path,
		BusyTimeout: busy,
		CacheTTL:    ttl,
	}, nil
}

func mapSourceConfig(cfg *config.Config) source.Config {
	return source.Config{
		Driver:   cfg.Source.Driver,
		URL:      cfg.Source.URL,
		APIKey:   cfg.Source.APIKey,
		Function: cfg.Source.Function,
		Feeds:    cfg.Source.Feeds,
	}
}

func mapMailerConfig(cfg *config.Config) (mailer.Config, error) {
	partDelay, err := config.ParseDurationField("mailer.part_delay", cfg.Mailer.PartDelay)
	if err != nil {
		return mailer.Config{}, err
	}
	recipientDelay, err := config.ParseDurationField("mailer.recipient_delay", cfg.Mailer.RecipientDelay)
	if err != nil {
		return mailer.Config{}, err
	}
	fetchTimeout, err := config.ParseDurationField("mailer.fetch_timeout", cfg.Mailer.FetchTimeout)
	if err != nil {
		return mailer.Config{}, err
	}
	return mailer.Config{
		PartLimit:      cfg.Mailer.PartLimit,
		PartDelay:      partDelay,
		RecipientDelay: recipientDelay,
		RatePerSec:     cfg.Mailer.RatePerSec,
		FetchTimeout:   fetchTimeout,
		HistorySize:    cfg.Mailer.HistorySize,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	mailings := make([]scheduler.Mailing, 0, len(cfg.Scheduler.Mailings))
	for _, m := range cfg.Scheduler.Mailings {
		mailings = append(mailings, scheduler.Mailing{
			CategoryID: m.CategoryID,
			Schedule:   m.Schedule,
		})
	}
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.Scheduler.Timezone,
		Mailings: mailings,
	}
}
