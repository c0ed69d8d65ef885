package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
		"telegram": {"token": "123:abc", "owner_user_ids": [7]},
		"directory": {"driver": "sqlite", "path": "./data/bot.db"},
		"source": {"driver": "rss", "feeds": ["https://example.org/feed"]},
		"mailer": {"part_limit": 3000, "part_delay": "150ms"},
		"scheduler": {"enabled": true, "timezone": "Europe/Moscow",
			"mailings": [{"category_id": 1, "schedule": "15 8-18 * * *"}]}
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Mailer.PartLimit != 3000 || cfg.Mailer.PartDelay != "150ms" {
		t.Fatalf("mailer = %+v", cfg.Mailer)
	}
	if len(cfg.Scheduler.Mailings) != 1 || cfg.Scheduler.Mailings[0].CategoryID != 1 {
		t.Fatalf("mailings = %+v", cfg.Scheduler.Mailings)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
telegram:
  token: "123:abc"
  owner_user_ids: [7, 8]
directory:
  driver: postgrest
  url: https://db.example.org
  api_key: secret
source:
  driver: postgrest
  url: https://db.example.org
  api_key: secret
scheduler:
  enabled: true
  mailings:
    - category_id: 2
      schedule: "30m"
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 {
		t.Fatalf("owners = %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Directory.Driver != "postgrest" || cfg.Source.URL != "https://db.example.org" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("DIGEST_TEST_TOKEN", "999:zzz")
	path := writeFile(t, "config.json", `{"telegram": {"token": "${DIGEST_TEST_TOKEN}"}}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "999:zzz" {
		t.Fatalf("token = %q, env not expanded", cfg.Telegram.Token)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegrm": {"token": "x"}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("misspelled section must be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"telegram": {"token": "x"}} {"extra": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing JSON document must be rejected")
	}
}

func TestSubscribePublishDropsOldest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{}
	second := &Config{Telegram: TelegramConfig{Token: "new"}}
	m.publish(first)
	m.publish(second) // buffer full: first is dropped, latest kept

	got := <-ch
	if got.Telegram.Token != "new" {
		t.Fatalf("subscriber should see the newest config, got %+v", got.Telegram)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 200ms "); err != nil || d.Milliseconds() != 200 {
		t.Fatalf("d=%v err=%v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty should be zero, d=%v err=%v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must be rejected")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("junk duration must be rejected")
	}
}
