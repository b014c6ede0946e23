package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.Concurrency != 8 {
		t.Fatalf("expected default concurrency 8, got %d", cfg.Crawler.Concurrency)
	}
	if cfg.Crawler.CrawlerID != "main" {
		t.Fatalf("expected crawler id 'main', got %q", cfg.Crawler.CrawlerID)
	}
	if !cfg.Crawler.FailFast {
		t.Fatalf("expected fail_fast to default to true")
	}
	if cfg.HTTP.MaxAttempts != 5 || cfg.HTTP.BackoffInitialSeconds != 1 || cfg.HTTP.BackoffMaxSeconds != 10 {
		t.Fatalf("unexpected http retry defaults: %+v", cfg.HTTP)
	}
	if cfg.Detector.AlertPriceDeltaPct != 10 {
		t.Fatalf("expected alert threshold 10, got %v", cfg.Detector.AlertPriceDeltaPct)
	}
	if cfg.DB.Provider != "memory" {
		t.Fatalf("expected memory db provider, got %q", cfg.DB.Provider)
	}
	if got := cfg.FetchTimeout(); got != 20*time.Second {
		t.Fatalf("expected fetch timeout 20s, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
  rate_limit_per_hour: 50
crawler:
  root_url: https://catalog.example.com/
  crawler_id: staging
  concurrency: 4
  item_attempts: 2
  item_retry_delay_seconds: 1
  fail_fast: false
http:
  timeout_seconds: 45
  max_attempts: 3
db:
  provider: postgres
  dsn: postgres://localhost/books
notify:
  provider: log
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" || cfg.Auth.RateLimitPerHour != 50 {
		t.Fatalf("expected auth overrides to apply: %+v", cfg.Auth)
	}
	if cfg.Crawler.RootURL != "https://catalog.example.com/" || cfg.Crawler.FailFast {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.DB.Provider != "postgres" || cfg.DB.DSN != "postgres://localhost/books" {
		t.Fatalf("expected db overrides to apply: %+v", cfg.DB)
	}
	if got := cfg.ItemRetryDelay(); got != time.Second {
		t.Fatalf("expected item retry delay 1s, got %v", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"empty root url", func(c *Config) { c.Crawler.RootURL = "" }, "root_url"},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }, "api_key"},
		{"postgres without dsn", func(c *Config) { c.DB.Provider = "postgres" }, "db.dsn"},
		{"unknown notifier", func(c *Config) { c.Notify.Provider = "smoke-signal" }, "notify.provider"},
		{"telegram without token", func(c *Config) { c.Notify.Provider = "telegram" }, "telegram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(&cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tt.wantSub, err)
			}
		})
	}
}
