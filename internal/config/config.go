// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Detector DetectorConfig `mapstructure:"detector"`
	DB       DBConfig       `mapstructure:"db"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication and rate limiting.
type AuthConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	APIKey           string `mapstructure:"api_key"`
	RateLimitPerHour int    `mapstructure:"rate_limit_per_hour"`
}

// CrawlerConfig governs catalog traversal and item dispatch.
type CrawlerConfig struct {
	RootURL               string `mapstructure:"root_url"`
	CrawlerID             string `mapstructure:"crawler_id"`
	Concurrency           int    `mapstructure:"concurrency"`
	ItemAttempts          int    `mapstructure:"item_attempts"`
	ItemRetryDelaySeconds int    `mapstructure:"item_retry_delay_seconds"`
	FailFast              bool   `mapstructure:"fail_fast"`
}

// HTTPConfig configures fetch client timeout and transport retry behavior.
type HTTPConfig struct {
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
	MaxAttempts           int    `mapstructure:"max_attempts"`
	BackoffInitialSeconds int    `mapstructure:"backoff_initial_seconds"`
	BackoffMaxSeconds     int    `mapstructure:"backoff_max_seconds"`
	UserAgent             string `mapstructure:"user_agent"`
}

// DetectorConfig tunes change-significance classification.
type DetectorConfig struct {
	AlertPriceDeltaPct float64 `mapstructure:"alert_price_delta_pct"`
	InStockMarker      string  `mapstructure:"in_stock_marker"`
}

// DBConfig selects and configures the persistence backend.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifyConfig selects the notification sink.
type NotifyConfig struct {
	Provider string         `mapstructure:"provider"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// TelegramConfig holds bot credentials for the Telegram sink.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// PubSubConfig holds metadata for the Pub/Sub sink.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ScheduleConfig holds cron expressions for the periodic jobs.
type ScheduleConfig struct {
	CrawlCron  string `mapstructure:"crawl_cron"`
	DetectCron string `mapstructure:"detect_cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.rate_limit_per_hour", 100)
	v.SetDefault("crawler.root_url", "https://books.toscrape.com/")
	v.SetDefault("crawler.crawler_id", "main")
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.item_attempts", 3)
	v.SetDefault("crawler.item_retry_delay_seconds", 5)
	v.SetDefault("crawler.fail_fast", true)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.max_attempts", 5)
	v.SetDefault("http.backoff_initial_seconds", 1)
	v.SetDefault("http.backoff_max_seconds", 10)
	v.SetDefault("http.user_agent", "books-crawler/1.0")
	v.SetDefault("detector.alert_price_delta_pct", 10)
	v.SetDefault("detector.in_stock_marker", "In stock")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("notify.provider", "log")
	v.SetDefault("schedule.crawl_cron", "0 2 * * *")
	v.SetDefault("schedule.detect_cron", "30 2 * * *")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.RootURL == "" {
		return fmt.Errorf("crawler.root_url is required")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.ItemAttempts <= 0 {
		return fmt.Errorf("crawler.item_attempts must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.DB.Provider {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown db.provider %q", c.DB.Provider)
	}
	switch c.Notify.Provider {
	case "log":
	case "telegram":
		if c.Notify.Telegram.Token == "" || c.Notify.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram.token and chat_id must be set when notify.provider is telegram")
		}
	case "pubsub":
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicName == "" {
			return fmt.Errorf("notify.pubsub.project_id and topic_name must be set when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ItemRetryDelay converts the per-item retry delay config into a duration.
func (c Config) ItemRetryDelay() time.Duration {
	return time.Duration(c.Crawler.ItemRetryDelaySeconds) * time.Second
}
