package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/syncwatch/internal/budget"
	"github.com/vietddude/syncwatch/internal/recovery"
	"github.com/vietddude/syncwatch/internal/source"
	"github.com/vietddude/syncwatch/internal/syncer"
)

const defaultRetention = 90 * 24 * time.Hour

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	limits := budget.DefaultLimits()
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = limits.PerMinute
	}
	if cfg.RateLimit.Hourly == 0 {
		cfg.RateLimit.Hourly = limits.Hourly
	}
	if cfg.RateLimit.Daily == 0 {
		cfg.RateLimit.Daily = limits.Daily
	}

	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = syncer.DefaultInterval
	}
	if cfg.Sync.StaleAfter == 0 {
		cfg.Sync.StaleAfter = syncer.DefaultStaleAfter
	}
	if cfg.Sync.RetryKey == "" {
		cfg.Sync.RetryKey = syncer.DefaultRetryKey
	}

	retry := recovery.DefaultRetryConfig()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = retry.MaxAttempts
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = retry.Delay
	}

	if cfg.Analytics.Retention == 0 {
		cfg.Analytics.Retention = defaultRetention
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = source.KindNone
	}
}

// Validate rejects settings the components cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.Redis.URL == "" {
			return fmt.Errorf("storage.redis.url is required for the redis driver")
		}
	case DriverPostgres:
		if c.Storage.Database.URL == "" {
			return fmt.Errorf("storage.database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.RateLimit.PerMinute < 0 || c.RateLimit.Hourly < 0 || c.RateLimit.Daily < 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}
	if c.Source.FailureRate < 0 || c.Source.FailureRate > 1 {
		return fmt.Errorf("source.failure_rate must be within [0, 1]")
	}
	if c.Notify.Redis.Enabled && c.Storage.Driver != DriverRedis {
		return fmt.Errorf("notify.redis requires the redis storage driver")
	}
	if c.Notify.Kafka.Topic != "" && len(c.Notify.Kafka.Brokers) == 0 {
		return fmt.Errorf("notify.kafka.brokers is required when a topic is set")
	}
	if _, err := c.Analytics.Location(); err != nil {
		return fmt.Errorf("invalid analytics.timezone: %w", err)
	}
	return nil
}
