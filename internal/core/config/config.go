package config

import (
	"time"
	_ "time/tzdata"

	"github.com/vietddude/syncwatch/internal/budget"
	redisclient "github.com/vietddude/syncwatch/internal/infra/redis"
	"github.com/vietddude/syncwatch/internal/infra/storage/postgres"
	"github.com/vietddude/syncwatch/internal/notify"
	"github.com/vietddude/syncwatch/internal/recovery"
	"github.com/vietddude/syncwatch/internal/source"
	"github.com/vietddude/syncwatch/internal/syncer"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig         `yaml:"server"`
	Logging   LoggingConfig        `yaml:"logging"`
	RateLimit budget.Limits        `yaml:"rate_limit"`
	Sync      syncer.Config        `yaml:"sync"`
	Retry     recovery.RetryConfig `yaml:"retry"`
	Analytics AnalyticsConfig      `yaml:"analytics"`
	Storage   StorageConfig        `yaml:"storage"`
	Source    source.Config        `yaml:"source"`
	Notify    NotifyConfig         `yaml:"notify"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AnalyticsConfig controls bucketing and history retention.
type AnalyticsConfig struct {
	Timezone  string        `yaml:"timezone"`  // IANA name, empty = local
	Retention time.Duration `yaml:"retention"` // 0 = keep forever
}

// Location resolves Timezone.
func (c AnalyticsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// StorageConfig selects the KV store backing persisted state.
type StorageConfig struct {
	Driver   string             `yaml:"driver"` // memory, redis, postgres
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// NotifyConfig enables notification channels. The log channel is always on.
type NotifyConfig struct {
	Redis NotifyRedisConfig  `yaml:"redis"`
	Kafka notify.KafkaConfig `yaml:"kafka"`
}

// NotifyRedisConfig publishes over the storage redis connection.
type NotifyRedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}
