// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	Kobo    KoboConfig
	Store   StoreConfig
	Sync    SyncConfig
	Lock    LockConfig
	Quality QualityConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response. A full
	// sync answers only when the pass ends, so this must exceed SYNC_TIMEOUT
	// or be 0 (default: 0)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds read-only API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// KoboConfig holds the submission source settings.
type KoboConfig struct {
	// DataURL is the form's data endpoint (required)
	DataURL string `env:"KOBO_DATA_URL" required:"true"`

	// Token is the API token (required)
	Token string `env:"KOBO_TOKEN" required:"true"`

	// AuthScheme prefixes the token in the Authorization header (default: Token)
	AuthScheme string `env:"KOBO_AUTH_SCHEME" default:"Token"`

	// PageSize is the number of submissions requested per page (default: 1000)
	PageSize int `env:"KOBO_PAGE_SIZE" default:"1000"`

	// Timeout bounds a single page request (default: 30s)
	Timeout time.Duration `env:"KOBO_TIMEOUT" default:"30s"`

	// MaxRetries is how often a failed fetch is restarted (default: 3)
	MaxRetries int `env:"KOBO_MAX_RETRIES" default:"3"`

	// RetryInitial is the first backoff interval (default: 2s)
	RetryInitial time.Duration `env:"KOBO_RETRY_INITIAL" default:"2s"`

	// RetryMax caps the backoff interval (default: 30s)
	RetryMax time.Duration `env:"KOBO_RETRY_MAX" default:"30s"`
}

// StoreConfig holds backing store settings.
type StoreConfig struct {
	// Driver selects the store: duckdb, postgres or memory (default: duckdb)
	Driver string `env:"STORE_DRIVER" default:"duckdb"`

	// DSN is the duckdb file path or PostgreSQL connection string.
	// DATABASE_URL is accepted for compatibility.
	DSN string `env:"STORE_DSN" envAlt:"DATABASE_URL"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int `env:"STORE_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"STORE_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"STORE_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"STORE_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Store drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DefaultDuckDBPath is used when STORE_DSN is empty for the duckdb driver.
const DefaultDuckDBPath = "kobosync.duckdb"

// SyncConfig holds sync pass settings.
type SyncConfig struct {
	// Timeout bounds one pass, fetch included (default: 30m)
	Timeout time.Duration `env:"SYNC_TIMEOUT" default:"30m"`

	// CheckQuality validates every synced batch and stores its issues (default: true)
	CheckQuality bool `env:"SYNC_CHECK_QUALITY" default:"true"`

	// ScheduleEnabled runs incremental syncs in the background (default: true)
	ScheduleEnabled bool `env:"SYNC_SCHEDULE_ENABLED" default:"true"`

	// Interval is the scheduled sync period (default: 24h)
	Interval time.Duration `env:"SYNC_INTERVAL" default:"24h"`

	// RunOnStart syncs once when the server starts (default: false)
	RunOnStart bool `env:"SYNC_RUN_ON_START" default:"false"`
}

// LockConfig holds pass lock settings. An empty RedisAddress selects an
// in-process lock.
type LockConfig struct {
	RedisAddress  string        `env:"REDIS_ADDRESS"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" default:"0"`
	TTL           time.Duration `env:"LOCK_TTL" default:"30m"`
	Wait          time.Duration `env:"LOCK_WAIT" default:"5s"`
}

// QualityConfig holds issue listing settings.
type QualityConfig struct {
	// DefaultLimit is the page size when none is requested (default: 100)
	DefaultLimit int `env:"QUALITY_DEFAULT_LIMIT" default:"100"`

	// MaxLimit caps a requested page size (default: 1000)
	MaxLimit int `env:"QUALITY_MAX_LIMIT" default:"1000"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// UsesRedis reports whether the pass lock is shared through Redis.
func (c *LockConfig) UsesRedis() bool {
	return c.RedisAddress != ""
}
