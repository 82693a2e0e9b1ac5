package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct populates each section of cfg from its tagged fields.
func loadStruct(cfg reflect.Value) error {
	for i := 0; i < cfg.NumField(); i++ {
		if err := loadSection(cfg.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func loadSection(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = os.Getenv(alt)
			}
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setField parses value into a string, int, bool or time.Duration field.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(int64(n))

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Kobo validation
	if c.Kobo.DataURL == "" {
		errs = append(errs, "KOBO_DATA_URL is required")
	} else if u, err := url.Parse(c.Kobo.DataURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("KOBO_DATA_URL (%q) must be an absolute URL", c.Kobo.DataURL))
	}
	if c.Kobo.Token == "" {
		errs = append(errs, "KOBO_TOKEN is required")
	}
	if c.Kobo.PageSize <= 0 {
		errs = append(errs, "KOBO_PAGE_SIZE must be positive")
	}
	if c.Kobo.Timeout <= 0 {
		errs = append(errs, "KOBO_TIMEOUT must be positive")
	}
	if c.Kobo.MaxRetries < 0 {
		errs = append(errs, "KOBO_MAX_RETRIES must be non-negative")
	}
	if c.Kobo.RetryInitial > c.Kobo.RetryMax {
		errs = append(errs, fmt.Sprintf("KOBO_RETRY_INITIAL (%s) must be <= KOBO_RETRY_MAX (%s)",
			c.Kobo.RetryInitial, c.Kobo.RetryMax))
	}

	// Store validation
	switch strings.ToLower(c.Store.Driver) {
	case DriverDuckDB, DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, "STORE_DSN is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: duckdb, postgres, memory", c.Store.Driver))
	}
	if c.Store.MaxConns < c.Store.MinConns {
		errs = append(errs, fmt.Sprintf("STORE_MAX_CONNS (%d) must be >= STORE_MIN_CONNS (%d)",
			c.Store.MaxConns, c.Store.MinConns))
	}
	if c.Store.MaxConns <= 0 {
		errs = append(errs, "STORE_MAX_CONNS must be positive")
	}
	if c.Store.MinConns < 0 {
		errs = append(errs, "STORE_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < c.Sync.Timeout {
		errs = append(errs, fmt.Sprintf("SERVER_WRITE_TIMEOUT (%s) must be 0 or >= SYNC_TIMEOUT (%s)",
			c.Server.WriteTimeout, c.Sync.Timeout))
	}

	// Sync validation
	if c.Sync.Timeout <= 0 {
		errs = append(errs, "SYNC_TIMEOUT must be positive")
	}
	if c.Sync.ScheduleEnabled && c.Sync.Interval <= 0 {
		errs = append(errs, "SYNC_INTERVAL must be positive when the schedule is enabled")
	}

	// Lock validation
	if c.Lock.TTL <= 0 {
		errs = append(errs, "LOCK_TTL must be positive")
	}
	if c.Lock.UsesRedis() && c.Lock.TTL < c.Sync.Timeout {
		errs = append(errs, fmt.Sprintf("LOCK_TTL (%s) must be >= SYNC_TIMEOUT (%s)", c.Lock.TTL, c.Sync.Timeout))
	}
	if c.Lock.Wait < 0 {
		errs = append(errs, "LOCK_WAIT must be non-negative")
	}

	// Quality validation
	if c.Quality.DefaultLimit <= 0 {
		errs = append(errs, "QUALITY_DEFAULT_LIMIT must be positive")
	}
	if c.Quality.MaxLimit < c.Quality.DefaultLimit {
		errs = append(errs, fmt.Sprintf("QUALITY_MAX_LIMIT (%d) must be >= QUALITY_DEFAULT_LIMIT (%d)",
			c.Quality.MaxLimit, c.Quality.DefaultLimit))
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// StorePath returns the DSN to open, substituting the default duckdb file.
func (c *StoreConfig) StorePath() string {
	if c.DSN == "" && strings.ToLower(c.Driver) == DriverDuckDB {
		return DefaultDuckDBPath
	}
	return c.DSN
}

// String returns a safe string representation of the config for logging.
// Tokens, passwords and connection strings are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Kobo: {DataURL: %q, Token: %s, PageSize: %d, MaxRetries: %d}, ",
		c.Kobo.DataURL, mask(c.Kobo.Token), c.Kobo.PageSize, c.Kobo.MaxRetries))
	dsn := c.Store.DSN
	if strings.ToLower(c.Store.Driver) == DriverPostgres {
		dsn = mask(dsn)
	}
	b.WriteString(fmt.Sprintf("Store: {Driver: %q, DSN: %s, MaxConns: %d, MinConns: %d}, ",
		c.Store.Driver, dsn, c.Store.MaxConns, c.Store.MinConns))
	b.WriteString(fmt.Sprintf("Sync: {Timeout: %s, Schedule: %v, Interval: %s}, ",
		c.Sync.Timeout, c.Sync.ScheduleEnabled, c.Sync.Interval))
	b.WriteString(fmt.Sprintf("Lock: {Redis: %q, Password: %s}, ",
		c.Lock.RedisAddress, mask(c.Lock.RedisPassword)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return `""`
	}
	return "[MASKED]"
}
