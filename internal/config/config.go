// Package config provides configuration management for m3undle using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort          = 8080
	defaultReadTimeout         = 30 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultMaxOpenConns        = 25
	defaultMaxIdleConns        = 10
	defaultConnMaxIdleTime     = 30 * time.Minute
	defaultIntervalHours       = 4
	defaultTimeoutMinutes      = 5
	defaultStartupDelaySeconds = 30
	defaultRetentionCount      = 3
	defaultRetryAttempts       = 3
	defaultRetryDelay          = 1 * time.Second
	defaultRetryMaxDelay       = 30 * time.Second
	defaultCircuitThreshold    = 5
	defaultCircuitTimeout      = 30 * time.Second
	defaultOutputName          = "m3undle"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Output   OutputConfig   `mapstructure:"output"`
}

// ServerConfig holds HTTP server configuration.
// There is deliberately no write timeout: /stream responses stay open for as
// long as the client keeps watching.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
// Path is used by the sqlite driver; Host/Port/Name/User/Password by
// postgres and mysql.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"` // sqlite, postgres, mysql
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format        string `mapstructure:"format"` // json, text
	AddSource     bool   `mapstructure:"add_source"`
	TimeFormat    string `mapstructure:"time_format"`
	RedactSecrets bool   `mapstructure:"redact_secrets"`
	LogRequests   bool   `mapstructure:"log_requests"`
}

// RefreshConfig holds catalog refresh scheduling configuration.
type RefreshConfig struct {
	IntervalHours       int    `mapstructure:"interval_hours"`
	TimeoutMinutes      int    `mapstructure:"timeout_minutes"`
	StartupDelaySeconds int    `mapstructure:"startup_delay_seconds"`
	Cron                string `mapstructure:"cron"` // when set, supersedes interval_hours
}

// Interval returns the periodic refresh interval.
func (c *RefreshConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// Timeout returns the per-run deadline.
func (c *RefreshConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// StartupDelay returns the delay before the initial refresh after boot.
func (c *RefreshConfig) StartupDelay() time.Duration {
	return time.Duration(c.StartupDelaySeconds) * time.Second
}

// SnapshotConfig holds snapshot artifact storage configuration.
type SnapshotConfig struct {
	RetentionCount int    `mapstructure:"retention_count"`
	Directory      string `mapstructure:"directory"`
}

// IngestConfig holds provider fetch configuration.
type IngestConfig struct {
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	CircuitThreshold int           `mapstructure:"circuit_threshold"`
	CircuitTimeout   time.Duration `mapstructure:"circuit_timeout"`
	// MaxResponseSize limits playlist/guide payloads after decompression.
	// Supports human-readable values like "100MB". Zero disables the limit.
	MaxResponseSize ByteSize `mapstructure:"max_response_size"`
	// UserAgent overrides the default m3undle/<version> header on
	// provider requests.
	UserAgent string `mapstructure:"user_agent"`
}

// OutputConfig holds published lineup configuration.
type OutputConfig struct {
	DefaultOutputName string `mapstructure:"default_output_name"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with M3UNDLE_ and use underscores for
// nesting. Example: M3UNDLE_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/m3undle")
		v.AddConfigPath("$HOME/.m3undle")
	}

	// Environment variable settings
	v.SetEnvPrefix("M3UNDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./data/m3undle.db")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.redact_secrets", true)
	v.SetDefault("logging.log_requests", true)

	// Refresh defaults
	v.SetDefault("refresh.interval_hours", defaultIntervalHours)
	v.SetDefault("refresh.timeout_minutes", defaultTimeoutMinutes)
	v.SetDefault("refresh.startup_delay_seconds", defaultStartupDelaySeconds)
	v.SetDefault("refresh.cron", "")

	// Snapshot defaults
	v.SetDefault("snapshot.retention_count", defaultRetentionCount)
	v.SetDefault("snapshot.directory", "./data/snapshots")

	// Ingest defaults
	v.SetDefault("ingest.retry_attempts", defaultRetryAttempts)
	v.SetDefault("ingest.retry_delay", defaultRetryDelay)
	v.SetDefault("ingest.retry_max_delay", defaultRetryMaxDelay)
	v.SetDefault("ingest.circuit_threshold", defaultCircuitThreshold)
	v.SetDefault("ingest.circuit_timeout", defaultCircuitTimeout)
	v.SetDefault("ingest.max_response_size", 0)
	v.SetDefault("ingest.user_agent", "")

	// Output defaults
	v.SetDefault("output.default_output_name", defaultOutputName)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for %s", c.Database.Type)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required for %s", c.Database.Type)
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for %s", c.Database.Type)
		}
	default:
		return fmt.Errorf("database.type must be one of: sqlite, postgres, mysql")
	}
	validDBLogLevels := map[string]bool{"silent": true, "error": true, "warn": true, "info": true}
	if !validDBLogLevels[c.Database.LogLevel] {
		return fmt.Errorf("database.log_level must be one of: silent, error, warn, info")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns must not be negative")
	}

	// Logging validation
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Refresh validation
	if c.Refresh.IntervalHours < 1 {
		return fmt.Errorf("refresh.interval_hours must be at least 1")
	}
	if c.Refresh.TimeoutMinutes < 1 {
		return fmt.Errorf("refresh.timeout_minutes must be at least 1")
	}
	if c.Refresh.StartupDelaySeconds < 0 {
		return fmt.Errorf("refresh.startup_delay_seconds must not be negative")
	}

	// Snapshot validation
	if c.Snapshot.RetentionCount < 1 {
		return fmt.Errorf("snapshot.retention_count must be at least 1")
	}
	if c.Snapshot.Directory == "" {
		return fmt.Errorf("snapshot.directory is required")
	}

	// Ingest validation
	if c.Ingest.RetryAttempts < 0 {
		return fmt.Errorf("ingest.retry_attempts must not be negative")
	}
	if c.Ingest.CircuitThreshold < 1 {
		return fmt.Errorf("ingest.circuit_threshold must be at least 1")
	}

	// Output validation
	if c.Output.DefaultOutputName == "" {
		return fmt.Errorf("output.default_output_name is required")
	}
	if strings.ContainsAny(c.Output.DefaultOutputName, "/\\ \t") {
		return fmt.Errorf("output.default_output_name must not contain separators or whitespace")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Redacted returns a copy of the config with secrets blanked, suitable for
// dumping or logging.
func (c *Config) Redacted() Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = "[REDACTED]"
	}
	return out
}
