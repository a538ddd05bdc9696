package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Type:         "sqlite",
			Path:         "test.db",
			MaxOpenConns: 25,
			MaxIdleConns: 10,
			LogLevel:     "warn",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Refresh: RefreshConfig{
			IntervalHours:       4,
			TimeoutMinutes:      5,
			StartupDelaySeconds: 30,
		},
		Snapshot: SnapshotConfig{
			RetentionCount: 3,
			Directory:      "./data/snapshots",
		},
		Ingest: IngestConfig{
			RetryAttempts:    3,
			CircuitThreshold: 5,
		},
		Output: OutputConfig{DefaultOutputName: "m3undle"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Load without config file should use defaults
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "", cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	// Database defaults
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./data/m3undle.db", cfg.Database.Path)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Logging.RedactSecrets)
	assert.True(t, cfg.Logging.LogRequests)

	// Refresh defaults
	assert.Equal(t, 4, cfg.Refresh.IntervalHours)
	assert.Equal(t, 5, cfg.Refresh.TimeoutMinutes)
	assert.Equal(t, 30, cfg.Refresh.StartupDelaySeconds)
	assert.Equal(t, "", cfg.Refresh.Cron)

	// Snapshot defaults
	assert.Equal(t, 3, cfg.Snapshot.RetentionCount)
	assert.Equal(t, "./data/snapshots", cfg.Snapshot.Directory)

	// Ingest defaults
	assert.Equal(t, 3, cfg.Ingest.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Ingest.RetryDelay)
	assert.Equal(t, 5, cfg.Ingest.CircuitThreshold)
	assert.Equal(t, ByteSize(0), cfg.Ingest.MaxResponseSize)

	// Output defaults
	assert.Equal(t, "m3undle", cfg.Output.DefaultOutputName)
}

func TestLoad_FromFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090
  base_url: "http://iptv.example.com"

database:
  type: "postgres"
  host: "localhost"
  name: "m3undle"
  user: "m3undle"
  password: "secret"

logging:
  level: "debug"
  format: "text"

refresh:
  interval_hours: 12
  cron: "0 2 * * *"

snapshot:
  retention_count: 5
  directory: "/var/lib/m3undle/snapshots"

ingest:
  max_response_size: "100MB"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Check file values were loaded
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://iptv.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "m3undle", cfg.Database.Name)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 12, cfg.Refresh.IntervalHours)
	assert.Equal(t, "0 2 * * *", cfg.Refresh.Cron)
	assert.Equal(t, 5, cfg.Snapshot.RetentionCount)
	assert.Equal(t, "/var/lib/m3undle/snapshots", cfg.Snapshot.Directory)
	assert.Equal(t, ByteSize(100*1024*1024), cfg.Ingest.MaxResponseSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	// Set environment variables
	t.Setenv("M3UNDLE_SERVER_PORT", "3000")
	t.Setenv("M3UNDLE_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("M3UNDLE_LOGGING_LEVEL", "warn")
	t.Setenv("M3UNDLE_REFRESH_INTERVAL_HOURS", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Check env overrides
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Refresh.IntervalHours)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 8080
database:
  type: "sqlite"
  path: "test.db"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	// Set env var to override file
	t.Setenv("M3UNDLE_SERVER_PORT", "9000")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Env should override file
	assert.Equal(t, 9000, cfg.Server.Port)
	// File value should be preserved
	assert.Equal(t, "test.db", cfg.Database.Path)
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validTestConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"port too high", 70000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Server.Port = tt.port
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "server.port")
		})
	}
}

func TestValidate_DatabaseConfig(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{"invalid type", func(c *Config) { c.Database.Type = "oracle" }, "database.type"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"postgres without host", func(c *Config) {
			c.Database.Type = "postgres"
			c.Database.Name = "m3undle"
			c.Database.User = "m3undle"
		}, "database.host"},
		{"postgres without name", func(c *Config) {
			c.Database.Type = "postgres"
			c.Database.Host = "localhost"
			c.Database.User = "m3undle"
		}, "database.name"},
		{"mysql without user", func(c *Config) {
			c.Database.Type = "mysql"
			c.Database.Host = "localhost"
			c.Database.Name = "m3undle"
		}, "database.user"},
		{"invalid db log level", func(c *Config) { c.Database.LogLevel = "debug" }, "database.log_level"},
		{"zero max open conns", func(c *Config) { c.Database.MaxOpenConns = 0 }, "database.max_open_conns"},
		{"negative max idle conns", func(c *Config) { c.Database.MaxIdleConns = -1 }, "database.max_idle_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "invalid"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_TraceLogLevel(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "trace"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidate_RefreshConfig(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{"zero interval", func(c *Config) { c.Refresh.IntervalHours = 0 }, "refresh.interval_hours"},
		{"zero timeout", func(c *Config) { c.Refresh.TimeoutMinutes = 0 }, "refresh.timeout_minutes"},
		{"negative startup delay", func(c *Config) { c.Refresh.StartupDelaySeconds = -1 }, "refresh.startup_delay_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate_SnapshotConfig(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{"zero retention", func(c *Config) { c.Snapshot.RetentionCount = 0 }, "snapshot.retention_count"},
		{"empty directory", func(c *Config) { c.Snapshot.Directory = "" }, "snapshot.directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate_IngestConfig(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{"negative retry attempts", func(c *Config) { c.Ingest.RetryAttempts = -1 }, "ingest.retry_attempts"},
		{"zero circuit threshold", func(c *Config) { c.Ingest.CircuitThreshold = 0 }, "ingest.circuit_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate_OutputConfig(t *testing.T) {
	tests := []struct {
		name string
		val  string
	}{
		{"empty", ""},
		{"with slash", "a/b"},
		{"with backslash", `a\b`},
		{"with space", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Output.DefaultOutputName = tt.val
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "output.default_output_name")
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{"localhost", "127.0.0.1", 8080, "127.0.0.1:8080"},
		{"all interfaces", "0.0.0.0", 3000, "0.0.0.0:3000"},
		{"hostname", "example.com", 443, "example.com:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ServerConfig{Host: tt.host, Port: tt.port}
			assert.Equal(t, tt.expected, cfg.Address())
		})
	}
}

func TestRefreshConfig_Durations(t *testing.T) {
	cfg := &RefreshConfig{IntervalHours: 4, TimeoutMinutes: 5, StartupDelaySeconds: 30}

	assert.Equal(t, 4*time.Hour, cfg.Interval())
	assert.Equal(t, 5*time.Minute, cfg.Timeout())
	assert.Equal(t, 30*time.Second, cfg.StartupDelay())
}

func TestConfig_Redacted(t *testing.T) {
	cfg := validTestConfig()
	cfg.Database.Password = "super-secret"

	redacted := cfg.Redacted()
	assert.Equal(t, "[REDACTED]", redacted.Database.Password)
	// Original untouched
	assert.Equal(t, "super-secret", cfg.Database.Password)

	// Empty passwords stay empty
	cfg.Database.Password = ""
	assert.Equal(t, "", cfg.Redacted().Database.Password)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	// Create an invalid YAML file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidContent := `
server:
  port: "not a number"
  invalid yaml structure
`
	err := os.WriteFile(configPath, []byte(invalidContent), 0o600)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
}

func TestLoad_NonExistentFile(t *testing.T) {
	// Specifying a non-existent file should fail
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestConfig_AllDatabaseTypes(t *testing.T) {
	tests := []struct {
		dbType string
		modify func(*Config)
	}{
		{"sqlite", func(c *Config) {}},
		{"postgres", func(c *Config) {
			c.Database.Host = "localhost"
			c.Database.Name = "m3undle"
			c.Database.User = "m3undle"
		}},
		{"mysql", func(c *Config) {
			c.Database.Host = "localhost"
			c.Database.Name = "m3undle"
			c.Database.User = "m3undle"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Database.Type = tt.dbType
			tt.modify(cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}
