// Package config loads and validates the alicorn configuration file.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/alicorn/internal/db"
	"github.com/anstrom/alicorn/internal/errors"
	"github.com/anstrom/alicorn/internal/logging"
)

// Config represents the complete service configuration
type Config struct {
	// Database configuration
	Database db.Config `yaml:"database" json:"database"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Comparison session configuration
	Comparison ComparisonConfig `yaml:"comparison" json:"comparison"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" json:"max_header_bytes"`
	MaxRequestSize int64         `yaml:"max_request_size" json:"max_request_size"`

	// CORS
	EnableCORS  bool     `yaml:"enable_cors" json:"enable_cors"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// API key authentication
	AuthEnabled bool     `yaml:"auth_enabled" json:"auth_enabled"`
	APIKeys     []string `yaml:"api_keys" json:"-"`

	// Per-client rate limiting
	RateLimitEnabled  bool          `yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RateLimitRequests int           `yaml:"rate_limit_requests" json:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window" json:"rate_limit_window"`
}

// Address returns the host:port the API listens on.
func (a APIConfig) Address() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Include source locations
	AddSource bool `yaml:"add_source" json:"add_source"`

	// Log file rotation
	Rotation logging.RotationConfig `yaml:"rotation" json:"rotation"`

	// Enable request logging for API
	RequestLogging bool `yaml:"request_logging" json:"request_logging"`
}

// LoggerConfig converts the settings into a logging.Config.
func (l LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(l.Level),
		Format:    logging.LogFormat(l.Format),
		Output:    l.Output,
		AddSource: l.AddSource,
		Rotation:  l.Rotation,
	}
}

// ComparisonConfig holds comparison session settings
type ComparisonConfig struct {
	// Quiet period after the last note edit before it is saved
	DebounceWindow time.Duration `yaml:"debounce_window" json:"debounce_window"`

	// Sessions untouched for this long are closed without saving
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout" json:"session_idle_timeout"`

	// Cron spec for the idle-session sweep
	JanitorSchedule string `yaml:"janitor_schedule" json:"janitor_schedule"`

	// How long fetched comparison data is reused (0 disables caching)
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// Upper bound on concurrently open sessions (0 means unlimited)
	MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	logDefaults := logging.DefaultConfig()

	return &Config{
		Database: db.DefaultConfig(),
		API: APIConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			RequestTimeout:    30 * time.Second,
			MaxHeaderBytes:    1 << 20,
			MaxRequestSize:    1 << 20,
			EnableCORS:        true,
			CORSOrigins:       []string{"*"},
			AuthEnabled:       false,
			APIKeys:           []string{},
			RateLimitEnabled:  true,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:          string(logDefaults.Level),
			Format:         string(logDefaults.Format),
			Output:         logDefaults.Output,
			Rotation:       logDefaults.Rotation,
			RequestLogging: true,
		},
		Comparison: ComparisonConfig{
			DebounceWindow:     500 * time.Millisecond,
			SessionIdleTimeout: 30 * time.Minute,
			JanitorSchedule:    "@every 1m",
			CacheTTL:           30 * time.Second,
			MaxSessions:        1000,
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// YAML is a superset of JSON, so one decoder serves both extensions.
	if err := yaml.Unmarshal(data, config); err != nil {
		switch filepath.Ext(path) {
		case ".json":
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		default:
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.ErrConfigMissing("database.host")
	}
	if c.Database.Database == "" {
		return errors.ErrConfigMissing("database.database")
	}
	if c.Database.Username == "" {
		return errors.ErrConfigMissing("database.username")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return errors.ErrConfigInvalid("api.port", c.API.Port)
	}
	if c.API.Host == "" {
		return errors.ErrConfigMissing("api.host")
	}
	if c.API.AuthEnabled && len(c.API.APIKeys) == 0 {
		return errors.ErrConfigMissing("api.api_keys")
	}
	if c.API.RateLimitEnabled && (c.API.RateLimitRequests <= 0 || c.API.RateLimitWindow <= 0) {
		return errors.ErrConfigInvalid("api.rate_limit_requests", c.API.RateLimitRequests)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return errors.ErrConfigInvalid("logging.level", c.Logging.Level)
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Logging.Format] {
		return errors.ErrConfigInvalid("logging.format", c.Logging.Format)
	}

	return c.Comparison.Validate()
}

// Validate checks the comparison settings.
func (c ComparisonConfig) Validate() error {
	if c.DebounceWindow <= 0 {
		return errors.ErrConfigInvalid("comparison.debounce_window", c.DebounceWindow)
	}
	if c.SessionIdleTimeout <= 0 {
		return errors.ErrConfigInvalid("comparison.session_idle_timeout", c.SessionIdleTimeout)
	}
	if c.CacheTTL < 0 {
		return errors.ErrConfigInvalid("comparison.cache_ttl", c.CacheTTL)
	}
	if c.MaxSessions < 0 {
		return errors.ErrConfigInvalid("comparison.max_sessions", c.MaxSessions)
	}
	if _, err := cron.ParseStandard(c.JanitorSchedule); err != nil {
		return errors.ErrConfigInvalid("comparison.janitor_schedule", c.JanitorSchedule)
	}
	return nil
}
