package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/alicorn/internal/config"
	"github.com/anstrom/alicorn/internal/db"
)

const defaultConfigFile = "config.yaml"

// getConfigFilePath returns the config file viper settled on, or the default.
func getConfigFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return defaultConfigFile
}

// loadConfig reads the config file, applies flag and environment overrides
// and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies every viper key that is set (by a bound flag or an
// ALICORN_* variable) onto cfg.
func applyOverrides(cfg *config.Config) {
	overrideString("database.host", &cfg.Database.Host)
	overrideInt("database.port", &cfg.Database.Port)
	overrideString("database.database", &cfg.Database.Database)
	overrideString("database.username", &cfg.Database.Username)
	overrideString("database.password", &cfg.Database.Password)
	overrideString("database.ssl_mode", &cfg.Database.SSLMode)

	overrideString("api.host", &cfg.API.Host)
	overrideInt("api.port", &cfg.API.Port)
	overrideBool("api.auth_enabled", &cfg.API.AuthEnabled)
	if viper.IsSet("api.api_keys") {
		cfg.API.APIKeys = splitList(viper.GetString("api.api_keys"))
	}

	overrideString("logging.level", &cfg.Logging.Level)
	overrideString("logging.format", &cfg.Logging.Format)
	overrideString("logging.output", &cfg.Logging.Output)

	overrideDuration("comparison.debounce_window", &cfg.Comparison.DebounceWindow)
	overrideDuration("comparison.session_idle_timeout", &cfg.Comparison.SessionIdleTimeout)
	overrideDuration("comparison.cache_ttl", &cfg.Comparison.CacheTTL)
	overrideInt("comparison.max_sessions", &cfg.Comparison.MaxSessions)
}

func overrideString(key string, dst *string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func overrideInt(key string, dst *int) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func overrideBool(key string, dst *bool) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func overrideDuration(key string, dst *time.Duration) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// bindFlags binds command flags to viper keys so they take part in
// applyOverrides. Only flags the user actually set override the config.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if f := fs.Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
			}
		}
	}
}

// DatabaseOperation operates on an open database connection.
type DatabaseOperation func(ctx context.Context, cfg *config.Config, database *db.DB) error

// withDatabase loads the configuration, connects, runs operation and closes
// the connection.
func withDatabase(ctx context.Context, operation DatabaseOperation) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", closeErr)
		}
	}()

	return operation(ctx, cfg, database)
}
