// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort         = 8080
	defaultServerHost         = "0.0.0.0"
	defaultReadTimeout        = 30 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultDatabasePath       = "./data/retrocast.db"
	defaultDatabaseTimeout    = 5 * time.Second
	defaultLogLevel           = "info"
	defaultLogPretty          = false
	defaultItemDuration       = 300 * time.Second
	defaultPositionCacheTTL   = 3 * time.Second
	defaultResetDuration      = 5 * time.Second
	defaultResetSteps         = 10
	defaultTransitionWarning  = 60 * time.Second
	defaultSessionDebounce    = 500 * time.Millisecond
	envPrefix                 = "RETROCAST"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// EngineConfig holds broadcast engine tuning knobs
type EngineConfig struct {
	// DefaultItemDuration replaces missing or non-positive video durations
	// when a channel snapshot is built.
	DefaultItemDuration time.Duration

	// PositionCacheTTL bounds how stale a served position may be.
	PositionCacheTTL time.Duration

	// ResetDuration and ResetSteps control the gradual decay of a channel
	// offset back to the shared schedule.
	ResetDuration time.Duration
	ResetSteps    int

	// TransitionWarning marks positions as transitioning when the next
	// time slot is closer than this.
	TransitionWarning time.Duration

	// SessionDebounce delays viewer session writes to coalesce bursts.
	SessionDebounce time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/retrocast")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseTimeout)
	v.SetDefault("database.enablewal", true)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("engine.defaultitemduration", defaultItemDuration)
	v.SetDefault("engine.positioncachettl", defaultPositionCacheTTL)
	v.SetDefault("engine.resetduration", defaultResetDuration)
	v.SetDefault("engine.resetsteps", defaultResetSteps)
	v.SetDefault("engine.transitionwarning", defaultTransitionWarning)
	v.SetDefault("engine.sessiondebounce", defaultSessionDebounce)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Engine.DefaultItemDuration <= 0 {
		return fmt.Errorf("invalid default item duration: %v (must be > 0)", c.Engine.DefaultItemDuration)
	}
	if c.Engine.PositionCacheTTL <= 0 {
		return fmt.Errorf("invalid position cache TTL: %v (must be > 0)", c.Engine.PositionCacheTTL)
	}
	if c.Engine.ResetSteps < 1 {
		return fmt.Errorf("invalid reset steps: %d (must be >= 1)", c.Engine.ResetSteps)
	}
	if c.Engine.ResetDuration <= 0 {
		return fmt.Errorf("invalid reset duration: %v (must be > 0)", c.Engine.ResetDuration)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
