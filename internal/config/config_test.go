package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Test server defaults
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, defaultServerPort)
	}
	if cfg.Server.Host != defaultServerHost {
		t.Errorf("Server.Host = %s, want %s", cfg.Server.Host, defaultServerHost)
	}

	// Test database defaults
	if cfg.Database.Path != defaultDatabasePath {
		t.Errorf("Database.Path = %s, want %s", cfg.Database.Path, defaultDatabasePath)
	}
	if !cfg.Database.EnableWAL {
		t.Errorf("Database.EnableWAL = false, want true")
	}

	// Test logging defaults
	if cfg.Logging.Level != defaultLogLevel {
		t.Errorf("Logging.Level = %s, want %s", cfg.Logging.Level, defaultLogLevel)
	}
	if cfg.Logging.Pretty != defaultLogPretty {
		t.Errorf("Logging.Pretty = %v, want %v", cfg.Logging.Pretty, defaultLogPretty)
	}

	// Test engine defaults
	if cfg.Engine.DefaultItemDuration != defaultItemDuration {
		t.Errorf("Engine.DefaultItemDuration = %v, want %v", cfg.Engine.DefaultItemDuration, defaultItemDuration)
	}
	if cfg.Engine.PositionCacheTTL != defaultPositionCacheTTL {
		t.Errorf("Engine.PositionCacheTTL = %v, want %v", cfg.Engine.PositionCacheTTL, defaultPositionCacheTTL)
	}
	if cfg.Engine.ResetDuration != defaultResetDuration {
		t.Errorf("Engine.ResetDuration = %v, want %v", cfg.Engine.ResetDuration, defaultResetDuration)
	}
	if cfg.Engine.ResetSteps != defaultResetSteps {
		t.Errorf("Engine.ResetSteps = %d, want %d", cfg.Engine.ResetSteps, defaultResetSteps)
	}
	if cfg.Engine.TransitionWarning != defaultTransitionWarning {
		t.Errorf("Engine.TransitionWarning = %v, want %v", cfg.Engine.TransitionWarning, defaultTransitionWarning)
	}
	if cfg.Engine.SessionDebounce != defaultSessionDebounce {
		t.Errorf("Engine.SessionDebounce = %v, want %v", cfg.Engine.SessionDebounce, defaultSessionDebounce)
	}
}

func validTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
		},
		Database: DatabaseConfig{
			Path:              "./data/retrocast.db",
			ConnectionTimeout: defaultDatabaseTimeout,
			EnableWAL:         true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
		Engine: EngineConfig{
			DefaultItemDuration: defaultItemDuration,
			PositionCacheTTL:    defaultPositionCacheTTL,
			ResetDuration:       defaultResetDuration,
			ResetSteps:          defaultResetSteps,
			TransitionWarning:   defaultTransitionWarning,
			SessionDebounce:     defaultSessionDebounce,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid server port (too low)",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid server port (too high)",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "invalid" },
			wantErr: true,
		},
		{
			name:    "invalid database connection timeout",
			mutate:  func(c *Config) { c.Database.ConnectionTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid default item duration",
			mutate:  func(c *Config) { c.Engine.DefaultItemDuration = 0 },
			wantErr: true,
		},
		{
			name:    "invalid position cache TTL",
			mutate:  func(c *Config) { c.Engine.PositionCacheTTL = -time.Second },
			wantErr: true,
		},
		{
			name:    "invalid reset steps",
			mutate:  func(c *Config) { c.Engine.ResetSteps = 0 },
			wantErr: true,
		},
		{
			name:    "invalid reset duration",
			mutate:  func(c *Config) { c.Engine.ResetDuration = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineConfigEnvVars(t *testing.T) {
	// Set environment variables
	_ = os.Setenv("RETROCAST_ENGINE_DEFAULTITEMDURATION", "120s")
	_ = os.Setenv("RETROCAST_ENGINE_POSITIONCACHETTL", "5s")
	_ = os.Setenv("RETROCAST_ENGINE_RESETDURATION", "8s")
	_ = os.Setenv("RETROCAST_ENGINE_RESETSTEPS", "16")
	_ = os.Setenv("RETROCAST_SERVER_PORT", "9090")
	defer func() {
		_ = os.Unsetenv("RETROCAST_ENGINE_DEFAULTITEMDURATION")
		_ = os.Unsetenv("RETROCAST_ENGINE_POSITIONCACHETTL")
		_ = os.Unsetenv("RETROCAST_ENGINE_RESETDURATION")
		_ = os.Unsetenv("RETROCAST_ENGINE_RESETSTEPS")
		_ = os.Unsetenv("RETROCAST_SERVER_PORT")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.DefaultItemDuration != 120*time.Second {
		t.Errorf("Engine.DefaultItemDuration = %v, want 2m0s", cfg.Engine.DefaultItemDuration)
	}
	if cfg.Engine.PositionCacheTTL != 5*time.Second {
		t.Errorf("Engine.PositionCacheTTL = %v, want 5s", cfg.Engine.PositionCacheTTL)
	}
	if cfg.Engine.ResetDuration != 8*time.Second {
		t.Errorf("Engine.ResetDuration = %v, want 8s", cfg.Engine.ResetDuration)
	}
	if cfg.Engine.ResetSteps != 16 {
		t.Errorf("Engine.ResetSteps = %d, want 16", cfg.Engine.ResetSteps)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		name  string
		slice []string
		item  string
		want  bool
	}{
		{
			name:  "item exists",
			slice: []string{"one", "two", "three"},
			item:  "two",
			want:  true,
		},
		{
			name:  "item does not exist",
			slice: []string{"one", "two", "three"},
			item:  "four",
			want:  false,
		},
		{
			name:  "empty slice",
			slice: []string{},
			item:  "one",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contains(tt.slice, tt.item)
			if got != tt.want {
				t.Errorf("contains() = %v, want %v", got, tt.want)
			}
		})
	}
}
