// Package config loads application configuration from file and environment
// and owns global logger initialization.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Memory    MemoryConfig    `yaml:"memory" mapstructure:"memory"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DetectionConfig tunes the detection orchestrator.
type DetectionConfig struct {
	SearchRadiusMeters  float64 `yaml:"search_radius_meters" mapstructure:"search_radius_meters"`
	PositionTimeoutSecs int     `yaml:"position_timeout_secs" mapstructure:"position_timeout_secs"`
	RadioTimeoutSecs    int     `yaml:"radio_timeout_secs" mapstructure:"radio_timeout_secs"`

	// ConfirmedFloor is the minimum current confidence at which a
	// previously-confirmed store is silently accepted. Zero trusts the
	// user's prior confirmation unconditionally.
	ConfirmedFloor int `yaml:"confirmed_floor" mapstructure:"confirmed_floor"`

	// WatchIntervalSecs is the tick period for continuous mode.
	WatchIntervalSecs int `yaml:"watch_interval_secs" mapstructure:"watch_interval_secs"`
}

// DirectoryConfig selects the store-directory backend.
type DirectoryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MemoryConfig configures the confirmed-store/favorites database.
type MemoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ProvidersConfig configures the position and radio sources.
type ProvidersConfig struct {
	// PositionURL, when set, enables the HTTP position provider (a device
	// or gateway that serves the latest fix).
	PositionURL string `yaml:"position_url" mapstructure:"position_url"`

	// NmcliPath is the nmcli binary used for radio scans. Empty disables
	// the nmcli provider.
	NmcliPath string `yaml:"nmcli_path" mapstructure:"nmcli_path"`

	// FixturePath, when set, serves both signals from a JSON fixture file.
	// Takes precedence over the live providers; meant for CLI runs and
	// replaying captured scans.
	FixturePath string `yaml:"fixture_path" mapstructure:"fixture_path"`
}

// ServerConfig configures the detection HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// RateLimitPerSec bounds per-client request rate; zero disables.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STORESENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("detection.search_radius_meters", 1000.0)
	v.SetDefault("detection.position_timeout_secs", 5)
	v.SetDefault("detection.radio_timeout_secs", 5)
	v.SetDefault("detection.confirmed_floor", 0)
	v.SetDefault("detection.watch_interval_secs", 30)
	v.SetDefault("directory.driver", "sqlite")
	v.SetDefault("directory.database_url", "storesense.db")
	v.SetDefault("memory.path", "memory.db")
	v.SetDefault("providers.nmcli_path", "nmcli")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_sec", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields a run mode depends on are usable. Modes:
// "detect" (one-shot or watch), "serve", "import".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "detect", "import":
		// fallthrough to shared checks below
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimitPerSec < 0 {
			problems = append(problems, "server.rate_limit_per_sec must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Directory.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "directory.driver must be sqlite or postgres")
	}
	if c.Directory.DatabaseURL == "" {
		problems = append(problems, "directory.database_url is required")
	}
	if c.Detection.SearchRadiusMeters <= 0 {
		problems = append(problems, "detection.search_radius_meters must be > 0")
	}
	if c.Detection.ConfirmedFloor < 0 || c.Detection.ConfirmedFloor > 100 {
		problems = append(problems, "detection.confirmed_floor must be between 0 and 100")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
