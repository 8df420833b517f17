package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Data    DataConfig    `mapstructure:"data"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Market  MarketConfig  `mapstructure:"market"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	APIKey  string `mapstructure:"api_key"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// DataConfig selects the historical bar source.
type DataConfig struct {
	Type string `mapstructure:"type"` // "sqlite" or "csv"
	Path string `mapstructure:"path"`
}

// ArchiveConfig selects where completed run results are archived.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MarketConfig holds market calendar settings.
type MarketConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Mode:    "release",
			MaxRuns: 100,
		},
		Data: DataConfig{
			Type: "sqlite",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Type:    "localfs",
		},
		Market: MarketConfig{
			Timezone: "America/New_York",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxRuns < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_runs must be positive, got %d", c.Server.MaxRuns))
	}

	switch c.Data.Type {
	case "", "sqlite", "csv":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data source type %q", c.Data.Type))
	}

	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive path required for localfs"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("s3 bucket required when archive type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type %q", c.Archive.Type))
		}
	}

	if tz := c.Market.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown market timezone %q", tz))
		}
	}

	return nil
}
