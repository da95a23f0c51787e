package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/mapper"
)

// EnvPrefix prefixes every environment override, e.g. DATAMAP_LOG_LEVEL
const EnvPrefix = "DATAMAP"

// Config represents the datamap configuration
type Config struct {
	Log     LogConfig                 `mapstructure:"log"`
	HTTP    HTTPConfig                `mapstructure:"http"`
	Metrics MetricsConfig             `mapstructure:"metrics"`
	Storage map[string]adapter.Config `mapstructure:"storage"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// HTTPConfig represents the HTTP server configuration
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`

	// AllowedOrigins enables CORS for the listed origins; "*" allows any
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MetricsConfig represents the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// storageKeys are registered as defaults for the default storage entry so
// environment variables can override them without a config file
var storageKeys = map[string]any{
	"dsn":      "",
	"database": "",
	"host":     "",
	"port":     0,
	"user":     "",
	"password": "",
	"addr":     "",
	"db":       0,
	"prefix":   "",
}

// Load loads the configuration from path, or from datamap.yml / datamap.yaml
// in the working directory when path is empty. A missing default file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	for key, value := range storageKeys {
		v.SetDefault("storage.default."+key, value)
	}
	v.SetDefault("storage.default.driver", "memory")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("datamap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values no component can use
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must not be empty")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got: %s", c.Metrics.Path)
	}

	known := mapper.Drivers()
	for key, storage := range c.Storage {
		if storage.Driver == "" {
			continue
		}
		if !contains(known, storage.Driver) {
			return fmt.Errorf("storage.%s.driver: unknown driver %q (expected one of %s)",
				key, storage.Driver, strings.Join(known, ", "))
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
