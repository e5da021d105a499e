// Package config loads sessionbridge configuration using Viper.
//
// Values come from, in order of precedence: command-line flags that were set,
// SESSIONBRIDGE_* environment variables, the config file and the defaults
// below. The host also honours CLERK_PUBLISHABLE_KEY.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/felixgeelhaar/sessionbridge/internal/bootstrap"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SESSIONBRIDGE"

// PublishableKeyEnv is read when no other source sets host.publishable_key.
const PublishableKeyEnv = "CLERK_PUBLISHABLE_KEY"

// Config holds the application configuration.
type Config struct {
	Host      HostConfig      `mapstructure:"host"`
	Window    WindowConfig    `mapstructure:"window"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// HostConfig configures the native host process.
type HostConfig struct {
	Addr            string        `mapstructure:"addr"`
	DB              string        `mapstructure:"db"`
	Passphrase      string        `mapstructure:"passphrase"`
	PublishableKey  string        `mapstructure:"publishable_key"`
	ProxyURL        string        `mapstructure:"proxy_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EventBuffer     int           `mapstructure:"event_buffer"`
	Metrics         bool          `mapstructure:"metrics"`
}

// WindowConfig configures a headless window.
type WindowConfig struct {
	Label     string `mapstructure:"label"`
	IPCURL    string `mapstructure:"ipc_url"`
	Origin    string `mapstructure:"origin"`
	UserAgent string `mapstructure:"user_agent"`
	ProxyURL  string `mapstructure:"proxy_url"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Backend is "slog" or "zerolog".
	Backend string `mapstructure:"backend"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

// Load reads configuration from configPath (or the default location), the
// environment and the bound flags. Bindings map config keys such as
// "host.addr" to flags; flags that were not set do not override other
// sources.
func Load(configPath string, bindings map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if dir, err := Dir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("host.publishable_key", EnvPrefix+"_HOST_PUBLISHABLE_KEY", PublishableKeyEnv); err != nil {
		return nil, err
	}

	for key, flag := range bindings {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Host.DB = expandHome(cfg.Host.DB)
	return &cfg, nil
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sessionbridge"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host.addr", "127.0.0.1:8765")
	v.SetDefault("host.db", "")
	v.SetDefault("host.passphrase", "")
	v.SetDefault("host.proxy_url", "")
	v.SetDefault("host.shutdown_timeout", 5*time.Second)
	v.SetDefault("host.event_buffer", 16)
	v.SetDefault("host.metrics", true)

	v.SetDefault("window.label", bootstrap.DefaultWindowLabel)
	v.SetDefault("window.ipc_url", "http://127.0.0.1:8765")
	v.SetDefault("window.origin", "")
	v.SetDefault("window.user_agent", "")
	v.SetDefault("window.proxy_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.backend", "slog")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.environment", "development")
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
