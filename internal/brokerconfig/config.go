// Package brokerconfig loads mediabrokerd's configuration from a YAML
// file, MEDIABROKER_* environment variables, and defaults: environment
// variables override the file, and both override the defaults.
package brokerconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is mediabrokerd's static configuration.
type Config struct {
	// AdminAddr is the listen address for the read-only admin HTTP
	// surface (internal/adminhttp).
	AdminAddr string `mapstructure:"admin_addr"`

	// SettingsPath is the badger database directory backing
	// internal/settings. Empty disables persistence.
	SettingsPath string `mapstructure:"settings_path"`

	// MetricsEnabled registers the broker's Prometheus gauges and
	// serves them at AdminAddr + "/metrics".
	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the configuration used when no file or environment
// variable overrides anything.
func Default() Config {
	return Config{
		AdminAddr:      "127.0.0.1:8088",
		SettingsPath:   "",
		MetricsEnabled: true,
		LogLevel:       "info",
	}
}

// Load reads configuration from configPath (if non-empty and present),
// then MEDIABROKER_* environment variables, falling back to Default for
// anything neither sets.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDIABROKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("admin_addr", def.AdminAddr)
	v.SetDefault("settings_path", def.SettingsPath)
	v.SetDefault("metrics_enabled", def.MetricsEnabled)
	v.SetDefault("log_level", def.LogLevel)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.SettingsPath != "" {
		cfg.SettingsPath = filepath.Clean(cfg.SettingsPath)
	}
	return cfg, nil
}
