// Package config loads loomplan configuration from file, environment, and
// defaults via viper. Flags set on the CLI override everything here.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete loomplan configuration.
type Config struct {
	Database    string   `mapstructure:"database"`
	Listen      string   `mapstructure:"listen"`
	LogLevel    string   `mapstructure:"log_level"`
	WorkingDays []string `mapstructure:"working_days"`
	Claude      Claude   `mapstructure:"claude"`
}

// Claude configures the optional AI suggestion source.
type Claude struct {
	// Model overrides the default Claude model for dependency inference
	Model string `mapstructure:"model"`
}

// Load reads configuration. path, when non-empty, names an explicit config
// file; otherwise loomplan.yaml is looked up in the working directory and
// $HOME/.config/loomplan. Environment variables use the LOOMPLAN_ prefix
// (LOOMPLAN_DATABASE, LOOMPLAN_LOG_LEVEL, ...).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database", "loomplan.db")
	v.SetDefault("listen", ":8088")
	v.SetDefault("log_level", "info")
	v.SetDefault("working_days", []string{})

	v.SetEnvPrefix("LOOMPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("loomplan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/loomplan")
		if err := v.ReadInConfig(); err != nil {
			// Missing config is fine; a malformed one is not.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
