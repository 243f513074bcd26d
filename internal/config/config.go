package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Output formats for rendered results.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	Env          string `mapstructure:"ENV"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	LogFormat    string `mapstructure:"LOG_FORMAT"`
	OutputFormat string `mapstructure:"OUTPUT_FORMAT"`
	MetricsFile  string `mapstructure:"METRICS_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "") // "" -> inferred from ENV
	v.SetDefault("OUTPUT_FORMAT", FormatText)
	v.SetDefault("METRICS_FILE", "")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{"ENV", "LOG_LEVEL", "LOG_FORMAT", "OUTPUT_FORMAT", "METRICS_FILE"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedLogFormat returns the effective log format. If LOG_FORMAT is set it
// is returned, otherwise development gets "console" and everything else
// "json".
func (c *Config) ResolvedLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	if c.IsDev() {
		return "console"
	}
	return "json"
}

// Level parses LOG_LEVEL. An empty value means info.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// Validate rejects settings the CLI cannot honour.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if f := c.ResolvedLogFormat(); f != "console" && f != "json" {
		return fmt.Errorf("LOG_FORMAT must be \"console\" or \"json\", got %q", f)
	}
	if c.OutputFormat != FormatText && c.OutputFormat != FormatJSON {
		return fmt.Errorf("OUTPUT_FORMAT must be %q or %q, got %q", FormatText, FormatJSON, c.OutputFormat)
	}
	return nil
}
