package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL     string `mapstructure:"API_BASE_URL"`
	Env            string `mapstructure:"ENV"`
	StateDir       string `mapstructure:"STATE_DIR"`
	HTTPTimeoutSec int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	PageSize       int    `mapstructure:"PAGE_SIZE"`
	CalendarDays   int    `mapstructure:"CALENDAR_DAYS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("API_BASE_URL", "http://localhost:8000/api")
	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("CALENDAR_DAYS", 7)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("API_BASE_URL")
	v.BindEnv("ENV")
	v.BindEnv("STATE_DIR")
	v.BindEnv("HTTP_TIMEOUT_SECONDS")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("PAGE_SIZE")
	v.BindEnv("CALENDAR_DAYS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.StateDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve state dir: %w", err)
		}
		cfg.StateDir = filepath.Join(base, "medibook")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HTTPTimeout returns the configured gateway timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// Validate checks that the configuration is usable. API_BASE_URL must be an
// absolute http(s) URL and the numeric knobs must be positive.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must start with http:// or https://, got %q", c.APIBaseURL)
	}
	if c.HTTPTimeoutSec <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSec)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.CalendarDays <= 0 {
		return fmt.Errorf("CALENDAR_DAYS must be positive, got %d", c.CalendarDays)
	}
	return nil
}
