// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server              ServerConfig     `mapstructure:"server"`
	OutputDir           string           `mapstructure:"output_dir"`
	Timeouts            TimeoutConfig    `mapstructure:"timeouts"`
	MaxRetries          int              `mapstructure:"max_retries"`
	QueuePollIntervalMs int              `mapstructure:"queue_poll_interval_ms"`
	Viewport            ViewportConfig   `mapstructure:"viewport"`
	Screenshot          ScreenshotConfig `mapstructure:"screenshot"`
	RejectDuplicateURLs bool             `mapstructure:"reject_duplicate_urls"`
	UserAgent           string           `mapstructure:"user_agent"`
	Browsers            []BrowserConfig  `mapstructure:"browsers"`
	Logging             LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// TimeoutConfig bounds the capture pipeline stages.
type TimeoutConfig struct {
	PageLoadMs int `mapstructure:"page_load_ms"`
	CaptureMs  int `mapstructure:"capture_ms"`
}

// ViewportConfig sets page dimensions before navigation.
type ViewportConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ScreenshotConfig tunes screenshot rendering.
type ScreenshotConfig struct {
	FullPage bool `mapstructure:"full_page"`
	Quality  int  `mapstructure:"quality"`
}

// BrowserConfig identifies one remote browser endpoint.
type BrowserConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	SlowMoMs int    `mapstructure:"slow_mo_ms"`
}

// LoggingConfig controls zap output and optional file rotation.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGESNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("timeouts.page_load_ms", 30000)
	v.SetDefault("timeouts.capture_ms", 10000)
	v.SetDefault("max_retries", 2)
	v.SetDefault("queue_poll_interval_ms", 50)
	v.SetDefault("viewport.width", 1280)
	v.SetDefault("viewport.height", 800)
	v.SetDefault("screenshot.full_page", false)
	v.SetDefault("reject_duplicate_urls", false)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.Timeouts.PageLoadMs <= 0 {
		return fmt.Errorf("timeouts.page_load_ms must be > 0")
	}
	if c.Timeouts.CaptureMs <= 0 {
		return fmt.Errorf("timeouts.capture_ms must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if c.QueuePollIntervalMs <= 0 {
		return fmt.Errorf("queue_poll_interval_ms must be > 0")
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport dimensions must be > 0")
	}
	if c.Screenshot.Quality < 0 || c.Screenshot.Quality > 100 {
		return fmt.Errorf("screenshot.quality must be between 1 and 100")
	}
	if len(c.Browsers) == 0 {
		return fmt.Errorf("at least one browser endpoint is required")
	}
	for i, b := range c.Browsers {
		if strings.TrimSpace(b.Endpoint) == "" {
			return fmt.Errorf("browsers[%d].endpoint must not be empty", i)
		}
		if b.SlowMoMs < 0 {
			return fmt.Errorf("browsers[%d].slow_mo_ms must be >= 0", i)
		}
	}
	return nil
}

// PageLoadTimeout returns the navigation bound as a duration.
func (c Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.Timeouts.PageLoadMs) * time.Millisecond
}

// CaptureTimeout returns the artifact extraction bound as a duration.
func (c Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Timeouts.CaptureMs) * time.Millisecond
}

// QueuePollInterval returns the dispatch idle sleep as a duration.
func (c Config) QueuePollInterval() time.Duration {
	return time.Duration(c.QueuePollIntervalMs) * time.Millisecond
}
