// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Browser() BrowserConfig
	Fetch() FetchConfig
	Store() StoreConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	FetchCfg   FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	StoreCfg   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Fetch() FetchConfig     { return c.FetchCfg }
func (c *Config) Store() StoreConfig     { return c.StoreCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig describes how the casperjs binary is invoked.
type EngineConfig struct {
	// Command is looked up on $PATH; a leading ~ is expanded.
	Command string `mapstructure:"command" yaml:"command"`
	// TempDir receives the transient script files. Empty means os.TempDir().
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`
	Proxy   string `mapstructure:"proxy" yaml:"proxy"`
	// Options are extra casperjs/phantomjs flags, e.g. ignore-ssl-errors: "true".
	Options map[string]string `mapstructure:"options" yaml:"options"`
}

// ViewportConfig is the page size in CSS pixels. Zero leaves the engine default.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds the page state applied before navigation.
type BrowserConfig struct {
	UserAgent      string            `mapstructure:"user_agent" yaml:"user_agent"`
	Viewport       ViewportConfig    `mapstructure:"viewport" yaml:"viewport"`
	AcceptLanguage []string          `mapstructure:"accept_language" yaml:"accept_language"`
	Headers        map[string]string `mapstructure:"headers" yaml:"headers"`
	CookieFile     string            `mapstructure:"cookie_file" yaml:"cookie_file"`
	// SaveCookies writes the cookie jar back to CookieFile after each run.
	SaveCookies bool `mapstructure:"save_cookies" yaml:"save_cookies"`
}

// FetchConfig tunes the fetch command and the batch fetcher.
type FetchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// RateLimit is the number of runs started per second. Zero disables limiting.
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	WaitSelector    string        `mapstructure:"wait_selector" yaml:"wait_selector"`
	SelectorTimeout time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	Wait            time.Duration `mapstructure:"wait" yaml:"wait"`
	Format          string        `mapstructure:"format" yaml:"format"`
}

// StoreConfig configures persistence of fetch results.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"-"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "casperjs-driver")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.command", "casperjs")
	v.SetDefault("engine.temp_dir", "")

	// -- Browser --
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 800)
	v.SetDefault("browser.save_cookies", false)

	// -- Fetch --
	v.SetDefault("fetch.concurrency", 2)
	v.SetDefault("fetch.rate_limit", 0.0)
	v.SetDefault("fetch.selector_timeout", "10s")
	v.SetDefault("fetch.wait", "0s")
	v.SetDefault("fetch.format", "json")

	// -- Store --
	v.SetDefault("store.enabled", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The database URL usually carries a password; keep it out of config files.
	if err := v.BindEnv("store.url", "CASPER_STORE_URL"); err != nil {
		return nil, fmt.Errorf("error binding store url: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.StoreCfg.Enabled && cfg.StoreCfg.URL == "" {
		cfg.StoreCfg.URL = os.Getenv("CASPER_STORE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.Command == "" {
		return fmt.Errorf("engine.command is required")
	}
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.FetchCfg.Validate(); err != nil {
		return fmt.Errorf("fetch configuration invalid: %w", err)
	}
	if c.StoreCfg.Enabled && c.StoreCfg.URL == "" {
		return fmt.Errorf("store.url is required when the store is enabled (or set CASPER_STORE_URL)")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	w, h := b.Viewport.Width, b.Viewport.Height
	if w < 0 || h < 0 || (w == 0) != (h == 0) {
		return fmt.Errorf("viewport width and height must both be positive, or both zero")
	}
	if b.SaveCookies && b.CookieFile == "" {
		return fmt.Errorf("save_cookies requires cookie_file")
	}
	return nil
}

// Validate checks the fetch settings.
func (f *FetchConfig) Validate() error {
	if f.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	if f.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if f.SelectorTimeout < 0 || f.Wait < 0 {
		return fmt.Errorf("selector_timeout and wait must not be negative")
	}
	switch f.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("format must be 'json' or 'yaml', got %q", f.Format)
	}
	return nil
}
