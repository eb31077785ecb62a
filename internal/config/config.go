// Package config loads runtime configuration from a YAML file and the
// environment, with sane defaults for every knob.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration tree.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Limiter  LimiterConfig  `mapstructure:"limiter"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redirect RedirectConfig `mapstructure:"redirect"`
	Headless HeadlessConfig `mapstructure:"headless"`
	AI       AIConfig       `mapstructure:"ai"`
}

// ServerConfig covers the observability listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig selects the logger profile.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig tunes the static fetcher.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// LimiterConfig bounds outbound request rate per domain.
type LimiterConfig struct {
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// BreakerConfig tunes the per-service circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `mapstructure:"failure_threshold"`
	SuccessThreshold int `mapstructure:"success_threshold"`
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
}

// CacheConfig tunes the record cache.
type CacheConfig struct {
	TTLSeconds      int `mapstructure:"ttl_seconds"`
	SweepIntervalMs int `mapstructure:"sweep_interval_ms"`
}

// RedirectConfig tunes short-link resolution.
type RedirectConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRedirects   int `mapstructure:"max_redirects"`
}

// HeadlessConfig tunes the browser renderer.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MaxParallel       int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
}

// AIConfig tunes the model-backed extraction fallback.
type AIConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Load reads configuration from path (optional) and CRAWLER_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/product-crawler")
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional; defaults plus env carry the day.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", false)

	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 30000)
	v.SetDefault("http.user_agent", "")

	v.SetDefault("limiter.default_rps", 1.0)
	v.SetDefault("limiter.default_burst", 2)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 3)
	v.SetDefault("breaker.timeout_seconds", 60)

	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.sweep_interval_ms", 300000)

	v.SetDefault("redirect.timeout_seconds", 10)
	v.SetDefault("redirect.max_redirects", 5)

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.max_tokens", 64)
	v.SetDefault("ai.timeout_seconds", 20)
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be positive")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be positive")
	}
	if c.Limiter.DefaultRPS <= 0 {
		return fmt.Errorf("limiter.default_rps must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 || c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker thresholds must be positive")
	}
	if c.Breaker.TimeoutSeconds <= 0 {
		return fmt.Errorf("breaker.timeout_seconds must be positive")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive")
	}
	if c.Redirect.MaxRedirects <= 0 {
		return fmt.Errorf("redirect.max_redirects must be positive")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai.enabled is true")
	}
	return nil
}

// Convenience duration accessors.

func (c *Config) HTTPTimeout() time.Duration { return time.Duration(c.HTTP.TimeoutSeconds) * time.Second }

// BackoffInitial returns the first retry delay.
func (c *Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// BreakerTimeout returns the open-state cooldown.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.Breaker.TimeoutSeconds) * time.Second
}

// CacheTTL returns the record lifetime.
func (c *Config) CacheTTL() time.Duration { return time.Duration(c.Cache.TTLSeconds) * time.Second }

// CacheSweepInterval returns the expiry sweep period.
func (c *Config) CacheSweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalMs) * time.Millisecond
}

// RedirectTimeout returns the short-link resolution timeout.
func (c *Config) RedirectTimeout() time.Duration {
	return time.Duration(c.Redirect.TimeoutSeconds) * time.Second
}

// HeadlessNavTimeout returns the browser navigation timeout.
func (c *Config) HeadlessNavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSeconds) * time.Second
}

// AITimeout returns the model call timeout.
func (c *Config) AITimeout() time.Duration { return time.Duration(c.AI.TimeoutSeconds) * time.Second }
