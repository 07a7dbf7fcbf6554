// Package config loads process configuration for programs embedding a paged
// cache: an optional YAML file, a .env file and PAGEDCACHE_* environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/deeplooplabs/pagedcache"
	"github.com/deeplooplabs/pagedcache/backend"
	"github.com/deeplooplabs/pagedcache/cache"
	"github.com/deeplooplabs/pagedcache/ratelimit"
)

const envPrefix = "PAGEDCACHE_"

// Config holds the application configuration
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Backend   BackendConfig   `yaml:"backend"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// CacheConfig holds paged cache settings
type CacheConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// BackendConfig holds the result backend connection settings. An empty
// endpoint selects the built-in demo data.
type BackendConfig struct {
	Name       string        `yaml:"name"`
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	ProxyURL   string        `yaml:"proxy_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// RateLimitConfig holds fetch throttling settings
type RateLimitConfig struct {
	Enabled          bool    `yaml:"enabled"`
	FetchesPerSecond float64 `yaml:"fetches_per_second"`
	Burst            int     `yaml:"burst"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Addr      string `yaml:"addr"`
}

// LogConfig holds logging settings
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text (colorized) or json
	Format string `yaml:"format"`
}

func buildDefaultConfig() *Config {
	cc := cache.DefaultConfig()
	bc := backend.NewConfig("places")
	rc := ratelimit.DefaultConfig()

	return &Config{
		Cache: CacheConfig{
			BatchSize:    cc.BatchSize,
			FetchTimeout: cc.FetchTimeout,
		},
		Backend: BackendConfig{
			Name:       bc.Name,
			Timeout:    bc.Timeout,
			MaxRetries: bc.RetryConfig.MaxRetries,
		},
		RateLimit: RateLimitConfig{
			Enabled:          rc.Enabled,
			FetchesPerSecond: rc.FetchesPerSecond,
			Burst:            rc.Burst,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "pagedcache",
			Addr:      ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the YAML file at path (optional when empty),
// then .env in the working directory, then the environment
func Load(path string) (*Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (*Config, error) {
	// Load .env file (optional, won't fail if not found)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := buildDefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandString(string(raw))), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. Unset variables without a
// default are left as written.
func expandString(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		parts := placeholder.FindStringSubmatch(m)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if parts[2] != "" {
			return parts[3]
		}
		return m
	})
}

func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	num("BATCH_SIZE", &cfg.Cache.BatchSize)
	duration("FETCH_TIMEOUT", &cfg.Cache.FetchTimeout)

	str("BACKEND_NAME", &cfg.Backend.Name)
	str("BACKEND_ENDPOINT", &cfg.Backend.Endpoint)
	str("BACKEND_API_KEY", &cfg.Backend.APIKey)
	str("BACKEND_USERNAME", &cfg.Backend.Username)
	str("BACKEND_PASSWORD", &cfg.Backend.Password)
	str("BACKEND_PROXY_URL", &cfg.Backend.ProxyURL)
	duration("BACKEND_TIMEOUT", &cfg.Backend.Timeout)
	num("BACKEND_MAX_RETRIES", &cfg.Backend.MaxRetries)

	boolean("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	float("RATE_LIMIT_FETCHES_PER_SECOND", &cfg.RateLimit.FetchesPerSecond)
	num("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_NAMESPACE", &cfg.Metrics.Namespace)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(errs...)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Cache.BatchSize <= 0 {
		return pagedcache.NewConfigurationError(fmt.Sprintf("cache.batch_size must be positive, got %d", c.Cache.BatchSize))
	}
	if c.Cache.FetchTimeout < 0 {
		return pagedcache.NewConfigurationError("cache.fetch_timeout must not be negative")
	}
	if c.Backend.MaxRetries < 0 {
		return pagedcache.NewConfigurationError("backend.max_retries must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.FetchesPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return pagedcache.NewConfigurationError("rate_limit needs a positive fetches_per_second and burst")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return pagedcache.NewConfigurationError(err.Error())
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return pagedcache.NewConfigurationError(fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	return nil
}

// SlogLevel parses the configured level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

// CacheConfig converts the cache settings
func (c *Config) CacheConfig() *cache.Config {
	return &cache.Config{
		BatchSize:    c.Cache.BatchSize,
		FetchTimeout: c.Cache.FetchTimeout,
	}
}

// BackendConfig converts the backend settings
func (c *Config) BackendConfig() *backend.Config {
	bc := backend.NewConfig(c.Backend.Name).
		WithEndpoint(c.Backend.Endpoint).
		WithTimeout(c.Backend.Timeout)
	if c.Backend.APIKey != "" {
		bc.WithAPIKey(c.Backend.APIKey)
	}
	if c.Backend.Username != "" {
		bc.WithCredentials(c.Backend.Username, c.Backend.Password)
	}
	if c.Backend.ProxyURL != "" {
		bc.WithProxy(c.Backend.ProxyURL)
	}
	bc.RetryConfig.MaxRetries = c.Backend.MaxRetries
	bc.RetryConfig.Enabled = c.Backend.MaxRetries > 0
	return bc
}

// RateLimitConfig converts the rate limit settings
func (c *Config) RateLimitConfig() *ratelimit.Config {
	return &ratelimit.Config{
		Enabled:          c.RateLimit.Enabled,
		FetchesPerSecond: c.RateLimit.FetchesPerSecond,
		Burst:            c.RateLimit.Burst,
	}
}
