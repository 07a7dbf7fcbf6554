package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deeplooplabs/pagedcache"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Cache.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.FetchTimeout)
	assert.Equal(t, "places", cfg.Backend.Name)
	assert.Empty(t, cfg.Backend.Endpoint)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "pagedcache", cfg.Metrics.Namespace)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("SEARCH_KEY", "sk-yaml")
	path := writeFile(t, "config.yaml", `
cache:
  batch_size: 25
  fetch_timeout: 5s
backend:
  endpoint: https://places.example.com/search
  api_key: ${SEARCH_KEY}
  proxy_url: ${SEARCH_PROXY:-}
  max_retries: 3
rate_limit:
  enabled: false
log:
  level: debug
  format: json
`)

	cfg, err := load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Cache.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Cache.FetchTimeout)
	assert.Equal(t, "https://places.example.com/search", cfg.Backend.Endpoint)
	assert.Equal(t, "sk-yaml", cfg.Backend.APIKey)
	assert.Empty(t, cfg.Backend.ProxyURL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched sections keep their defaults
	assert.Equal(t, "places", cfg.Backend.Name)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)

	bc := cfg.BackendConfig()
	assert.Equal(t, "sk-yaml", bc.APIKey)
	assert.Equal(t, 3, bc.RetryConfig.MaxRetries)
	assert.True(t, bc.RetryConfig.Enabled)

	assert.Equal(t, 25, cfg.CacheConfig().BatchSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "cache: [batch_size")
	_, err := load(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "PAGEDCACHE_BATCH_SIZE=7\nPAGEDCACHE_BACKEND_USERNAME=places\n")
	t.Cleanup(func() {
		_ = os.Unsetenv("PAGEDCACHE_BATCH_SIZE")
		_ = os.Unsetenv("PAGEDCACHE_BACKEND_USERNAME")
	})

	cfg, err := load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Cache.BatchSize)
	assert.Equal(t, "places", cfg.Backend.Username)
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	t.Setenv("PAGEDCACHE_BATCH_SIZE", "3")
	path := writeFile(t, "config.yaml", "cache:\n  batch_size: 40\n")

	cfg, err := load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Cache.BatchSize)
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("PAGEDCACHE_BATCH_SIZE", "0")

	_, err := load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, pagedcache.ErrConfiguration)
}

func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{name: "no placeholders", input: "plain", expected: "plain"},
		{name: "simple", input: "${KEY}", envVars: map[string]string{"KEY": "v"}, expected: "v"},
		{name: "default used", input: "${KEY:-fallback}", expected: "fallback"},
		{name: "default ignored", input: "${KEY:-fallback}", envVars: map[string]string{"KEY": "v"}, expected: "v"},
		{name: "default with colon", input: "${URL:-http://localhost:8080}", expected: "http://localhost:8080"},
		{name: "empty default", input: "${KEY:-}", expected: ""},
		{name: "unresolved", input: "${MISSING}", expected: "${MISSING}"},
		{name: "mixed", input: "${A}-${B}-${C:-c}", envVars: map[string]string{"A": "a"}, expected: "a-${B}-c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"KEY", "URL", "MISSING", "A", "B", "C"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, expandString(tt.input))
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "cache overrides",
			envVars: map[string]string{"PAGEDCACHE_BATCH_SIZE": "12", "PAGEDCACHE_FETCH_TIMEOUT": "2s"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 12, cfg.Cache.BatchSize)
				assert.Equal(t, 2*time.Second, cfg.Cache.FetchTimeout)
			},
		},
		{
			name: "backend overrides",
			envVars: map[string]string{
				"PAGEDCACHE_BACKEND_ENDPOINT":  "http://localhost:8080/search",
				"PAGEDCACHE_BACKEND_API_KEY":   "secret",
				"PAGEDCACHE_BACKEND_PROXY_URL": "http://proxy:3128",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://localhost:8080/search", cfg.Backend.Endpoint)
				assert.Equal(t, "secret", cfg.Backend.APIKey)
				assert.Equal(t, "http://proxy:3128", cfg.Backend.ProxyURL)
			},
		},
		{
			name:    "rate limit overrides",
			envVars: map[string]string{"PAGEDCACHE_RATE_LIMIT_ENABLED": "false", "PAGEDCACHE_RATE_LIMIT_FETCHES_PER_SECOND": "2.5", "PAGEDCACHE_RATE_LIMIT_BURST": "4"},
			check: func(t *testing.T, cfg *Config) {
				rc := cfg.RateLimitConfig()
				assert.False(t, rc.Enabled)
				assert.Equal(t, 2.5, rc.FetchesPerSecond)
				assert.Equal(t, 4, rc.Burst)
			},
		},
		{
			name:    "log overrides",
			envVars: map[string]string{"PAGEDCACHE_LOG_LEVEL": "warn", "PAGEDCACHE_METRICS_ENABLED": "0"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "warn", cfg.Log.Level)
				assert.False(t, cfg.Metrics.Enabled)
			},
		},
		{
			name:    "invalid number",
			envVars: map[string]string{"PAGEDCACHE_BATCH_SIZE": "many"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"PAGEDCACHE_FETCH_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := buildDefaultConfig()
			err := applyEnvOverrides(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{name: "negative timeout", modify: func(cfg *Config) { cfg.Cache.FetchTimeout = -time.Second }},
		{name: "negative retries", modify: func(cfg *Config) { cfg.Backend.MaxRetries = -1 }},
		{name: "rate limit without rate", modify: func(cfg *Config) { cfg.RateLimit.FetchesPerSecond = 0 }},
		{name: "unknown level", modify: func(cfg *Config) { cfg.Log.Level = "verbose" }},
		{name: "unknown format", modify: func(cfg *Config) { cfg.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildDefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), pagedcache.ErrConfiguration)
		})
	}

	assert.NoError(t, buildDefaultConfig().Validate())
}
