package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, 100, cfg.Cache.L1Size)
	assert.Equal(t, 1000, cfg.Cache.L2Size)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.False(t, cfg.Cache.Compression)
	assert.Equal(t, 10, cfg.Warmer.SaveEvery)
	assert.Equal(t, 0.3, cfg.Warmer.RecencyWeight)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 9180, cfg.Metrics.Port)
	assert.Equal(t, "INFO", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	content := `
cache:
  l1_size: 5
  l2_size: 50
  directory: /tmp/tierstore-test
  default_ttl: 30m
  compression: true
warmer:
  usage_log: /tmp/tierstore-test/usage.json
  top_n: 7
logging:
  level: DEBUG
  format: text
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 5, cfg.Cache.L1Size)
	assert.Equal(t, 50, cfg.Cache.L2Size)
	assert.Equal(t, "/tmp/tierstore-test", cfg.Cache.Directory)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.Cache.Compression)
	assert.Equal(t, 7, cfg.Warmer.TopN)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 9180, cfg.Metrics.Port)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: ["), 0600))

	cfg := NewDefault()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TIERSTORE_L1_SIZE", "25")
	t.Setenv("TIERSTORE_L2_SIZE", "250")
	t.Setenv("TIERSTORE_CACHE_DIR", "/var/cache/tierstore")
	t.Setenv("TIERSTORE_DEFAULT_TTL", "15m")
	t.Setenv("TIERSTORE_COMPRESSION", "TRUE")
	t.Setenv("TIERSTORE_METRICS_ENABLED", "true")
	t.Setenv("TIERSTORE_METRICS_PORT", "9999")
	t.Setenv("TIERSTORE_LOG_LEVEL", "WARN")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 25, cfg.Cache.L1Size)
	assert.Equal(t, 250, cfg.Cache.L2Size)
	assert.Equal(t, "/var/cache/tierstore", cfg.Cache.Directory)
	assert.Equal(t, 15*time.Minute, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.Cache.Compression)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9999, cfg.Metrics.Port)
	assert.Equal(t, "WARN", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("TIERSTORE_L1_SIZE", "not-a-number")
	t.Setenv("TIERSTORE_DEFAULT_TTL", "not-a-duration")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 100, cfg.Cache.L1Size)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
}

func TestSaveAndReload(t *testing.T) {
	cfg := NewDefault()
	cfg.Cache.L1Size = 42
	cfg.Warmer.RecencyWeight = 0.7

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	reloaded := NewDefault()
	require.NoError(t, reloaded.LoadFromFile(path))

	assert.Equal(t, 42, reloaded.Cache.L1Size)
	assert.Equal(t, 0.7, reloaded.Warmer.RecencyWeight)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Configuration)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Configuration) {},
		},
		{
			name:    "zero l1 size",
			mutate:  func(c *Configuration) { c.Cache.L1Size = 0 },
			wantErr: "l1_size",
		},
		{
			name:    "zero l2 size",
			mutate:  func(c *Configuration) { c.Cache.L2Size = 0 },
			wantErr: "l2_size",
		},
		{
			name: "l1 larger than l2",
			mutate: func(c *Configuration) {
				c.Cache.L1Size = 500
				c.Cache.L2Size = 100
			},
			wantErr: "must not exceed",
		},
		{
			name:    "missing directory",
			mutate:  func(c *Configuration) { c.Cache.Directory = "" },
			wantErr: "directory",
		},
		{
			name:    "zero ttl",
			mutate:  func(c *Configuration) { c.Cache.DefaultTTL = 0 },
			wantErr: "default_ttl",
		},
		{
			name:    "recency weight out of range",
			mutate:  func(c *Configuration) { c.Warmer.RecencyWeight = 1.5 },
			wantErr: "recency_weight",
		},
		{
			name:    "zero save_every",
			mutate:  func(c *Configuration) { c.Warmer.SaveEvery = 0 },
			wantErr: "save_every",
		},
		{
			name: "bad metrics port",
			mutate: func(c *Configuration) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 700000
			},
			wantErr: "metrics port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Configuration) { c.Logging.Level = "VERBOSE" },
			wantErr: "log level",
		},
		{
			name:   "lowercase log level accepted",
			mutate: func(c *Configuration) { c.Logging.Level = "debug" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		name    string
		logging LoggingConfig
		wantErr bool
	}{
		{"json info", LoggingConfig{Level: "INFO", Format: "json"}, false},
		{"text debug", LoggingConfig{Level: "DEBUG", Format: "text"}, false},
		{"console alias", LoggingConfig{Level: "WARN", Format: "console"}, false},
		{"bad level", LoggingConfig{Level: "NOISY", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			cfg.Logging = tt.logging

			logger, err := cfg.BuildLogger()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Debug("logger smoke test")
		})
	}
}
