package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete tierstore configuration.
type Configuration struct {
	Cache   CacheConfig   `yaml:"cache"`
	Warmer  WarmerConfig  `yaml:"warmer"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// CacheConfig represents the tier settings.
type CacheConfig struct {
	L1Size      int           `yaml:"l1_size"`
	L2Size      int           `yaml:"l2_size"`
	Directory   string        `yaml:"directory"`
	DefaultTTL  time.Duration `yaml:"default_ttl"`
	Compression bool          `yaml:"compression"`
}

// WarmerConfig represents cache warmer settings.
type WarmerConfig struct {
	UsageLog      string  `yaml:"usage_log"`
	SaveEvery     int     `yaml:"save_every"`
	TopN          int     `yaml:"top_n"`
	MinCount      int     `yaml:"min_count"`
	RecencyWeight float64 `yaml:"recency_weight"`
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// RetryConfig bounds the L3 write retry budget.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       bool          `yaml:"jitter"`
}

// BreakerConfig tunes the disk circuit breaker.
type BreakerConfig struct {
	MaxRequests uint32        `yaml:"max_requests"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MetricsConfig represents metrics endpoint settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Cache: CacheConfig{
			L1Size:      100,
			L2Size:      1000,
			Directory:   ".tierstore/disk",
			DefaultTTL:  time.Hour,
			Compression: false,
		},
		Warmer: WarmerConfig{
			UsageLog:      ".tierstore/usage_log.json",
			SaveEvery:     10,
			TopN:          20,
			MinCount:      2,
			RecencyWeight: 0.3,
			MaxConcurrent: 4,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     250 * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       true,
		},
		Breaker: BreakerConfig{
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Port:      9180,
			Path:      "/metrics",
			Namespace: "tierstore",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("TIERSTORE_L1_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.Cache.L1Size = size
		}
	}
	if val := os.Getenv("TIERSTORE_L2_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			c.Cache.L2Size = size
		}
	}
	if val := os.Getenv("TIERSTORE_CACHE_DIR"); val != "" {
		c.Cache.Directory = val
	}
	if val := os.Getenv("TIERSTORE_DEFAULT_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.DefaultTTL = duration
		}
	}
	if val := os.Getenv("TIERSTORE_COMPRESSION"); val != "" {
		c.Cache.Compression = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("TIERSTORE_USAGE_LOG"); val != "" {
		c.Warmer.UsageLog = val
	}
	if val := os.Getenv("TIERSTORE_WARMER_TOP_N"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Warmer.TopN = n
		}
	}

	if val := os.Getenv("TIERSTORE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("TIERSTORE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	if val := os.Getenv("TIERSTORE_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("TIERSTORE_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.Cache.L1Size <= 0 {
		return fmt.Errorf("l1_size must be greater than 0")
	}
	if c.Cache.L2Size <= 0 {
		return fmt.Errorf("l2_size must be greater than 0")
	}
	if c.Cache.L1Size > c.Cache.L2Size {
		return fmt.Errorf("l1_size (%d) must not exceed l2_size (%d)", c.Cache.L1Size, c.Cache.L2Size)
	}
	if c.Cache.Directory == "" {
		return fmt.Errorf("cache directory is required")
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("default_ttl must be greater than 0")
	}

	if c.Warmer.RecencyWeight < 0 || c.Warmer.RecencyWeight > 1 {
		return fmt.Errorf("recency_weight must be between 0 and 1, got %v", c.Warmer.RecencyWeight)
	}
	if c.Warmer.SaveEvery <= 0 {
		return fmt.Errorf("save_every must be greater than 0")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Logging.Level) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	return nil
}
