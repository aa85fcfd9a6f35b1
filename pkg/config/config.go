package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" yaml:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// EngineConfig controls the storage backend and default engine behavior.
type EngineConfig struct {
	// StorageBackend selects the Repository implementation: "memory" or "redis".
	StorageBackend string `json:"storage_backend" yaml:"storage_backend" env:"ENGINE_STORAGE_BACKEND"`
	RedisAddr      string `json:"redis_addr" yaml:"redis_addr" env:"ENGINE_REDIS_ADDR"`
	RedisDB        int    `json:"redis_db" yaml:"redis_db" env:"ENGINE_REDIS_DB"`

	// DefaultStackingStrategy is used when a discount evaluation request
	// omits one explicitly.
	DefaultStackingStrategy string `json:"default_stacking_strategy" yaml:"default_stacking_strategy" env:"ENGINE_DEFAULT_STACKING_STRATEGY"`

	// RetryAttempts/RetryInitialBackoffMs/RetryMaxBackoffMs/RetryMultiplier
	// seed the default transform-step RetryPolicy.
	RetryAttempts         int     `json:"retry_attempts" yaml:"retry_attempts" env:"ENGINE_RETRY_ATTEMPTS"`
	RetryInitialBackoffMs int     `json:"retry_initial_backoff_ms" yaml:"retry_initial_backoff_ms" env:"ENGINE_RETRY_INITIAL_BACKOFF_MS"`
	RetryMaxBackoffMs     int     `json:"retry_max_backoff_ms" yaml:"retry_max_backoff_ms" env:"ENGINE_RETRY_MAX_BACKOFF_MS"`
	RetryMultiplier       float64 `json:"retry_multiplier" yaml:"retry_multiplier" env:"ENGINE_RETRY_MULTIPLIER"`
}

// RuntimeConfig controls process-level behavior that has no domain referent.
type RuntimeConfig struct {
	ShutdownTimeoutMs int `json:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" env:"RUNTIME_SHUTDOWN_TIMEOUT_MS"`
}

// Config is the top-level configuration structure.
type Config struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "enginectl",
		},
		Engine: EngineConfig{
			StorageBackend:          "memory",
			RedisAddr:               "localhost:6379",
			DefaultStackingStrategy: "byPriority",
			RetryAttempts:           3,
			RetryInitialBackoffMs:   100,
			RetryMaxBackoffMs:       5000,
			RetryMultiplier:         2.0,
		},
		Runtime: RuntimeConfig{
			ShutdownTimeoutMs: 5000,
		},
	}
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
