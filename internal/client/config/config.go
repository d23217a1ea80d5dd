package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

var (
	ErrMissingEndpoint = errors.New("auth endpoint url is not configured (PLASMO_PUBLIC_SUPABASE_URL)")
	ErrMissingKey      = errors.New("auth api key is not configured (PLASMO_PUBLIC_SUPABASE_KEY)")
	ErrSampleRatio     = errors.New("trace sample ratio must be between 0 and 1")
)

const (
	DefaultStorageDir     = ".options"
	DefaultStorageFile    = "storage.db"
	DefaultRequestTimeout = 10 * time.Second
	DefaultLogLevel       = "info"
	DefaultSampleRatio    = 1.0
)

// Config holds runtime settings for the options client.
type Config struct {
	SupabaseURL    string        `env:"PLASMO_PUBLIC_SUPABASE_URL"`
	SupabaseKey    string        `env:"PLASMO_PUBLIC_SUPABASE_KEY"`
	StoragePath    string        `env:"OPTIONS_STORAGE_PATH"`
	SyncRedisAddr  string        `env:"OPTIONS_SYNC_REDIS_ADDR"`
	Location       string        `env:"OPTIONS_LOCATION"`
	PublicKey      string        `env:"CRX_PUBLIC_KEY"`
	RequestTimeout time.Duration `env:"OPTIONS_REQUEST_TIMEOUT"`
	LogLevel       string        `env:"OPTIONS_LOG_LEVEL"`
	Dev            bool          `env:"OPTIONS_DEV"`

	TelemetryEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TelemetryEnabled  bool    `env:"OPTIONS_OTEL_ENABLED"`
	TraceSampleRatio  float64 `env:"OPTIONS_TRACE_SAMPLE_RATIO"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StoragePath = filepath.Join(DefaultStorageDir, DefaultStorageFile)
	c.RequestTimeout = DefaultRequestTimeout
	c.LogLevel = DefaultLogLevel
	c.TelemetryEnabled = true
	c.TraceSampleRatio = DefaultSampleRatio
}

// Validate reports a configuration the auth client cannot work with.
// In dev mode the endpoint and key are provided by the fake service.
func (c *Config) Validate() error {
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return ErrSampleRatio
	}
	if c.Dev {
		return nil
	}
	if c.SupabaseURL == "" {
		return ErrMissingEndpoint
	}
	if c.SupabaseKey == "" {
		return ErrMissingKey
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the dotenv file, the environment, JSON (if present) and command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return cfg, nil
}
