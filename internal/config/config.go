// Package config defines the configuration structures for molcore. Loading
// lives in loader.go; defaults in defaults.go.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	// RateLimit is the sustained requests per second allowed per client
	// address on the molecule API. 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	// CORSOrigins lists the browser origins allowed to call the API. Entries
	// may be exact origins, "*" or "*.example.com". Empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string   `mapstructure:"format"` // "json" | "console"
	Output []string `mapstructure:"output"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// ChemConfig holds parsing, caching and fingerprint parameters.
type ChemConfig struct {
	// QueryCacheSize is the capacity of the query cache. It is read once at
	// startup.
	QueryCacheSize int `mapstructure:"query_cache_size"`
	// MaxInputLength bounds the length in bytes of any structure text.
	MaxInputLength int `mapstructure:"max_input_length"`

	MorganRadius int `mapstructure:"morgan_radius"`
	MorganBits   int `mapstructure:"morgan_bits"`

	PathMin         int `mapstructure:"path_min"`
	PathMax         int `mapstructure:"path_max"`
	PathBits        int `mapstructure:"path_bits"`
	PathBitsPerHash int `mapstructure:"path_bits_per_hash"`

	// BatchConcurrency bounds the workers of batch operations.
	BatchConcurrency int `mapstructure:"batch_concurrency"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Chem    ChemConfig    `mapstructure:"chem"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first error encountered.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.Server.MaxBodySize < 1 {
		return fmt.Errorf("config: server.max_body_size must be ≥ 1, got %d", c.Server.MaxBodySize)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rate_limit must be ≥ 0, got %g", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("config: server.rate_burst must be ≥ 1 when rate limiting is enabled, got %d", c.Server.RateBurst)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	// Chem
	ch := c.Chem
	if ch.QueryCacheSize < 1 {
		return fmt.Errorf("config: chem.query_cache_size must be ≥ 1, got %d", ch.QueryCacheSize)
	}
	if ch.MaxInputLength < 1 {
		return fmt.Errorf("config: chem.max_input_length must be ≥ 1, got %d", ch.MaxInputLength)
	}
	if ch.MorganRadius < 0 {
		return fmt.Errorf("config: chem.morgan_radius must be ≥ 0, got %d", ch.MorganRadius)
	}
	if ch.MorganBits < 1 || ch.PathBits < 1 {
		return fmt.Errorf("config: fingerprint lengths must be ≥ 1")
	}
	if ch.PathMin < 1 || ch.PathMax < ch.PathMin {
		return fmt.Errorf("config: chem.path_min/path_max must satisfy 1 ≤ min ≤ max, got %d/%d", ch.PathMin, ch.PathMax)
	}
	if ch.PathBitsPerHash < 1 {
		return fmt.Errorf("config: chem.path_bits_per_hash must be ≥ 1, got %d", ch.PathBitsPerHash)
	}
	if ch.BatchConcurrency < 1 {
		return fmt.Errorf("config: chem.batch_concurrency must be ≥ 1, got %d", ch.BatchConcurrency)
	}
	return nil
}
