package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultServerMode      = "release"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodySize     = 4 << 20
	DefaultRateBurst       = 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "molcore"
	DefaultMetricsPath      = "/metrics"

	DefaultQueryCacheSize   = 3
	DefaultMaxInputLength   = 1 << 20
	DefaultMorganRadius     = 2
	DefaultMorganBits       = 2048
	DefaultPathMin          = 1
	DefaultPathMax          = 6
	DefaultPathBits         = 1024
	DefaultPathBitsPerHash  = 2
	DefaultBatchConcurrency = 8
)

// Default returns a Config with every field set to its default.
func Default() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-value field in cfg with its default. Fields
// already set are left unchanged so that explicit configuration always wins.
// Metrics.Enabled is a bool and is left alone.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = DefaultRateBurst
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.Output) == 0 {
		cfg.Log.Output = []string{"stderr"}
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Chem ──────────────────────────────────────────────────────────────────
	ch := &cfg.Chem
	if ch.QueryCacheSize == 0 {
		ch.QueryCacheSize = DefaultQueryCacheSize
	}
	if ch.MaxInputLength == 0 {
		ch.MaxInputLength = DefaultMaxInputLength
	}
	// A radius of 0 is meaningful, so only the pair (0, 0) counts as unset.
	if ch.MorganRadius == 0 && ch.MorganBits == 0 {
		ch.MorganRadius = DefaultMorganRadius
	}
	if ch.MorganBits == 0 {
		ch.MorganBits = DefaultMorganBits
	}
	if ch.PathMin == 0 {
		ch.PathMin = DefaultPathMin
	}
	if ch.PathMax == 0 {
		ch.PathMax = DefaultPathMax
	}
	if ch.PathBits == 0 {
		ch.PathBits = DefaultPathBits
	}
	if ch.PathBitsPerHash == 0 {
		ch.PathBitsPerHash = DefaultPathBitsPerHash
	}
	if ch.BatchConcurrency == 0 {
		ch.BatchConcurrency = DefaultBatchConcurrency
	}
}
