package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "MOLCORE"

// newViper builds a Viper instance with YAML files, MOLCORE_ env binding and
// a "." → "_" key replacer, so that "chem.query_cache_size" resolves to
// MOLCORE_CHEM_QUERY_CACHE_SIZE. Defaults are registered as viper defaults
// too; AutomaticEnv only consults keys viper already knows.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

func registerDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("chem.query_cache_size", d.Chem.QueryCacheSize)
	v.SetDefault("chem.max_input_length", d.Chem.MaxInputLength)
	v.SetDefault("chem.morgan_radius", d.Chem.MorganRadius)
	v.SetDefault("chem.morgan_bits", d.Chem.MorganBits)
	v.SetDefault("chem.path_min", d.Chem.PathMin)
	v.SetDefault("chem.path_max", d.Chem.PathMax)
	v.SetDefault("chem.path_bits", d.Chem.PathBits)
	v.SetDefault("chem.path_bits_per_hash", d.Chem.PathBitsPerHash)
	v.SetDefault("chem.batch_concurrency", d.Chem.BatchConcurrency)
}

// Load reads the YAML file at configPath, merges MOLCORE_* environment
// overrides, applies defaults and validates the result. An empty path
// behaves like LoadFromEnv.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from MOLCORE_* environment variables and
// defaults only.
//
//	MOLCORE_<SECTION>_<FIELD>   e.g.  MOLCORE_SERVER_PORT, MOLCORE_LOG_LEVEL
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and passes the new
// Config to onChange. Only settings that are safe to swap at runtime (the
// log level) should be applied by the callback; the query cache capacity in
// particular is fixed at startup. Invalid files are reported to onError, if
// non-nil, and otherwise ignored.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is Load for main(): it panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
