package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return load(viper.GetViper(), configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	config := GetDefaults()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/rcp-pseudonymizer/")
	v.AddConfigPath("$HOME/.rcp-pseudonymizer/")

	// PSEUDO_PSEUDONYM_LOCALE overrides pseudonym.locale
	v.SetEnvPrefix("PSEUDO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnv registers the keys that may only come from the environment so
// AutomaticEnv sees them during Unmarshal
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"server.port",
		"pseudonym.locale", "pseudonym.min_offset_days", "pseudonym.max_offset_days", "pseudonym.seed",
		"logging.level", "logging.format",
		"cache.enabled", "cache.redis_url",
		"audit.sink", "audit.path", "audit.database_url",
		"batch.worker_count", "batch.batch_size",
		"websocket.username", "websocket.password",
	} {
		_ = v.BindEnv(key)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Pseudonym.Locale != "fr" && config.Pseudonym.Locale != "en" {
		return fmt.Errorf("invalid locale: %s (must be fr or en)", config.Pseudonym.Locale)
	}

	if config.Pseudonym.MinOffsetDays > config.Pseudonym.MaxOffsetDays {
		return fmt.Errorf("invalid offset range: min %d > max %d",
			config.Pseudonym.MinOffsetDays, config.Pseudonym.MaxOffsetDays)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Cache.Enabled && config.Cache.TTL <= 0 {
		return fmt.Errorf("invalid cache ttl: %s (must be positive)", config.Cache.TTL)
	}

	switch config.Audit.Sink {
	case "none", "":
	case "csv", "parquet":
		if config.Audit.Path == "" {
			return fmt.Errorf("audit sink %s requires a path", config.Audit.Sink)
		}
	case "postgres":
		if config.Audit.DatabaseURL == "" {
			return fmt.Errorf("audit sink postgres requires a database_url")
		}
	default:
		return fmt.Errorf("invalid audit sink: %s (must be none, csv, parquet, or postgres)", config.Audit.Sink)
	}

	if config.Batch.WorkerCount <= 0 {
		return fmt.Errorf("invalid worker count: %d", config.Batch.WorkerCount)
	}
	if config.Batch.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", config.Batch.BatchSize)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: %v/s burst %d", config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	}

	return nil
}

// Watch starts watching the configuration file for changes. Only valid
// configurations reach callback; onError receives the rest.
func Watch(callback func(*Config), onError func(error)) error {
	return watch(viper.GetViper(), callback, onError)
}

func watch(v *viper.Viper, callback func(*Config), onError func(error)) error {
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal %s: %w", e.Name, err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			}
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
