package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Pseudonym PseudonymConfig `yaml:"pseudonym" mapstructure:"pseudonym"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// MaxSessions caps the number of sessions open at once
	MaxSessions int `yaml:"max_sessions" mapstructure:"max_sessions"`
	// MaxSpansPerRequest caps the size of one pseudonymize call
	MaxSpansPerRequest int `yaml:"max_spans_per_request" mapstructure:"max_spans_per_request"`
}

// PseudonymConfig holds the parameters captured by every new session
type PseudonymConfig struct {
	Locale        string `yaml:"locale" mapstructure:"locale"`
	MinOffsetDays int    `yaml:"min_offset_days" mapstructure:"min_offset_days"`
	MaxOffsetDays int    `yaml:"max_offset_days" mapstructure:"max_offset_days"`
	// Seed makes runs reproducible when non-zero. Leave unset in production.
	Seed int64 `yaml:"seed" mapstructure:"seed"`
	// KnownLocations are literal place identifiers tagged as LOCATION even
	// when the recognizer misses them
	KnownLocations []string `yaml:"known_locations" mapstructure:"known_locations"`
	// Rules names the pattern rules run on free text; "all" enables every rule
	Rules []string `yaml:"rules" mapstructure:"rules"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// CacheConfig configures the Redis store shared by workers of one session
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	PoolSize  int           `yaml:"pool_size" mapstructure:"pool_size"`
}

// AuditConfig selects where unparsed-date records go
type AuditConfig struct {
	Sink        string `yaml:"sink" mapstructure:"sink"` // none, csv, parquet or postgres
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// BatchConfig tunes document-set runs
type BatchConfig struct {
	WorkerCount    int           `yaml:"worker_count" mapstructure:"worker_count"`
	BatchSize      int           `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressReport time.Duration `yaml:"progress_report" mapstructure:"progress_report"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// Events lists the broadcast event types; empty broadcasts all
	Events   []string `yaml:"events" mapstructure:"events"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
}

// RateLimitConfig is a per client token bucket
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        60 * time.Second,
			MaxSessions:        64,
			MaxSpansPerRequest: 10000,
		},
		Pseudonym: PseudonymConfig{
			Locale:        "fr",
			MinOffsetDays: -300,
			MaxOffsetDays: 10,
			Rules:         []string{"all"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Enabled:   false,
			RedisURL:  "redis://localhost:6379/0",
			KeyPrefix: "rcp-pseudo",
			TTL:       24 * time.Hour,
			PoolSize:  10,
		},
		Audit: AuditConfig{
			Sink:      "none",
			Path:      "audit/unparsed_dates.csv",
			Table:     "unparsed_dates",
			MaxConns:  5,
			BatchSize: 500,
		},
		Batch: BatchConfig{
			WorkerCount:    4,
			BatchSize:      1000,
			ProgressReport: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
	cfg.Logging.File.Path = "logs/pseudonymizer.log"
	return cfg
}
