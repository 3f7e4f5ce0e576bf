package cache

import "time"

// Config contains shared store configuration
type Config struct {
	RedisURL     string        `yaml:"redis_url" mapstructure:"redis_url"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	TTL          time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Stats represents shared store activity as seen by this process
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Conflicts int64   `json:"conflicts"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}
