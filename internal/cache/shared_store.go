// Package cache shares pseudonym memo tables between processes working on
// the same session through Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/rcp-pseudonymizer/internal/pseudonym"
	"go.uber.org/zap"
)

// deleteBatchSize bounds the number of keys per DEL
const deleteBatchSize = 100

// SharedStore implements pseudonym.Backend on Redis. Originals are hashed
// before they become part of a key, so no clear identifier reaches Redis;
// substitutes are stored as values.
type SharedStore struct {
	client *redis.Client
	config *Config
	logger *zap.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	conflicts atomic.Int64
}

var _ pseudonym.Backend = (*SharedStore)(nil)

// NewSharedStore connects to Redis and returns a store
func NewSharedStore(config *Config, logger *zap.Logger) (*SharedStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns

	store := newSharedStore(redis.NewClient(opts), config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.client.Ping(ctx).Err(); err != nil {
		store.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Shared pseudonym store initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("pool_size", opts.PoolSize),
		zap.Duration("ttl", config.TTL))

	return store, nil
}

func newSharedStore(client *redis.Client, config *Config, logger *zap.Logger) *SharedStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rcp-pseudo"
	}
	return &SharedStore{client: client, config: config, logger: logger}
}

// Lookup returns the substitute recorded for original, if any
func (s *SharedStore) Lookup(ctx context.Context, sessionID string, kind pseudonym.Kind, original string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(sessionID, kind, original)).Result()
	if err == redis.Nil {
		s.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("shared store lookup failed: %w", err)
	}
	s.hits.Add(1)
	return v, true, nil
}

// Insert records substitute unless another writer already did, in which
// case the stored substitute is returned
func (s *SharedStore) Insert(ctx context.Context, sessionID string, kind pseudonym.Kind, original, substitute string) (string, error) {
	key := s.key(sessionID, kind, original)

	ok, err := s.client.SetNX(ctx, key, substitute, s.config.TTL).Result()
	if err != nil {
		return "", fmt.Errorf("shared store insert failed: %w", err)
	}
	if ok {
		return substitute, nil
	}

	s.conflicts.Add(1)
	winner, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("shared store read after conflict failed: %w", err)
	}
	s.logger.Debug("Shared store conflict resolved", zap.String("kind", string(kind)))
	return winner, nil
}

// Purge removes every key of a session
func (s *SharedStore) Purge(ctx context.Context, sessionID string) error {
	keys, err := s.sessionKeys(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	for i := 0; i < len(keys); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := s.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			s.logger.Error("Failed to delete shared store keys", zap.Error(err))
			return fmt.Errorf("failed to delete shared store keys: %w", err)
		}
	}

	s.logger.Info("Shared store purged",
		zap.String("session_id", sessionID),
		zap.Int("deleted_keys", len(keys)))
	return nil
}

// Refresh extends the TTL of every key of a long running session
func (s *SharedStore) Refresh(ctx context.Context, sessionID string) error {
	if s.config.TTL <= 0 {
		return nil
	}
	keys, err := s.sessionKeys(ctx, sessionID)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, k := range keys {
		pipe.Expire(ctx, k, s.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to refresh shared store keys: %w", err)
	}
	return nil
}

func (s *SharedStore) sessionKeys(ctx context.Context, sessionID string) ([]string, error) {
	pattern := fmt.Sprintf("%s:%s:*", s.config.KeyPrefix, sessionID)

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan shared store keys: %w", err)
	}
	return keys, nil
}

// GetStats returns hit and miss counters and the size of the Redis database
func (s *SharedStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Conflicts: s.conflicts.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis size: %w", err)
	}
	stats.TotalKeys = keys
	return stats, nil
}

// Close closes the Redis connection
func (s *SharedStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// key is <prefix>:<session>:<kind>:<first 32 hex chars of sha256(original)>
func (s *SharedStore) key(sessionID string, kind pseudonym.Kind, original string) string {
	sum := sha256.Sum256([]byte(original))
	return fmt.Sprintf("%s:%s:%s:%s", s.config.KeyPrefix, sessionID, kind, hex.EncodeToString(sum[:])[:32])
}

// maskRedisURL masks the password of a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
