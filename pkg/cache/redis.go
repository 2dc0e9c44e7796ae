package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore is a Store backed by Redis, for deployments running several
// bridge processes against one backend. The Store fault contract holds:
// Redis errors degrade to misses on read and are dropped on write, so a
// Redis outage costs cache efficiency, never request correctness.
type RedisStore struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, config Config, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		config: config,
		logger: logger.With().Str("component", "cache-redis").Logger(),
	}
}

// Get returns the entry for key, or false on a miss. Any Redis or decode
// fault is a miss.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, bool) {
	cacheKey := key.String()

	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			Errors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("Cache get failed")
		}
		Misses.WithLabelValues(key.Kind).Inc()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		Errors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", cacheKey).Msg("Cache entry corrupted")
		_ = s.redis.Del(ctx, cacheKey).Err()
		Misses.WithLabelValues(key.Kind).Inc()
		return nil, false
	}

	// Redis expiry is authoritative, but clock skew between writers can
	// leave an entry past its own TTL. Treat it as a miss either way.
	if entry.Expired() {
		_ = s.redis.Del(ctx, cacheKey).Err()
		Misses.WithLabelValues(key.Kind).Inc()
		return nil, false
	}

	Hits.WithLabelValues(key.Kind).Inc()
	return &entry, true
}

// Set stores an entry with its TTL as the Redis expiry. Best-effort.
func (s *RedisStore) Set(ctx context.Context, key Key, entry *Entry) {
	if entry == nil || entry.TTL <= 0 {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		Errors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Msg("Cache entry marshal failed")
		return
	}

	if err := s.redis.Set(ctx, key.String(), data, entry.TTL).Err(); err != nil {
		Errors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache set failed")
	}
}

// Enabled reports the global kill-switch.
func (s *RedisStore) Enabled() bool {
	return s.config.Enabled
}

// TTLFor returns the default TTL for a kind.
func (s *RedisStore) TTLFor(kind string) time.Duration {
	return s.config.ttlFor(kind)
}

// Invalidate removes every entry for the kind.
func (s *RedisStore) Invalidate(ctx context.Context, kind string) int {
	return s.removeMatching(ctx, kind, "")
}

// InvalidateID removes only entries for the kind that encode the id.
func (s *RedisStore) InvalidateID(ctx context.Context, kind, id string) int {
	if id == "" {
		return 0
	}
	return s.removeMatching(ctx, kind, id)
}

func (s *RedisStore) removeMatching(ctx context.Context, kind, id string) int {
	removed := 0
	iter := s.redis.Scan(ctx, 0, kindPrefix(kind)+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if id != "" && !encodesID(key, id) {
			continue
		}
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			Errors.WithLabelValues("delete").Inc()
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		Errors.WithLabelValues("scan").Inc()
		s.logger.Warn().Err(err).Str("kind", kind).Msg("Cache scan failed during invalidation")
	}

	if removed > 0 {
		Invalidations.WithLabelValues(kind).Add(float64(removed))
		s.logger.Debug().
			Str("kind", kind).
			Str("id", id).
			Int("removed", removed).
			Msg("Cache invalidated")
	}
	return removed
}
