package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKey is the Redis key holding the snapshot document.
const DefaultRedisKey = "frame:cache:snapshot"

// RedisStore persists the snapshot document under a single Redis key, for
// deployments where the service does not own local disk.
type RedisStore struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, key string, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		redis:  redisClient,
		key:    key,
		logger: logger,
	}
}

// Load reads the snapshot document. A missing key or unreadable value falls
// back to an empty snapshot; neither is an error.
func (s *RedisStore) Load(ctx context.Context) *Snapshot {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			loadFallbacks.WithLabelValues("missing").Inc()
			s.logger.Info().Str("key", s.key).Msg("No cache snapshot in Redis, starting fresh")
		} else {
			loadFallbacks.WithLabelValues("redis").Inc()
			s.logger.Warn().Err(err).Str("key", s.key).Msg("Redis get failed, starting fresh")
		}
		return New()
	}

	snap := New()
	if err := json.Unmarshal(data, snap); err != nil {
		loadFallbacks.WithLabelValues("parse").Inc()
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Cache snapshot unparseable, starting fresh")
		return New()
	}
	if snap.Queries == nil {
		snap.Queries = make(map[string]*QueryEntry)
	}

	s.logger.Info().
		Str("key", s.key).
		Int("queries", len(snap.Queries)).
		Int("update_count", snap.UpdateCountToday).
		Msg("Loaded cache snapshot")

	return snap
}

// Save serializes the full snapshot and overwrites the Redis key.
// The document has no TTL; the refresh scheduler owns its lifecycle.
func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		storeErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		storeErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	saves.Inc()
	sizeBytes.WithLabelValues("redis").Set(float64(len(data)))
	s.logger.Debug().Str("key", s.key).Int("bytes", len(data)).Msg("Saved cache snapshot")

	return nil
}
