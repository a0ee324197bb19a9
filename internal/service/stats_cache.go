package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/inbound-messages/internal/api"
)

const statsCacheKey = "inbound-messages:stats"

type redisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStatsCache caches the stats snapshot under a single key for at most ttl.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) StatsCache {
	return &redisStatsCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *redisStatsCache) Get(ctx context.Context) (*api.StatsResponse, bool) {
	data, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read stats from Redis", zap.Error(err))
		}
		return nil, false
	}

	var stats api.StatsResponse
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("Failed to decode cached stats", zap.Error(err))
		return nil, false
	}

	if stats.MessagesPerSender == nil {
		stats.MessagesPerSender = []api.SenderCount{}
	}

	return &stats, true
}

func (c *redisStatsCache) Set(ctx context.Context, stats *api.StatsResponse) {
	data, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("Failed to encode stats for cache", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, statsCacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache stats in Redis", zap.Error(err))
	}
}

func (c *redisStatsCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, statsCacheKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cached stats", zap.Error(err))
	}
}

type noopStatsCache struct{}

// NewNoopStatsCache returns a cache that never holds anything.
func NewNoopStatsCache() StatsCache {
	return noopStatsCache{}
}

func (noopStatsCache) Get(context.Context) (*api.StatsResponse, bool) { return nil, false }

func (noopStatsCache) Set(context.Context, *api.StatsResponse) {}

func (noopStatsCache) Invalidate(context.Context) {}
