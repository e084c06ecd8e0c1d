package progress

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps a copy of each topic's furthest sampled position and of the
// player's last observed volume. The Tracker writes a position to it only
// when the sample is further than the cached one, and writes the Content
// Store alongside it; the store write is gated by the stored timestamp
// alone and does not depend on the cache. Cached positions are not read
// back for resuming playback.
type Cache interface {
	Get(ctx context.Context, topicID string) (float64, bool)
	Set(ctx context.Context, topicID string, elapsed float64)

	// GetVolume/SetVolume persist the player's last observed volume across
	// restarts (original's MpdBase.py behavior: restore volume on
	// reconnect instead of leaving it at the daemon's own default).
	GetVolume(ctx context.Context) (int, bool)
	SetVolume(ctx context.Context, volume int)
}

// RedisCache is the default Cache, grounded on the teacher's Valkey/Redis
// connection (cobblepod's CobblepodStateManager repurposed from a single
// "last run" marker to a per-topic position cache).
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache dials host:port. The connection is verified with a Ping so
// a misconfigured cache fails at startup, not on the first sample.
func NewRedisCache(ctx context.Context, host string, port int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
		DB:   0,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to progress cache: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func cacheKey(topicID string) string {
	return "progress:topic:" + topicID
}

func (c *RedisCache) Get(ctx context.Context, topicID string) (float64, bool) {
	val, err := c.client.Get(ctx, cacheKey(topicID)).Result()
	if err != nil {
		return 0, false
	}
	elapsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return elapsed, true
}

func (c *RedisCache) Set(ctx context.Context, topicID string, elapsed float64) {
	c.client.Set(ctx, cacheKey(topicID), strconv.FormatFloat(elapsed, 'f', -1, 64), c.ttl)
}

const volumeKey = "progress:volume"

func (c *RedisCache) GetVolume(ctx context.Context) (int, bool) {
	val, err := c.client.Get(ctx, volumeKey).Result()
	if err != nil {
		return 0, false
	}
	vol, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return vol, true
}

func (c *RedisCache) SetVolume(ctx context.Context, volume int) {
	c.client.Set(ctx, volumeKey, strconv.Itoa(volume), 0)
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NopCache disables the cache: nothing is kept, and store writes are the
// same as with any other Cache (gated by the monotone check in Tracker).
type NopCache struct{}

func (NopCache) Get(context.Context, string) (float64, bool) { return 0, false }
func (NopCache) Set(context.Context, string, float64)        {}
func (NopCache) GetVolume(context.Context) (int, bool)        { return 0, false }
func (NopCache) SetVolume(context.Context, int)               {}
