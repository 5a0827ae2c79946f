// internal/app/store/ratelimits/redisstore.go
package ratelimitstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix namespaces counter keys in a shared Redis.
const DefaultKeyPrefix = "aimap:"

// RedisStore keeps each counter as a JSON string whose Redis TTL follows the
// counter's expires_at, so idle counters disappear without a sweep.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

func NewRedis(client *redis.Client, keyPrefix string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil for RedisStore")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, now: time.Now}
}

func (s *RedisStore) counterKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", s.keyPrefix, key)
}

func (s *RedisStore) Load(ctx context.Context, key string) (models.RateLimitCounter, bool, error) {
	raw, err := s.client.Get(ctx, s.counterKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RateLimitCounter{}, false, nil
	}
	if err != nil {
		return models.RateLimitCounter{}, false, fmt.Errorf("redis: get counter %s: %w", key, err)
	}
	var c models.RateLimitCounter
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.RateLimitCounter{}, false, fmt.Errorf("redis: decode counter %s: %w", key, err)
	}
	return c, true, nil
}

func (s *RedisStore) Save(ctx context.Context, c models.RateLimitCounter) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis: encode counter %s: %w", c.Key, err)
	}
	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, s.counterKey(c.Key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set counter %s: %w", c.Key, err)
	}
	return nil
}
