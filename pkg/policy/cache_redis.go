package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCache persists validated policy document bytes in Redis,
// keyed by path and content hash, for a cache shared across replicas
// of the boundary running behind a load balancer.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr (host:port) and returns a RedisCache
// using keyPrefix ("invariant:policy:" if empty) to namespace entries.
func NewRedisCache(addr, password string, db int, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "invariant:policy:"
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		prefix: keyPrefix,
	}
}

// NewRedisCacheFromURL is NewRedisCache for a redis:// connection URL,
// the form INVARIANT_REDIS_URL carries.
func NewRedisCacheFromURL(rawURL, keyPrefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("policy: redis url %q: %w", rawURL, err)
	}
	if keyPrefix == "" {
		keyPrefix = "invariant:policy:"
	}
	return &RedisCache{client: redis.NewClient(opts), prefix: keyPrefix}, nil
}

func (c *RedisCache) redisKey(key CacheKey) string {
	return c.prefix + key.Path + ":" + key.ContentHash
}

func (c *RedisCache) Get(ctx context.Context, key CacheKey) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("policy: redis cache lookup: %w", err)
	}
	return raw, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key CacheKey, raw []byte) error {
	// 0 TTL: entries are immutable under their content-addressed key,
	// so there is nothing to expire.
	if err := c.client.SetNX(ctx, c.redisKey(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("policy: redis cache write: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error { return c.client.Close() }
