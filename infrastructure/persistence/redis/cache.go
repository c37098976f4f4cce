package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memo-backend/application/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// invalidateScript raises the fence in KEYS[2] to ARGV[1] (never lowering it),
// refreshes its expiry to ARGV[2] ms, then deletes the entry in KEYS[1].
var invalidateScript = goredis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
local version = tonumber(ARGV[1])
if current > version then version = current end
if tonumber(ARGV[2]) > 0 then
  redis.call('SET', KEYS[2], tostring(version), 'PX', ARGV[2])
else
  redis.call('SET', KEYS[2], tostring(version))
end
redis.call('DEL', KEYS[1])
return 1
`)

// setIfNewerScript writes ARGV[1] to KEYS[1] unless the fence in KEYS[2] is
// above ARGV[2]. ARGV[3] is the entry ttl in ms, 0 for none.
var setIfNewerScript = goredis.NewScript(`
local fence = tonumber(redis.call('GET', KEYS[2]) or '0')
if fence > tonumber(ARGV[2]) then return 0 end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// fenceKey hash-tags the entry key so both keys share a cluster slot
func fenceKey(key string) string {
	return fmt.Sprintf("{%s}:fence", key)
}

// Cache implements ports.Cache on a shared Redis client
type Cache struct {
	client goredis.UniversalClient
	logger *zap.Logger
}

// NewCache creates a new Redis-backed cache
func NewCache(client goredis.UniversalClient, logger *zap.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// NewClient creates a Redis client for addr
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

var _ ports.Cache = (*Cache)(nil)

// Get returns the stored bytes; a missing key is a miss, not an error
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value; a zero ttl keeps the key until it is deleted
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Invalidate deletes key and fences it at version for fenceTTL
func (c *Cache) Invalidate(ctx context.Context, key string, version int, fenceTTL time.Duration) error {
	return invalidateScript.Run(ctx, c.client, []string{key, fenceKey(key)},
		version, fenceTTL.Milliseconds()).Err()
}

// SetIfNewer stores value unless key is fenced above version
func (c *Cache) SetIfNewer(ctx context.Context, key string, value []byte, version int, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	stored, err := setIfNewerScript.Run(ctx, c.client, []string{key, fenceKey(key)},
		value, version, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Exists checks if key is present
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client connection pool
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Warn("Failed to close redis client", zap.Error(err))
		return err
	}
	return nil
}
