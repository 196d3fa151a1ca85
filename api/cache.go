/*
cache.go - Report cache in front of expensive revenue queries

PURPOSE:
  Revenue reports scan and aggregate large ranges, so computed answers are
  kept for a TTL and served from cache on repeat requests. Redis backs the
  cache in deployment; the in-memory implementation serves tests and
  redis-less runs.

SEMANTICS:
  Best effort. A cache failure is logged and treated as a miss; reports
  never fail because the cache is down.
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long computed reports stay fresh.
const DefaultCacheTTL = 30 * time.Minute

// Cache stores serialized report payloads by key.
type Cache interface {
	// Get returns the cached payload and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a payload for ttl. Failures are swallowed.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// =============================================================================
// REDIS CACHE
// =============================================================================

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the given address and verifies it with a ping.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[Cache] Get %s failed: %v", key, err)
		return nil, false
	}
	return payload, true
}

func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		log.Printf("[Cache] Set %s failed: %v", key, err)
	}
}

// Close releases the underlying connection.
func (c *RedisCache) Close() error { return c.client.Close() }

// =============================================================================
// MEMORY CACHE - for tests and redis-less deployments
// =============================================================================

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.payload, true
}

func (c *MemoryCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: c.now().Add(ttl)}
}
