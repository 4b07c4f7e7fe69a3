package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "quotes:v1:"

// Cache provides fast redemption lookups keyed by quote ID. Entries carry
// the quote's remaining validity as TTL so the cache can never outlive the
// quote itself.
type Cache interface {
	GetQuote(ctx context.Context, id string) (ConversionQuote, bool, error)
	SetQuote(ctx context.Context, q ConversionQuote, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// RedisCache keeps quotes in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an established Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetQuote fetches a cached quote by ID.
func (c *RedisCache) GetQuote(ctx context.Context, id string) (ConversionQuote, bool, error) {
	payload, err := c.client.Get(ctx, cachePrefix+id).Result()
	if err == redis.Nil {
		return ConversionQuote{}, false, nil
	}
	if err != nil {
		return ConversionQuote{}, false, fmt.Errorf("quote cache get %s: %w", id, err)
	}
	var q ConversionQuote
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return ConversionQuote{}, false, fmt.Errorf("decode cached quote %s: %w", id, err)
	}
	return q, true, nil
}

// SetQuote stores the quote with the provided TTL.
func (c *RedisCache) SetQuote(ctx context.Context, q ConversionQuote, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", q.ID, err)
	}
	if err := c.client.Set(ctx, cachePrefix+q.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("quote cache set %s: %w", q.ID, err)
	}
	return nil
}

// Delete drops the cached quote.
func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, cachePrefix+id).Err()
}

type memoryCacheEntry struct {
	quote     ConversionQuote
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
}

// NewMemoryCache creates an in-process quote cache for tests.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *memoryCache) GetQuote(_ context.Context, id string) (ConversionQuote, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return ConversionQuote{}, false, nil
	}
	return entry.quote, true, nil
}

func (c *memoryCache) SetQuote(_ context.Context, q ConversionQuote, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[q.ID] = memoryCacheEntry{quote: q, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *memoryCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}
