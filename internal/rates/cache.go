package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "rates:v1:"

// Cache stores the latest rate per symbol with a short TTL. Last writer wins
// per symbol; rates carry their own timestamps.
type Cache interface {
	GetRate(ctx context.Context, symbol string) (Rate, bool, error)
	SetRate(ctx context.Context, symbol string, rate Rate, ttl time.Duration) error
}

// RedisCache keeps rates in Redis so concurrent instances share one view.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an established Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetRate fetches the cached rate for a symbol.
func (c *RedisCache) GetRate(ctx context.Context, symbol string) (Rate, bool, error) {
	payload, err := c.client.Get(ctx, cachePrefix+symbol).Result()
	if err == redis.Nil {
		return Rate{}, false, nil
	}
	if err != nil {
		return Rate{}, false, fmt.Errorf("rate cache get %s: %w", symbol, err)
	}
	var rate Rate
	if err := json.Unmarshal([]byte(payload), &rate); err != nil {
		return Rate{}, false, fmt.Errorf("decode cached rate %s: %w", symbol, err)
	}
	return rate, true, nil
}

// SetRate stores the rate under the symbol key with the provided TTL.
func (c *RedisCache) SetRate(ctx context.Context, symbol string, rate Rate, ttl time.Duration) error {
	payload, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("encode rate %s: %w", symbol, err)
	}
	if err := c.client.Set(ctx, cachePrefix+symbol, payload, ttl).Err(); err != nil {
		return fmt.Errorf("rate cache set %s: %w", symbol, err)
	}
	return nil
}

type memoryCacheEntry struct {
	rate      Rate
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

// NewMemoryCache creates a concurrency-safe in-process cache useful for tests.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]memoryCacheEntry), now: time.Now}
}

func (c *memoryCache) GetRate(_ context.Context, symbol string) (Rate, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[symbol]
	if !ok || c.now().After(entry.expiresAt) {
		return Rate{}, false, nil
	}
	return entry.rate, true, nil
}

func (c *memoryCache) SetRate(_ context.Context, symbol string, rate Rate, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = memoryCacheEntry{rate: rate, expiresAt: c.now().Add(ttl)}
	return nil
}
