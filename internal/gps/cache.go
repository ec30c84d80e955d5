package gps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// LocationCache holds the last known position per bus with an expiration.
// Put is an unconditional overwrite; Get returns nil without error when no
// recent fix exists.
type LocationCache interface {
	Put(ctx context.Context, sample Sample, ttl time.Duration) error
	Get(ctx context.Context, busID string) (*Sample, error)
}

func locationKey(busID string) string {
	return "bus:" + busID + ":location"
}

// RedisCache is a LocationCache on a shared Redis instance, reachable by all
// gateway processes.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed location cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Put(ctx context.Context, sample Sample, ttl time.Duration) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode location for bus %s: %w", sample.BusID, err)
	}
	if err := c.client.Set(ctx, locationKey(sample.BusID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache location for bus %s: %w", sample.BusID, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, busID string) (*Sample, error) {
	payload, err := c.client.Get(ctx, locationKey(busID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read location for bus %s: %w", busID, err)
	}
	var sample Sample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return nil, fmt.Errorf("failed to decode cached location for bus %s: %w", busID, err)
	}
	return &sample, nil
}

// MemoryCache is an in-process LocationCache for single-node deployments and
// tests. Expired entries are swept by the go-cache janitor and also rejected
// at read time.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates an in-process location cache.
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (c *MemoryCache) Put(_ context.Context, sample Sample, ttl time.Duration) error {
	c.store.Set(locationKey(sample.BusID), sample, ttl)
	return nil
}

func (c *MemoryCache) Get(_ context.Context, busID string) (*Sample, error) {
	v, found := c.store.Get(locationKey(busID))
	if !found {
		return nil, nil
	}
	sample := v.(Sample)
	return &sample, nil
}
