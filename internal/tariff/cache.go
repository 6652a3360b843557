package tariff

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"market-delivery/internal/domain"
)

// DefaultTTL is how long a fetched tariff stays fresh.
const DefaultTTL = 60 * time.Second

type Cache interface {
	Get(ctx context.Context) (domain.Tariff, bool, error)
	Set(ctx context.Context, t domain.Tariff) error
	Invalidate(ctx context.Context) error
}

// MemoryCache keeps the tariff in process memory.
type MemoryCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	tariff    domain.Tariff
	fetchedAt time.Time
	ok        bool
}

// NewMemoryCache builds a cache with the given TTL; now defaults to time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{ttl: ttl, now: now}
}

func (c *MemoryCache) Get(ctx context.Context) (domain.Tariff, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok || c.now().Sub(c.fetchedAt) >= c.ttl {
		return domain.Tariff{}, false, nil
	}
	return c.tariff, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, t domain.Tariff) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tariff = t
	c.fetchedAt = c.now()
	c.ok = true
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok = false
	return nil
}

// RedisCache shares one cached tariff between replicas; expiry is left to Redis.
type RedisCache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = "delivery:tariff"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, key: key, ttl: ttl}
}

type cachedTariff struct {
	BaseFee float64 `json:"base_fee"`
	PerKm   float64 `json:"per_km"`
	MinFee  float64 `json:"min_fee"`
	MaxFee  float64 `json:"max_fee"`
}

func (c *RedisCache) Get(ctx context.Context) (domain.Tariff, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Tariff{}, false, nil
		}
		return domain.Tariff{}, false, err
	}
	var ct cachedTariff
	if err := json.Unmarshal(data, &ct); err != nil {
		return domain.Tariff{}, false, err
	}
	return domain.Tariff{BaseFee: ct.BaseFee, PerKm: ct.PerKm, MinFee: ct.MinFee, MaxFee: ct.MaxFee}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, t domain.Tariff) error {
	data, err := json.Marshal(cachedTariff{BaseFee: t.BaseFee, PerKm: t.PerKm, MinFee: t.MinFee, MaxFee: t.MaxFee})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
