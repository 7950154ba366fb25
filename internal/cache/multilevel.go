package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MultiLevelCache fronts Redis with a circuit breaker and, optionally, an
// in-process L1. With no L2 it behaves as a plain MemoryCache.
//
// The L1 is only enabled in front of Redis when LocalTTL is positive. It is
// never invalidated by other processes, so it is safe for single-instance
// deployments only.
//
// Invalidations that fail while Redis is unreachable are kept and replayed
// before the next Redis read, so a recovered Redis never serves a value this
// process already invalidated.
type MultiLevelCache struct {
	l1       *MemoryCache
	l2       *RedisCache
	local    bool
	breaker  *CircuitBreaker
	metrics  *CacheMetrics
	localTTL time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

type MultiLevelConfig struct {
	// LocalTTL caps how long the L1 holds a value. Zero disables the L1
	// when Redis is configured.
	LocalTTL        time.Duration
	MaxLocalEntries int
	Breaker         *CircuitBreakerConfig
}

func NewMultiLevelCache(redisCache *RedisCache, config *MultiLevelConfig) *MultiLevelCache {
	if config == nil {
		config = &MultiLevelConfig{}
	}

	return &MultiLevelCache{
		l1:       NewMemoryCache(config.MaxLocalEntries),
		l2:       redisCache,
		local:    redisCache == nil || config.LocalTTL > 0,
		breaker:  NewCircuitBreaker(config.Breaker),
		metrics:  NewCacheMetrics(),
		localTTL: config.LocalTTL,
		pending:  make(map[string]struct{}),
	}
}

func (c *MultiLevelCache) localExpiry(ttl time.Duration) time.Duration {
	if c.localTTL <= 0 {
		return ttl
	}
	if ttl <= 0 || ttl > c.localTTL {
		return c.localTTL
	}
	return ttl
}

func (c *MultiLevelCache) remote(fn func() error) error {
	if err := c.breaker.Execute(fn); err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	return nil
}

// flush deletes keys from Redis together with any invalidations still
// pending from an outage. On failure the keys join the pending set.
func (c *MultiLevelCache) flush(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	batch := make([]string, 0, len(c.pending)+len(keys))
	for k := range c.pending {
		batch = append(batch, k)
	}
	c.mu.Unlock()
	batch = append(batch, keys...)

	if len(batch) == 0 {
		return nil
	}

	err := c.remote(func() error {
		return c.l2.Delete(ctx, batch...)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		for _, k := range keys {
			c.pending[k] = struct{}{}
		}
		return err
	}
	for _, k := range batch {
		delete(c.pending, k)
	}
	return nil
}

func (c *MultiLevelCache) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.local {
		if err := c.l1.Set(ctx, key, value, c.localExpiry(ttl)); err != nil {
			c.metrics.RecordError()
			return err
		}
	}
	c.metrics.RecordSet()

	if c.l2 == nil {
		return nil
	}

	return c.remote(func() error {
		return c.l2.Set(ctx, key, value, ttl)
	})
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.local {
		if err := c.l1.Get(ctx, key, dest); err == nil {
			c.metrics.RecordHit()
			return nil
		}
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	localVersion, _ := c.l1.Version(ctx, key)

	if err := c.flush(ctx); err != nil {
		return err
	}

	hit := false
	err := c.remote(func() error {
		// A miss is a healthy answer and must not count against the breaker.
		err := c.l2.Get(ctx, key, dest)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})
	if err != nil {
		return err
	}

	if !hit {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	c.metrics.RecordHit()
	if c.local {
		_, _ = c.l1.SetIfVersion(ctx, key, dest, c.localExpiry(0), localVersion)
	}
	return nil
}

// Version returns the invalidation counter a later SetIfVersion is checked
// against. With Redis configured the counter is shared by every process.
func (c *MultiLevelCache) Version(ctx context.Context, key string) (int64, error) {
	if c.l2 == nil {
		return c.l1.Version(ctx, key)
	}

	if err := c.flush(ctx); err != nil {
		return 0, err
	}

	var version int64
	err := c.remote(func() error {
		var err error
		version, err = c.l2.Version(ctx, key)
		return err
	})
	return version, err
}

func (c *MultiLevelCache) SetIfVersion(ctx context.Context, key string, value interface{}, ttl time.Duration, version int64) (bool, error) {
	if c.l2 == nil {
		stored, err := c.l1.SetIfVersion(ctx, key, value, c.localExpiry(ttl), version)
		c.recordFill(stored, err)
		return stored, err
	}

	localVersion, _ := c.l1.Version(ctx, key)

	var stored bool
	err := c.remote(func() error {
		var err error
		stored, err = c.l2.SetIfVersion(ctx, key, value, ttl, version)
		return err
	})
	c.recordFill(stored, err)
	if err != nil || !stored {
		return stored, err
	}

	if c.local {
		_, _ = c.l1.SetIfVersion(ctx, key, value, c.localExpiry(ttl), localVersion)
	}
	return true, nil
}

func (c *MultiLevelCache) recordFill(stored bool, err error) {
	switch {
	case err != nil:
		c.metrics.RecordError()
	case stored:
		c.metrics.RecordSet()
	default:
		c.metrics.RecordStaleFill()
	}
}

// Delete invalidates Redis before the L1 so a concurrent L1 backfill of the
// old value is either rejected or removed.
func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	c.metrics.RecordDelete()

	var err error
	if c.l2 != nil {
		err = c.flush(ctx, keys...)
	}

	_ = c.l1.Delete(ctx, keys...)
	return err
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	c.metrics.RecordDelete()

	var err error
	if c.l2 != nil {
		err = c.remote(func() error {
			return c.l2.DeletePattern(ctx, pattern)
		})
	}

	if lerr := c.l1.DeletePattern(ctx, pattern); lerr != nil {
		return lerr
	}
	return err
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Health(ctx)
}

func (c *MultiLevelCache) Metrics() *CacheMetrics {
	return c.metrics
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":       c.l1.Stats(),
		"local":    c.local,
		"metrics":  c.metrics.Snapshot(),
		"hit_rate": c.metrics.HitRate(),
		"breaker":  c.breaker.GetStats(),
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
		stats["pending_invalidations"] = c.pendingCount()
	}

	return stats
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
