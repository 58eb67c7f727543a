package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/stats"
)

// StatsCache stores the partial statistics of archives keyed by their ETag
type StatsCache struct {
	backend domain.Cache
	ttl     time.Duration
}

// NewStatsCache wraps a cache backend. A nil backend disables caching.
func NewStatsCache(backend domain.Cache, ttl time.Duration) *StatsCache {
	if backend == nil {
		backend = NoopCache{}
	}
	return &StatsCache{backend: backend, ttl: ttl}
}

// Get returns the cached statistics of obj, or domain.ErrCacheMiss
func (c *StatsCache) Get(ctx context.Context, stage string, obj domain.ObjectInfo, title string) (*stats.Partial, error) {
	if obj.ETag == "" {
		return nil, domain.ErrCacheMiss
	}
	raw, err := c.backend.Get(ctx, StatsKey(stage, obj.Bucket, obj.Key, obj.ETag, title))
	if err != nil {
		return nil, err
	}
	var p stats.Partial
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Join(domain.ErrCacheMiss, err)
	}
	return &p, nil
}

// Put stores the statistics of obj
func (c *StatsCache) Put(ctx context.Context, stage string, obj domain.ObjectInfo, title string, p *stats.Partial) error {
	if obj.ETag == "" || p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, StatsKey(stage, obj.Bucket, obj.Key, obj.ETag, title), raw, c.ttl)
}

// Close releases the backend
func (c *StatsCache) Close() error {
	return c.backend.Close()
}
