package testutil

import (
	"testing"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/cache"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/stretchr/testify/require"
)

// NewBadgerCache creates an in-memory BadgerDB cache for testing
func NewBadgerCache(t *testing.T) domain.Cache {
	t.Helper()

	c, err := cache.NewBadgerCache(cache.Options{
		InMemory: true,
		Logger:   false,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
	})

	return c
}

// NewStatsCache creates a statistics cache over an in-memory BadgerDB
func NewStatsCache(t *testing.T) *cache.StatsCache {
	t.Helper()
	return cache.NewStatsCache(NewBadgerCache(t), time.Hour)
}
