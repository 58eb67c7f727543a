package cache

import (
	"context"
	"time"

	"github.com/impresso/impresso-essentials-go/internal/domain"
)

// Ensure the implementations satisfy domain.Cache
var (
	_ domain.Cache = (*BadgerCache)(nil)
	_ domain.Cache = NoopCache{}
)

// Options contains cache configuration options
type Options struct {
	Directory string
	InMemory  bool
	Logger    bool
}

// DefaultOptions returns default cache options
func DefaultOptions() Options {
	return Options{
		Directory: "",
		InMemory:  false,
		Logger:    false,
	}
}

// NoopCache never stores anything; every lookup is a miss
type NoopCache struct{}

// Get always misses
func (NoopCache) Get(context.Context, string) ([]byte, error) { return nil, domain.ErrCacheMiss }

// Set discards the value
func (NoopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Has always reports false
func (NoopCache) Has(context.Context, string) bool { return false }

// Delete does nothing
func (NoopCache) Delete(context.Context, string) error { return nil }

// Close does nothing
func (NoopCache) Close() error { return nil }
