package storage

import (
	"context"
)

// NoopCache is a CacheInterface that caches nothing. It stands in when no
// Redis URL is configured: every Get is a miss, every write succeeds.
type NoopCache struct{}

// NewNoopCache returns a ready-to-use NoopCache.
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (n *NoopCache) Connect(url string) error {
	return nil
}

func (n *NoopCache) Disconnect() error {
	return nil
}

func (n *NoopCache) Set(ctx context.Context, key string, value interface{}) error {
	return nil
}

func (n *NoopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrCacheMiss
}

func (n *NoopCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (n *NoopCache) Clear(ctx context.Context) error {
	return nil
}

var _ CacheInterface = (*NoopCache)(nil)
