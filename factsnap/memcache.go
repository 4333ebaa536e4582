package factsnap

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemCache is the default in-process SnapshotCache, backed by
// patrickmn/go-cache. It is the
// obvious default before an application wires a real shared blob store
// (Redis, S3, ...) behind the same Cache interface. The repo's engine and
// repository tests use factmem.Cache or a local fake instead.
type MemCache struct {
	cache *gocache.Cache
}

// NewMemCache builds a MemCache whose entries expire after ttl (0 disables
// expiry) and are swept every cleanupInterval.
func NewMemCache(ttl, cleanupInterval time.Duration) *MemCache {
	return &MemCache{cache: gocache.New(ttl, cleanupInterval)}
}

// GetSnapshot implements Cache.
func (m *MemCache) GetSnapshot(_ context.Context, key string) (Snapshot, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return Snapshot{}, false, nil
	}
	snap, ok := v.(Snapshot)
	if !ok {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// SetSnapshot implements Cache.
func (m *MemCache) SetSnapshot(_ context.Context, snap Snapshot) error {
	m.cache.SetDefault(snap.Key, snap)
	return nil
}

// DeleteSnapshot implements Cache.
func (m *MemCache) DeleteSnapshot(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}
