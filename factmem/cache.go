package factmem

import (
	"context"
	"sync"
	"time"

	"github.com/factline/factrt/factsnap"
)

// Cache is an in-memory factsnap.Cache, with every Put recorded so tests
// can assert how many writes happened and with what cursor.
type Cache struct {
	mu    sync.Mutex
	store map[string]factsnap.Snapshot
	Puts  []factsnap.Snapshot
	Gets  []string

	// FailGet, if set, is returned by the next GetSnapshot call instead of
	// a normal lookup, then cleared. Used to exercise the SnapshotIOError
	// read-treated-as-miss policy.
	FailGet error
	// FailSet, if set, is returned by the next SetSnapshot call instead of
	// a normal write, then cleared.
	FailSet error
	// GetDelay, if set, is slept at the top of every GetSnapshot call.
	// Used to widen the window in which concurrent same-key loads
	// overlap, so a test can reliably exercise singleflight sharing.
	GetDelay time.Duration
}

// NewCache builds an empty in-memory cache.
func NewCache() *Cache {
	return &Cache{store: make(map[string]factsnap.Snapshot)}
}

// GetSnapshot implements factsnap.Cache.
func (c *Cache) GetSnapshot(_ context.Context, key string) (factsnap.Snapshot, bool, error) {
	c.mu.Lock()
	delay := c.GetDelay
	c.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets = append(c.Gets, key)
	if c.FailGet != nil {
		err := c.FailGet
		c.FailGet = nil
		return factsnap.Snapshot{}, false, err
	}
	snap, ok := c.store[key]
	return snap, ok, nil
}

// SetSnapshot implements factsnap.Cache.
func (c *Cache) SetSnapshot(_ context.Context, snap factsnap.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailSet != nil {
		err := c.FailSet
		c.FailSet = nil
		return err
	}
	c.store[snap.Key] = snap
	c.Puts = append(c.Puts, snap)
	return nil
}

// DeleteSnapshot implements factsnap.Cache.
func (c *Cache) DeleteSnapshot(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// PutCount reports how many successful writes have landed, for test
// assertions like "the snapshot repository received exactly one put".
func (c *Cache) PutCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Puts)
}
