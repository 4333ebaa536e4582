package factmem

import (
	"context"
	"sync"
	"time"

	"github.com/factline/factrt/facttoken"
)

// TokenProvider is a facttoken.Provider that fails the number of
// acquisitions for a key set by FailNextAcquires before delegating to an embedded
// facttoken.LeaseProvider, for exercising the boundary case where initial
// token acquisition fails a few times before it succeeds.
type TokenProvider struct {
	mu       sync.Mutex
	delegate *facttoken.LeaseProvider
	failLeft map[string]int
	Attempts map[string]int
}

// NewTokenProvider builds a TokenProvider backed by a fresh LeaseProvider
// with the given lease ttl.
func NewTokenProvider(ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		delegate: facttoken.NewLeaseProvider(ttl),
		failLeft: make(map[string]int),
		Attempts: make(map[string]int),
	}
}

// FailNextAcquires configures the next n Acquire calls for key to return
// ok=false (simulating contention), before calls start succeeding.
func (p *TokenProvider) FailNextAcquires(key string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLeft[key] = n
}

// Acquire implements facttoken.Provider.
func (p *TokenProvider) Acquire(ctx context.Context, key string, timeout time.Duration) (facttoken.Token, bool, error) {
	p.mu.Lock()
	p.Attempts[key]++
	if p.failLeft[key] > 0 {
		p.failLeft[key]--
		p.mu.Unlock()
		return nil, false, nil
	}
	p.mu.Unlock()
	return p.delegate.Acquire(ctx, key, timeout)
}
