package facttoken

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LeaseProvider is a single-process Provider: it grants at most one live
// lease per key at a time, tracked by an expiry so a crashed holder that
// never called Release eventually frees the key. It is the default
// Provider for a single-process deployment and the basis for
// facttoken-fake test doubles that wrap it with induced failures.
type LeaseProvider struct {
	mu      sync.Mutex
	leases  map[string]string // key -> holder id
	expires map[string]time.Time
	ttl     time.Duration
}

// NewLeaseProvider builds a LeaseProvider whose leases expire after ttl if
// never renewed or released.
func NewLeaseProvider(ttl time.Duration) *LeaseProvider {
	return &LeaseProvider{
		leases:  make(map[string]string),
		expires: make(map[string]time.Time),
		ttl:     ttl,
	}
}

// Acquire implements Provider.
func (p *LeaseProvider) Acquire(_ context.Context, key string, _ time.Duration) (Token, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if holder, held := p.leases[key]; held {
		if time.Now().Before(p.expires[key]) {
			return nil, false, nil
		}
		_ = holder // expired; fall through and reassign
	}

	holder := uuid.NewString()
	p.leases[key] = holder
	p.expires[key] = time.Now().Add(p.ttl)
	return &lease{provider: p, key: key, holder: holder}, true, nil
}

// renew extends a held lease's expiry; it is a no-op if the lease was
// already reassigned to a different holder.
func (p *LeaseProvider) renew(key, holder string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.leases[key] != holder {
		return false
	}
	p.expires[key] = time.Now().Add(p.ttl)
	return true
}

func (p *LeaseProvider) release(key, holder string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.leases[key] == holder {
		delete(p.leases, key)
		delete(p.expires, key)
	}
}

type lease struct {
	provider *LeaseProvider
	key      string
	holder   string
}

func (l *lease) Key() string { return l.key }

// Release frees the lease. Safe to call more than once.
func (l *lease) Release(_ context.Context) error {
	l.provider.release(l.key, l.holder)
	return nil
}

// Renew extends the lease's expiry. Not part of the Token interface
// (renewal is each provider's own concern, not every Token's), but
// exposed via an optional interface so a renewal loop can opt in when the
// concrete Token supports it.
func (l *lease) Renew(_ context.Context) error {
	if !l.provider.renew(l.key, l.holder) {
		return errLeaseLost
	}
	return nil
}

var errLeaseLost = errors.New("facttoken: lease was reassigned to another holder")
