package factengine

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// closer is a single registered shutdown hook: a name for logging and the
// func to invoke. This replaces the source system's untyped drop-box of
// heterogeneous AutoCloseable handles with a small typed
// list, closed in LIFO order so a later registration (e.g. a follow
// subscription) tears down before an earlier one it may depend on (e.g.
// the token it was opened under).
type closer struct {
	name string
	fn   func() error
}

// managedRegistry is the engine's set of managed objects: mutated only by
// the engine's own subscribeAndBlock control loop, by Subscription.Close
// (via closeOne) and by Close, guarded by an internal mutex rather than
// requiring the caller to synchronize.
type managedRegistry struct {
	mu      sync.Mutex
	closers []closer
}

// register appends a new shutdown hook, returning a token that lets the
// caller close it early via closeOne (e.g. subscribeAndBlock's caller
// closing its own handle before engine shutdown).
func (r *managedRegistry) register(name string, fn func() error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, closer{name: name, fn: fn})
	return len(r.closers) - 1
}

// closeOne invokes and clears the hook at token, if still present. A
// second call (or a call after closeAll has already run) is a no-op,
// since the hook is cleared before closeAll or closeOne can race it.
func (r *managedRegistry) closeOne(token int) error {
	r.mu.Lock()
	if token < 0 || token >= len(r.closers) || r.closers[token].fn == nil {
		r.mu.Unlock()
		return nil
	}
	fn := r.closers[token].fn
	r.closers[token].fn = nil
	r.mu.Unlock()
	return fn()
}

// closeAll invokes every still-registered hook in LIFO order, aggregating
// individual failures (logged at warning by the caller, not here) into a
// single *multierror.Error rather than stopping at the first failure —
// every managed object must get a chance to close.
func (r *managedRegistry) closeAll() error {
	r.mu.Lock()
	closers := make([]closer, len(r.closers))
	copy(closers, r.closers)
	r.closers = nil
	r.mu.Unlock()

	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if c.fn == nil {
			continue
		}
		if err := c.fn(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	if result == nil {
		return nil
	}
	return result
}
