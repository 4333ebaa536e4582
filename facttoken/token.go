// Package facttoken declares the write-token lease primitive: an
// externally issued, time-bounded lease enforcing single-writer
// leadership across processes for a SubscribedProjection.
package facttoken

import (
	"context"
	"time"
)

// Token is a held lease. Release must be safe to call more than once and
// must be guaranteed on all exit paths by the holder (typically via
// defer).
type Token interface {
	Key() string
	Release(ctx context.Context) error
}

// Provider acquires and renews write-token leases. Acquisition is
// non-blocking with a timeout hint: a Provider that cannot acquire within
// timeout returns ok=false rather than blocking indefinitely, so
// factengine.SubscribeAndBlock can retry on its own interval.
type Provider interface {
	Acquire(ctx context.Context, key string, timeout time.Duration) (Token, bool, error)
}
