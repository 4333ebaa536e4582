// Package factlock implements the Locking Coordinator:
// optimistic-locked publish-on-state, retried against a bounded number of
// intervening facts.
package factlock

import "context"

type lockKey struct{}

// WithLock marks ctx as being inside a locked operation's closure. It
// replaces the source system's thread-local "InLockedOperation" flag
// with an explicit value threaded down the call stack, so
// nesting detection is lexical (derivable from which ctx a call received)
// rather than ambient (derivable only from which goroutine is running).
func WithLock(ctx context.Context) context.Context {
	return context.WithValue(ctx, lockKey{}, true)
}

// InLock reports whether ctx was derived from a context.Context passed to
// WithLock, i.e. whether the caller is already inside a locked closure.
func InLock(ctx context.Context) bool {
	v, _ := ctx.Value(lockKey{}).(bool)
	return v
}
