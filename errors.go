// Package factrt is a client-side event-sourcing runtime: it materializes
// application-defined projections from an ordered stream of immutable
// facts, keeps them current via catchup or follow subscriptions, and
// mediates optimistic-locked publish operations conditional on projection
// state.
//
// The orchestration entry point is factengine.Engine. The data model lives
// in package fact. Everything else (factproj, factsnap, factsub, factlock,
// facttransport, facttoken, factmetrics, factconfig) is a supporting
// component wired together by the engine.
package factrt

import (
	"fmt"
)

// ClosedError is returned by any engine operation invoked after Close.
type ClosedError struct {
	Op string
}

// Error satisfies the error interface for ClosedError.
func (e ClosedError) Error() string {
	return fmt.Sprintf("factrt: %s called on a closed engine", e.Op)
}

// ArgumentError is returned when an entry point is invoked with the wrong
// projection shape, e.g. an Aggregate passed to Fetch instead of Find.
type ArgumentError struct {
	Op     string
	Reason string
}

// Error satisfies the error interface for ArgumentError.
func (e ArgumentError) Error() string {
	return fmt.Sprintf("factrt: %s: %s", e.Op, e.Reason)
}

// NestedLockError is returned when a publish path is entered while the
// calling goroutine already holds a lock, detected lexically via the
// context value carried down from WithLockOn (see factlock).
type NestedLockError struct{}

// Error satisfies the error interface for NestedLockError.
func (e NestedLockError) Error() string {
	return "factrt: publish attempted while a lock is already held on this call path"
}

// CatchupTimeoutError is returned when a catchup subscription does not
// reach its tail within maxWait.
type CatchupTimeoutError struct {
	ClassID string
	MaxWait string
}

// Error satisfies the error interface for CatchupTimeoutError.
func (e CatchupTimeoutError) Error() string {
	return fmt.Sprintf("factrt: catchup for %s did not complete within %s", e.ClassID, e.MaxWait)
}

// SerializationError wraps a failure to encode an event into a fact payload
// or to decode a snapshot/fact payload back into a value.
type SerializationError struct {
	ClassID string
	Cause   error
}

// Error satisfies the error interface for SerializationError.
func (e SerializationError) Error() string {
	return fmt.Sprintf("factrt: serialization failed for %s: %v", e.ClassID, e.Cause)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e SerializationError) Unwrap() error {
	return e.Cause
}

// UnhandledFactError is raised by a Projector when a dispatched fact
// matches none of the projection's declared handlers. It is fatal for the
// subscription that produced it.
type UnhandledFactError struct {
	ClassID   string
	Namespace string
	Type      string
	Version   int
}

// Error satisfies the error interface for UnhandledFactError.
func (e UnhandledFactError) Error() string {
	return fmt.Sprintf("factrt: %s has no handler for %s/%s v%d", e.ClassID, e.Namespace, e.Type, e.Version)
}

// ConcurrentModificationError is raised by the locking coordinator when a
// conditional publish is rejected because facts matching the projection's
// specs were appended after the cursor the publish was conditioned on. The
// coordinator retries internally up to its bound before surfacing
// LockExceededError.
type ConcurrentModificationError struct {
	ClassID string
	Cursor  string
}

// Error satisfies the error interface for ConcurrentModificationError.
func (e ConcurrentModificationError) Error() string {
	return fmt.Sprintf("factrt: concurrent modification of %s past cursor %s", e.ClassID, e.Cursor)
}

// LockExceededError is returned once the locking coordinator's retry bound
// is exhausted without a successful conditional publish.
type LockExceededError struct {
	ClassID string
	Retries int
}

// Error satisfies the error interface for LockExceededError.
func (e LockExceededError) Error() string {
	return fmt.Sprintf("factrt: %s exceeded %d lock retries", e.ClassID, e.Retries)
}

// SnapshotIOError wraps a failure from the snapshot blob cache. A read
// failure is treated by the caller as a cache miss; a write failure is
// logged and discarded without corrupting the in-memory projection.
type SnapshotIOError struct {
	Op    string
	Key   string
	Cause error
}

// Error satisfies the error interface for SnapshotIOError.
func (e SnapshotIOError) Error() string {
	return fmt.Sprintf("factrt: snapshot %s failed for key %s: %v", e.Op, e.Key, e.Cause)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e SnapshotIOError) Unwrap() error {
	return e.Cause
}

// TransportError wraps a failure reported by the fact store transport,
// either from publish or from a live subscription's onError callback.
type TransportError struct {
	Op    string
	Cause error
}

// Error satisfies the error interface for TransportError.
func (e TransportError) Error() string {
	return fmt.Sprintf("factrt: transport %s failed: %v", e.Op, e.Cause)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e TransportError) Unwrap() error {
	return e.Cause
}
