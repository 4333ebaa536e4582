// Package factproj defines the projection capability interfaces
// and the Projector that dispatches facts into them.
//
// Projections are never instantiated by reflection. Each class declares a
// Factory, handed to the engine in factengine.FetchSpec or FindSpec; the
// engine calls that factory instead of reflecting over a no-argument
// constructor.
package factproj

import (
	"context"

	"github.com/factline/factrt/fact"
)

// AggregateID identifies one instance of an Aggregate within its class.
type AggregateID string

// Handler binds a fact filter to the function that applies a matching
// fact to a projection. A projection's Handlers() is its complete,
// precomputed dispatch table; there is no runtime reflection over method
// shapes, so every handler is written out explicitly by the application.
type Handler struct {
	Spec  fact.Spec
	Apply func(ctx context.Context, f fact.Fact) error
}

// Declared is satisfied by anything that can list its own fact handlers.
// Both SnapshotProjection and ManagedProjection extend it.
type Declared interface {
	// ClassID is the stable, fully-qualified identity of the projection's
	// class, used as the first component of every snapshot key.
	ClassID() string
	// Handlers returns the projection's complete, precomputed dispatch
	// table. Called by NewProjector, once per Projector built for the
	// instance.
	Handlers() []Handler
}

// SnapshotProjection is serializable value-type state keyed by class
// identity alone. SchemaVersion participates in the snapshot
// key; bumping it invalidates every snapshot persisted under the old
// version.
type SnapshotProjection interface {
	Declared
	SchemaVersion() int
}

// Aggregate is a SnapshotProjection additionally tagged with a business
// identifier; keyed by (class identity, aggregate id).
type Aggregate interface {
	SnapshotProjection
	AggregateID() AggregateID
	// SetAggregateID is called exactly once, immediately after
	// construction from a Factory, for a freshly built (non-deserialized)
	// instance. Deserialized instances carry their id in their own state.
	SetAggregateID(AggregateID)
}

// ManagedProjection is externally persisted: the caller, not a snapshot
// repository, owns its storage. It exposes the state cursor (last-applied
// fact id) and an intra-process critical section that serializes mutation.
type ManagedProjection interface {
	Declared
	// Cursor returns the last fact id applied to this projection.
	Cursor() fact.ID
	// Advance records id as the new cursor. It must only be called from
	// inside ExecuteUpdate, and id's log position must be strictly
	// greater than the current cursor's. Neither the driver calling it nor
	// Managed re-checks this: monotonicity rests on the transport
	// delivering facts in log order.
	Advance(id fact.ID)
	// ExecuteUpdate runs fn with the projection's intra-process write lock
	// held, serializing it against any other ExecuteUpdate call on the
	// same instance. fn is expected to apply facts and call Advance via a
	// closure captured by the caller (see factsub.Driver).
	ExecuteUpdate(fn func() error) error
}

// Lifecycle is an optional capability a projection may additionally
// implement to observe subscription completion, catchup, and fatal
// errors.
type Lifecycle interface {
	OnCatchup()
	OnComplete()
	OnError(cause error)
}

// SubscribedProjection is a ManagedProjection additionally eligible for
// single-writer leadership across processes via a write-token lease. The
// token itself is owned and renewed by factengine; this interface only
// identifies which lease a given instance is driven by.
type SubscribedProjection interface {
	ManagedProjection
	// TokenKey names the write-token lease this projection is driven by.
	// Distinct SubscribedProjection classes may legitimately share a
	// TokenKey if the application wants them to fail over together.
	TokenKey() string
}

// Factory builds a fresh, zero-state instance of a projection class:
// applications register one Factory per class up front.
type Factory[P Declared] func() P

// Aggregates built via a Factory get their id assigned by the caller right
// after construction, via SetAggregateID — construction itself never
// takes the id as a parameter, so one Factory serves every id of a class.
