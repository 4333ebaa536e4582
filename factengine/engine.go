// Package factengine implements the Projection Engine, the
// single orchestration entry point applications hold: it wires the Event
// Converter, Projector, Snapshot Repositories, Subscription Driver,
// Locking Coordinator, write-token Provider, and Metrics Hooks into the
// five public operations — publish, fetch, find, update, subscribeAndBlock
// — plus withLockOn and close.
package factengine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/factline/factrt"
	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factconfig"
	"github.com/factline/factrt/factconv"
	"github.com/factline/factrt/factlock"
	"github.com/factline/factrt/factmetrics"
	"github.com/factline/factrt/factproj"
	"github.com/factline/factrt/factsnap"
	"github.com/factline/factrt/factsub"
	"github.com/factline/factrt/facttoken"
	"github.com/factline/factrt/facttransport"
	logging "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Engine is the runtime's single orchestration entry point. Build one via
// New per process (or per logical fact-store connection); it is safe for
// concurrent use by every goroutine in the process.
type Engine struct {
	transport facttransport.Client
	snapshots factsnap.Cache
	tokens    facttoken.Provider
	converter *factconv.Converter
	metrics   *factmetrics.Hooks
	cfg       factconfig.Config
	log       *logging.Entry

	driver      *factsub.Driver
	coordinator *factlock.Coordinator

	// loadGroup collapses concurrent Fetch/Find calls for the same class
	// (and, for Find, the same aggregate id) into a single snapshot-load
	// plus catchup, rather than racing two catchups against independently
	// built projection instances.
	loadGroup singleflight.Group

	// subGroup tracks every subscription opened by SubscribeAndBlock for
	// the lifetime of the engine; Wait surfaces a background
	// subscription's fatal failure instead of it going unnoticed until
	// the next unrelated call.
	subGroup *errgroup.Group
	subCtx   context.Context

	closed  atomic.Bool
	managed managedRegistry
}

// New builds an Engine. enc encodes application events into fact payloads
// (factconv.Encoder); cache is the snapshot blob store; tokens issues
// write-token leases for SubscribeAndBlock. metrics may be nil, in which
// case factmetrics.NoOp() is used.
func New(transport facttransport.Client, cache factsnap.Cache, tokens facttoken.Provider, enc factconv.Encoder, metrics *factmetrics.Hooks, cfg factconfig.Config) *Engine {
	if metrics == nil {
		metrics = factmetrics.NoOp()
	}
	log := factconfig.ComponentLogger("factengine")
	driver := factsub.New(transport, log)
	subGroup, subCtx := errgroup.WithContext(context.Background())
	e := &Engine{
		transport: transport,
		snapshots: cache,
		tokens:    tokens,
		converter: factconv.New(enc),
		metrics:   metrics,
		cfg:       cfg,
		log:       log,
		driver:    driver,
		subGroup:  subGroup,
		subCtx:    subCtx,
	}
	e.coordinator = factlock.New(transport, driver, log, cfg.LockRetryBound, cfg.DefaultMaxWait)
	return e
}

// Wait blocks until every subscription opened via SubscribeAndBlock has
// terminated, returning the first fatal error any of them reported (nil if
// they all ended through an ordinary Close). Close calls this internally
// during shutdown; an application that wants to detect a background
// subscription failure sooner can call it directly.
func (e *Engine) Wait() error {
	return e.subGroup.Wait()
}

// Closed reports whether Close has been called. The flag is set at the
// start of the first Close call, before managed objects are closed.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

func (e *Engine) checkOpen(op string) error {
	if e.closed.Load() {
		return factrt.ClosedError{Op: op}
	}
	return nil
}

// Close is idempotent: the first call marks the engine closed and closes
// every registered managed object (subscriptions, token leases) in LIFO
// order, swallowing individual close failures into a single warning log
// line rather than returning them. A
// second call is logged but returns nil.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		e.log.Warn("engine close called more than once")
		return nil
	}
	if err := e.managed.closeAll(); err != nil {
		e.log.WithError(err).Warn("one or more managed objects failed to close cleanly")
	}
	// closeAll has already closed every subscription, so every tracked
	// Wait(e.subCtx) call below is unblocking now; this just collects
	// whatever terminal errors they reported.
	if err := e.subGroup.Wait(); err != nil {
		e.log.WithError(err).Warn("a background subscription terminated with an error before close")
	}
	return nil
}

// Publish encodes events into facts and publishes them as a single batch.
// It is forbidden while a lock is held on ctx's call path.
func (e *Engine) Publish(ctx context.Context, events ...factconv.Declaration) ([]fact.ID, error) {
	if err := e.checkOpen("publish"); err != nil {
		return nil, err
	}
	if factlock.InLock(ctx) {
		return nil, factrt.NestedLockError{}
	}
	facts, err := e.converter.ToFacts(events, fact.Header{})
	if err != nil {
		return nil, err
	}
	if err := e.transport.Publish(ctx, facts...); err != nil {
		return nil, facttransport.WrapError("publish", err)
	}
	ids := make([]fact.ID, len(facts))
	for i, f := range facts {
		ids[i] = f.ID
	}
	return ids, nil
}

// FetchSpec binds a SnapshotProjection class to its snapshot descriptor
// and Factory, the explicit declaration factengine needs instead of
// reflecting over the class.
type FetchSpec[P factproj.SnapshotProjection] struct {
	Descriptor factsnap.ProjectionDescriptor[P]
	Factory    factproj.Factory[P]
	MaxWait    time.Duration
}

// Fetch loads P's latest snapshot, catches it up to the log's current
// tail, persists a new snapshot asynchronously if the cursor advanced, and
// returns the resulting instance. Passing a FindSpec to Fetch is a type
// error at the call site, but every Aggregate also satisfies Fetch's
// SnapshotProjection constraint, so Fetch checks P at runtime and returns
// factrt.ArgumentError when P is an Aggregate (Find is its entry point).
func Fetch[P factproj.SnapshotProjection](ctx context.Context, e *Engine, spec FetchSpec[P]) (P, error) {
	var zero P
	if err := e.checkOpen("fetch"); err != nil {
		return zero, err
	}
	if _, isAggregate := any(zero).(factproj.Aggregate); isAggregate {
		return zero, factrt.ArgumentError{Op: "fetch", Reason: spec.Descriptor.ClassID + " is an Aggregate; use Find"}
	}

	key := "fetch:" + spec.Descriptor.ClassID
	result, shared, err := e.loadGroup.Do(key, func() (interface{}, error) {
		return fetchOnce(ctx, e, spec)
	})
	if err != nil {
		return zero, err
	}
	v := result.(P)
	if shared {
		// A concurrent caller's fetch is riding this same Do call and
		// would otherwise receive the identical instance: clone it so
		// each caller gets its own point-in-time view instead of an
		// aliased, unsynchronized one.
		clone, err := cloneProjection(spec.Descriptor.Serializer, v)
		if err != nil {
			return zero, err
		}
		v = clone
	}
	return v, nil
}

// cloneProjection round-trips v through its own serializer to produce an
// independent copy, the one deep-copy mechanism available for an
// arbitrary application-defined projection type.
func cloneProjection[P any](s factsnap.Serializer[P], v P) (P, error) {
	var zero P
	b, err := s.Serialize(v)
	if err != nil {
		return zero, err
	}
	return s.Deserialize(b)
}

func fetchOnce[P factproj.SnapshotProjection](ctx context.Context, e *Engine, spec FetchSpec[P]) (P, error) {
	var zero P
	start := time.Now()

	maxWait := spec.MaxWait
	if maxWait == 0 {
		maxWait = e.cfg.DefaultMaxWait
	}

	repo := factsnap.NewProjectionRepository[P](e.snapshots, e.log)
	loaded, err := repo.FindLatest(ctx, spec.Descriptor)
	if err != nil {
		// Read failures are treated as a miss; fall through and rebuild.
		e.log.WithError(err).WithField("class", spec.Descriptor.ClassID).Warn("snapshot read failed, rebuilding from scratch")
	}

	v := loaded.Value
	cursor := loaded.Cursor
	if !loaded.Found {
		v = spec.Factory()
	} else {
		e.metrics.SetFetchSize(spec.Descriptor.ClassID, loaded.SizeBytes)
	}

	view := &cursorView{declared: v, cursor: cursor}
	projector := factproj.NewProjector(v)

	advanced, err := e.driver.Catchup(ctx, view, projector, maxWait)
	if err != nil {
		return zero, err
	}
	if advanced {
		persistProjection(e, spec.Descriptor, v, view.Cursor())
	}

	e.metrics.ObserveFetchDuration(spec.Descriptor.ClassID, time.Since(start))
	return v, nil
}

// FindSpec binds an Aggregate class to its snapshot descriptor and
// Factory.
type FindSpec[A factproj.Aggregate] struct {
	Descriptor factsnap.AggregateDescriptor[A]
	Factory    factproj.Factory[A]
	MaxWait    time.Duration
}

// Find loads (or rebuilds) an Aggregate instance by id. It returns
// found=false iff no snapshot existed for id AND catchup yielded no facts.
// Unlike Fetch, a persisted snapshot write is synchronous: PutBlocking
// completes before Find returns, since the caller is expected to act on
// the returned state immediately.
func Find[A factproj.Aggregate](ctx context.Context, e *Engine, spec FindSpec[A], id factproj.AggregateID) (A, bool, error) {
	var zero A
	if err := e.checkOpen("find"); err != nil {
		return zero, false, err
	}

	key := fmt.Sprintf("find:%s:%s", spec.Descriptor.ClassID, id)
	result, shared, err := e.loadGroup.Do(key, func() (interface{}, error) {
		return findOnce(ctx, e, spec, id)
	})
	if err != nil {
		return zero, false, err
	}
	r := result.(findResult[A])
	if shared && r.found {
		clone, err := cloneProjection(spec.Descriptor.Serializer, r.value)
		if err != nil {
			return zero, false, err
		}
		r.value = clone
	}
	return r.value, r.found, nil
}

// findResult bundles Find's (A, bool) pair into a single value so it can
// travel through singleflight.Group.Do, which returns one interface{}.
type findResult[A any] struct {
	value A
	found bool
}

func findOnce[A factproj.Aggregate](ctx context.Context, e *Engine, spec FindSpec[A], id factproj.AggregateID) (findResult[A], error) {
	var zero A
	start := time.Now()

	maxWait := spec.MaxWait
	if maxWait == 0 {
		maxWait = e.cfg.DefaultMaxWait
	}

	repo := factsnap.NewAggregateRepository[A](e.snapshots, e.log)
	loaded, err := repo.FindLatest(ctx, spec.Descriptor, string(id))
	if err != nil {
		e.log.WithError(err).WithField("class", spec.Descriptor.ClassID).Warn("snapshot read failed, rebuilding from scratch")
	}

	v := loaded.Value
	cursor := loaded.Cursor
	hadSnapshot := loaded.Found
	if !hadSnapshot {
		v = spec.Factory()
		v.SetAggregateID(id)
	} else {
		e.metrics.SetFetchSize(spec.Descriptor.ClassID, loaded.SizeBytes)
	}

	view := &cursorView{declared: v, cursor: cursor}
	projector := factproj.NewProjector(v)

	advanced, err := e.driver.Catchup(ctx, view, projector, maxWait)
	if err != nil {
		return findResult[A]{value: zero}, err
	}

	found := hadSnapshot || advanced
	if !found {
		e.metrics.ObserveFindDuration(spec.Descriptor.ClassID, time.Since(start))
		return findResult[A]{value: zero, found: false}, nil
	}

	if advanced {
		if err := repo.PutBlocking(ctx, spec.Descriptor, string(id), v, view.Cursor()); err != nil {
			e.log.WithError(err).WithField("class", spec.Descriptor.ClassID).Warn("synchronous snapshot write failed")
		}
	}

	e.metrics.ObserveFindDuration(spec.Descriptor.ClassID, time.Since(start))
	return findResult[A]{value: v, found: true}, nil
}

// Update acquires mp's intra-process write lock, catches it up from its
// current cursor, and releases the lock, bounded by maxWait. maxWait <= 0
// falls back to the engine's configured default. The write
// lock itself is acquired and released by mp.ExecuteUpdate, invoked
// internally by the Subscription Driver as it applies each fact.
func Update(ctx context.Context, e *Engine, mp factproj.ManagedProjection, maxWait time.Duration) error {
	if err := e.checkOpen("update"); err != nil {
		return err
	}
	if maxWait <= 0 {
		maxWait = e.cfg.DefaultMaxWait
	}
	start := time.Now()
	projector := factproj.NewProjector(mp)
	_, err := e.driver.Catchup(ctx, mp, projector, maxWait)
	e.metrics.ObserveUpdateDuration(mp.ClassID(), factlock.InLock(ctx), time.Since(start))
	return err
}

// persistProjection is a free function, not an Engine method, because Go
// does not allow a method to introduce its own type parameter. It spawns
// the asynchronous write and logs a failure rather than propagating it,
// matching the snapshot cache's fire-and-forget contract.
func persistProjection[P any](e *Engine, desc factsnap.ProjectionDescriptor[P], v P, cursor fact.ID) {
	repo := factsnap.NewProjectionRepository[P](e.snapshots, e.log)
	ch := repo.Put(context.Background(), desc, v, cursor)
	go func() {
		if err := <-ch; err != nil {
			e.log.WithError(err).WithField("class", desc.ClassID).Warn("asynchronous snapshot write failed")
		}
	}()
}
