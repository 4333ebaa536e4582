package factengine

import (
	"context"

	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factconv"
	"github.com/factline/factrt/factlock"
	"github.com/factline/factrt/factproj"
	"github.com/factline/factrt/factsnap"
)

// Locked is the withLockOn builder: parameterized by a freshly
// materialized Aggregate view and its specs, it exposes Run, which drives
// the view through the Locking Coordinator.
type Locked[A factproj.Aggregate] struct {
	engine *Engine
	spec   FindSpec[A]
	id     factproj.AggregateID
}

// WithLockOn builds a Locked[A] over the aggregate identified by id. No
// I/O happens until Run is called.
func WithLockOn[A factproj.Aggregate](e *Engine, spec FindSpec[A], id factproj.AggregateID) *Locked[A] {
	return &Locked[A]{engine: e, spec: spec, id: id}
}

// LockedFn produces candidate events from the freshly caught-up view, or
// an empty slice for a no-op.
type LockedFn[A factproj.Aggregate] func(ctx context.Context, view A) ([]factconv.Declaration, error)

// Run executes fn under optimistic locking: the view is caught up fresh on
// every attempt, fn's candidate events are converted to facts and
// conditionally published, and conflicts are retried up to the engine's
// configured bound. It returns the ids of the facts that
// were actually published, or nil if fn produced no events.
func (l *Locked[A]) Run(ctx context.Context, fn LockedFn[A]) ([]fact.ID, error) {
	if err := l.engine.checkOpen("withLockOn"); err != nil {
		return nil, err
	}

	v := l.spec.Factory()
	v.SetAggregateID(l.id)

	repo := factsnap.NewAggregateRepository[A](l.engine.snapshots, l.engine.log)
	loaded, err := repo.FindLatest(ctx, l.spec.Descriptor, string(l.id))
	if err != nil {
		l.engine.log.WithError(err).WithField("class", l.spec.Descriptor.ClassID).Warn("snapshot read failed, rebuilding from scratch")
	}
	if loaded.Found {
		v = loaded.Value
	}

	view := &cursorView{declared: v, cursor: loaded.Cursor}
	projector := factproj.NewProjector(v)

	wrapped := func(ctx context.Context, _ factproj.ManagedProjection) ([]fact.Fact, error) {
		events, err := fn(ctx, v)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return nil, nil
		}
		return l.engine.converter.ToFacts(events, fact.Header{})
	}

	ids, err := l.engine.coordinator.Run(ctx, view, projector, wrapped)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		persistAggregate(l.engine, l.spec.Descriptor, string(l.id), v, view.Cursor())
	}
	return ids, nil
}

// persistAggregate mirrors persistProjection for the Aggregate repository;
// kept as its own free function for the same reason (no generic methods).
func persistAggregate[A any](e *Engine, desc factsnap.AggregateDescriptor[A], id string, v A, cursor fact.ID) {
	repo := factsnap.NewAggregateRepository[A](e.snapshots, e.log)
	ch := repo.Put(context.Background(), desc, id, v, cursor)
	go func() {
		if err := <-ch; err != nil {
			e.log.WithError(err).WithField("class", desc.ClassID).Warn("asynchronous snapshot write failed")
		}
	}()
}

// InLock reports whether ctx is already inside a locked operation's
// closure, re-exported from factlock so callers need not import it
// directly just to guard a Publish call.
func InLock(ctx context.Context) bool {
	return factlock.InLock(ctx)
}
