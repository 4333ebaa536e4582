package factlock

import (
	"context"
	"time"

	"github.com/factline/factrt"
	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factproj"
	"github.com/factline/factrt/facttransport"
	"github.com/factline/factrt/factsub"
	logging "github.com/sirupsen/logrus"
)

// ConditionalPublisher is the preferred transport capability for
// publishing facts only if no fact matching a set of specs exists past a
// given cursor position. A facttransport.Client that implements it is
// used directly; one that doesn't falls back to the simulated variant
// (Coordinator.simulate).
type ConditionalPublisher interface {
	PublishIf(ctx context.Context, facts []fact.Fact, specs fact.Specs, after fact.ID) error
}

// Coordinator executes a user publish closure under optimistic locking.
type Coordinator struct {
	transport  facttransport.Client
	driver     *factsub.Driver
	log        *logging.Entry
	retryBound int
	catchupMax time.Duration
}

// New builds a Coordinator. retryBound is the small positive integer
// bounding optimistic publish retries; catchupMax bounds each internal
// re-catchup.
func New(transport facttransport.Client, driver *factsub.Driver, log *logging.Entry, retryBound int, catchupMax time.Duration) *Coordinator {
	if retryBound <= 0 {
		retryBound = 3
	}
	if log == nil {
		log = logging.WithField("component", "factlock")
	}
	return &Coordinator{
		transport:  transport,
		driver:     driver,
		log:        log,
		retryBound: retryBound,
		catchupMax: catchupMax,
	}
}

// Fn is the user-supplied publish closure: given the freshly caught-up
// projection view, it returns the facts to publish, or an empty slice for
// a no-op.
type Fn func(ctx context.Context, view factproj.ManagedProjection) ([]fact.Fact, error)

// Run catches up the view, lets fn decide what to publish, and retries
// under optimistic locking on conflict. ctx must not already be marked
// in-lock (see WithLock): Run rejects re-entrant locked operations with
// factrt.NestedLockError before doing any work.
func (c *Coordinator) Run(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector, fn Fn) ([]fact.ID, error) {
	if InLock(ctx) {
		return nil, factrt.NestedLockError{}
	}
	lockedCtx := WithLock(ctx)
	log := c.log.WithField("class", mp.ClassID())

	for attempt := 0; attempt < c.retryBound; attempt++ {
		if _, err := c.driver.Catchup(ctx, mp, projector, c.catchupMax); err != nil {
			return nil, err
		}
		cursor := mp.Cursor()

		candidates, err := fn(lockedCtx, mp)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}

		ids, err := c.publish(ctx, mp, projector, candidates, cursor)
		if err == nil {
			return ids, nil
		}
		var conflict factrt.ConcurrentModificationError
		if !asConflict(err, &conflict) {
			return nil, err
		}
		log.WithField("attempt", attempt+1).WithError(conflict).Debug("optimistic publish conflict, retrying")
	}
	return nil, factrt.LockExceededError{ClassID: mp.ClassID(), Retries: c.retryBound}
}

func asConflict(err error, out *factrt.ConcurrentModificationError) bool {
	cme, ok := err.(factrt.ConcurrentModificationError)
	if ok {
		*out = cme
	}
	return ok
}

func (c *Coordinator) publish(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector, facts []fact.Fact, cursor fact.ID) ([]fact.ID, error) {
	if cp, ok := c.transport.(ConditionalPublisher); ok {
		if err := cp.PublishIf(ctx, facts, projector.FactSpecs(), cursor); err != nil {
			return nil, err
		}
		return ids(facts), nil
	}
	return c.simulate(ctx, mp, projector, facts, cursor)
}

// simulate approximates the conditional-publish primitive for transports
// that don't support it natively: it publishes the candidate facts, then
// re-catches-up the view and compares
// how many facts actually flowed back against how many were published. If
// they match, nothing else was interleaved; any mismatch means a
// concurrent writer got in first, and the caller retries.
func (c *Coordinator) simulate(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector, facts []fact.Fact, cursor fact.ID) ([]fact.ID, error) {
	if err := c.transport.Publish(ctx, facts...); err != nil {
		return nil, facttransport.WrapError("publish", err)
	}
	applied, _, err := c.driver.CatchupCounted(ctx, mp, projector, c.catchupMax)
	if err != nil {
		return nil, err
	}
	if applied != int64(len(facts)) {
		return nil, factrt.ConcurrentModificationError{ClassID: mp.ClassID(), Cursor: cursor.String()}
	}
	return ids(facts), nil
}

func ids(facts []fact.Fact) []fact.ID {
	out := make([]fact.ID, 0, len(facts))
	for _, f := range facts {
		out = append(out, f.ID)
	}
	return out
}
