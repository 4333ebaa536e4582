// Package factsub implements the Subscription Driver: it
// runs a catchup or follow subscription against a facttransport.Client,
// routes each fact into a projection through its Projector, advances the
// projection's cursor inside its critical section, and surfaces lifecycle
// signals. Ordering is strictly log-ordered and non-overlapping within one
// subscription.
package factsub

import (
	"context"
	"time"

	"github.com/factline/factrt"
	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factproj"
	"github.com/factline/factrt/facttransport"
	logging "github.com/sirupsen/logrus"
)

// Driver runs subscriptions against a single transport client. It holds no
// per-subscription state; every Catchup or Follow call is independent.
type Driver struct {
	transport facttransport.Client
	log       *logging.Entry
}

// New builds a Driver over transport, logging under log (a per-component
// entry the caller has already tagged).
func New(transport facttransport.Client, log *logging.Entry) *Driver {
	if log == nil {
		log = logging.WithField("component", "factsub")
	}
	return &Driver{transport: transport, log: log}
}

// Catchup runs a bounded subscription from mp's current cursor to the
// log's current tail, applying every matching fact through projector and
// advancing mp's cursor as it goes. It blocks up to maxWait (<=0 means
// unbounded, the FOREVER sentinel) and reports whether the cursor
// advanced at all, so callers can decide whether a new snapshot is due.
func (d *Driver) Catchup(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector, maxWait time.Duration) (advanced bool, err error) {
	_, advanced, err = d.CatchupCounted(ctx, mp, projector, maxWait)
	return advanced, err
}

// CatchupCounted is Catchup plus the number of facts actually applied,
// which factlock's optimistic-publish simulation uses to tell "nothing
// else happened while we published" apart from "someone else published
// concurrently".
func (d *Driver) CatchupCounted(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector, maxWait time.Duration) (applied int64, advanced bool, err error) {
	initial := mp.Cursor()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := newBridge(ctx, cancel, mp, projector, d.log.WithField("class", mp.ClassID()))

	sub, err := d.transport.Subscribe(ctx, facttransport.Request{
		Mode:  facttransport.Catchup,
		Specs: projector.FactSpecs(),
		From:  initial,
	}, b)
	if err != nil {
		return 0, false, facttransport.WrapError("subscribe", err)
	}
	b.attach(sub)
	defer func() { _ = sub.Close() }()

	if err := sub.AwaitComplete(ctx, maxWait); err != nil {
		if err == context.DeadlineExceeded {
			return 0, false, factrt.CatchupTimeoutError{ClassID: mp.ClassID(), MaxWait: maxWait.String()}
		}
		return 0, false, facttransport.WrapError("await-complete", err)
	}
	if failure := b.failure(); failure != nil {
		return 0, false, failure
	}
	return b.appliedCount(), mp.Cursor() != initial, nil
}

// Handle is a live follow subscription, returned by Follow.
type Handle struct {
	sub facttransport.Subscription
	b   *bridge
}

// Close tears the subscription down. Idempotent.
func (h *Handle) Close() error {
	if h == nil || h.sub == nil {
		return nil
	}
	return h.sub.Close()
}

// Wait blocks until the subscription terminates, whether by a fatal
// upstream error or by Close being called on it, and returns the
// terminal error (nil on an ordinary close). factengine tracks every
// SubscribeAndBlock handle this way under an errgroup.Group so Engine.Wait
// can surface a background subscription's fatal failure instead of it
// going unnoticed until the next unrelated operation.
func (h *Handle) Wait(ctx context.Context) error {
	if err := h.sub.AwaitComplete(ctx, 0); err != nil {
		return err
	}
	return h.b.failure()
}

// Follow runs an unbounded subscription from mp's current cursor. It
// returns once the initial backlog has been drained (OnCatchup fires) or
// the subscription fails before reaching it; after that point, facts
// continue to flow to mp asynchronously until the returned Handle is
// closed or a fatal upstream error occurs.
func (d *Driver) Follow(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector) (*Handle, error) {
	return d.followObserved(ctx, mp, projector, nil)
}

// FollowObserved is Follow plus a callback invoked after each fact is
// successfully applied, used by factengine.SubscribeAndBlock to sample the
// EVENT_PROCESSING_LATENCY metric without this package
// depending on factmetrics.
func (d *Driver) FollowObserved(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector, onApplied func(fact.Fact)) (*Handle, error) {
	return d.followObserved(ctx, mp, projector, onApplied)
}

func (d *Driver) followObserved(ctx context.Context, mp factproj.ManagedProjection, projector *factproj.Projector, onApplied func(fact.Fact)) (*Handle, error) {
	b := newBridge(ctx, func() {}, mp, projector, d.log.WithField("class", mp.ClassID()))
	b.onApplied = onApplied

	sub, err := d.transport.Subscribe(ctx, facttransport.Request{
		Mode:  facttransport.Follow,
		Specs: projector.FactSpecs(),
		From:  mp.Cursor(),
	}, b)
	if err != nil {
		return nil, facttransport.WrapError("subscribe", err)
	}
	b.attach(sub)

	select {
	case <-b.caughtUpCh:
	case <-b.doneCh:
	case <-ctx.Done():
		_ = sub.Close()
		return nil, ctx.Err()
	}
	if failure := b.failure(); failure != nil {
		_ = sub.Close()
		return nil, failure
	}
	return &Handle{sub: sub, b: b}, nil
}
