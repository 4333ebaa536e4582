package factsub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factproj"
	"github.com/factline/factrt/facttransport"
	logging "github.com/sirupsen/logrus"
)

// bridge adapts a facttransport.Observer onto a projection: every OnNext
// is applied through the projector inside the projection's own
// ExecuteUpdate critical section, so application is strictly log-ordered
// and never overlaps another ExecuteUpdate call. A handler
// failure (typically factrt.UnhandledFactError) is treated as fatal: it is
// recorded, the optional Lifecycle.OnError hook fires, and the
// subscription is torn down via the cancel func supplied by the caller —
// the same "cancel the context, let the transport notice" pattern the
// teacher uses in controller/api/destination/get.go with
// context.WithCancel + a reset callback.
type bridge struct {
	ctx       context.Context
	cancel    func()
	mp        factproj.ManagedProjection
	projector *factproj.Projector
	log       *logging.Entry

	mu         sync.Mutex
	sub        facttransport.Subscription
	err        error
	doneCh     chan struct{}
	caughtUpCh chan struct{}
	doneOnce   sync.Once
	catchUpOne sync.Once
	applied    int64

	// onApplied, if set, is invoked after each fact is successfully
	// applied, letting factengine sample per-fact processing latency
	// without this package needing to know anything about metrics.
	onApplied func(fact.Fact)
}

// appliedCount reports how many facts this bridge has successfully dispatched.
func (b *bridge) appliedCount() int64 {
	return atomic.LoadInt64(&b.applied)
}

func newBridge(ctx context.Context, cancel func(), mp factproj.ManagedProjection, projector *factproj.Projector, log *logging.Entry) *bridge {
	return &bridge{
		ctx:        ctx,
		cancel:     cancel,
		mp:         mp,
		projector:  projector,
		log:        log,
		doneCh:     make(chan struct{}),
		caughtUpCh: make(chan struct{}),
	}
}

func (b *bridge) attach(sub facttransport.Subscription) {
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()
}

func (b *bridge) failure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// OnNext implements facttransport.Observer.
func (b *bridge) OnNext(f fact.Fact) {
	err := b.mp.ExecuteUpdate(func() error {
		if applyErr := b.projector.Apply(b.ctx, f); applyErr != nil {
			return applyErr
		}
		b.mp.Advance(f.ID)
		return nil
	})
	if err != nil {
		b.log.WithError(err).WithField("fact_id", f.ID).Error("fatal error applying fact, terminating subscription")
		if lc, ok := b.mp.(factproj.Lifecycle); ok {
			lc.OnError(err)
		}
		b.fail(err)
		return
	}
	atomic.AddInt64(&b.applied, 1)
	if b.onApplied != nil {
		b.onApplied(f)
	}
}

// OnCatchup implements facttransport.Observer.
func (b *bridge) OnCatchup() {
	if lc, ok := b.mp.(factproj.Lifecycle); ok {
		lc.OnCatchup()
	}
	b.catchUpOne.Do(func() { close(b.caughtUpCh) })
}

// OnComplete implements facttransport.Observer.
func (b *bridge) OnComplete() {
	if lc, ok := b.mp.(factproj.Lifecycle); ok {
		lc.OnComplete()
	}
	b.markDone()
}

// OnError implements facttransport.Observer.
func (b *bridge) OnError(cause error) {
	b.log.WithError(cause).Warn("subscription terminated with transport error")
	if lc, ok := b.mp.(factproj.Lifecycle); ok {
		lc.OnError(cause)
	}
	b.fail(facttransport.WrapError("subscribe", cause))
}

func (b *bridge) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	sub := b.sub
	b.mu.Unlock()

	b.markDone()
	b.catchUpOne.Do(func() { close(b.caughtUpCh) })
	if sub != nil {
		go func() { _ = sub.Close() }()
	}
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *bridge) markDone() {
	b.doneOnce.Do(func() { close(b.doneCh) })
}
