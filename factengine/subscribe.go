package factengine

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	logging "github.com/sirupsen/logrus"

	"github.com/factline/factrt"
	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factmetrics"
	"github.com/factline/factrt/factproj"
)

// Subscription is the handle returned by SubscribeAndBlock. Close
// deregisters and tears down both the follow subscription and its write
// token. Engine.Close closes the same registry entries automatically, in
// reverse registration order, for any handle not closed earlier.
type Subscription struct {
	engine *Engine
	tokIdx int
	subIdx int
}

// Close tears the subscription and its token lease down early, ahead of
// engine shutdown. Safe to call more than once; a second call is a no-op
// because both registry entries have already been cleared. The
// subscription is closed first (it is the later registration, so LIFO
// order closes it before the token it depends on), then the token lease
// is released.
func (s *Subscription) Close() error {
	var result *multierror.Error
	if err := s.engine.managed.closeOne(s.subIdx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.engine.managed.closeOne(s.tokIdx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// SubscribeAndBlock loops acquiring mp's write token at the engine's
// configured renewal interval until it succeeds or the engine is closed,
// then opens a follow subscription from mp's current cursor and registers
// both for engine-shutdown cleanup. No subscription is opened while token
// acquisition is still failing. The follow subscription's onNext
// additionally samples the fact's _ts header to emit the event processing
// latency metric.
func SubscribeAndBlock(ctx context.Context, e *Engine, mp factproj.SubscribedProjection) (*Subscription, error) {
	if err := e.checkOpen("subscribeAndBlock"); err != nil {
		return nil, err
	}

	log := e.log.WithField("class", mp.ClassID()).WithField("token_key", mp.TokenKey())

	var tok interface {
		Key() string
		Release(ctx context.Context) error
	}
	for {
		if e.closed.Load() {
			return nil, factrt.ClosedError{Op: "subscribeAndBlock"}
		}
		acquired, ok, err := e.tokens.Acquire(ctx, mp.TokenKey(), e.cfg.TokenAcquireTimeout)
		if err != nil {
			log.WithError(err).Warn("token acquisition attempt failed")
		}
		if ok {
			tok = acquired
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.cfg.TokenRenewalInterval):
		}
	}

	projector := factproj.NewProjector(mp)
	observed := &latencyObserver{mp: mp, metrics: e.metrics}
	handle, err := e.driver.FollowObserved(ctx, mp, projector, observed.onApplied)
	if err != nil {
		_ = tok.Release(ctx)
		return nil, err
	}

	renewCtx, cancelRenew := context.WithCancel(context.Background())
	tokIdx := e.managed.register("token:"+mp.TokenKey(), func() error {
		cancelRenew()
		return tok.Release(context.Background())
	})
	subIdx := e.managed.register("subscription:"+mp.ClassID(), handle.Close)

	e.subGroup.Go(func() error {
		if err := handle.Wait(e.subCtx); err != nil {
			log.WithError(err).Warn("background subscription terminated with an error")
			return err
		}
		return nil
	})

	go renewLease(renewCtx, tok, e.cfg.TokenRenewalInterval, log)

	return &Subscription{engine: e, tokIdx: tokIdx, subIdx: subIdx}, nil
}

// renewLease keeps tok alive for as long as ctx is unclosed, renewing at
// interval. Renewal failures are logged and retried on the next tick
// rather than tearing the subscription down: a transient provider outage
// shouldn't kill an otherwise-healthy follow subscription.
func renewLease(ctx context.Context, tok interface {
	Key() string
	Release(ctx context.Context) error
}, interval time.Duration, log *logging.Entry) {
	renewable, ok := tok.(interface {
		Renew(ctx context.Context) error
	})
	if !ok {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := renewable.Renew(ctx); err != nil {
				log.WithError(err).Warn("write-token renewal failed, will retry")
			}
		}
	}
}

type latencyObserver struct {
	mp      factproj.SubscribedProjection
	metrics *factmetrics.Hooks
}

// onApplied samples the fact's _ts header against the current time and
// records it as event processing latency. A missing or unparsable header
// is silently skipped rather than treated as an error: metric emission
// must never alter control flow.
func (o *latencyObserver) onApplied(f fact.Fact) {
	ts, ok := f.Header[fact.TimestampHeader]
	if !ok {
		return
	}
	published, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return
	}
	o.metrics.ObserveEventLatency(o.mp.ClassID(), time.Since(published))
}
