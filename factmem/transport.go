// Package factmem provides in-memory test fakes for the runtime's three
// external collaborators (facttransport.Client, factsnap.Cache,
// facttoken.Provider): small, observable, side-effect-buffering doubles
// rather than a mocking framework.
package factmem

import (
	"context"
	"sync"
	"time"

	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/facttransport"
)

// Transport is an in-memory facttransport.Client: an append-only log
// guarded by a mutex, with deterministic catchup (replays everything
// currently in the log matching a subscription's specs) and goroutine-
// driven follow (replays the backlog, then streams every subsequent
// Publish until the subscription is closed).
type Transport struct {
	mu  sync.Mutex
	log []fact.Fact

	mu2         sync.Mutex
	subscribers []*liveSub

	bufferSize int
}

// NewTransport builds an empty in-memory transport whose live follow
// subscriptions buffer 256 facts before dropping.
func NewTransport() *Transport {
	return NewTransportWithBuffer(256)
}

// NewTransportWithBuffer builds an empty in-memory transport whose live
// follow subscriptions buffer up to bufferSize facts before dropping,
// matching factconfig.Config.SubscriptionBuffer for callers that wire it
// through rather than relying on the default.
func NewTransportWithBuffer(bufferSize int) *Transport {
	return &Transport{bufferSize: bufferSize}
}

// Publish appends facts to the log and fans them out to any live Follow
// subscriptions.
func (t *Transport) Publish(_ context.Context, facts ...fact.Fact) error {
	t.mu.Lock()
	t.log = append(t.log, facts...)
	t.mu.Unlock()

	t.mu2.Lock()
	subs := make([]*liveSub, len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu2.Unlock()

	for _, s := range subs {
		s.deliver(facts)
	}
	return nil
}

// Facts returns a snapshot copy of the full log, for test assertions.
func (t *Transport) Facts() []fact.Fact {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]fact.Fact, len(t.log))
	copy(out, t.log)
	return out
}

// Subscribe implements facttransport.Client.
func (t *Transport) Subscribe(ctx context.Context, req facttransport.Request, obs facttransport.Observer) (facttransport.Subscription, error) {
	t.mu.Lock()
	backlog := matchFrom(t.log, req.Specs, req.From)
	t.mu.Unlock()

	switch req.Mode {
	case facttransport.Catchup:
		return t.startCatchup(backlog, obs), nil
	default:
		return t.startFollow(req, backlog, obs), nil
	}
}

func matchFrom(log []fact.Fact, specs fact.Specs, from fact.ID) []fact.Fact {
	start := 0
	if !from.Empty() {
		for i, f := range log {
			if f.ID == from {
				start = i + 1
				break
			}
		}
	}
	var out []fact.Fact
	for _, f := range log[start:] {
		if specs.Matches(f) {
			out = append(out, f)
		}
	}
	return out
}

func (t *Transport) startCatchup(backlog []fact.Fact, obs facttransport.Observer) facttransport.Subscription {
	s := &memSubscription{done: make(chan struct{}), closed: make(chan struct{})}
	go func() {
		for _, f := range backlog {
			obs.OnNext(f)
		}
		obs.OnCatchup()
		obs.OnComplete()
		s.markDone(nil)
	}()
	return s
}

func (t *Transport) startFollow(req facttransport.Request, backlog []fact.Fact, obs facttransport.Observer) facttransport.Subscription {
	live := &liveSub{specs: req.Specs, ch: make(chan fact.Fact, t.bufferSize)}
	t.mu2.Lock()
	t.subscribers = append(t.subscribers, live)
	t.mu2.Unlock()

	s := &memSubscription{done: make(chan struct{}), closed: make(chan struct{})}
	go func() {
		for _, f := range backlog {
			obs.OnNext(f)
		}
		obs.OnCatchup()
		for {
			select {
			case f, ok := <-live.ch:
				if !ok {
					t.removeSubscriber(live)
					obs.OnComplete()
					s.markDone(nil)
					return
				}
				obs.OnNext(f)
			case <-s.closed:
				t.removeSubscriber(live)
				obs.OnComplete()
				s.markDone(nil)
				return
			}
		}
	}()
	s.onClose = func() { t.removeSubscriber(live) }
	return s
}

func (t *Transport) removeSubscriber(live *liveSub) {
	t.mu2.Lock()
	defer t.mu2.Unlock()
	for i, s := range t.subscribers {
		if s == live {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}

type liveSub struct {
	specs fact.Specs
	ch    chan fact.Fact
}

func (s *liveSub) deliver(facts []fact.Fact) {
	for _, f := range facts {
		if s.specs.Matches(f) {
			select {
			case s.ch <- f:
			default:
				// Buffer full: the test's consumer isn't draining fast
				// enough. Drop rather than block the publisher, the same
				// risk any bounded dispatcher channel accepts.
			}
		}
	}
}

type memSubscription struct {
	mu        sync.Mutex
	doneOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
	err       error
	onClose   func()
}

func (s *memSubscription) markDone(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// AwaitComplete implements facttransport.Subscription.
func (s *memSubscription) AwaitComplete(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case <-s.done:
			return s.resultErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-s.done:
		return s.resultErr()
	case <-time.After(timeout):
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memSubscription) resultErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements facttransport.Subscription.
func (s *memSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
