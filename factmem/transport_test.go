package factmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/factline/factrt/fact"
	"github.com/factline/factrt/factmem"
	"github.com/factline/factrt/facttransport"
)

type recordingObserver struct {
	next chan fact.Fact
}

func (o *recordingObserver) OnNext(f fact.Fact) { o.next <- f }
func (o *recordingObserver) OnCatchup()         {}
func (o *recordingObserver) OnComplete()        {}
func (o *recordingObserver) OnError(error)      {}

// TestNewTransportWithBufferHonorsConfiguredSize confirms
// factconfig.Config.SubscriptionBuffer actually changes the drop
// threshold rather than being decorative: a follow subscription built
// over a 1-fact buffer drops the second fact published before the
// observer drains the first.
func TestNewTransportWithBufferHonorsConfiguredSize(t *testing.T) {
	transport := factmem.NewTransportWithBuffer(1)
	obs := &recordingObserver{next: make(chan fact.Fact)}
	_, err := transport.Subscribe(context.Background(), facttransport.Request{Mode: facttransport.Follow, Specs: fact.Specs{{Namespace: "orders", Type: "placed"}}}, obs)
	if err != nil {
		t.Fatalf("unexpected subscribe error: %v", err)
	}

	f1 := fact.Fact{ID: fact.NewID(), Namespace: "orders", Type: "placed"}
	f2 := fact.Fact{ID: fact.NewID(), Namespace: "orders", Type: "placed"}
	f3 := fact.Fact{ID: fact.NewID(), Namespace: "orders", Type: "placed"}
	if err := transport.Publish(context.Background(), f1, f2, f3); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	select {
	case got := <-obs.next:
		if got.ID != f1.ID {
			t.Fatalf("expected the first fact to survive the 1-deep buffer, got %v", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the first fact")
	}

	select {
	case got := <-obs.next:
		t.Fatalf("expected later facts to be dropped by the 1-deep buffer, got %v", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}
