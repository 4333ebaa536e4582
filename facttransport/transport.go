// Package facttransport declares the wire transport collaborator: a
// pre-existing client exposing publish and subscribe against the remote
// fact store. The transport itself — its wire protocol, connection
// management, retries — is out of scope for this repo; only the
// interface it must satisfy lives here, plus the grpc error-code
// vocabulary the rest of the runtime uses to represent transport
// failures.
package facttransport

import (
	"context"
	"time"

	"github.com/factline/factrt/fact"
)

// Mode selects whether a subscription is bounded (Catchup) or unbounded
// (Follow).
type Mode int

const (
	// Catchup consumes all facts matching Specs strictly after From up to
	// the log's current tail, then completes.
	Catchup Mode = iota
	// Follow consumes facts from From indefinitely, including future
	// facts as they arrive.
	Follow
)

// String satisfies fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case Catchup:
		return "catchup"
	case Follow:
		return "follow"
	default:
		return "unknown"
	}
}

// Request describes one subscription.
type Request struct {
	Mode  Mode
	Specs fact.Specs
	// From is the cursor to resume after; the zero value means "from the
	// beginning of the log".
	From fact.ID
}

// Observer receives the subscription lifecycle callbacks. Exactly one
// of OnComplete or OnError terminates a Catchup subscription; a Follow
// subscription only terminates via OnError or the caller closing the
// Subscription.
type Observer interface {
	OnNext(f fact.Fact)
	OnCatchup()
	OnComplete()
	OnError(cause error)
}

// Subscription is the handle returned by Transport.Subscribe.
type Subscription interface {
	// AwaitComplete blocks until OnComplete/OnError has fired or timeout
	// elapses, returning context.DeadlineExceeded on expiry (factsub turns
	// that into factrt.CatchupTimeoutError). A non-positive timeout means
	// wait forever.
	AwaitComplete(ctx context.Context, timeout time.Duration) error
	// Close tears the subscription down. Close is idempotent and must be
	// safe to call from any goroutine, including from inside an Observer
	// callback.
	Close() error
}

// Client is the fact store transport dependency.
type Client interface {
	Publish(ctx context.Context, facts ...fact.Fact) error
	Subscribe(ctx context.Context, req Request, obs Observer) (Subscription, error)
}
