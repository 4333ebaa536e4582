// Package fact defines the wire-level data model consumed by the runtime:
// the immutable Fact, its identity and ordering, and the FactSpec filters a
// projection uses to declare which facts it wants to see.
package fact

import (
	"time"

	"github.com/google/uuid"
)

// ID is the globally unique identifier of a fact. Two facts with the same
// ID are the same fact; ID carries no ordering information by itself.
type ID string

// String satisfies fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Empty reports whether id is the zero value, i.e. no fact has been
// applied yet.
func (id ID) Empty() bool {
	return id == ""
}

// NewID generates a fresh, globally unique fact identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Position is the server-assigned ordering of a fact within the log.
// Positions are strictly increasing in append order; two facts read from
// the same log never share a position.
type Position int64

// Header is free-form string metadata attached to a fact.
type Header map[string]string

// Clone returns a shallow copy of h, safe to mutate independently.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// TimestampHeader is the well-known header key carrying the publish-time
// timestamp of a fact, in RFC3339Nano. factengine's subscribeAndBlock
// samples it to compute event processing latency.
const TimestampHeader = "_ts"

// WithTimestamp returns a copy of h with TimestampHeader set to t.
func (h Header) WithTimestamp(t time.Time) Header {
	out := h.Clone()
	if out == nil {
		out = make(Header, 1)
	}
	out[TimestampHeader] = t.Format(time.RFC3339Nano)
	return out
}

// Fact is an immutable, ordered unit on the upstream log.
type Fact struct {
	ID        ID
	Position  Position
	Namespace string
	Type      string
	Version   int
	Header    Header
	Payload   []byte
}

// Matches reports whether f satisfies spec.
func (f Fact) Matches(spec Spec) bool {
	return spec.Matches(f)
}
