// Package factconv turns an application event value into a transport-ready
// Fact. The converter is pure and stateless: small, side-effect-free
// functions over declared types rather than a stateful builder.
package factconv

import (
	"time"

	"github.com/factline/factrt"
	"github.com/factline/factrt/fact"
)

// Declaration is the event's own description of how it maps onto the wire:
// its namespace, type, and schema version. Applications implement this
// once per event type; there is no reflection over struct tags or
// annotations.
type Declaration interface {
	FactNamespace() string
	FactType() string
	FactVersion() int
}

// Encoder produces the wire payload for an event. It is the pluggable
// serialization format; factsnap.Serializer reuses the same shape for
// projection payloads.
type Encoder interface {
	Encode(v any) ([]byte, error)
}

// Converter turns application events into facts. It holds no per-call
// state: every field is fixed at construction and every method is safe to
// call concurrently.
type Converter struct {
	encoder Encoder
}

// New builds a Converter using enc to encode event payloads.
func New(enc Encoder) *Converter {
	return &Converter{encoder: enc}
}

// ToFact converts a single application event into a Fact: a fresh id, the
// namespace/type/version declared by the event, and a payload produced by
// the configured encoder. header carries any caller-supplied metadata in
// addition to the automatic publish-timestamp header.
func (c *Converter) ToFact(v Declaration, header fact.Header) (fact.Fact, error) {
	ns := v.FactNamespace()
	typ := v.FactType()
	if ns == "" || typ == "" {
		return fact.Fact{}, factrt.SerializationError{
			ClassID: typ,
			Cause:   errMissingDeclaration,
		}
	}
	payload, err := c.encoder.Encode(v)
	if err != nil {
		return fact.Fact{}, factrt.SerializationError{ClassID: typ, Cause: err}
	}
	return fact.Fact{
		ID:        fact.NewID(),
		Namespace: ns,
		Type:      typ,
		Version:   v.FactVersion(),
		Header:    header.WithTimestamp(time.Now()),
		Payload:   payload,
	}, nil
}

// ToFacts converts a batch of events into facts in order, supporting the
// batched-publish entry point: the whole
// batch is encoded up front so a single transport call can publish it
// atomically.
func (c *Converter) ToFacts(events []Declaration, header fact.Header) ([]fact.Fact, error) {
	facts := make([]fact.Fact, 0, len(events))
	for _, ev := range events {
		f, err := c.ToFact(ev, header)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, nil
}

var errMissingDeclaration = missingDeclarationError{}

type missingDeclarationError struct{}

func (missingDeclarationError) Error() string {
	return "event declaration is missing namespace or type"
}
