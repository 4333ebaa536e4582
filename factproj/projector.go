package factproj

import (
	"context"

	"github.com/factline/factrt"
	"github.com/factline/factrt/fact"
)

// Projector is constructed once per projection instance. It precomputes
// the dispatch table from the projection's declared Handlers and routes
// each incoming fact to the single best-matching handler.
type Projector struct {
	classID  string
	handlers []Handler
}

// NewProjector inspects d's declared handlers at construction time and
// builds a Projector for it. The handler list is fixed for the lifetime of
// the Projector; it is never recomputed per fact.
func NewProjector(d Declared) *Projector {
	return &Projector{
		classID:  d.ClassID(),
		handlers: d.Handlers(),
	}
}

// FactSpecs returns the finite, order-irrelevant set of fact filters this
// projection wants, i.e. the union of its handlers' specs.
func (p *Projector) FactSpecs() fact.Specs {
	specs := make(fact.Specs, 0, len(p.handlers))
	for _, h := range p.handlers {
		specs = append(specs, h.Spec)
	}
	return specs
}

// Apply dispatches f to the handler matching its (namespace, type,
// version, aggregate predicate, metadata). When more than one handler
// matches, an exact version match wins over a version-range match;
// a tie beyond that resolves to the first handler declared. Apply
// returns a factrt.UnhandledFactError when no handler matches; callers
// (factsub.Driver) treat that as fatal for the subscription.
func (p *Projector) Apply(ctx context.Context, f fact.Fact) error {
	best := -1
	for i, h := range p.handlers {
		if !h.Spec.Matches(f) {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		if p.handlers[i].Spec.moreSpecificThan(p.handlers[best].Spec) {
			best = i
		}
	}
	if best == -1 {
		return factrt.UnhandledFactError{
			ClassID:   p.classID,
			Namespace: f.Namespace,
			Type:      f.Type,
			Version:   f.Version,
		}
	}
	return p.handlers[best].Apply(ctx, f)
}
