package fact

// VersionRange selects an inclusive range of fact versions. A zero value
// range (Min == Max == 0) is treated as "any version" by Spec.Matches.
type VersionRange struct {
	Min int
	Max int
}

// Contains reports whether version falls within r, treating the zero
// VersionRange as unbounded.
func (r VersionRange) Contains(version int) bool {
	if r.Min == 0 && r.Max == 0 {
		return true
	}
	if r.Min != 0 && version < r.Min {
		return false
	}
	if r.Max != 0 && version > r.Max {
		return false
	}
	return true
}

// exact reports whether r pins a single version, used to break ties
// between an exact-version handler and a range handler in the Projector's
// dispatch table ("exact match wins over a version-range
// handler").
func (r VersionRange) exact() (int, bool) {
	if r.Min != 0 && r.Min == r.Max {
		return r.Min, true
	}
	return 0, false
}

// AggregatePredicate decides whether a fact's header identifies an
// aggregate a spec cares about. nil means "no aggregate filtering".
type AggregatePredicate func(header Header) bool

// Spec is a filter describing a subset of the fact stream: a namespace, a
// type, a version range, and optionally an aggregate-id predicate and
// required metadata. A projection's FactSpecs is the union of one Spec per
// declared handler.
type Spec struct {
	Namespace   string
	Type        string
	Versions    VersionRange
	AggregateID AggregatePredicate
	Metadata    Header
}

// Matches reports whether f satisfies the spec.
func (s Spec) Matches(f Fact) bool {
	if s.Namespace != f.Namespace || s.Type != f.Type {
		return false
	}
	if !s.Versions.Contains(f.Version) {
		return false
	}
	if s.AggregateID != nil && !s.AggregateID(f.Header) {
		return false
	}
	for k, v := range s.Metadata {
		if f.Header[k] != v {
			return false
		}
	}
	return true
}

// specificity orders two specs that both match the same fact so the exact
// version match is preferred over a range match, per §4.2.
func (s Spec) moreSpecificThan(other Spec) bool {
	_, sExact := s.Versions.exact()
	_, oExact := other.Versions.exact()
	return sExact && !oExact
}

// Specs is a finite, order-irrelevant set of Spec. Equality of two Specs
// sets for the purpose of subscription setup does not depend on order.
type Specs []Spec

// Matches reports whether f matches any spec in the set.
func (ss Specs) Matches(f Fact) bool {
	for _, s := range ss {
		if s.Matches(f) {
			return true
		}
	}
	return false
}
