package fact

import "testing"

func TestVersionRangeContains(t *testing.T) {
	cases := []struct {
		name  string
		r     VersionRange
		v     int
		want  bool
	}{
		{"zero range is unbounded", VersionRange{}, 42, true},
		{"below min", VersionRange{Min: 2}, 1, false},
		{"at min", VersionRange{Min: 2}, 2, true},
		{"above max", VersionRange{Max: 3}, 4, false},
		{"exact pin matches", VersionRange{Min: 2, Max: 2}, 2, true},
		{"exact pin rejects others", VersionRange{Min: 2, Max: 2}, 3, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.r.Contains(c.v); got != c.want {
				t.Errorf("Contains(%d) = %v, want %v", c.v, got, c.want)
			}
		})
	}
}

func TestSpecMatches(t *testing.T) {
	s := Spec{Namespace: "orders", Type: "placed", Versions: VersionRange{Min: 1, Max: 2}}
	matching := Fact{Namespace: "orders", Type: "placed", Version: 1}
	if !s.Matches(matching) {
		t.Fatal("expected spec to match fact")
	}
	wrongType := Fact{Namespace: "orders", Type: "cancelled", Version: 1}
	if s.Matches(wrongType) {
		t.Fatal("expected spec not to match different type")
	}
	wrongVersion := Fact{Namespace: "orders", Type: "placed", Version: 9}
	if s.Matches(wrongVersion) {
		t.Fatal("expected spec not to match out-of-range version")
	}
}

func TestSpecMatchesAggregateAndMetadata(t *testing.T) {
	s := Spec{
		Namespace:   "orders",
		Type:        "placed",
		AggregateID: func(h Header) bool { return h["order_id"] == "abc" },
		Metadata:    Header{"region": "us"},
	}
	match := Fact{Namespace: "orders", Type: "placed", Header: Header{"order_id": "abc", "region": "us"}}
	if !s.Matches(match) {
		t.Fatal("expected match on aggregate id and metadata")
	}
	wrongAggregate := Fact{Namespace: "orders", Type: "placed", Header: Header{"order_id": "xyz", "region": "us"}}
	if s.Matches(wrongAggregate) {
		t.Fatal("expected mismatch on aggregate id")
	}
	missingMetadata := Fact{Namespace: "orders", Type: "placed", Header: Header{"order_id": "abc"}}
	if s.Matches(missingMetadata) {
		t.Fatal("expected mismatch on missing metadata")
	}
}

func TestSpecsMatchesAny(t *testing.T) {
	specs := Specs{
		{Namespace: "orders", Type: "placed"},
		{Namespace: "orders", Type: "cancelled"},
	}
	if !specs.Matches(Fact{Namespace: "orders", Type: "cancelled"}) {
		t.Fatal("expected one of the specs to match")
	}
	if specs.Matches(Fact{Namespace: "orders", Type: "shipped"}) {
		t.Fatal("expected no spec to match")
	}
}
