package factproj

import (
	"context"
	"testing"

	"github.com/factline/factrt/fact"
)

type counter struct {
	total   int
	exactV2 int
}

func (c *counter) ClassID() string { return "counter" }

func (c *counter) Handlers() []Handler {
	return []Handler{
		{
			Spec: fact.Spec{Namespace: "orders", Type: "placed", Versions: fact.VersionRange{Min: 1, Max: 2}},
			Apply: func(_ context.Context, f fact.Fact) error {
				c.total++
				return nil
			},
		},
		{
			Spec: fact.Spec{Namespace: "orders", Type: "placed", Versions: fact.VersionRange{Min: 2, Max: 2}},
			Apply: func(_ context.Context, f fact.Fact) error {
				c.exactV2++
				return nil
			},
		},
	}
}

func TestProjectorAppliesExactVersionOverRange(t *testing.T) {
	c := &counter{}
	p := NewProjector(c)

	if err := p.Apply(context.Background(), fact.Fact{Namespace: "orders", Type: "placed", Version: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.exactV2 != 1 || c.total != 0 {
		t.Fatalf("expected the exact-version handler to win, got total=%d exactV2=%d", c.total, c.exactV2)
	}
}

func TestProjectorFallsBackToRangeHandler(t *testing.T) {
	c := &counter{}
	p := NewProjector(c)

	if err := p.Apply(context.Background(), fact.Fact{Namespace: "orders", Type: "placed", Version: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.total != 1 || c.exactV2 != 0 {
		t.Fatalf("expected the range handler to apply, got total=%d exactV2=%d", c.total, c.exactV2)
	}
}

func TestProjectorUnhandledFact(t *testing.T) {
	c := &counter{}
	p := NewProjector(c)

	err := p.Apply(context.Background(), fact.Fact{Namespace: "orders", Type: "cancelled", Version: 1})
	if err == nil {
		t.Fatal("expected an error for an unhandled fact")
	}
}

func TestProjectorFactSpecs(t *testing.T) {
	c := &counter{}
	p := NewProjector(c)
	if len(p.FactSpecs()) != 2 {
		t.Fatalf("expected 2 fact specs, got %d", len(p.FactSpecs()))
	}
}
