package factconv

import (
	"errors"
	"testing"

	"github.com/factline/factrt"
	"github.com/factline/factrt/fact"
)

type orderPlaced struct {
	OrderID string
}

func (orderPlaced) FactNamespace() string { return "orders" }
func (orderPlaced) FactType() string      { return "placed" }
func (orderPlaced) FactVersion() int      { return 1 }

type undeclaredEvent struct{}

func (undeclaredEvent) FactNamespace() string { return "" }
func (undeclaredEvent) FactType() string      { return "" }
func (undeclaredEvent) FactVersion() int      { return 0 }

func TestConverterToFact(t *testing.T) {
	c := New(JSONEncoder())
	f, err := c.ToFact(orderPlaced{OrderID: "abc"}, fact.Header{"region": "us"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Namespace != "orders" || f.Type != "placed" || f.Version != 1 {
		t.Fatalf("unexpected fact identity: %+v", f)
	}
	if f.ID.Empty() {
		t.Fatal("expected a generated fact id")
	}
	if f.Header["region"] != "us" {
		t.Fatal("expected caller header to be preserved")
	}
	if f.Header[fact.TimestampHeader] == "" {
		t.Fatal("expected an automatic timestamp header")
	}
}

func TestConverterRejectsMissingDeclaration(t *testing.T) {
	c := New(JSONEncoder())
	_, err := c.ToFact(undeclaredEvent{}, nil)
	if err == nil {
		t.Fatal("expected an error for an event with no namespace/type")
	}
	var serErr factrt.SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("expected a SerializationError, got %T", err)
	}
}

func TestConverterToFactsPreservesOrder(t *testing.T) {
	c := New(JSONEncoder())
	events := []Declaration{orderPlaced{OrderID: "a"}, orderPlaced{OrderID: "b"}}
	facts, err := c.ToFacts(events, fact.Header{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
}

func TestConverterToFactsStopsOnFirstError(t *testing.T) {
	c := New(JSONEncoder())
	events := []Declaration{orderPlaced{OrderID: "a"}, undeclaredEvent{}}
	_, err := c.ToFacts(events, fact.Header{})
	if err == nil {
		t.Fatal("expected an error from the batch conversion")
	}
}
