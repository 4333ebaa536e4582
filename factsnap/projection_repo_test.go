package factsnap

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/factline/factrt/fact"
)

type fakeCache struct {
	store  map[string]Snapshot
	getErr error
	setErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]Snapshot)}
}

func (c *fakeCache) GetSnapshot(_ context.Context, key string) (Snapshot, bool, error) {
	if c.getErr != nil {
		return Snapshot{}, false, c.getErr
	}
	s, ok := c.store[key]
	return s, ok, nil
}

func (c *fakeCache) SetSnapshot(_ context.Context, snap Snapshot) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.store[snap.Key] = snap
	c.sets++
	return nil
}

func (c *fakeCache) DeleteSnapshot(_ context.Context, key string) error {
	delete(c.store, key)
	return nil
}

type widgetState struct {
	Count int
}

func TestProjectionRepositoryRoundTrip(t *testing.T) {
	cache := newFakeCache()
	repo := NewProjectionRepository[widgetState](cache, nil)
	desc := ProjectionDescriptor[widgetState]{ClassID: "widget", SchemaVersion: 1, Serializer: JSON[widgetState]()}

	loaded, err := repo.FindLatest(context.Background(), desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Found {
		t.Fatal("expected a miss before any Put")
	}

	errCh := repo.Put(context.Background(), desc, widgetState{Count: 3}, fact.ID("f9"))
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	loaded, err = repo.FindLatest(context.Background(), desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loaded.Found || loaded.Value.Count != 3 || loaded.Cursor != fact.ID("f9") {
		t.Fatalf("unexpected loaded snapshot: %+v", loaded)
	}
}

func TestProjectionRepositoryReadFailureIsMiss(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("cache unavailable")
	repo := NewProjectionRepository[widgetState](cache, nil)
	desc := ProjectionDescriptor[widgetState]{ClassID: "widget", SchemaVersion: 1, Serializer: JSON[widgetState]()}

	loaded, err := repo.FindLatest(context.Background(), desc)
	if err == nil {
		t.Fatal("expected the cache error to surface so the caller can log it")
	}
	if loaded.Found {
		t.Fatal("a read failure must not report a snapshot as found")
	}
}

func TestAggregateRepositoryKeyedByID(t *testing.T) {
	cache := newFakeCache()
	repo := NewAggregateRepository[widgetState](cache, nil)
	desc := AggregateDescriptor[widgetState]{ClassID: "widget-agg", SchemaVersion: 1, Serializer: JSON[widgetState]()}

	if err := repo.PutBlocking(context.Background(), desc, "agg-1", widgetState{Count: 1}, fact.ID("f1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := repo.FindLatest(context.Background(), desc, "agg-1")
	if err != nil || !loaded.Found || loaded.Value.Count != 1 {
		t.Fatalf("expected agg-1's snapshot, got %+v, err=%v", loaded, err)
	}

	missing, err := repo.FindLatest(context.Background(), desc, "agg-2")
	if err != nil || missing.Found {
		t.Fatalf("expected a miss for a different aggregate id, got %+v, err=%v", missing, err)
	}
}

func TestProjectionRepositoryDecodeFailureIsMiss(t *testing.T) {
	cache := newFakeCache()
	desc := ProjectionDescriptor[widgetState]{ClassID: "widget", SchemaVersion: 1, Serializer: JSON[widgetState]()}
	cache.store[desc.key()] = Snapshot{Key: desc.key(), LastFact: "f9", Bytes: []byte("not valid json")}

	logger, hook := logtest.NewNullLogger()
	repo := NewProjectionRepository[widgetState](cache, logger.WithField("component", "factsnap"))

	loaded, err := repo.FindLatest(context.Background(), desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Found {
		t.Fatal("a snapshot that fails to decode must be reported as a miss, not surfaced half-decoded")
	}
	if len(hook.Entries) != 1 || hook.LastEntry().Message != "snapshot decode failed, rebuilding from scratch" {
		t.Fatalf("expected the decode failure to be logged, got entries: %+v", hook.Entries)
	}
}
