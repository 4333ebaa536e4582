package factsnap

import (
	"context"

	logging "github.com/sirupsen/logrus"

	"github.com/factline/factrt/fact"
)

// AggregateDescriptor is the static per-class declaration for an
// Aggregate, analogous to ProjectionDescriptor but additionally keyed by
// aggregate id at lookup time.
type AggregateDescriptor[A any] struct {
	ClassID       string
	SchemaVersion int
	Serializer    Serializer[A]
}

func (d AggregateDescriptor[A]) key(aggregateID string) string {
	return BuildKey(d.ClassID, d.SchemaVersion, &aggregateID)
}

// AggregateRepository reads and writes snapshots for Aggregate classes,
// keyed by (class identity, schema version, aggregate id).
type AggregateRepository[A any] struct {
	cache Cache
	log   *logging.Entry
}

// NewAggregateRepository builds a repository backed by cache, logging
// under log (a per-component entry the caller has already tagged; nil
// falls back to a default "factsnap" entry).
func NewAggregateRepository[A any](cache Cache, log *logging.Entry) *AggregateRepository[A] {
	if log == nil {
		log = logging.WithField("component", "factsnap")
	}
	return &AggregateRepository[A]{cache: cache, log: log}
}

// FindLatest looks up the most recent snapshot for (desc.ClassID,
// aggregateID). See ProjectionRepository.FindLatest for the miss/decode-
// failure policy, which is identical here.
func (r *AggregateRepository[A]) FindLatest(ctx context.Context, desc AggregateDescriptor[A], aggregateID string) (Loaded[A], error) {
	key := desc.key(aggregateID)
	snap, ok, err := r.cache.GetSnapshot(ctx, key)
	if err != nil {
		return Loaded[A]{}, ioError("get", key, err)
	}
	if !ok {
		return Loaded[A]{}, nil
	}
	v, err := desc.Serializer.Deserialize(snap.Bytes)
	if err != nil {
		r.log.WithError(err).WithField("class", desc.ClassID).Warn("snapshot decode failed, rebuilding from scratch")
		return Loaded[A]{}, nil
	}
	return Loaded[A]{Value: v, Cursor: fact.ID(snap.LastFact), SizeBytes: len(snap.Bytes), Found: true}, nil
}

// Put asynchronously persists the aggregate, matching the non-blocking
// contract most call sites want.
func (r *AggregateRepository[A]) Put(ctx context.Context, desc AggregateDescriptor[A], aggregateID string, v A, cursor fact.ID) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- r.putSync(ctx, desc, aggregateID, v, cursor)
	}()
	return result
}

// PutBlocking persists the aggregate synchronously. factengine.Find uses
// this variant: the caller is expected to act on the returned state
// immediately, so the snapshot must be durable before Find returns. Both
// the async Put and this synchronous variant are kept side by side since
// different call sites want different durability guarantees.
func (r *AggregateRepository[A]) PutBlocking(ctx context.Context, desc AggregateDescriptor[A], aggregateID string, v A, cursor fact.ID) error {
	return r.putSync(ctx, desc, aggregateID, v, cursor)
}

func (r *AggregateRepository[A]) putSync(ctx context.Context, desc AggregateDescriptor[A], aggregateID string, v A, cursor fact.ID) error {
	bytes, err := desc.Serializer.Serialize(v)
	if err != nil {
		return serializationError(desc.ClassID, err)
	}
	key := desc.key(aggregateID)
	snap := Snapshot{
		Key:        key,
		LastFact:   cursor.String(),
		Bytes:      bytes,
		Compressed: desc.Serializer.IncludesCompression(),
	}
	if err := r.cache.SetSnapshot(ctx, snap); err != nil {
		return ioError("set", key, err)
	}
	return nil
}
