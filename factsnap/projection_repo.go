package factsnap

import (
	"context"

	logging "github.com/sirupsen/logrus"

	"github.com/factline/factrt/fact"
)

// ProjectionDescriptor is the static declaration an application registers
// once per SnapshotProjection class: its identity, its schema version,
// and the serializer used to round-trip its state. This replaces the
// source system's reflective lookup of a declared constant on the class
// with an explicit value the engine is handed up front.
type ProjectionDescriptor[P any] struct {
	ClassID       string
	SchemaVersion int
	Serializer    Serializer[P]
}

func (d ProjectionDescriptor[P]) key() string {
	return BuildKey(d.ClassID, d.SchemaVersion, nil)
}

// ProjectionRepository reads and writes snapshots for SnapshotProjection
// classes, keyed by class identity + schema version alone.
type ProjectionRepository[P any] struct {
	cache Cache
	log   *logging.Entry
}

// NewProjectionRepository builds a repository backed by cache, logging
// under log (a per-component entry the caller has already tagged; nil
// falls back to a default "factsnap" entry).
func NewProjectionRepository[P any](cache Cache, log *logging.Entry) *ProjectionRepository[P] {
	if log == nil {
		log = logging.WithField("component", "factsnap")
	}
	return &ProjectionRepository[P]{cache: cache, log: log}
}

// Loaded is what FindLatest returns: the decoded value (zero if not
// Found), the cursor it was persisted at, and the raw snapshot size in
// bytes (used to sample the fetch-size gauge).
type Loaded[P any] struct {
	Value     P
	Cursor    fact.ID
	SizeBytes int
	Found     bool
}

// FindLatest looks up the most recent snapshot for desc's class. A cache
// read failure is returned as a SnapshotIOError alongside a not-Found
// result, so the caller can log it and treat it as a miss;
// a snapshot whose key no longer matches desc's schema version is simply
// absent from the cache under that key, so no explicit version check is
// needed here — BuildKey already encodes the version into the lookup.
func (r *ProjectionRepository[P]) FindLatest(ctx context.Context, desc ProjectionDescriptor[P]) (Loaded[P], error) {
	snap, ok, err := r.cache.GetSnapshot(ctx, desc.key())
	if err != nil {
		return Loaded[P]{}, ioError("get", desc.key(), err)
	}
	if !ok {
		return Loaded[P]{}, nil
	}
	v, err := desc.Serializer.Deserialize(snap.Bytes)
	if err != nil {
		// A decode failure is treated the same as a cache miss: the
		// engine falls back to rebuilding from scratch.
		r.log.WithError(err).WithField("class", desc.ClassID).Warn("snapshot decode failed, rebuilding from scratch")
		return Loaded[P]{}, nil
	}
	return Loaded[P]{Value: v, Cursor: fact.ID(snap.LastFact), SizeBytes: len(snap.Bytes), Found: true}, nil
}

// Put asynchronously serializes the projection and writes it to the cache
// under cursor. Failures are reported on the returned channel; the caller
// (factengine) is expected to log-and-discard rather than block on it,
// matching the snapshot cache's asynchronous, non-blocking contract.
func (r *ProjectionRepository[P]) Put(ctx context.Context, desc ProjectionDescriptor[P], v P, cursor fact.ID) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- r.putSync(ctx, desc, v, cursor)
	}()
	return result
}

func (r *ProjectionRepository[P]) putSync(ctx context.Context, desc ProjectionDescriptor[P], v P, cursor fact.ID) error {
	bytes, err := desc.Serializer.Serialize(v)
	if err != nil {
		return serializationError(desc.ClassID, err)
	}
	snap := Snapshot{
		Key:        desc.key(),
		LastFact:   cursor.String(),
		Bytes:      bytes,
		Compressed: desc.Serializer.IncludesCompression(),
	}
	if err := r.cache.SetSnapshot(ctx, snap); err != nil {
		return ioError("set", desc.key(), err)
	}
	return nil
}
