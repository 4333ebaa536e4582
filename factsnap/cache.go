package factsnap

import "context"

// Cache is the external blob store collaborator: a
// key/value cache over opaque byte payloads. The runtime never inspects
// the bytes it stores; serialization is entirely the Serializer's concern.
type Cache interface {
	GetSnapshot(ctx context.Context, key string) (Snapshot, bool, error)
	SetSnapshot(ctx context.Context, snap Snapshot) error
	DeleteSnapshot(ctx context.Context, key string) error
}

// Serializer is the pluggable payload codec, specific
// to one projection class. T is the application's projection type.
type Serializer[T any] interface {
	Serialize(v T) ([]byte, error)
	Deserialize(b []byte) (T, error)
	IncludesCompression() bool
}
