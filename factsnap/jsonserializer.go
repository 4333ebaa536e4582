package factsnap

import (
	json "github.com/clarketm/json"
)

// jsonSerializer is the default Serializer implementation, encoding a
// projection as JSON over its public fields. It uses clarketm/json
// rather than the stdlib encoding/json: it is a drop-in fork
// that fixes encoding/json's inconsistent omitempty handling for nested
// structs and pointers, which matters here because projection state is
// round-tripped repeatedly across schema-compatible snapshot versions and
// a field that silently (dis)appears under omitempty would corrupt the
// round-trip law any Serializer implementation must satisfy.
type jsonSerializer[T any] struct{}

// JSON returns the default structured-text Serializer for T.
func JSON[T any]() Serializer[T] {
	return jsonSerializer[T]{}
}

func (jsonSerializer[T]) Serialize(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonSerializer[T]) Deserialize(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

func (jsonSerializer[T]) IncludesCompression() bool {
	return false
}
