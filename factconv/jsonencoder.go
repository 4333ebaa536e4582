package factconv

import (
	json "github.com/clarketm/json"
)

// jsonEncoder is the default Encoder, using the same
// clarketm/json fork factsnap's default Serializer uses, for the same
// omitempty-consistency reason.
type jsonEncoder struct{}

// JSONEncoder returns the default structured-text Encoder.
func JSONEncoder() Encoder {
	return jsonEncoder{}
}

func (jsonEncoder) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
