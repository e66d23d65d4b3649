package control

import "encoding/json"

// jsonCodec carries the plain request/response structs of this package. It is
// registered under connect's "json" name so it replaces the protobuf-only default.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
