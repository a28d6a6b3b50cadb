package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Struct serializes schemaless field maps as protobuf
// google.protobuf.Struct messages. Useful when the cache is shared with
// protobuf-speaking consumers; note Struct is JSON-shaped, so all
// numbers round-trip as float64.
type Struct[V ~map[string]any] struct{}

var _ Codec[map[string]any] = Struct[map[string]any]{}

func (Struct[V]) Encode(v V) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any(v))
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (Struct[V]) Decode(b []byte) (V, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return V(s.AsMap()), nil
}
