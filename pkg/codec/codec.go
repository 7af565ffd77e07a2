// Package codec provides value serialization for the persistent cache tier.
//
// The cache treats values as opaque; a Codec defines the exact byte
// representation written to disk so the persistence format is explicit
// rather than implied by any one language's object model.
package codec

import (
	"encoding/json"
	"fmt"
)

// JSON encodes values with encoding/json. It is the default codec: any
// value that round-trips through json.Marshal/Unmarshal can be cached.
type JSON[V any] struct{}

// NewJSON returns a JSON codec for V.
func NewJSON[V any]() JSON[V] {
	return JSON[V]{}
}

func (JSON[V]) Encode(value V) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

func (JSON[V]) Decode(data []byte) (V, error) {
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("json decode: %w", err)
	}
	return value, nil
}

// Bytes passes byte slices through unchanged, for callers that serialize
// upstream of the cache.
type Bytes struct{}

func (Bytes) Encode(value []byte) ([]byte, error) {
	return value, nil
}

func (Bytes) Decode(data []byte) ([]byte, error) {
	return data, nil
}

// String stores strings as their UTF-8 bytes.
type String struct{}

func (String) Encode(value string) ([]byte, error) {
	return []byte(value), nil
}

func (String) Decode(data []byte) (string, error) {
	return string(data), nil
}
