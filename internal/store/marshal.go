package store

import (
	"fmt"

	"github.com/roach88/gqlhost/internal/dynamic"
)

// marshalProperties converts item properties to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalProperties(props *dynamic.Map) (string, error) {
	if props.Len() == 0 {
		return "{}", nil
	}
	data, err := dynamic.MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

// unmarshalProperties parses canonical JSON TEXT back to a map.
// Numbers keep their literal text, so integers beyond 2^53 survive.
func unmarshalProperties(data string) (*dynamic.Map, error) {
	if data == "" || data == "{}" {
		return dynamic.NewMap(), nil
	}
	v, err := dynamic.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	m, ok := v.(*dynamic.Map)
	if !ok {
		return nil, fmt.Errorf("unmarshal properties: expected object, got %s", dynamic.Kind(v))
	}
	return m, nil
}
