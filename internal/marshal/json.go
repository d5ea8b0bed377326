package marshal

import (
	"github.com/roach88/gqlhost/internal/dynamic"
	"github.com/roach88/gqlhost/internal/response"
)

// DecodeJSON parses JSON text into a typed tree.
func (m *Marshaler) DecodeJSON(text []byte) (*response.Value, error) {
	v, err := dynamic.Decode(text)
	if err != nil {
		return nil, err
	}
	return m.ToTyped(v)
}

// EncodeJSON converts and releases a typed tree and returns its JSON text.
func (m *Marshaler) EncodeJSON(v *response.Value) ([]byte, error) {
	d, err := m.ToDynamic(v)
	if err != nil {
		return nil, err
	}
	return dynamic.Encode(d)
}
