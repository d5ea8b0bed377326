package dynamic

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "inbox",
		"count": 3,
		"ratio": 0.5,
		"tags":  []any{"a", true, nil},
		"big":   uint64(math.MaxUint64),
		"raw":   json.Number("12"),
	})
	require.NoError(t, err)

	m, ok := v.(*Map)
	require.True(t, ok)
	assert.Equal(t, []string{"big", "count", "name", "ratio", "raw", "tags"}, m.Keys())

	out, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, `{"big":18446744073709551615,"count":3,"name":"inbox","ratio":0.5,"raw":12,"tags":["a",true,null]}`, string(out))
}

func TestFromGoErrors(t *testing.T) {
	_, err := FromGo(map[string]any{"bad": math.Inf(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `object["bad"]`)

	_, err = FromGo([]any{1, struct{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[1]")
}

func TestToGo(t *testing.T) {
	v, err := Decode([]byte(`{"i":1,"f":1.5,"huge":18446744073709551615,"l":[null,"s",false]}`))
	require.NoError(t, err)

	got, err := ToGo(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"i":    int64(1),
		"f":    1.5,
		"huge": float64(18446744073709551615),
		"l":    []any{nil, "s", false},
	}, got)

	_, err = ToGo(List{Number("1e400")})
	assert.Error(t, err)
}
