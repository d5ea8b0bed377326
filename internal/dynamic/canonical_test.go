package dynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	mustFloat := func(f float64) Number {
		n, err := Float(f)
		require.NoError(t, err)
		return n
	}

	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"string", String("hello"), `"hello"`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"float", mustFloat(1.5), "1.5"},
		{"whole float", mustFloat(2), "2"},
		{"small float", mustFloat(1e-7), "1e-7"},
		{"large float", mustFloat(1e21), "1e+21"},
		{"bool", Bool(true), "true"},
		{"empty array", List{}, "[]"},
		{"empty object", NewMap(), "{}"},
		{"html is not escaped", String("<a&b>"), `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	inner := NewMap()
	inner.Set("b", Int(1))
	inner.Set("a", Int(2))

	obj := NewMap()
	obj.Set("z", inner)
	obj.Set("a", Int(3))

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to a single code point.
	result, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	result, err = MarshalCanonical(String(`a\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028"`, string(result))
}

func TestCanonicalizeJSON(t *testing.T) {
	out, err := CanonicalizeJSON([]byte(`{"data": {"b": 1.0, "a": [1, 2]}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"a":[1,2],"b":1}}`, string(out))
}
