package dynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodePreservesOrder(t *testing.T) {
	doc := `{"zeta":1,"alpha":[true,null,"x"],"mid":{"b":2.5,"a":"<&>"}}`

	v, err := Decode([]byte(doc))
	require.NoError(t, err)

	m, ok := v.(*Map)
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())

	out, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, doc, string(out))
}

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		input string
		want  Value
	}{
		{`null`, Null{}},
		{`true`, Bool(true)},
		{`false`, Bool(false)},
		{`42`, Number("42")},
		{`-1.25e2`, Number("-1.25e2")},
		{`"hi"`, String("hi")},
		{`[]`, List{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestDecodeDuplicateMemberOverwrites(t *testing.T) {
	v, err := Decode([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)

	out, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"b":2}`, string(out))
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"whitespace", `   `},
		{"truncated object", `{"a":`},
		{"trailing data", `{} {}`},
		{"bad literal", `nul`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestEncodeNormalizesIntegers(t *testing.T) {
	out, err := Encode(List{Number("-0"), Number("007"), Int(7)})
	require.NoError(t, err)
	assert.Equal(t, `[0,7,7]`, string(out))
}

func TestEncodeRejectsOverflowingNumber(t *testing.T) {
	_, err := Encode(List{Number("1e999")})
	assert.Error(t, err)
}
