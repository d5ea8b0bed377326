package marshal

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlhost/internal/dynamic"
	"github.com/roach88/gqlhost/internal/response"
)

func decode(t *testing.T, text string) dynamic.Value {
	t.Helper()
	v, err := dynamic.Decode([]byte(text))
	require.NoError(t, err)
	return v
}

func node(t *testing.T, kind response.Type) *response.Value {
	t.Helper()
	v, err := response.New(kind)
	require.NoError(t, err)
	return v
}

func TestToTypedListOfMixedKinds(t *testing.T) {
	typed, err := ToTyped(nil, decode(t, `[1, "a", true]`))
	require.NoError(t, err)
	require.Equal(t, response.TypeList, typed.Type())

	items, err := typed.ReleaseList()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, response.TypeInt, items[0].Type())
	assert.Equal(t, response.TypeString, items[1].Type())
	assert.Equal(t, response.TypeBoolean, items[2].Type())
}

func TestRoundTrip(t *testing.T) {
	tests := []string{
		`null`,
		`true`,
		`-42`,
		`"text"`,
		`[]`,
		`{}`,
		`{"b":1,"a":[null,false,"x",{"nested":[1,2,3]}],"c":{"d":"e"}}`,
		`[[[]],{"":0}]`,
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			in := decode(t, text)
			typed, err := ToTyped(nil, in)
			require.NoError(t, err)

			out, err := ToDynamic(typed)
			require.NoError(t, err)
			assert.True(t, dynamic.Equal(in, out), "got %#v", out)

			encoded, err := dynamic.Encode(out)
			require.NoError(t, err)
			assert.JSONEq(t, text, string(encoded))
		})
	}
}

func TestRoundTripPreservesMapOrder(t *testing.T) {
	typed, err := ToTyped(nil, decode(t, `{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)
	out, err := ToDynamic(typed)
	require.NoError(t, err)

	encoded, err := dynamic.Encode(out)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(encoded))
}

func TestNumberBucketing(t *testing.T) {
	tests := []struct {
		literal string
		kind    response.Type
	}{
		{"0", response.TypeInt},
		{"-9223372036854775808", response.TypeInt},
		{"9223372036854775807", response.TypeInt},
		{"9223372036854775808", response.TypeFloat},
		{"2.0", response.TypeFloat},
		{"1.5e3", response.TypeFloat},
		{"1e2", response.TypeFloat},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			typed, err := ToTyped(nil, dynamic.Number(tt.literal))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, typed.Type())
		})
	}
}

func TestNumberOutOfRangeIsConversionError(t *testing.T) {
	_, err := ToTyped(nil, decode(t, `[1e400]`))
	require.Error(t, err)
	assert.True(t, IsConversionError(err))

	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "List", ce.Kind)
	assert.Equal(t, AtListEntry, ce.At)
	assert.Equal(t, 0, ce.Index)
	assert.ErrorIs(t, err, dynamic.ErrNotFinite)
}

func TestReserveFailureAbortsConversion(t *testing.T) {
	_, err := ToTyped(response.NewArena(2), decode(t, `[1, 2, 3]`))
	require.Error(t, err)

	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "List", ce.Kind)
	assert.Equal(t, AtNode, ce.At)
	assert.ErrorIs(t, err, response.ErrNodeLimit)
}

func TestNestedFailureNamesPath(t *testing.T) {
	// Map node + reserve(1) fit, the inner list cannot reserve 3 more.
	_, err := ToTyped(response.NewArena(4), decode(t, `{"items":[1,2,3]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `convert Map entry "items": convert List: reserve 3`)

	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, AtMapEntry, ce.At)
	assert.Equal(t, "items", ce.Name)
}

func TestMarshalerAppliesNodeBudget(t *testing.T) {
	m := &Marshaler{MaxNodes: 3}

	_, err := m.ToTyped(decode(t, `[1, 2]`))
	require.NoError(t, err)

	_, err = m.ToTyped(decode(t, `[1, 2, 3]`))
	assert.ErrorIs(t, err, response.ErrNodeLimit)
}

func TestToDynamicFlattensStringKinds(t *testing.T) {
	list := node(t, response.TypeList)
	for _, kind := range []response.Type{response.TypeString, response.TypeEnumValue, response.TypeID} {
		child := node(t, kind)
		require.NoError(t, child.SetString(kind.String()))
		require.NoError(t, list.PushListEntry(child))
	}

	out, err := ToDynamic(list)
	require.NoError(t, err)
	assert.Equal(t, dynamic.List{dynamic.String("String"), dynamic.String("EnumValue"), dynamic.String("ID")}, out)
}

func TestToDynamicSkipsFailingChildren(t *testing.T) {
	nan := node(t, response.TypeFloat)
	require.NoError(t, nan.SetFloat(math.NaN()))
	one := node(t, response.TypeInt)
	require.NoError(t, one.SetInt(1))

	list := node(t, response.TypeList)
	require.NoError(t, list.PushListEntry(nan))
	require.NoError(t, list.PushListEntry(one))

	released := node(t, response.TypeString)
	_, err := released.ReleaseString()
	require.NoError(t, err)

	m := node(t, response.TypeMap)
	require.NoError(t, m.PushMapEntry("list", list))
	require.NoError(t, m.PushMapEntry("gone", released))

	out, err := ToDynamic(m)
	require.NoError(t, err)

	encoded, err := dynamic.Encode(out)
	require.NoError(t, err)
	assert.Equal(t, `{"list":[1]}`, string(encoded))
}

func TestToDynamicTopLevelFailureIsError(t *testing.T) {
	nan := node(t, response.TypeFloat)
	require.NoError(t, nan.SetFloat(math.Inf(1)))

	_, err := ToDynamic(nan)
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
	assert.ErrorIs(t, err, dynamic.ErrNotFinite)
}

func TestToDynamicUnwrapsScalar(t *testing.T) {
	inner := node(t, response.TypeMap)
	child := node(t, response.TypeBoolean)
	require.NoError(t, child.SetBool(true))
	require.NoError(t, inner.PushMapEntry("ok", child))

	scalar := node(t, response.TypeScalar)
	require.NoError(t, scalar.SetScalar(inner))

	out, err := ToDynamic(scalar)
	require.NoError(t, err)
	encoded, err := dynamic.Encode(out)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(encoded))
}

func TestToDynamicScalarFailureIsNull(t *testing.T) {
	empty := node(t, response.TypeScalar)
	out, err := ToDynamic(empty)
	require.NoError(t, err)
	assert.Equal(t, dynamic.Null{}, out)

	nan := node(t, response.TypeFloat)
	require.NoError(t, nan.SetFloat(math.NaN()))
	wrapped := node(t, response.TypeScalar)
	require.NoError(t, wrapped.SetScalar(nan))

	out, err = ToDynamic(wrapped)
	require.NoError(t, err)
	assert.Equal(t, dynamic.Null{}, out)
}

func TestToDynamicFloat(t *testing.T) {
	f := node(t, response.TypeFloat)
	require.NoError(t, f.SetFloat(2))

	out, err := ToDynamic(f)
	require.NoError(t, err)
	assert.Equal(t, dynamic.Number("2.0"), out)
}

func TestMarshalerLogsSkippedChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := &Marshaler{Logger: logger}

	nan := node(t, response.TypeFloat)
	require.NoError(t, nan.SetFloat(math.NaN()))
	list := node(t, response.TypeList)
	require.NoError(t, list.PushListEntry(nan))

	out, err := m.ToDynamic(list)
	require.NoError(t, err)
	assert.Equal(t, dynamic.List{}, out)
	assert.Contains(t, buf.String(), "skipped unconvertible child")
	assert.Contains(t, buf.String(), "convert List[0]")
}

func TestJSONHelpers(t *testing.T) {
	m := &Marshaler{}
	typed, err := m.DecodeJSON([]byte(`{"data":{"__typename":"Query"}}`))
	require.NoError(t, err)

	text, err := m.EncodeJSON(typed)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"__typename":"Query"}}`, string(text))

	_, err = m.DecodeJSON([]byte(`{`))
	require.Error(t, err)
}
