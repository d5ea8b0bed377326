package gql

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlhost/internal/engine"
	"github.com/roach88/gqlhost/internal/marshal"
	"github.com/roach88/gqlhost/internal/response"
)

func TestTreeBuilder_KindsFollowSchema(t *testing.T) {
	e := newTestEngine(t, engine.Env{}, Config{})
	run(t, e, `mutation { createItem(input: {folderId: "inbox", subject: "s", properties: {k: "v"}}) { id } }`, "")

	query := `{ item(id: "item-1") { id subject importance read sizeKb properties } }`
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)

	result := graphql.Execute(graphql.ExecuteParams{Schema: e.schema, AST: doc, Context: context.Background()})
	require.Empty(t, result.Errors)

	tree, err := newTreeBuilder(nil, &e.schema, doc).document(findOperation(doc, ""), result)
	require.NoError(t, err)

	data, ok := tree.Get("data")
	require.True(t, ok)
	item, ok := data.Get("item")
	require.True(t, ok)

	kinds := map[string]response.Type{
		"id":         response.TypeID,
		"subject":    response.TypeString,
		"importance": response.TypeEnumValue,
		"read":       response.TypeBoolean,
		"sizeKb":     response.TypeFloat,
		"properties": response.TypeScalar,
	}
	for name, kind := range kinds {
		v, ok := item.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, kind, v.Type(), name)
	}

	text, err := (&marshal.Marshaler{}).EncodeJSON(tree)
	require.NoError(t, err)
	assert.Equal(t,
		`{"data":{"item":{"id":"item-1","subject":"s","importance":"NORMAL","read":false,"sizeKb":0.0,"properties":{"k":"v"}}}}`,
		string(text))
}

func TestTreeBuilder_IntrospectionEnums(t *testing.T) {
	e := newTestEngine(t, engine.Env{}, Config{})
	assert.Equal(t,
		`{"data":{"__type":{"name":"Importance","kind":"ENUM"}}}`,
		run(t, e, `{ __type(name: "Importance") { name kind } }`, ""))
}

func TestErrorDocument(t *testing.T) {
	assert.Equal(t, `{"data":null,"errors":[{"message":"boom"}]}`, errorDocument(assertError("boom")))
}

type assertError string

func (e assertError) Error() string { return string(e) }
