package gql

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/roach88/gqlhost/internal/dynamic"
)

// jsonScalar carries arbitrary JSON. Serialized values stay dynamic values
// so member order survives until the response tree is built.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value.",
	Serialize: func(value interface{}) interface{} {
		v, err := dynamic.FromGo(value)
		if err != nil {
			return nil
		}
		return v
	},
	ParseValue: func(value interface{}) interface{} {
		v, err := dynamic.FromGo(value)
		if err != nil {
			return nil
		}
		return v
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		v, ok := literalToDynamic(valueAST)
		if !ok {
			return nil
		}
		return v
	},
})

// literalToDynamic converts a constant input literal. Variables inside the
// literal are not supported.
func literalToDynamic(value ast.Value) (dynamic.Value, bool) {
	switch v := value.(type) {
	case *ast.StringValue:
		return dynamic.String(v.Value), true
	case *ast.EnumValue:
		return dynamic.String(v.Value), true
	case *ast.BooleanValue:
		return dynamic.Bool(v.Value), true
	case *ast.IntValue:
		return dynamic.Number(v.Value), true
	case *ast.FloatValue:
		return dynamic.Number(v.Value), true
	case *ast.ListValue:
		out := make(dynamic.List, 0, len(v.Values))
		for _, item := range v.Values {
			d, ok := literalToDynamic(item)
			if !ok {
				return nil, false
			}
			out = append(out, d)
		}
		return out, true
	case *ast.ObjectValue:
		out := dynamic.NewMap()
		for _, field := range v.Fields {
			d, ok := literalToDynamic(field.Value)
			if !ok {
				return nil, false
			}
			out.Set(field.Name.Value, d)
		}
		return out, true
	default:
		return nil, false
	}
}
