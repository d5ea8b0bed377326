package gql

import (
	"fmt"
	"slices"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/roach88/gqlhost/internal/dynamic"
	"github.com/roach88/gqlhost/internal/marshal"
	"github.com/roach88/gqlhost/internal/response"
)

// treeBuilder turns an execution result into a typed response tree.
//
// Node kinds come from the schema type of each field, found by walking the
// operation's selection sets. Map members follow selection order. Values
// whose type cannot be determined are bucketed by their Go type instead.
type treeBuilder struct {
	arena     *response.Arena
	schema    *graphql.Schema
	fragments map[string]*ast.FragmentDefinition
}

func newTreeBuilder(arena *response.Arena, schema *graphql.Schema, doc *ast.Document) *treeBuilder {
	b := &treeBuilder{arena: arena, schema: schema, fragments: make(map[string]*ast.FragmentDefinition)}
	for _, def := range doc.Definitions {
		if frag, ok := def.(*ast.FragmentDefinition); ok && frag.Name != nil {
			b.fragments[frag.Name.Value] = frag
		}
	}
	return b
}

// document builds {"data": ..., "errors": [...]}. errors is present only
// when the result carries errors.
func (b *treeBuilder) document(op *ast.OperationDefinition, result *graphql.Result) (*response.Value, error) {
	doc, err := b.node(response.TypeMap)
	if err != nil {
		return nil, err
	}
	size := 1
	if len(result.Errors) > 0 {
		size++
	}
	if err := doc.Reserve(size); err != nil {
		return nil, convErr("Map", err)
	}

	var data *response.Value
	if result.Data == nil || op == nil {
		data, err = b.node(response.TypeNull)
	} else {
		data, err = b.value(result.Data, b.rootType(op), []*ast.SelectionSet{op.SelectionSet})
	}
	if err != nil {
		return nil, entryErr("data", err)
	}
	if err := doc.PushMapEntry("data", data); err != nil {
		return nil, entryErr("data", err)
	}

	if len(result.Errors) > 0 {
		errs, err := b.errors(result.Errors)
		if err != nil {
			return nil, entryErr("errors", err)
		}
		if err := doc.PushMapEntry("errors", errs); err != nil {
			return nil, entryErr("errors", err)
		}
	}
	return doc, nil
}

func (b *treeBuilder) rootType(op *ast.OperationDefinition) graphql.Type {
	switch op.Operation {
	case ast.OperationTypeMutation:
		return b.schema.MutationType()
	case ast.OperationTypeSubscription:
		return b.schema.SubscriptionType()
	default:
		return b.schema.QueryType()
	}
}

func (b *treeBuilder) value(v any, t graphql.Type, sels []*ast.SelectionSet) (*response.Value, error) {
	if v == nil {
		return b.node(response.TypeNull)
	}

	switch t := t.(type) {
	case *graphql.NonNull:
		return b.value(v, t.OfType, sels)
	case *graphql.List:
		items, ok := v.([]interface{})
		if !ok {
			return b.generic(v)
		}
		return b.list(items, t.OfType, sels)
	case *graphql.Scalar:
		return b.scalar(v, t)
	case *graphql.Enum:
		return b.text(response.TypeEnumValue, fmt.Sprint(v))
	case *graphql.Object, *graphql.Interface, *graphql.Union:
		fields, ok := v.(map[string]interface{})
		if !ok {
			return b.generic(v)
		}
		return b.object(fields, t, sels)
	default:
		return b.generic(v)
	}
}

func (b *treeBuilder) list(items []interface{}, elem graphql.Type, sels []*ast.SelectionSet) (*response.Value, error) {
	list, err := b.node(response.TypeList)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := list.Reserve(len(items)); err != nil {
			return nil, convErr("List", err)
		}
	}
	for i, item := range items {
		child, err := b.value(item, elem, sels)
		if err != nil {
			return nil, &marshal.ConversionError{Kind: "List", At: marshal.AtListEntry, Index: i, Err: err}
		}
		if err := list.PushListEntry(child); err != nil {
			return nil, &marshal.ConversionError{Kind: "List", At: marshal.AtListEntry, Index: i, Err: err}
		}
	}
	return list, nil
}

func (b *treeBuilder) object(fields map[string]interface{}, parent graphql.Type, sels []*ast.SelectionSet) (*response.Value, error) {
	m, err := b.node(response.TypeMap)
	if err != nil {
		return nil, err
	}

	collected := b.collect(parent, sels)
	present := make([]collectedField, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range collected {
		if _, ok := fields[f.key]; ok && !seen[f.key] {
			present = append(present, f)
			seen[f.key] = true
		}
	}
	// Members the walk could not place keep a stable order after the rest.
	var extra []string
	for key := range fields {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)

	if n := len(present) + len(extra); n > 0 {
		if err := m.Reserve(n); err != nil {
			return nil, convErr("Map", err)
		}
	}
	for _, f := range present {
		var child *response.Value
		if f.def != nil {
			child, err = b.value(fields[f.key], f.def.Type, f.sels)
		} else {
			child, err = b.generic(fields[f.key])
		}
		if err != nil {
			return nil, entryErr(f.key, err)
		}
		if err := m.PushMapEntry(f.key, child); err != nil {
			return nil, entryErr(f.key, err)
		}
	}
	for _, key := range extra {
		child, err := b.generic(fields[key])
		if err != nil {
			return nil, entryErr(key, err)
		}
		if err := m.PushMapEntry(key, child); err != nil {
			return nil, entryErr(key, err)
		}
	}
	return m, nil
}

func (b *treeBuilder) scalar(v any, t *graphql.Scalar) (*response.Value, error) {
	switch t.Name() {
	case "ID":
		return b.text(response.TypeID, fmt.Sprint(v))
	case "String":
		return b.text(response.TypeString, fmt.Sprint(v))
	case "Boolean":
		flag, ok := v.(bool)
		if !ok {
			return nil, convErr("Boolean", fmt.Errorf("unexpected %T", v))
		}
		node, err := b.node(response.TypeBoolean)
		if err != nil {
			return nil, err
		}
		return node, node.SetBool(flag)
	case "Int", "Float":
		d, err := dynamic.FromGo(v)
		if err != nil {
			return nil, convErr(t.Name(), err)
		}
		n, ok := d.(dynamic.Number)
		if !ok {
			return nil, convErr(t.Name(), fmt.Errorf("unexpected %T", v))
		}
		if t.Name() == "Int" {
			i, ok := n.Int64()
			if !ok {
				return nil, convErr("Int", fmt.Errorf("%s is not an integer", n))
			}
			node, err := b.node(response.TypeInt)
			if err != nil {
				return nil, err
			}
			return node, node.SetInt(i)
		}
		f, err := n.Float64()
		if err != nil {
			return nil, convErr("Float", err)
		}
		node, err := b.node(response.TypeFloat)
		if err != nil {
			return nil, err
		}
		return node, node.SetFloat(f)
	default:
		inner, err := b.generic(v)
		if err != nil {
			return nil, convErr("Scalar", err)
		}
		node, err := b.node(response.TypeScalar)
		if err != nil {
			return nil, err
		}
		return node, node.SetScalar(inner)
	}
}

func (b *treeBuilder) errors(errs []gqlerrors.FormattedError) (*response.Value, error) {
	list := make(dynamic.List, 0, len(errs))
	for _, fe := range errs {
		m := dynamic.NewMap()
		m.Set("message", dynamic.String(fe.Message))
		if len(fe.Locations) > 0 {
			locs := make(dynamic.List, 0, len(fe.Locations))
			for _, loc := range fe.Locations {
				l := dynamic.NewMap()
				l.Set("line", dynamic.Int(int64(loc.Line)))
				l.Set("column", dynamic.Int(int64(loc.Column)))
				locs = append(locs, l)
			}
			m.Set("locations", locs)
		}
		if len(fe.Path) > 0 {
			path, err := dynamic.FromGo(fe.Path)
			if err != nil {
				return nil, err
			}
			m.Set("path", path)
		}
		if len(fe.Extensions) > 0 {
			ext, err := dynamic.FromGo(fe.Extensions)
			if err != nil {
				return nil, err
			}
			m.Set("extensions", ext)
		}
		list = append(list, m)
	}
	return marshal.ToTyped(b.arena, list)
}

// generic converts a value of unknown schema type by its Go type.
func (b *treeBuilder) generic(v any) (*response.Value, error) {
	d, err := dynamic.FromGo(v)
	if err != nil {
		return nil, convErr(fmt.Sprintf("%T", v), err)
	}
	return marshal.ToTyped(b.arena, d)
}

func (b *treeBuilder) text(kind response.Type, s string) (*response.Value, error) {
	node, err := b.node(kind)
	if err != nil {
		return nil, err
	}
	return node, node.SetString(s)
}

func (b *treeBuilder) node(kind response.Type) (*response.Value, error) {
	node, err := b.arena.New(kind)
	if err != nil {
		return nil, convErr(kind.String(), err)
	}
	return node, nil
}

// collectedField is one response key of a selection, with the schema field
// it resolves to and the sub-selections merged under that key.
type collectedField struct {
	key  string
	def  *graphql.FieldDefinition
	sels []*ast.SelectionSet
}

// collect flattens selection sets into response keys in first-seen order,
// expanding inline fragments and fragment spreads.
func (b *treeBuilder) collect(parent graphql.Type, sels []*ast.SelectionSet) []collectedField {
	var out []collectedField
	index := make(map[string]int)

	var walk func(parent graphql.Type, set *ast.SelectionSet)
	walk = func(parent graphql.Type, set *ast.SelectionSet) {
		if set == nil {
			return
		}
		for _, sel := range set.Selections {
			switch s := sel.(type) {
			case *ast.Field:
				if s.Name == nil {
					continue
				}
				key := s.Name.Value
				if s.Alias != nil && s.Alias.Value != "" {
					key = s.Alias.Value
				}
				if i, ok := index[key]; ok {
					if s.SelectionSet != nil {
						out[i].sels = append(out[i].sels, s.SelectionSet)
					}
					continue
				}
				f := collectedField{key: key, def: fieldDef(parent, s.Name.Value)}
				if s.SelectionSet != nil {
					f.sels = []*ast.SelectionSet{s.SelectionSet}
				}
				index[key] = len(out)
				out = append(out, f)
			case *ast.InlineFragment:
				walk(b.condition(parent, s.TypeCondition), s.SelectionSet)
			case *ast.FragmentSpread:
				if s.Name == nil {
					continue
				}
				if frag, ok := b.fragments[s.Name.Value]; ok {
					walk(b.condition(parent, frag.TypeCondition), frag.SelectionSet)
				}
			}
		}
	}

	for _, set := range sels {
		walk(parent, set)
	}
	return out
}

func (b *treeBuilder) condition(parent graphql.Type, named *ast.Named) graphql.Type {
	if named == nil || named.Name == nil {
		return parent
	}
	if t := b.schema.Type(named.Name.Value); t != nil {
		return t
	}
	return parent
}

func fieldDef(parent graphql.Type, name string) *graphql.FieldDefinition {
	switch name {
	case "__typename":
		return graphql.TypeNameMetaFieldDef
	case "__schema":
		return graphql.SchemaMetaFieldDef
	case "__type":
		return graphql.TypeMetaFieldDef
	}
	switch t := parent.(type) {
	case *graphql.Object:
		return t.Fields()[name]
	case *graphql.Interface:
		return t.Fields()[name]
	}
	return nil
}

func convErr(kind string, err error) error {
	return &marshal.ConversionError{Kind: kind, At: marshal.AtNode, Err: err}
}

func entryErr(name string, err error) error {
	return &marshal.ConversionError{Kind: "Map", At: marshal.AtMapEntry, Name: name, Err: err}
}

// errorDocument renders a failure that happened while producing a payload.
func errorDocument(err error) string {
	m := dynamic.NewMap()
	m.Set("message", dynamic.String(err.Error()))
	doc := dynamic.NewMap()
	doc.Set("data", dynamic.Null{})
	doc.Set("errors", dynamic.List{m})
	text, encErr := dynamic.Encode(doc)
	if encErr != nil {
		return `{"data":null,"errors":[{"message":"unencodable error"}]}`
	}
	return string(text)
}
