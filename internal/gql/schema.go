package gql

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/mitchellh/mapstructure"

	"github.com/roach88/gqlhost/internal/dynamic"
	"github.com/roach88/gqlhost/internal/store"
)

// Subscription event names, which are also the Subscription root fields.
const (
	eventItemAdded   = "itemAdded"
	eventItemUpdated = "itemUpdated"
	eventItemRemoved = "itemRemoved"
)

var importanceEnum = graphql.NewEnum(graphql.EnumConfig{
	Name:        "Importance",
	Description: "How urgent an item is.",
	Values: graphql.EnumValueConfigMap{
		store.ImportanceLow:    &graphql.EnumValueConfig{Value: store.ImportanceLow},
		store.ImportanceNormal: &graphql.EnumValueConfig{Value: store.ImportanceNormal},
		store.ImportanceHigh:   &graphql.EnumValueConfig{Value: store.ImportanceHigh},
	},
})

var newItemInput = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "NewItemInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"folderId":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
		"subject":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"body":       &graphql.InputObjectFieldConfig{Type: graphql.String},
		"importance": &graphql.InputObjectFieldConfig{Type: importanceEnum},
		"properties": &graphql.InputObjectFieldConfig{Type: jsonScalar},
	},
})

// itemInput is NewItemInput decoded from resolver arguments.
type itemInput struct {
	FolderID   string        `mapstructure:"folderId"`
	Subject    string        `mapstructure:"subject"`
	Body       string        `mapstructure:"body"`
	Importance string        `mapstructure:"importance"`
	Properties dynamic.Value `mapstructure:"properties"`
}

// buildSchema wires the schema's resolvers to e.
func (e *Engine) buildSchema() (graphql.Schema, error) {
	var folderType, itemType *graphql.Object

	folderType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Folder",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: folderField(func(f store.Folder) any { return f.ID })},
				"name": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: folderField(func(f store.Folder) any { return f.Name })},
				"unreadCount": &graphql.Field{
					Type: graphql.NewNonNull(graphql.Int),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						f, ok := p.Source.(store.Folder)
						if !ok {
							return nil, errUnexpectedSource
						}
						return e.store.CountUnread(p.Context, f.ID)
					},
				},
				"items": &graphql.Field{
					Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(itemType))),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						f, ok := p.Source.(store.Folder)
						if !ok {
							return nil, errUnexpectedSource
						}
						items, err := e.store.Items(p.Context, f.ID)
						if err != nil {
							return nil, err
						}
						out := make([]interface{}, len(items))
						for i, it := range items {
							out[i] = it
						}
						return out, nil
					},
				},
			}
		}),
	})

	itemType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Item",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: itemField(func(it store.Item) any { return it.ID })},
				"folderId":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: itemField(func(it store.Item) any { return it.FolderID })},
				"subject":    &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: itemField(func(it store.Item) any { return it.Subject })},
				"body":       &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: itemField(func(it store.Item) any { return it.Body })},
				"importance": &graphql.Field{Type: graphql.NewNonNull(importanceEnum), Resolve: itemField(func(it store.Item) any { return it.Importance })},
				"read":       &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean), Resolve: itemField(func(it store.Item) any { return it.Read })},
				"sizeKb":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float), Resolve: itemField(func(it store.Item) any { return float64(len(it.Body)) / 1024 })},
				"properties": &graphql.Field{Type: graphql.NewNonNull(jsonScalar), Resolve: itemField(func(it store.Item) any { return it.Properties })},
				"folder": &graphql.Field{
					Type: graphql.NewNonNull(folderType),
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						it, ok := p.Source.(store.Item)
						if !ok {
							return nil, errUnexpectedSource
						}
						return e.store.Folder(p.Context, it.FolderID)
					},
				},
			}
		}),
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"folders": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(folderType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					folders, err := e.store.Folders(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]interface{}, len(folders))
					for i, f := range folders {
						out[i] = f
					}
					return out, nil
				},
			},
			"folder": &graphql.Field{
				Type: folderType,
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.ID},
					"name": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var (
						f   store.Folder
						err error
					)
					switch {
					case p.Args["id"] != nil:
						f, err = e.store.Folder(p.Context, fmt.Sprint(p.Args["id"]))
					case p.Args["name"] != nil:
						f, err = e.store.FolderByName(p.Context, fmt.Sprint(p.Args["name"]))
					default:
						return nil, errors.New("folder requires id or name")
					}
					if errors.Is(err, store.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return f, nil
				},
			},
			"item": &graphql.Field{
				Type: itemType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					it, err := e.store.Item(p.Context, fmt.Sprint(p.Args["id"]))
					if errors.Is(err, store.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return it, nil
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createFolder": &graphql.Field{
				Type: graphql.NewNonNull(folderType),
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return e.store.CreateFolder(p.Context, fmt.Sprint(p.Args["name"]))
				},
			},
			"createItem": &graphql.Field{
				Type: graphql.NewNonNull(itemType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(newItemInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var in itemInput
					if err := mapstructure.Decode(p.Args["input"], &in); err != nil {
						return nil, fmt.Errorf("decode input: %w", err)
					}
					props, err := propertiesOf(in.Properties)
					if err != nil {
						return nil, err
					}
					it, err := e.store.CreateItem(p.Context, store.NewItem{
						FolderID:   in.FolderID,
						Subject:    in.Subject,
						Body:       in.Body,
						Importance: in.Importance,
						Properties: props,
					})
					if err != nil {
						return nil, err
					}
					e.raise(eventItemAdded, it)
					return it, nil
				},
			},
			"markRead": &graphql.Field{
				Type: graphql.NewNonNull(itemType),
				Args: graphql.FieldConfigArgument{
					"id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"read": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: true},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					read, _ := p.Args["read"].(bool)
					it, err := e.store.SetRead(p.Context, fmt.Sprint(p.Args["id"]), read)
					if err != nil {
						return nil, err
					}
					e.raise(eventItemUpdated, it)
					return it, nil
				},
			},
			"removeItem": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					it, err := e.store.DeleteItem(p.Context, fmt.Sprint(p.Args["id"]))
					if err != nil {
						return nil, err
					}
					e.raise(eventItemRemoved, it.ID)
					return it.ID, nil
				},
			},
		},
	})

	subscription := graphql.NewObject(graphql.ObjectConfig{
		Name: "Subscription",
		Fields: graphql.Fields{
			eventItemAdded:   &graphql.Field{Type: graphql.NewNonNull(itemType), Resolve: eventField(eventItemAdded)},
			eventItemUpdated: &graphql.Field{Type: graphql.NewNonNull(itemType), Resolve: eventField(eventItemUpdated)},
			eventItemRemoved: &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: eventField(eventItemRemoved)},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:        query,
		Mutation:     mutation,
		Subscription: subscription,
	})
}

var errUnexpectedSource = errors.New("unexpected resolver source")

func folderField(get func(store.Folder) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		f, ok := p.Source.(store.Folder)
		if !ok {
			return nil, errUnexpectedSource
		}
		return get(f), nil
	}
}

func itemField(get func(store.Item) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		it, ok := p.Source.(store.Item)
		if !ok {
			return nil, errUnexpectedSource
		}
		return get(it), nil
	}
}

// eventField resolves a Subscription root field from the event map that
// is passed as the execution root.
func eventField(name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		root, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, errUnexpectedSource
		}
		v, ok := root[name]
		if !ok {
			return nil, fmt.Errorf("no %s event", name)
		}
		return v, nil
	}
}

func propertiesOf(v dynamic.Value) (*dynamic.Map, error) {
	switch props := v.(type) {
	case nil, dynamic.Null:
		return dynamic.NewMap(), nil
	case *dynamic.Map:
		return props, nil
	default:
		return nil, fmt.Errorf("properties must be an object, got %s", dynamic.Kind(v))
	}
}
