// Package marshal converts between dynamic values and the engine's typed
// response tree.
//
// Dynamic to typed is strict: the first failing node aborts the whole
// conversion. Typed to dynamic is lenient inside containers: a Map member or
// List element that cannot be converted is skipped, and a Scalar whose inner
// value cannot be converted becomes Null.
package marshal

import (
	"errors"
	"log/slog"

	"github.com/roach88/gqlhost/internal/dynamic"
	"github.com/roach88/gqlhost/internal/response"
)

// Marshaler converts value trees with a node budget and skip logging.
type Marshaler struct {
	// MaxNodes bounds the size of every typed tree built by ToTyped.
	// Zero means unbounded.
	MaxNodes int

	// Logger receives a debug record for every child skipped by ToDynamic.
	Logger *slog.Logger
}

// ToTyped converts v into a typed tree charged against a fresh Arena.
func (m *Marshaler) ToTyped(v dynamic.Value) (*response.Value, error) {
	return ToTyped(response.NewArena(m.MaxNodes), v)
}

// ToDynamic converts and releases a typed tree.
func (m *Marshaler) ToDynamic(v *response.Value) (dynamic.Value, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return toDynamic(v, func(err error) {
		logger.Debug("skipped unconvertible child", "error", err)
	})
}

// ToTyped converts v into a typed tree whose nodes are charged against
// arena. A nil arena is unbounded.
func ToTyped(arena *response.Arena, v dynamic.Value) (*response.Value, error) {
	switch val := v.(type) {
	case nil, dynamic.Null:
		return newNode(arena, response.TypeNull)

	case dynamic.Bool:
		node, err := newNode(arena, response.TypeBoolean)
		if err != nil {
			return nil, err
		}
		if err := node.SetBool(bool(val)); err != nil {
			return nil, nodeError(response.TypeBoolean.String(), err)
		}
		return node, nil

	case dynamic.Number:
		return numberToTyped(arena, val)

	case dynamic.String:
		node, err := newNode(arena, response.TypeString)
		if err != nil {
			return nil, err
		}
		if err := node.SetString(string(val)); err != nil {
			return nil, nodeError(response.TypeString.String(), err)
		}
		return node, nil

	case dynamic.List:
		return listToTyped(arena, val)

	case *dynamic.Map:
		return mapToTyped(arena, val)

	default:
		return nil, nodeError(dynamic.Kind(v), errors.New("unsupported dynamic value"))
	}
}

// numberToTyped buckets a number: an exact 64-bit integer becomes Int and
// anything else that parses as a finite float becomes Float.
// Bucketing follows the literal, so 1.0 and 1e2 stay Float.
func numberToTyped(arena *response.Arena, n dynamic.Number) (*response.Value, error) {
	if i, ok := n.Int64(); ok {
		node, err := newNode(arena, response.TypeInt)
		if err != nil {
			return nil, err
		}
		if err := node.SetInt(i); err != nil {
			return nil, nodeError(response.TypeInt.String(), err)
		}
		return node, nil
	}

	f, err := n.Float64()
	if err != nil {
		return nil, nodeError("Number", err)
	}
	node, err := newNode(arena, response.TypeFloat)
	if err != nil {
		return nil, err
	}
	if err := node.SetFloat(f); err != nil {
		return nil, nodeError(response.TypeFloat.String(), err)
	}
	return node, nil
}

func listToTyped(arena *response.Arena, items dynamic.List) (*response.Value, error) {
	kind := response.TypeList.String()
	node, err := newNode(arena, response.TypeList)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := node.Reserve(len(items)); err != nil {
			return nil, nodeError(kind, err)
		}
	}
	for i, item := range items {
		child, err := ToTyped(arena, item)
		if err != nil {
			return nil, listEntryError(kind, i, err)
		}
		if err := node.PushListEntry(child); err != nil {
			return nil, listEntryError(kind, i, err)
		}
	}
	return node, nil
}

func mapToTyped(arena *response.Arena, members *dynamic.Map) (*response.Value, error) {
	kind := response.TypeMap.String()
	node, err := newNode(arena, response.TypeMap)
	if err != nil {
		return nil, err
	}
	if n := members.Len(); n > 0 {
		if err := node.Reserve(n); err != nil {
			return nil, nodeError(kind, err)
		}
		for name, member := range members.All() {
			child, err := ToTyped(arena, member)
			if err != nil {
				return nil, mapEntryError(kind, name, err)
			}
			if err := node.PushMapEntry(name, child); err != nil {
				return nil, mapEntryError(kind, name, err)
			}
		}
	}
	return node, nil
}

func newNode(arena *response.Arena, kind response.Type) (*response.Value, error) {
	node, err := arena.New(kind)
	if err != nil {
		return nil, nodeError(kind.String(), err)
	}
	return node, nil
}

// ToDynamic converts and releases a typed tree. Children that fail to
// convert are dropped from their container.
func ToDynamic(v *response.Value) (dynamic.Value, error) {
	return toDynamic(v, nil)
}

func toDynamic(v *response.Value, skip func(error)) (dynamic.Value, error) {
	if v == nil {
		return dynamic.Null{}, nil
	}
	kind := v.Type().String()

	switch v.Type() {
	case response.TypeNull:
		return dynamic.Null{}, nil

	case response.TypeBoolean:
		b, err := v.Bool()
		if err != nil {
			return nil, nodeError(kind, err)
		}
		return dynamic.Bool(b), nil

	case response.TypeInt:
		i, err := v.Int()
		if err != nil {
			return nil, nodeError(kind, err)
		}
		return dynamic.Int(i), nil

	case response.TypeFloat:
		f, err := v.Float()
		if err != nil {
			return nil, nodeError(kind, err)
		}
		n, err := dynamic.Float(f)
		if err != nil {
			return nil, nodeError(kind, err)
		}
		return n, nil

	case response.TypeString, response.TypeEnumValue, response.TypeID:
		s, err := v.ReleaseString()
		if err != nil {
			return nil, nodeError(kind, err)
		}
		return dynamic.String(s), nil

	case response.TypeList:
		items, err := v.ReleaseList()
		if err != nil {
			return nil, nodeError(kind, err)
		}
		out := make(dynamic.List, 0, len(items))
		for i, item := range items {
			child, err := toDynamic(item, skip)
			if err != nil {
				if skip != nil {
					skip(listEntryError(kind, i, err))
				}
				continue
			}
			out = append(out, child)
		}
		return out, nil

	case response.TypeMap:
		members, err := v.ReleaseMap()
		if err != nil {
			return nil, nodeError(kind, err)
		}
		out := dynamic.NewMap()
		for _, member := range members {
			child, err := toDynamic(member.Value, skip)
			if err != nil {
				if skip != nil {
					skip(mapEntryError(kind, member.Name, err))
				}
				continue
			}
			out.Set(member.Name, child)
		}
		return out, nil

	case response.TypeScalar:
		inner, err := v.ReleaseScalar()
		if err != nil {
			return dynamic.Null{}, nil
		}
		out, err := toDynamic(inner, skip)
		if err != nil {
			return dynamic.Null{}, nil
		}
		return out, nil

	default:
		return nil, nodeError(kind, errors.New("unsupported response value"))
	}
}
