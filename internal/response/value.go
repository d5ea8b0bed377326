package response

import (
	"errors"
	"fmt"
	"slices"
)

// Type is the kind of a response Value.
type Type int

// Kinds in the engine's declaration order.
const (
	TypeMap Type = iota
	TypeList
	TypeString
	TypeNull
	TypeBoolean
	TypeInt
	TypeFloat
	TypeEnumValue
	TypeID
	TypeScalar
)

var typeNames = [...]string{
	TypeMap:       "Map",
	TypeList:      "List",
	TypeString:    "String",
	TypeNull:      "Null",
	TypeBoolean:   "Boolean",
	TypeInt:       "Int",
	TypeFloat:     "Float",
	TypeEnumValue: "EnumValue",
	TypeID:        "ID",
	TypeScalar:    "Scalar",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Valid reports whether t is one of the declared kinds.
func (t Type) Valid() bool {
	return t >= TypeMap && t <= TypeScalar
}

var (
	// ErrTypeMismatch is returned when an operation does not apply to the node's kind.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrReleased is returned when a payload is read after it was released.
	ErrReleased = errors.New("value already released")

	// ErrNodeLimit is returned when an Arena budget is exhausted.
	ErrNodeLimit = errors.New("node limit exceeded")

	// ErrNilValue is returned when a nil child is pushed into a container.
	ErrNilValue = errors.New("nil value")
)

// MapEntry is one named member of a Map value.
type MapEntry struct {
	Name  string
	Value *Value
}

// Value is a node in the typed response tree.
type Value struct {
	typ      Type
	arena    *Arena
	released bool

	str     string
	b       bool
	i       int64
	f       float64
	list    []*Value
	members []MapEntry
	index   map[string]int
	scalar  *Value
}

// New creates a node of kind t with no budget.
func New(t Type) (*Value, error) {
	return (*Arena)(nil).New(t)
}

// Type returns the node's kind.
func (v *Value) Type() Type {
	return v.typ
}

// Len returns the number of children of a Map or List, and 0 otherwise.
func (v *Value) Len() int {
	switch v.typ {
	case TypeMap:
		return len(v.members)
	case TypeList:
		return len(v.list)
	}
	return 0
}

// Reserve requests capacity for n more children of a Map or List.
// The request fails when the node's Arena cannot hold n more nodes.
func (v *Value) Reserve(n int) error {
	if err := v.expect("reserve", TypeMap, TypeList); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("reserve %d: negative capacity", n)
	}
	if err := v.arena.reserve(n); err != nil {
		return fmt.Errorf("reserve %d: %w", n, err)
	}

	if v.typ == TypeMap {
		v.members = slices.Grow(v.members, n)
		if v.index == nil {
			v.index = make(map[string]int, n)
		}
	} else {
		v.list = slices.Grow(v.list, n)
	}
	return nil
}

// PushMapEntry appends a named member. A name that is already present is
// overwritten in place and keeps its original position.
func (v *Value) PushMapEntry(name string, child *Value) error {
	if err := v.expect("push map entry", TypeMap); err != nil {
		return err
	}
	if child == nil {
		return fmt.Errorf("push map entry %q: %w", name, ErrNilValue)
	}
	if v.index == nil {
		v.index = make(map[string]int)
	}
	if pos, ok := v.index[name]; ok {
		v.members[pos].Value = child
		return nil
	}
	v.index[name] = len(v.members)
	v.members = append(v.members, MapEntry{Name: name, Value: child})
	return nil
}

// PushListEntry appends an element to a List.
func (v *Value) PushListEntry(child *Value) error {
	if err := v.expect("push list entry", TypeList); err != nil {
		return err
	}
	if child == nil {
		return fmt.Errorf("push list entry %d: %w", len(v.list), ErrNilValue)
	}
	v.list = append(v.list, child)
	return nil
}

// Get returns the member stored under name without releasing it.
func (v *Value) Get(name string) (*Value, bool) {
	if v.typ != TypeMap || v.released {
		return nil, false
	}
	pos, ok := v.index[name]
	if !ok {
		return nil, false
	}
	return v.members[pos].Value, true
}

// SetString stores the text of a String, EnumValue or ID node.
func (v *Value) SetString(s string) error {
	if err := v.expect("set string", TypeString, TypeEnumValue, TypeID); err != nil {
		return err
	}
	v.str = s
	return nil
}

// SetBool stores the value of a Boolean node.
func (v *Value) SetBool(b bool) error {
	if err := v.expect("set bool", TypeBoolean); err != nil {
		return err
	}
	v.b = b
	return nil
}

// SetInt stores the value of an Int node.
func (v *Value) SetInt(i int64) error {
	if err := v.expect("set int", TypeInt); err != nil {
		return err
	}
	v.i = i
	return nil
}

// SetFloat stores the value of a Float node.
func (v *Value) SetFloat(f float64) error {
	if err := v.expect("set float", TypeFloat); err != nil {
		return err
	}
	v.f = f
	return nil
}

// SetScalar wraps inner in a Scalar node.
func (v *Value) SetScalar(inner *Value) error {
	if err := v.expect("set scalar", TypeScalar); err != nil {
		return err
	}
	if inner == nil {
		return fmt.Errorf("set scalar: %w", ErrNilValue)
	}
	v.scalar = inner
	return nil
}

// ReleaseMap transfers the members out of a Map node.
func (v *Value) ReleaseMap() ([]MapEntry, error) {
	if err := v.release("release map", TypeMap); err != nil {
		return nil, err
	}
	members := v.members
	v.members, v.index = nil, nil
	return members, nil
}

// ReleaseList transfers the elements out of a List node.
func (v *Value) ReleaseList() ([]*Value, error) {
	if err := v.release("release list", TypeList); err != nil {
		return nil, err
	}
	list := v.list
	v.list = nil
	return list, nil
}

// ReleaseString transfers the text out of a String, EnumValue or ID node.
func (v *Value) ReleaseString() (string, error) {
	if err := v.release("release string", TypeString, TypeEnumValue, TypeID); err != nil {
		return "", err
	}
	s := v.str
	v.str = ""
	return s, nil
}

// ReleaseScalar transfers the wrapped value out of a Scalar node.
func (v *Value) ReleaseScalar() (*Value, error) {
	if err := v.release("release scalar", TypeScalar); err != nil {
		return nil, err
	}
	inner := v.scalar
	v.scalar = nil
	if inner == nil {
		return nil, fmt.Errorf("release scalar: %w", ErrNilValue)
	}
	return inner, nil
}

// Bool returns the value of a Boolean node.
func (v *Value) Bool() (bool, error) {
	if err := v.expect("get bool", TypeBoolean); err != nil {
		return false, err
	}
	return v.b, nil
}

// Int returns the value of an Int node.
func (v *Value) Int() (int64, error) {
	if err := v.expect("get int", TypeInt); err != nil {
		return 0, err
	}
	return v.i, nil
}

// Float returns the value of a Float node.
func (v *Value) Float() (float64, error) {
	if err := v.expect("get float", TypeFloat); err != nil {
		return 0, err
	}
	return v.f, nil
}

func (v *Value) expect(op string, kinds ...Type) error {
	if !slices.Contains(kinds, v.typ) {
		return fmt.Errorf("%s on %s value: %w", op, v.typ, ErrTypeMismatch)
	}
	if v.released {
		return fmt.Errorf("%s on %s value: %w", op, v.typ, ErrReleased)
	}
	return nil
}

func (v *Value) release(op string, kinds ...Type) error {
	if err := v.expect(op, kinds...); err != nil {
		return err
	}
	v.released = true
	return nil
}
