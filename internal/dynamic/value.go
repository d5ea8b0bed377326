package dynamic

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is a sealed interface over the dynamic value kinds.
// Only Null, Bool, Number, String, List and *Map implement it.
type Value interface {
	dynamicValue()
}

// Null is the JSON null value.
type Null struct{}

func (Null) dynamicValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) dynamicValue() {}

// Number is a JSON number kept as its literal text.
type Number string

func (Number) dynamicValue() {}

// String is a JSON string.
type String string

func (String) dynamicValue() {}

// List is an ordered JSON array.
type List []Value

func (List) dynamicValue() {}

// Map is a JSON object whose members keep insertion order.
// Setting an existing name overwrites the value in place.
type Map struct {
	entries *orderedmap.OrderedMap[string, Value]
}

func (*Map) dynamicValue() {}

// ErrNotFinite is returned when a NaN or infinite float is turned into a Number.
var ErrNotFinite = errors.New("number is not finite")

// Int returns the Number for n.
func Int(n int64) Number {
	return Number(strconv.FormatInt(n, 10))
}

// Float returns the Number for f. The literal always carries a fraction or
// exponent so it is never mistaken for an integer.
func Float(f float64) (Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrNotFinite, f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return Number(s), nil
}

// Int64 reports the value of n when its literal is an integer that fits
// in 64 signed bits. Integral values written with a fraction or exponent,
// such as 1.0 or 1e2, are not integer literals.
func (n Number) Int64() (int64, bool) {
	i, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Float64 parses n as a finite 64-bit float.
// Literals that overflow the float range are an error, never a silent infinity.
func (n Number) Float64() (float64, error) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, fmt.Errorf("number %s: %w", string(n), err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("number %s: %w", string(n), ErrNotFinite)
	}
	return f, nil
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{entries: orderedmap.New[string, Value]()}
}

// Set stores v under name and reports whether an existing member was replaced.
func (m *Map) Set(name string, v Value) bool {
	if m.entries == nil {
		m.entries = orderedmap.New[string, Value]()
	}
	_, replaced := m.entries.Set(name, v)
	return replaced
}

// Get returns the member stored under name.
func (m *Map) Get(name string) (Value, bool) {
	if m == nil || m.entries == nil {
		return nil, false
	}
	return m.entries.Get(name)
}

// Len returns the number of members.
func (m *Map) Len() int {
	if m == nil || m.entries == nil {
		return 0
	}
	return m.entries.Len()
}

// All iterates members in insertion order.
func (m *Map) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if m == nil || m.entries == nil {
			return
		}
		for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Keys returns member names in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, m.Len())
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// SortedKeys returns member names in RFC 8785 order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// characters outside the basic multilingual plane.
func (m *Map) SortedKeys() []string {
	keys := m.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether a and b are the same tree. Map member order is not
// significant; Number literals compare by their parsed value.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		if !ok {
			return false
		}
		if ai, aok := av.Int64(); aok {
			bi, bok := bv.Int64()
			return bok && ai == bi
		}
		af, aerr := av.Float64()
		bf, berr := bv.Float64()
		return aerr == nil && berr == nil && af == bf
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for k, v := range av.All() {
			other, found := bv.Get(k)
			if !found || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Kind names the kind of v for diagnostics.
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "Null"
	case Bool:
		return "Boolean"
	case Number:
		return "Number"
	case String:
		return "String"
	case List:
		return "List"
	case *Map:
		return "Map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
