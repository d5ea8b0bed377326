package dynamic

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FromGo converts a plain Go value, as produced by encoding/json or a
// GraphQL executor, into a Value. Map members are inserted in RFC 8785 key
// order so the result is deterministic.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return Number(val), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return Number(strconv.FormatUint(uint64(val), 10)), nil
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return Number(strconv.FormatUint(val, 10)), nil
	case float32:
		return Float(float64(val))
	case float64:
		return Float(val)
	case []string:
		l := make(List, len(val))
		for i, s := range val {
			l[i] = String(s)
		}
		return l, nil
	case []any:
		l := make(List, len(val))
		for i, elem := range val {
			dv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			l[i] = dv
		}
		return l, nil
	case map[string]any:
		unordered := NewMap()
		for k := range val {
			unordered.Set(k, Null{})
		}
		m := NewMap()
		for _, k := range unordered.SortedKeys() {
			dv, err := FromGo(val[k])
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			m.Set(k, dv)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts v into plain Go values: nil, bool, int64, float64, string,
// []any and map[string]any. Numbers whose literal is not a 64-bit integer
// become float64; an unrepresentable literal is an error.
func ToGo(v Value) (any, error) {
	switch val := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(val), nil
	case String:
		return string(val), nil
	case Number:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		return val.Float64()
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			gv, err := ToGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = gv
		}
		return out, nil
	case *Map:
		out := make(map[string]any, val.Len())
		for k, member := range val.All() {
			gv, err := ToGo(member)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = gv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown dynamic value type: %T", v)
	}
}
