package response

import "fmt"

// Arena is the node budget for one tree.
//
// Every node created through an Arena counts against its limit, and Reserve
// on a container fails unless the limit can still hold the requested
// children. A nil Arena, or one with limit 0, never refuses.
//
// Not safe for concurrent use.
type Arena struct {
	limit int
	used  int
}

// NewArena creates an Arena that admits at most limit nodes.
func NewArena(limit int) *Arena {
	return &Arena{limit: limit}
}

// New creates a node of kind t charged against the budget.
func (a *Arena) New(t Type) (*Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("new value: unknown kind %s", t)
	}
	if a != nil {
		if a.limit > 0 && a.used >= a.limit {
			return nil, fmt.Errorf("new %s value: %w (limit %d)", t, ErrNodeLimit, a.limit)
		}
		a.used++
	}
	return &Value{typ: t, arena: a}, nil
}

// Used returns the number of nodes created so far.
func (a *Arena) Used() int {
	if a == nil {
		return 0
	}
	return a.used
}

// Remaining returns how many more nodes the Arena admits, or -1 when unlimited.
func (a *Arena) Remaining() int {
	if a == nil || a.limit <= 0 {
		return -1
	}
	return a.limit - a.used
}

func (a *Arena) reserve(n int) error {
	if a == nil || a.limit <= 0 {
		return nil
	}
	if a.used+n > a.limit {
		return fmt.Errorf("%w: need %d, %d remaining of %d", ErrNodeLimit, n, a.limit-a.used, a.limit)
	}
	return nil
}
