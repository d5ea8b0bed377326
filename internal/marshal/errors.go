package marshal

import (
	"errors"
	"fmt"
)

// Position says where inside its node a ConversionError happened.
type Position int

const (
	// AtNode means the node itself could not be converted.
	AtNode Position = iota
	// AtMapEntry means a named member of a Map failed.
	AtMapEntry
	// AtListEntry means an element of a List failed.
	AtListEntry
)

// ConversionError reports a value tree conversion failure.
//
// Errors nest: a failure deep inside a tree is wrapped once per enclosing
// container, so the chain of Name/Index fields is the path to the node.
type ConversionError struct {
	// Kind is the kind of the node being converted.
	Kind string

	// At selects which of Name or Index is meaningful.
	At Position

	// Name is the member name for AtMapEntry.
	Name string

	// Index is the element index for AtListEntry.
	Index int

	// Err is the underlying failure.
	Err error
}

func (e *ConversionError) Error() string {
	switch e.At {
	case AtMapEntry:
		return fmt.Sprintf("convert %s entry %q: %v", e.Kind, e.Name, e.Err)
	case AtListEntry:
		return fmt.Sprintf("convert %s[%d]: %v", e.Kind, e.Index, e.Err)
	default:
		return fmt.Sprintf("convert %s: %v", e.Kind, e.Err)
	}
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// IsConversionError returns true if err is or wraps a ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

func nodeError(kind string, err error) error {
	return &ConversionError{Kind: kind, At: AtNode, Err: err}
}

func mapEntryError(kind, name string, err error) error {
	return &ConversionError{Kind: kind, At: AtMapEntry, Name: name, Err: err}
}

func listEntryError(kind string, index int, err error) error {
	return &ConversionError{Kind: kind, At: AtListEntry, Index: index, Err: err}
}
