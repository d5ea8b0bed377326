package worker

import (
	"errors"
	"fmt"
)

// PanicError is the terminal error of a worker whose goroutine panicked.
// The command queue is poisoned and the engine is abandoned.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// IsPanicError returns true if err is or wraps a PanicError.
func IsPanicError(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
