package protocol

import (
	"errors"
	"fmt"
)

// ErrChannelClosed is the cause of a ChannelError when the worker side of a
// channel is gone.
var ErrChannelClosed = errors.New("channel closed")

// ChannelError reports that a command could not be submitted or its reply
// could not be received. The worker has terminated or the caller gave up.
type ChannelError struct {
	// Op is "send" or "receive".
	Op string

	// Err is ErrChannelClosed or the caller's context error.
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// LockError reports that the command queue was poisoned by a worker panic.
// No further commands can be processed.
type LockError struct {
	Cause error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("command queue poisoned: %v", e.Cause)
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// IsChannelError returns true if err is or wraps a ChannelError.
func IsChannelError(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}

// IsLockError returns true if err is or wraps a LockError.
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}
