package gqlhost

import (
	"context"
	"errors"

	"github.com/roach88/gqlhost/internal/engine"
	"github.com/roach88/gqlhost/internal/marshal"
	"github.com/roach88/gqlhost/internal/protocol"
	"github.com/roach88/gqlhost/internal/worker"
)

type (
	// EngineError carries the engine's diagnostic text verbatim.
	EngineError = engine.Error

	// ChannelError means the worker is gone or a reply was abandoned.
	ChannelError = protocol.ChannelError

	// ConversionError is a value tree conversion failure.
	ConversionError = marshal.ConversionError

	// LockError means a worker panic poisoned the command queue.
	LockError = protocol.LockError

	// PanicError is returned by Wait after a worker panic.
	PanicError = worker.PanicError
)

var (
	// ErrChannelClosed is wrapped by a ChannelError when the worker has stopped.
	ErrChannelClosed = protocol.ErrChannelClosed

	// ErrReleased is returned by operations on a handle whose last reference
	// was released.
	ErrReleased = errors.New("handle released")
)

func IsEngineError(err error) bool     { return engine.IsEngineError(err) }
func IsChannelError(err error) bool    { return protocol.IsChannelError(err) }
func IsConversionError(err error) bool { return marshal.IsConversionError(err) }
func IsLockError(err error) bool       { return protocol.IsLockError(err) }
func IsPanicError(err error) bool      { return worker.IsPanicError(err) }

// abandoned reports whether a reply wait ended because the caller's context
// did, leaving the worker to finish the command on its own.
func abandoned(err error) bool {
	var ce *ChannelError
	if !errors.As(err, &ce) {
		return false
	}
	return errors.Is(ce.Err, context.Canceled) || errors.Is(ce.Err, context.DeadlineExceeded)
}

// gone reports whether a cleanup command could not be queued because the
// worker already stopped. The engine released everything when it stopped.
func gone(err error) bool {
	return IsChannelError(err) && errors.Is(err, ErrChannelClosed)
}
