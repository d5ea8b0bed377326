package protocol

import "context"

// Result is the outcome carried by a Reply.
type Result[T any] struct {
	Value T
	Err   error
}

// Reply is a single-use reply channel. The worker side sends exactly once;
// the buffer of 1 means the send never blocks, even when the caller has
// stopped waiting.
type Reply[T any] chan Result[T]

// NewReply creates a reply channel.
func NewReply[T any]() Reply[T] {
	return make(chan Result[T], 1)
}

// Send delivers the outcome. Returns false if a result was already sent.
func (r Reply[T]) Send(v T, err error) bool {
	select {
	case r <- Result[T]{Value: v, Err: err}:
		return true
	default:
		return false
	}
}

// Await blocks for the outcome. A reply channel closed without a result
// yields a ChannelError.
func (r Reply[T]) Await(ctx context.Context) (T, error) {
	var zero T
	select {
	case res, ok := <-r:
		if !ok {
			return zero, &ChannelError{Op: "receive", Err: ErrChannelClosed}
		}
		return res.Value, res.Err
	case <-ctx.Done():
		return zero, &ChannelError{Op: "receive", Err: ctx.Err()}
	}
}

// Close closes the channel without a result.
func (r Reply[T]) Close() {
	close(r)
}
