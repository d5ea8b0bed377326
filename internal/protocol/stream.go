package protocol

import (
	"context"
	"sync"
)

// Stream carries one subscription's payloads from the worker to a caller.
//
// The worker side never blocks: Next and Complete append to an unbounded
// buffer. Forward drains the buffer into caller channels in order and sends
// the completion signal exactly once, after the last payload.
type Stream struct {
	mu        sync.Mutex
	payloads  []string
	completed bool
	signal    chan struct{} // buffered, size 1
}

// NewStream creates an open stream.
func NewStream() *Stream {
	return &Stream{signal: make(chan struct{}, 1)}
}

// Next buffers a payload. Returns false after Complete.
func (s *Stream) Next(payload string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return false
	}
	s.payloads = append(s.payloads, payload)
	s.notify()
	return true
}

// Complete marks the end of the stream. Returns true the first time only.
func (s *Stream) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return false
	}
	s.completed = true
	s.notify()
	return true
}

// Completed reports whether Complete was called.
func (s *Stream) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Forward delivers buffered and future payloads to next and then one value
// to complete. Either channel may be nil to ignore that half.
//
// When ctx is done Forward returns ctx's error, but only after handing over
// every payload already buffered that next has room for. Payloads are
// dropped only when next is full.
func (s *Stream) Forward(ctx context.Context, next chan<- string, complete chan<- struct{}) error {
	for {
		payloads, completed := s.take()
		for i, p := range payloads {
			if next == nil {
				continue
			}
			if !send(ctx, next, p) {
				s.flush(next, payloads[i:])
				return ctx.Err()
			}
		}

		if completed {
			if complete == nil {
				return nil
			}
			select {
			case complete <- struct{}{}:
				return nil
			default:
			}
			select {
			case complete <- struct{}{}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-s.signal:
		case <-ctx.Done():
			s.flush(next, nil)
			return ctx.Err()
		}
	}
}

// send hands p to next, preferring delivery over cancellation when next has
// room.
func send(ctx context.Context, next chan<- string, p string) bool {
	select {
	case next <- p:
		return true
	default:
	}
	select {
	case next <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

// flush delivers pending and then whatever is still buffered without
// blocking.
func (s *Stream) flush(next chan<- string, pending []string) {
	if next == nil {
		return
	}
	buffered, _ := s.take()
	for _, p := range append(pending, buffered...) {
		select {
		case next <- p:
		default:
			return
		}
	}
}

// take empties the buffer. completed is true only once every payload sent
// before Complete is in the returned slice.
func (s *Stream) take() (payloads []string, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloads = s.payloads
	s.payloads = nil
	return payloads, s.completed
}

// notify must be called with mu held.
func (s *Stream) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}
