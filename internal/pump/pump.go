// Package pump models the platform message loop a thread-affine engine
// depends on.
//
// A Pump holds messages posted for the worker thread. The worker waits on
// Ready together with its command queue and calls DispatchOne whenever Ready
// fires. Wake raises Ready without a message, so a producer that has just
// queued a command can make a worker blocked on the pump re-check its queue.
package pump

import "sync"

// Pump is the platform message loop seen by a worker.
type Pump interface {
	// Post queues fn to run on the worker thread. Safe from any goroutine.
	// Returns false if the pump is closed.
	Post(fn func()) bool

	// Wake raises Ready without posting a message. Safe from any goroutine.
	Wake()

	// Ready signals that a message or a wakeup may be pending.
	Ready() <-chan struct{}

	// DispatchOne runs exactly one pending message and reports whether one
	// ran. Called only from the worker thread.
	DispatchOne() bool
}

// Queue is the in-process Pump. Messages are dispatched in post order.
type Queue struct {
	mu       sync.Mutex
	messages []func()
	closed   bool
	signal   chan struct{} // buffered, size 1
}

// NewQueue creates an empty message queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Post implements Pump.
func (q *Queue) Post(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.messages = append(q.messages, fn)
	q.notify()
	return true
}

// Wake implements Pump.
func (q *Queue) Wake() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.notify()
	}
}

// Ready implements Pump.
func (q *Queue) Ready() <-chan struct{} {
	return q.signal
}

// DispatchOne implements Pump. When more messages remain after the one it
// runs, Ready is raised again so none is left waiting for a new post.
func (q *Queue) DispatchOne() bool {
	q.mu.Lock()
	if len(q.messages) == 0 {
		q.mu.Unlock()
		return false
	}
	fn := q.messages[0]
	q.messages[0] = nil
	q.messages = q.messages[1:]
	if len(q.messages) > 0 {
		q.notify()
	}
	q.mu.Unlock()

	fn()
	return true
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Close drops pending messages and refuses new posts.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.messages = nil
}

// notify must be called with mu held. The buffer of 1 coalesces signals.
func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
