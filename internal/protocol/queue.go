package protocol

import "sync"

// Queue is a thread-safe FIFO of commands.
//
// Any number of goroutines may Send; each send is atomic and sends from one
// goroutine keep their order. Exactly one worker receives.
//
// The queue is unbounded so a sender never blocks on a busy worker. Waiting
// uses a coalescing signal channel so the worker can select on the queue
// together with other wakeup sources.
type Queue struct {
	mu       sync.Mutex
	commands []Command
	closed   bool
	poisoned error
	signal   chan struct{} // Signals command availability (buffered, size 1)
}

// NewQueue creates an empty command queue.
func NewQueue() *Queue {
	return &Queue{
		commands: make([]Command, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Send adds a command to the back of the queue.
// Fails with a ChannelError once the queue is closed, or a LockError once it
// has been poisoned.
func (q *Queue) Send(c Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.poisoned != nil {
		return &LockError{Cause: q.poisoned}
	}
	if q.closed {
		return &ChannelError{Op: "send", Err: ErrChannelClosed}
	}

	q.commands = append(q.commands, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// TryReceive removes and returns the front command without blocking.
func (q *Queue) TryReceive() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return nil, false
	}

	c := q.commands[0]
	// Nil out the slot so the backing array does not pin the command.
	q.commands[0] = nil
	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}
	return c, true
}

// Wait returns a channel that signals when commands may be available.
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryReceive
//	}
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close refuses further sends and returns the commands that were never
// received, in order. Closing twice returns nothing the second time.
func (q *Queue) Close() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closeLocked()
}

// Poison closes the queue because the worker panicked. Later sends fail
// with a LockError wrapping cause.
func (q *Queue) Poison(cause error) []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.poisoned == nil {
		q.poisoned = cause
	}
	return q.closeLocked()
}

// Poisoned returns the cause recorded by Poison, or nil.
func (q *Queue) Poisoned() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.poisoned
}

func (q *Queue) closeLocked() []Command {
	if q.closed {
		return nil
	}
	q.closed = true
	pending := q.commands
	q.commands = nil
	close(q.signal)
	return pending
}
