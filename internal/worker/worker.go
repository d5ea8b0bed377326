// Package worker hosts an engine on a dedicated goroutine locked to its OS
// thread.
//
// The worker is the only code that ever calls into the engine. Callers talk
// to it exclusively through protocol commands:
//
//   - Send(): safe from any goroutine
//   - the run loop: one goroutine, started by Start, ends after Stop
//
// LOOP:
//
// Each step receives the next queued command and runs it to completion. When
// the queue is empty the worker blocks until a command is queued or, with a
// message pump, until the pump is ready, in which case exactly one platform
// message is dispatched before the queue is checked again.
//
// TERMINATION:
//
// After Stop the queue is closed and every command still queued is failed
// with a ChannelError. A panic anywhere on the worker poisons the queue:
// pending and future commands fail with a LockError, and Err returns the
// PanicError once Done is closed.
package worker

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/roach88/gqlhost/internal/engine"
	"github.com/roach88/gqlhost/internal/protocol"
	"github.com/roach88/gqlhost/internal/pump"
)

// Worker owns one engine for its whole lifetime.
type Worker struct {
	factory            engine.Factory
	useDefaultIdentity bool
	pump               pump.Pump
	logger             *slog.Logger

	queue   *protocol.Queue
	started chan error // buffered, size 1
	done    chan struct{}
	err     error // written before done is closed

	// Touched only by the worker goroutine.
	streams map[engine.SubscriptionID]*protocol.Stream
	current protocol.Command
}

// Option configures a Worker.
type Option func(*Worker)

// WithUseDefaultIdentity is passed to the engine's Start.
func WithUseDefaultIdentity(use bool) Option {
	return func(w *Worker) {
		w.useDefaultIdentity = use
	}
}

// WithPump makes the worker service a platform message pump between
// commands. The pump is also handed to the engine factory.
func WithPump(p pump.Pump) Option {
	return func(w *Worker) {
		w.pump = p
	}
}

// WithLogger sets the worker's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = l
	}
}

// New creates a Worker that will build its engine with factory.
func New(factory engine.Factory, opts ...Option) *Worker {
	w := &Worker{
		factory: factory,
		logger:  slog.Default(),
		queue:   protocol.NewQueue(),
		started: make(chan error, 1),
		done:    make(chan struct{}),
		streams: make(map[engine.SubscriptionID]*protocol.Stream),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start spawns the worker goroutine and blocks until the engine has been
// created and started. On failure the worker has already terminated.
func (w *Worker) Start() error {
	go w.run()
	return <-w.started
}

// Send submits a command. After queueing it raises a synthetic pump wakeup
// so a worker blocked on the platform side notices the command.
func (w *Worker) Send(c protocol.Command) error {
	if err := w.queue.Send(c); err != nil {
		return err
	}
	if w.pump != nil {
		w.pump.Wake()
	}
	return nil
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns why the worker exited: nil after a clean Stop, the start
// failure, or a *PanicError. Only meaningful after Done is closed.
func (w *Worker) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

func (w *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)
	defer w.recoverPanic()

	eng, err := w.factory(engine.Env{Pump: w.pump, Logger: w.logger})
	if err != nil {
		w.abort(fmt.Errorf("create engine: %w", err))
		return
	}
	if err := eng.Start(w.useDefaultIdentity); err != nil {
		w.abort(fmt.Errorf("start engine: %w", err))
		return
	}

	w.logger.Info("worker started", "use_default_identity", w.useDefaultIdentity, "pump", w.pump != nil)
	w.started <- nil
	w.loop(eng)
	w.logger.Info("worker stopped")
}

func (w *Worker) loop(eng engine.Engine) {
	for {
		if c, ok := w.queue.TryReceive(); ok {
			queueDepth.Set(float64(w.queue.Len()))
			if w.dispatch(eng, c) {
				return
			}
			continue
		}

		if w.pump == nil {
			<-w.queue.Wait()
			continue
		}

		select {
		case <-w.queue.Wait():
		case <-w.pump.Ready():
			if w.pump.DispatchOne() {
				pumpDispatchedTotal.Inc()
			}
		}
	}
}

// dispatch runs one command and reports whether the worker must exit.
func (w *Worker) dispatch(eng engine.Engine, c protocol.Command) bool {
	name := protocol.Name(c)
	start := time.Now()
	w.current = c

	stop, err := w.handle(eng, c)

	w.current = nil
	commandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		commandsTotal.WithLabelValues(name, resultError).Inc()
		w.logger.Debug("command failed", "command", name, "error", err)
	} else {
		commandsTotal.WithLabelValues(name, resultOK).Inc()
		w.logger.Debug("command handled", "command", name)
	}
	return stop
}

func (w *Worker) handle(eng engine.Engine, c protocol.Command) (bool, error) {
	switch c := c.(type) {
	case *protocol.Stop:
		err := eng.Stop()
		w.shutdown()
		w.reply(c.Reply.Send(struct{}{}, err), "stop")
		return true, err

	case *protocol.ParseQuery:
		id, err := eng.ParseQuery(c.Query)
		w.reply(c.Reply.Send(id, err), "parse_query")
		return false, err

	case *protocol.DiscardQuery:
		err := eng.DiscardQuery(c.QueryID)
		w.reply(c.Reply.Send(struct{}{}, err), "discard_query")
		return false, err

	case *protocol.Subscribe:
		id, err := w.subscribe(eng, c)
		w.reply(c.Reply.Send(id, err), "subscribe")
		return false, err

	case *protocol.Unsubscribe:
		err := eng.Unsubscribe(c.SubscriptionID)
		if stream, ok := w.streams[c.SubscriptionID]; ok {
			stream.Complete()
			delete(w.streams, c.SubscriptionID)
			activeSubscriptions.Dec()
		}
		w.reply(c.Reply.Send(struct{}{}, err), "unsubscribe")
		return false, err

	default:
		return false, fmt.Errorf("unknown command %T", c)
	}
}

func (w *Worker) subscribe(eng engine.Engine, c *protocol.Subscribe) (engine.SubscriptionID, error) {
	stream := c.Stream
	next := func(payload string) {
		if stream.Next(payload) {
			payloadsTotal.Inc()
		}
	}
	complete := func() {
		stream.Complete()
		// Commands may have been queued while the engine held the thread.
		if w.pump != nil {
			w.pump.Wake()
		}
	}

	id, err := eng.Subscribe(c.QueryID, c.OperationName, c.Variables, next, complete)
	if err != nil {
		stream.Complete()
		return 0, err
	}
	w.streams[id] = stream
	activeSubscriptions.Inc()
	return id, nil
}

// reply logs a reply that could not be delivered. The caller already gave
// up on it, which is not an error for the worker.
func (w *Worker) reply(sent bool, command string) {
	if !sent {
		w.logger.Debug("reply dropped", "command", command)
	}
}

// shutdown closes the queue and fails everything still queued.
func (w *Worker) shutdown() {
	pending := w.queue.Close()
	for _, c := range pending {
		c.Fail(&protocol.ChannelError{Op: "receive", Err: protocol.ErrChannelClosed})
	}
	if len(pending) > 0 {
		w.logger.Warn("dropped commands queued after stop", "count", len(pending))
	}
	w.completeStreams()
}

func (w *Worker) completeStreams() {
	for id, stream := range w.streams {
		stream.Complete()
		delete(w.streams, id)
		activeSubscriptions.Dec()
	}
}

// abort ends a worker whose engine never started.
func (w *Worker) abort(err error) {
	w.err = err
	w.shutdown()
	w.started <- err
}

func (w *Worker) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}

	perr := &PanicError{Value: r, Stack: debug.Stack()}
	w.err = perr
	panicsTotal.Inc()
	w.logger.Error("worker panicked", "panic", r, "stack", string(perr.Stack))

	lockErr := &protocol.LockError{Cause: perr}
	if w.current != nil {
		w.current.Fail(lockErr)
		w.current = nil
	}
	for _, c := range w.queue.Poison(perr) {
		c.Fail(lockErr)
	}
	w.completeStreams()

	// Unblocks Start when the panic happened before the engine was up.
	select {
	case w.started <- perr:
	default:
	}
}
