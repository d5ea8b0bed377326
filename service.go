package gqlhost

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/roach88/gqlhost/internal/engine"
	"github.com/roach88/gqlhost/internal/protocol"
	"github.com/roach88/gqlhost/internal/pump"
	"github.com/roach88/gqlhost/internal/worker"
)

type (
	// Engine is the single-threaded engine hosted by a Service.
	Engine = engine.Engine

	// Factory creates the engine on the worker goroutine.
	Factory = engine.Factory

	// Env is handed to a Factory.
	Env = engine.Env
)

// Option configures a Service.
type Option func(*options)

type options struct {
	useDefaultIdentity bool
	messagePump        bool
	logger             *slog.Logger
}

// WithUseDefaultIdentity is passed to the engine's Start.
func WithUseDefaultIdentity(use bool) Option {
	return func(o *options) {
		o.useDefaultIdentity = use
	}
}

// WithMessagePump gives the engine a message pump that the worker services
// between commands. Engines post their event deliveries to it.
func WithMessagePump(enabled bool) Option {
	return func(o *options) {
		o.messagePump = enabled
	}
}

// WithLogger sets the logger for the service and its worker.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Service hosts one engine on its own worker.
type Service struct {
	w      *worker.Worker
	logger *slog.Logger

	// refs counts the caller's reference plus every live handle.
	refs   atomic.Int64
	closed atomic.Bool

	// stopOnce sends Stop; resultOnce records its outcome once the worker
	// has exited. A Stop wait abandoned through ctx records nothing, so the
	// next caller waits again.
	stopOnce   sync.Once
	stopReply  protocol.Reply[struct{}]
	stopSend   error
	resultOnce sync.Once
	stopErr    error

	cleanup runtime.Cleanup
}

// New starts a worker, creates the engine with factory and starts it.
// It returns once the engine is running or has failed to start.
func New(factory Factory, opts ...Option) (*Service, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	wopts := []worker.Option{
		worker.WithUseDefaultIdentity(o.useDefaultIdentity),
		worker.WithLogger(o.logger),
	}
	var q *pump.Queue
	if o.messagePump {
		q = pump.NewQueue()
		wopts = append(wopts, worker.WithPump(q))
	}

	w := worker.New(factory, wopts...)
	if err := w.Start(); err != nil {
		if q != nil {
			q.Close()
		}
		return nil, err
	}

	if q != nil {
		go func() {
			<-w.Done()
			q.Close()
		}()
	}

	s := &Service{w: w, logger: o.logger}
	s.refs.Store(1)
	s.cleanup = runtime.AddCleanup(s, stopLeakedService, leakedService{w: w, logger: o.logger})
	return s, nil
}

// ParseQuery parses query text on the worker. A parse failure is an
// *EngineError and no handle is created.
func (s *Service) ParseQuery(ctx context.Context, query string) (*ParsedQuery, error) {
	if s.closed.Load() {
		return nil, &ChannelError{Op: "send", Err: ErrChannelClosed}
	}

	reply := protocol.NewReply[engine.QueryID]()
	if err := s.w.Send(&protocol.ParseQuery{Query: query, Reply: reply}); err != nil {
		return nil, err
	}
	id, err := reply.Await(ctx)
	if err != nil {
		if abandoned(err) {
			go s.discardLate(reply)
		}
		return nil, err
	}
	return newParsedQuery(s, id), nil
}

// Close releases the caller's reference. The worker stops once every
// handle has been released as well; the stop result is returned by
// whichever call drops the last reference. Calling Close again does nothing.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.release()
}

// Stop stops the worker now, whatever handles are still live. Their
// subscriptions complete, and later operations on them fail with a
// ChannelError. Only the first call sends Stop. If ctx ends before the
// worker exits, Stop returns ctx's error and a later call waits again.
func (s *Service) Stop(ctx context.Context) error {
	return s.stop(ctx)
}

// Done is closed when the worker has exited.
func (s *Service) Done() <-chan struct{} {
	return s.w.Done()
}

// Wait blocks until the worker exits and returns why: nil after a clean
// stop, or a *PanicError.
func (s *Service) Wait() error {
	<-s.w.Done()
	return s.w.Err()
}

func (s *Service) retain() {
	s.refs.Add(1)
}

func (s *Service) release() error {
	if s.refs.Add(-1) == 0 {
		return s.stop(context.Background())
	}
	return nil
}

func (s *Service) stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.cleanup.Stop()
		s.stopReply = protocol.NewReply[struct{}]()
		s.stopSend = s.w.Send(&protocol.Stop{Reply: s.stopReply})
	})

	select {
	case <-s.w.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.resultOnce.Do(func() {
		if s.stopSend != nil {
			s.stopErr = s.stopSend
		} else {
			// The worker answers or fails every queued command before it exits.
			_, s.stopErr = s.stopReply.Await(context.Background())
		}
		s.logger.Debug("service stopped", "error", s.stopErr)
	})
	return s.stopErr
}

func (s *Service) discard(id engine.QueryID) error {
	reply := protocol.NewReply[struct{}]()
	err := s.w.Send(&protocol.DiscardQuery{QueryID: id, Reply: reply})
	if err == nil {
		_, err = reply.Await(context.Background())
	}
	if gone(err) {
		return nil
	}
	return err
}

func (s *Service) unsubscribe(id engine.SubscriptionID) error {
	reply := protocol.NewReply[struct{}]()
	err := s.w.Send(&protocol.Unsubscribe{SubscriptionID: id, Reply: reply})
	if err == nil {
		_, err = reply.Await(context.Background())
	}
	if gone(err) {
		return nil
	}
	return err
}

// discardLate discards a query whose ParseQuery caller stopped waiting.
func (s *Service) discardLate(reply protocol.Reply[engine.QueryID]) {
	id, err := reply.Await(context.Background())
	if err != nil || id == 0 {
		return
	}
	if err := s.discard(id); err != nil {
		s.logger.Warn("discard abandoned query", "query_id", id, "error", err)
	}
}

// unsubscribeLate ends a subscription whose Listen caller stopped waiting.
func (s *Service) unsubscribeLate(reply protocol.Reply[engine.SubscriptionID]) {
	id, err := reply.Await(context.Background())
	if err != nil || id == 0 {
		return
	}
	if err := s.unsubscribe(id); err != nil {
		s.logger.Warn("unsubscribe abandoned subscription", "subscription_id", id, "error", err)
	}
}

type leakedService struct {
	w      *worker.Worker
	logger *slog.Logger
}

func stopLeakedService(ls leakedService) {
	go func() {
		ls.logger.Warn("service was not closed; stopping worker")
		reply := protocol.NewReply[struct{}]()
		err := ls.w.Send(&protocol.Stop{Reply: reply})
		if err == nil {
			_, err = reply.Await(context.Background())
		}
		if err != nil && !gone(err) {
			ls.logger.Warn("stop leaked service", "error", err)
		}
	}()
}
