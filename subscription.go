package gqlhost

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/roach88/gqlhost/internal/engine"
	"github.com/roach88/gqlhost/internal/protocol"
)

// Subscription is a reference-counted handle to one operation of a parsed
// query. It can be listened to, unsubscribed and listened to again. It is
// safe for concurrent use.
type Subscription struct {
	st      *subscriptionState
	cleanup runtime.Cleanup
}

type subscriptionState struct {
	query         *ParsedQuery
	operationName string
	variables     string
	refs          atomic.Int64

	// mu is held across worker round trips so Listen and Unsubscribe on the
	// same subscription never interleave.
	mu        sync.Mutex
	id        engine.SubscriptionID // 0 while not listening
	cancel    context.CancelFunc
	forwarded chan struct{}
	released  bool
}

func newSubscription(query *ParsedQuery, operationName, variables string) *Subscription {
	st := &subscriptionState{query: query, operationName: operationName, variables: variables}
	st.refs.Store(1)

	s := &Subscription{st: st}
	s.cleanup = runtime.AddCleanup(s, func(st *subscriptionState) {
		go func() { _ = st.finalize() }()
	}, st)
	return s
}

// Listen subscribes on the worker and forwards payloads to next, then one
// completion to complete. Either channel may be nil. A subscription that is
// already listening is unsubscribed first.
//
// Payloads are forwarded by a separate goroutine. Payloads the engine
// produced before an Unsubscribe are still forwarded while next has room;
// nothing produced after it is. Exactly one completion follows the last
// forwarded payload. A buffered complete receives it before Unsubscribe
// returns; an unbuffered one receives it whenever the caller reads.
func (s *Subscription) Listen(ctx context.Context, next chan<- string, complete chan<- struct{}) error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.released {
		return ErrReleased
	}
	if err := st.unsubscribeLocked(); err != nil {
		return err
	}
	qid := st.query.st.current()
	if qid == 0 {
		return ErrReleased
	}

	svc := st.query.st.svc
	stream := protocol.NewStream()
	reply := protocol.NewReply[engine.SubscriptionID]()
	err := svc.w.Send(&protocol.Subscribe{
		QueryID:       qid,
		OperationName: st.operationName,
		Variables:     st.variables,
		Stream:        stream,
		Reply:         reply,
	})
	if err != nil {
		return err
	}
	id, err := reply.Await(ctx)
	if err != nil {
		if abandoned(err) {
			go svc.unsubscribeLate(reply)
		}
		return err
	}

	fctx, cancel := context.WithCancel(context.Background())
	forwarded := make(chan struct{})
	go forward(fctx, stream, next, complete, forwarded)

	st.id = id
	st.cancel = cancel
	st.forwarded = forwarded
	return nil
}

// Unsubscribe stops listening. Payloads already produced are forwarded while
// next has room and the rest are dropped; then the completion is sent. The
// subscription can be listened to again. Unsubscribing an idle subscription
// does nothing.
func (s *Subscription) Unsubscribe() error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.unsubscribeLocked()
}

// Retain adds a reference and returns s.
func (s *Subscription) Retain() *Subscription {
	s.st.refs.Add(1)
	return s
}

// Release drops a reference. Dropping the last one unsubscribes and
// releases the parsed query. Extra releases do nothing.
func (s *Subscription) Release() error {
	if s.st.refs.Add(-1) > 0 {
		return nil
	}
	err := s.st.finalize()
	s.cleanup.Stop()
	return err
}

func (st *subscriptionState) finalize() error {
	st.mu.Lock()
	if st.released {
		st.mu.Unlock()
		return nil
	}
	st.released = true
	err := st.unsubscribeLocked()
	st.mu.Unlock()

	return errors.Join(err, st.query.Release())
}

// unsubscribeLocked must be called with mu held.
func (st *subscriptionState) unsubscribeLocked() error {
	id := st.id
	if id == 0 {
		return nil
	}
	st.id = 0

	// The worker completes the stream whatever the outcome, so the
	// forwarder always finishes.
	err := st.query.st.svc.unsubscribe(id)
	st.cancel()
	<-st.forwarded
	return err
}

// forward drains stream into the caller's channels. Cancelling ctx stops
// waiting on next; payloads already buffered are still handed over while
// next has room. The completion never blocks the forwarder: if complete is
// not ready it is sent from its own goroutine.
func forward(ctx context.Context, stream *protocol.Stream, next chan<- string, complete chan<- struct{}, forwarded chan<- struct{}) {
	defer close(forwarded)
	_ = stream.Forward(ctx, next, nil)
	if complete == nil {
		return
	}
	select {
	case complete <- struct{}{}:
	default:
		go func() { complete <- struct{}{} }()
	}
}
