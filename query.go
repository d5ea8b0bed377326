package gqlhost

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/roach88/gqlhost/internal/engine"
)

// ParsedQuery is a reference-counted handle to a query parsed by the
// engine. It is safe for concurrent use.
type ParsedQuery struct {
	st      *queryState
	cleanup runtime.Cleanup
}

// queryState is shared by the handle and its leak cleanup.
type queryState struct {
	svc  *Service
	refs atomic.Int64

	mu sync.Mutex
	id engine.QueryID // 0 once discarded
}

func newParsedQuery(svc *Service, id engine.QueryID) *ParsedQuery {
	svc.retain()
	st := &queryState{svc: svc, id: id}
	st.refs.Store(1)

	q := &ParsedQuery{st: st}
	q.cleanup = runtime.AddCleanup(q, func(st *queryState) {
		go func() {
			st.svc.logger.Debug("parsed query was not released", "query_id", st.current())
			_ = st.finalize()
		}()
	}, st)
	return q
}

// Retain adds a reference and returns q.
func (q *ParsedQuery) Retain() *ParsedQuery {
	q.st.refs.Add(1)
	return q
}

// Release drops a reference. Dropping the last one discards the query on
// the worker and releases the Service. Extra releases do nothing.
func (q *ParsedQuery) Release() error {
	if q.st.refs.Add(-1) > 0 {
		return nil
	}
	err := q.st.finalize()
	q.cleanup.Stop()
	return err
}

// Subscribe creates a subscription for one operation of the query and
// starts listening. variables is a JSON object or empty. On failure no
// handle is returned.
func (q *ParsedQuery) Subscribe(ctx context.Context, operationName, variables string, next chan<- string, complete chan<- struct{}) (*Subscription, error) {
	sub, err := q.NewSubscription(operationName, variables)
	if err != nil {
		return nil, err
	}
	if err := sub.Listen(ctx, next, complete); err != nil {
		_ = sub.Release()
		return nil, err
	}
	return sub, nil
}

// NewSubscription creates an idle subscription. It retains q until the
// subscription is released.
func (q *ParsedQuery) NewSubscription(operationName, variables string) (*Subscription, error) {
	if q.st.current() == 0 {
		return nil, ErrReleased
	}
	return newSubscription(q.Retain(), operationName, variables), nil
}

func (st *queryState) current() engine.QueryID {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.id
}

// finalize discards the query once. It runs from the last Release or from
// the leak cleanup, never both.
func (st *queryState) finalize() error {
	st.mu.Lock()
	id := st.id
	st.id = 0
	st.mu.Unlock()

	if id == 0 {
		return nil
	}
	return errors.Join(st.svc.discard(id), st.svc.release())
}
