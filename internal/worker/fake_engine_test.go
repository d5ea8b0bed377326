package worker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/gqlhost/internal/engine"
)

type fakeSubscription struct {
	next     engine.NextFunc
	complete engine.CompleteFunc
}

// fakeEngine is a minimal engine. Queries starting with "subscription"
// stay registered, everything else answers inline. The query "panic"
// panics when subscribed and "broadcast" posts a pump message that feeds
// every live subscription.
type fakeEngine struct {
	env engine.Env

	mu       sync.Mutex
	calls    []string
	started  bool
	queries  map[engine.QueryID]string
	subs     map[engine.SubscriptionID]*fakeSubscription
	nextQID  engine.QueryID
	nextSID  engine.SubscriptionID
	startErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		queries: make(map[engine.QueryID]string),
		subs:    make(map[engine.SubscriptionID]*fakeSubscription),
	}
}

func (e *fakeEngine) factory() engine.Factory {
	return func(env engine.Env) (engine.Engine, error) {
		e.env = env
		return e, nil
	}
}

func (e *fakeEngine) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) Start(useDefaultIdentity bool) error {
	e.record(fmt.Sprintf("start(%t)", useDefaultIdentity))
	if e.startErr != nil {
		return e.startErr
	}
	e.started = true
	return nil
}

func (e *fakeEngine) Stop() error {
	e.record("stop")
	for id, sub := range e.subs {
		sub.complete()
		delete(e.subs, id)
	}
	e.started = false
	return nil
}

func (e *fakeEngine) ParseQuery(query string) (engine.QueryID, error) {
	e.record("parse")
	if strings.HasSuffix(query, "{") {
		return 0, engine.Errorf(engine.ErrCodeParse, "syntax error")
	}
	e.nextQID++
	e.queries[e.nextQID] = query
	return e.nextQID, nil
}

func (e *fakeEngine) DiscardQuery(id engine.QueryID) error {
	e.record(fmt.Sprintf("discard(%d)", id))
	delete(e.queries, id)
	return nil
}

func (e *fakeEngine) Subscribe(id engine.QueryID, operationName, variables string, next engine.NextFunc, complete engine.CompleteFunc) (engine.SubscriptionID, error) {
	e.record(fmt.Sprintf("subscribe(%d)", id))
	query, ok := e.queries[id]
	if !ok {
		return 0, engine.Errorf(engine.ErrCodeUnknownQuery, "unknown query id")
	}
	e.nextSID++
	sid := e.nextSID

	switch {
	case query == "panic":
		panic("engine exploded")
	case query == "broadcast":
		e.env.Pump.Post(func() {
			for _, sub := range e.subs {
				sub.next(`{"data":{"event":true}}`)
			}
		})
		next(`{"data":{"broadcast":true}}`)
		complete()
	case strings.HasPrefix(query, "subscription"):
		e.subs[sid] = &fakeSubscription{next: next, complete: complete}
	default:
		next(fmt.Sprintf(`{"data":{"query":%q}}`, query))
		complete()
	}
	return sid, nil
}

func (e *fakeEngine) Unsubscribe(id engine.SubscriptionID) error {
	e.record(fmt.Sprintf("unsubscribe(%d)", id))
	if sub, ok := e.subs[id]; ok {
		sub.complete()
		delete(e.subs, id)
	}
	return nil
}
