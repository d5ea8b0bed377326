package gqlhost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlhost/internal/engine"
	"github.com/roach88/gqlhost/internal/gql"
	"github.com/roach88/gqlhost/internal/store"
)

// countingEngine wraps the reference engine and counts cleanup commands.
// Query text "panic" makes ParseQuery panic.
type countingEngine struct {
	*gql.Engine

	mu           sync.Mutex
	discards     int
	unsubscribes int
}

func (c *countingEngine) ParseQuery(query string) (engine.QueryID, error) {
	if query == "panic" {
		panic("engine exploded")
	}
	return c.Engine.ParseQuery(query)
}

func (c *countingEngine) DiscardQuery(id engine.QueryID) error {
	c.mu.Lock()
	c.discards++
	c.mu.Unlock()
	return c.Engine.DiscardQuery(id)
}

func (c *countingEngine) Unsubscribe(id engine.SubscriptionID) error {
	c.mu.Lock()
	c.unsubscribes++
	c.mu.Unlock()
	return c.Engine.Unsubscribe(id)
}

func (c *countingEngine) counts() (discards, unsubscribes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discards, c.unsubscribes
}

func newTestService(t *testing.T, opts ...Option) (*Service, *countingEngine) {
	t.Helper()
	ce := &countingEngine{}
	factory := func(env Env) (Engine, error) {
		e, err := gql.New(gql.Config{IDs: store.NewFixedGenerator("inbox", "item-1", "item-2", "item-3")}, env)
		if err != nil {
			return nil, err
		}
		ce.Engine = e
		return ce, nil
	}

	svc, err := New(factory, append([]Option{WithUseDefaultIdentity(true)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc, ce
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel")
	}
	var zero T
	return zero
}

func channels() (chan string, chan struct{}) {
	return make(chan string, 16), make(chan struct{}, 1)
}

func TestService_TypenameQuery(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	q, err := svc.ParseQuery(ctx, "query { __typename }")
	require.NoError(t, err)

	next, complete := channels()
	sub, err := q.Subscribe(ctx, "", "", next, complete)
	require.NoError(t, err)

	assert.Equal(t, `{"data":{"__typename":"Query"}}`, receive(t, next))
	receive(t, complete)

	require.NoError(t, sub.Unsubscribe())
	assert.Empty(t, next, "no payloads after unsubscribe")

	require.NoError(t, sub.Release())
	require.NoError(t, q.Release())
	require.NoError(t, svc.Close())
	assert.NoError(t, svc.Wait())
}

func TestService_ParseErrorCreatesNoHandle(t *testing.T) {
	svc, _ := newTestService(t)

	q, err := svc.ParseQuery(context.Background(), "query {")
	require.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, IsEngineError(err))

	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, engine.ErrCodeParse, ee.Code)
}

func TestService_SubscribeErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	q, err := svc.ParseQuery(ctx, "query Q($n: Int) { __typename }")
	require.NoError(t, err)
	defer q.Release()

	sub, err := q.Subscribe(ctx, "", "[1]", nil, nil)
	assert.Nil(t, sub)
	assert.True(t, engine.HasCode(err, engine.ErrCodeInvalidVariables))

	sub, err = q.Subscribe(ctx, "", `{"n":1e400}`, nil, nil)
	assert.Nil(t, sub)
	assert.True(t, IsConversionError(err), "got %v", err)
}

func TestParsedQuery_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, ce := newTestService(t)

	q, err := svc.ParseQuery(ctx, "{ __typename }")
	require.NoError(t, err)
	other := q.Retain()

	require.NoError(t, q.Release())
	discards, _ := ce.counts()
	assert.Equal(t, 0, discards, "a reference is still held")

	require.NoError(t, other.Release())
	require.NoError(t, q.Release())
	require.NoError(t, other.Release())

	discards, _ = ce.counts()
	assert.Equal(t, 1, discards)

	_, err = q.NewSubscription("", "")
	assert.ErrorIs(t, err, ErrReleased)
}

func TestSubscription_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, ce := newTestService(t)

	q, err := svc.ParseQuery(ctx, "subscription { itemAdded { id } }")
	require.NoError(t, err)

	next, complete := channels()
	sub, err := q.Subscribe(ctx, "", "", next, complete)
	require.NoError(t, err)
	require.NoError(t, q.Release(), "the subscription keeps the query")

	discards, _ := ce.counts()
	assert.Equal(t, 0, discards)

	sub.Retain()
	require.NoError(t, sub.Release())
	require.NoError(t, sub.Release())
	require.NoError(t, sub.Release())
	receive(t, complete)

	discards, unsubscribes := ce.counts()
	assert.Equal(t, 1, unsubscribes)
	assert.Equal(t, 1, discards)

	assert.ErrorIs(t, sub.Listen(ctx, next, complete), ErrReleased)
}

func TestSubscription_EventsAndRelisten(t *testing.T) {
	for _, pumped := range []bool{false, true} {
		t.Run(fmt.Sprintf("pump=%v", pumped), func(t *testing.T) {
			ctx := context.Background()
			svc, ce := newTestService(t, WithMessagePump(pumped))

			q, err := svc.ParseQuery(ctx, "subscription { itemAdded { subject } }")
			require.NoError(t, err)
			defer q.Release()

			first, firstDone := channels()
			sub, err := q.Subscribe(ctx, "", "", first, firstDone)
			require.NoError(t, err)
			defer sub.Release()

			mutate := func(subject string) {
				m, err := svc.ParseQuery(ctx, fmt.Sprintf(`mutation { createItem(input: {folderId: "inbox", subject: %q}) { id } }`, subject))
				require.NoError(t, err)
				next, complete := channels()
				ms, err := m.Subscribe(ctx, "", "", next, complete)
				require.NoError(t, err)
				receive(t, next)
				receive(t, complete)
				require.NoError(t, ms.Release())
				require.NoError(t, m.Release())
			}

			mutate("one")
			assert.Equal(t, `{"data":{"itemAdded":{"subject":"one"}}}`, receive(t, first))

			second, secondDone := channels()
			require.NoError(t, sub.Listen(ctx, second, secondDone))
			receive(t, firstDone)
			_, unsubscribes := ce.counts()
			assert.Equal(t, 2, unsubscribes, "mutation handle plus the previous listen")

			mutate("two")
			assert.Equal(t, `{"data":{"itemAdded":{"subject":"two"}}}`, receive(t, second))
			assert.Empty(t, first)
		})
	}
}

func TestService_HandlesKeepServiceAlive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	q, err := svc.ParseQuery(ctx, "{ __typename }")
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
	select {
	case <-svc.Done():
		t.Fatal("service stopped while a handle was live")
	default:
	}

	_, err = svc.ParseQuery(ctx, "{ __typename }")
	assert.True(t, IsChannelError(err), "closed services accept no new queries")

	next, complete := channels()
	sub, err := q.Subscribe(ctx, "", "", next, complete)
	require.NoError(t, err, "live handles keep working")
	receive(t, next)

	require.NoError(t, q.Release())
	require.NoError(t, sub.Release())
	receive(t, svc.Done())
	assert.NoError(t, svc.Wait())
}

func TestService_StopCompletesSubscriptions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	q, err := svc.ParseQuery(ctx, "subscription { itemRemoved }")
	require.NoError(t, err)
	next, complete := channels()
	sub, err := q.Subscribe(ctx, "", "", next, complete)
	require.NoError(t, err)

	require.NoError(t, svc.Stop(ctx))
	receive(t, complete)

	_, err = svc.ParseQuery(ctx, "{ __typename }")
	assert.True(t, IsChannelError(err))
	assert.ErrorIs(t, err, ErrChannelClosed)

	assert.NoError(t, sub.Release())
	assert.NoError(t, q.Release())
	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.Wait())
}

func TestService_WorkerPanic(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.ParseQuery(ctx, "panic")
	require.Error(t, err)
	assert.True(t, IsLockError(err))

	receive(t, svc.Done())
	werr := svc.Wait()
	assert.True(t, IsPanicError(werr))
	assert.Contains(t, werr.Error(), "engine exploded")

	_, err = svc.ParseQuery(ctx, "{ __typename }")
	assert.True(t, IsLockError(err))
	assert.True(t, IsLockError(svc.Close()))
}

func TestService_StartFailure(t *testing.T) {
	factory := func(env Env) (Engine, error) {
		return nil, errors.New("no engine")
	}
	svc, err := New(factory)
	assert.Nil(t, svc)
	assert.ErrorContains(t, err, "create engine: no engine")
}

func TestService_ConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	svc, ce := newTestService(t)

	const callers, rounds = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				q, err := svc.ParseQuery(ctx, "{ folders { name } }")
				if err != nil {
					errs <- err
					return
				}
				next, complete := channels()
				sub, err := q.Subscribe(ctx, "", "", next, complete)
				if err != nil {
					errs <- err
					return
				}
				if p := <-next; p != `{"data":{"folders":[{"name":"Inbox"}]}}` {
					errs <- fmt.Errorf("unexpected payload %s", p)
					return
				}
				<-complete
				if err := errors.Join(sub.Release(), q.Release()); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	discards, unsubscribes := ce.counts()
	assert.Equal(t, callers*rounds, discards)
	assert.Equal(t, callers*rounds, unsubscribes)
}

func TestParseQuery_CancelledContext(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ParseQuery(ctx, "{ __typename }")
	if err != nil {
		assert.True(t, IsChannelError(err))
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestSubscription_UnsubscribeRightAfterSubscribeKeepsPayload(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	q, err := svc.ParseQuery(ctx, "query { __typename }")
	require.NoError(t, err)
	defer q.Release()

	for i := 0; i < 100; i++ {
		next, complete := channels()
		sub, err := q.Subscribe(ctx, "", "", next, complete)
		require.NoError(t, err)
		require.NoError(t, sub.Unsubscribe())

		require.Len(t, next, 1, "run %d", i)
		assert.Equal(t, `{"data":{"__typename":"Query"}}`, <-next)
		require.Len(t, complete, 1, "run %d", i)
		require.NoError(t, sub.Release())
	}
}

func TestSubscription_ReleaseWithUnbufferedComplete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	q, err := svc.ParseQuery(ctx, "query { __typename }")
	require.NoError(t, err)
	defer q.Release()

	next := make(chan string, 1)
	complete := make(chan struct{})
	sub, err := q.Subscribe(ctx, "", "", next, complete)
	require.NoError(t, err)
	receive(t, next)

	released := make(chan error, 1)
	go func() { released <- sub.Release() }()
	require.NoError(t, receive(t, released))

	receive(t, complete)
}

func TestService_StopAfterAbandonedWait(t *testing.T) {
	svc, _ := newTestService(t, WithMessagePump(true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Stop(ctx); err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	require.NoError(t, svc.Stop(context.Background()))
	require.NoError(t, svc.Close())
	assert.NoError(t, svc.Wait())
}
