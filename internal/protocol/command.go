// Package protocol defines the commands callers send to a worker and the
// channels results come back on.
//
// Every command carries a single-use Reply. Commands enter a Queue that is
// safe for concurrent senders and is drained in submission order by exactly
// one worker. Subscription payloads travel separately on a Stream.
package protocol

import "github.com/roach88/gqlhost/internal/engine"

// Command is one request for the worker. The set is closed.
type Command interface {
	// Fail answers the command with err instead of running it.
	Fail(err error)

	command()
}

// Stop stops the engine and ends the worker. Commands still queued behind
// it are failed.
type Stop struct {
	Reply Reply[struct{}]
}

// ParseQuery parses and registers query text.
type ParseQuery struct {
	Query string
	Reply Reply[engine.QueryID]
}

// DiscardQuery forgets a parsed query.
type DiscardQuery struct {
	QueryID engine.QueryID
	Reply   Reply[struct{}]
}

// Subscribe runs an operation of a parsed query. Payloads and the
// completion signal are pushed to Stream.
type Subscribe struct {
	QueryID       engine.QueryID
	OperationName string
	Variables     string
	Stream        *Stream
	Reply         Reply[engine.SubscriptionID]
}

// Unsubscribe stops a subscription.
type Unsubscribe struct {
	SubscriptionID engine.SubscriptionID
	Reply          Reply[struct{}]
}

func (c *Stop) Fail(err error)         { c.Reply.Send(struct{}{}, err) }
func (c *ParseQuery) Fail(err error)   { c.Reply.Send(0, err) }
func (c *DiscardQuery) Fail(err error) { c.Reply.Send(struct{}{}, err) }
func (c *Unsubscribe) Fail(err error)  { c.Reply.Send(struct{}{}, err) }

// Fail also completes the stream, since no engine will ever feed it.
func (c *Subscribe) Fail(err error) {
	c.Reply.Send(0, err)
	if c.Stream != nil {
		c.Stream.Complete()
	}
}

func (*Stop) command()         {}
func (*ParseQuery) command()   {}
func (*DiscardQuery) command() {}
func (*Subscribe) command()    {}
func (*Unsubscribe) command()  {}

// Name returns a short name for logs and metrics.
func Name(c Command) string {
	switch c.(type) {
	case *Stop:
		return "stop"
	case *ParseQuery:
		return "parse_query"
	case *DiscardQuery:
		return "discard_query"
	case *Subscribe:
		return "subscribe"
	case *Unsubscribe:
		return "unsubscribe"
	default:
		return "unknown"
	}
}
