package engine

import (
	"log/slog"

	"github.com/roach88/gqlhost/internal/pump"
)

// QueryID identifies a parsed query registered with an Engine.
// Zero is never assigned.
type QueryID uint64

// SubscriptionID identifies a subscription registered with an Engine.
// Zero is never assigned.
type SubscriptionID uint64

// NextFunc receives one serialized response document.
type NextFunc func(payload string)

// CompleteFunc signals that a subscription will deliver no more payloads.
type CompleteFunc func()

// Engine is a single-threaded, stateful query engine.
//
// Every method must be called from the goroutine that created the Engine,
// which is the worker goroutine locked to its OS thread. Callbacks passed to
// Subscribe are invoked on that same goroutine, possibly before Subscribe
// returns.
//
// Unknown identifiers passed to DiscardQuery and Unsubscribe are ignored.
type Engine interface {
	// Start opens the engine's backing state.
	Start(useDefaultIdentity bool) error

	// Stop unsubscribes every live subscription, discards every parsed
	// query and closes the engine's backing state.
	Stop() error

	// ParseQuery parses query text and registers it.
	ParseQuery(query string) (QueryID, error)

	// DiscardQuery forgets a parsed query.
	DiscardQuery(id QueryID) error

	// Subscribe runs an operation of a parsed query with JSON variables.
	// An empty variables string means no variables. Query and mutation
	// operations deliver one payload and complete before Subscribe returns.
	Subscribe(id QueryID, operationName, variables string, next NextFunc, complete CompleteFunc) (SubscriptionID, error)

	// Unsubscribe stops a subscription. The subscription's complete
	// callback has been called when Unsubscribe returns.
	Unsubscribe(id SubscriptionID) error
}

// Env is what a worker hands to a Factory.
type Env struct {
	// Pump is the worker's platform message pump, or nil when the worker
	// does not pump.
	Pump pump.Pump

	// Logger is the worker's logger.
	Logger *slog.Logger
}

// Factory constructs an Engine on the worker goroutine.
type Factory func(env Env) (Engine, error)
