// Package gqlhost gives any number of goroutines safe access to a
// single-threaded GraphQL engine.
//
// A Service runs the engine on a dedicated worker goroutine locked to its
// OS thread. Nothing else ever calls into the engine: every operation is a
// command queued to the worker, answered on a one-shot reply channel.
//
// HANDLES:
//
// ParseQuery returns a *ParsedQuery and Subscribe returns a *Subscription.
// Both are reference counted with Retain and Release. When the last
// reference is released the matching DiscardQuery or Unsubscribe command is
// queued; releasing again does nothing. A handle that becomes unreachable
// without being released is cleaned up by the garbage collector.
//
// Every live handle keeps its Service running. Close drops the caller's own
// reference, so the worker stops once Close has been called and the last
// handle is released. Stop stops the worker immediately.
//
// DELIVERY:
//
// Payloads are JSON response documents. They are buffered without bound on
// the worker side and forwarded in order to the caller's next channel,
// followed by exactly one value on the complete channel.
package gqlhost
