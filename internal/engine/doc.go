// Package engine defines the contract of the single-threaded query engine
// hosted by a worker.
//
// The engine is a black box with six operations: Start, Stop, ParseQuery,
// DiscardQuery, Subscribe and Unsubscribe. It owns its parsed queries and
// subscriptions and refers to them only through numeric identifiers, so no
// engine state ever crosses to a caller goroutine.
//
// THREAD AFFINITY:
//
// An Engine is created by a Factory on the worker goroutine, which is locked
// to its OS thread for the engine's whole lifetime. Every method call and
// every callback happens on that thread. Engines that need to deliver work
// to themselves later (for example subscription events raised by a mutation)
// post it to the worker's message pump from Env instead of spawning
// goroutines.
//
// ERRORS:
//
// Engine failures are reported as *Error with a code and the engine's
// diagnostic text unchanged.
package engine
