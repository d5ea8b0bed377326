// Package response implements the engine's typed response value tree.
//
// A Value is one node of kind Map, List, String, Null, Boolean, Int, Float,
// EnumValue, ID or Scalar. Every mutating operation can fail: constructing a
// node or reserving capacity is charged against an Arena budget, pushing or
// setting requires the matching kind, and releasing a payload transfers it
// out of the node exactly once. Callers short-circuit on the first error.
//
// Values are not safe for concurrent use. They are built and consumed on the
// worker goroutine that owns the engine.
package response
