// Package dynamic provides the generic JSON-like value used outside the
// engine boundary.
//
// Values form a sealed tree: Null, Bool, Number, String, List and Map. Map
// preserves insertion order so documents survive a decode/encode cycle with
// their member order intact. Number keeps the JSON literal it was decoded
// from; bucketing into integer or float happens only when a caller asks
// (see Number.Int64 and Number.Float64).
//
// This package imports nothing internal. The marshal package converts these
// values to and from the engine's typed response tree.
package dynamic
