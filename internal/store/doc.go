// Package store provides SQLite-backed storage for the reference mail-store
// engine.
//
// The store holds two tables:
//   - Folders: named containers, unique by name
//   - Items: messages filed in a folder, with subject, body, importance,
//     read flag and a free-form properties object
//
// # Ordering
//
// Every row carries an INTEGER seq assigned on insert. List queries order
// by seq ASC, id ASC COLLATE BINARY so results are identical across runs.
//
// # Properties
//
// Item properties are an ordered dynamic map stored as RFC 8785 canonical
// JSON, so equal property sets always produce byte-identical rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: 5-second lock wait
//   - foreign_keys=ON: Items reference existing folders
//
// The store is used from the single worker thread that owns the engine, so
// the pool is limited to one connection.
package store
