// Package stores provides persistence layer implementations for propgraph.
// It includes SQLite-based storage with WAL mode and embedded migrations for
// the full attribute graph (schemas, props, providers, sockets, values and
// prototypes), plus an in-memory store with snapshot transactions for tests
// and ephemeral use.
package stores
