// Package store persists broker statistics snapshots (package stats) to a
// pluggable backend. It is explicitly NOT used for broker state recovery:
// the broker never survives a restart with objects, services, channels or
// subscriptions intact, so nothing here is read back into the registry.
// What it does persist is opt-in operational telemetry — the kind of
// thing an operator wants queryable after the process is gone.
//
// Every backend keeps the same Save/Load/Delete shape; since a snapshot
// key is always a sampler tick rather than an arbitrary identifier, Store
// also carries Prune — snapshots are a rolling history an operator wants
// bounded.
package store

import "context"

// Store is a generic, keyed persistence abstraction over one value type.
// Keys here are snapshot identifiers minted by stats.Sampler — decimal
// UnixNano timestamps, fixed-width for any date this side of the year
// 2262 — not cookies or connection ids. That fixed width is what lets
// Prune order snapshots by key instead of unmarshaling every value just
// to compare timestamps.
type Store[T any] interface {
	Reader[T]
	Metrics

	Save(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error

	// Prune deletes all but the keep most recently-keyed snapshots and
	// reports how many it removed. A keep of zero or less clears the
	// backend entirely.
	Prune(ctx context.Context, keep int) (int, error)

	Close() error
}

type Reader[T any] interface {
	Load(ctx context.Context, key string) (T, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

type Metrics interface {
	Count(ctx context.Context) (int64, error)
}
