// Package connid defines the broker's internal connection identifier: an
// opaque, process-local handle distinct from the 128-bit cookies minted
// for objects, services, channels and bus listeners, and never written to
// the wire.
package connid

import "sync/atomic"

// ID identifies one connection for the lifetime of the broker process.
// Never reused, never serialized to the wire.
type ID uint64

// Allocator mints monotonically increasing connection ids.
type Allocator struct {
	next atomic.Uint64
}

// Next returns a fresh, never-before-issued ID.
func (a *Allocator) Next() ID {
	return ID(a.next.Add(1))
}
