// Package transport defines the polymorphic message pipe the broker core
// talks to. The broker never
// touches bytes: a Transport already speaks proto.Message values. Framing
// a real byte stream (TCP, Unix sockets, …) is an adapter that lives
// outside this package and outside this repository's scope.
package transport

import (
	"context"

	"github.com/dennis-hamester/aldrin/proto"
)

// Transport is the capability set the broker erases concrete transports
// behind: await the next inbound message, send one message (optionally
// requesting a flush), and close. Implementations must be safe for one
// concurrent Recv and one concurrent Send.
type Transport interface {
	// Recv blocks until the next inbound message is available, ctx is
	// done, or the transport fails.
	Recv(ctx context.Context) (proto.Message, error)

	// Send enqueues or writes one outbound message. If flush is true the
	// implementation must ensure the message reaches the peer's socket
	// buffer before returning (or before a subsequent Flush call
	// returns), preserving the client-observable Sync barrier.
	Send(ctx context.Context, msg proto.Message, flush bool) error

	// Flush ensures all previously Send'd messages have left the
	// transport.
	Flush(ctx context.Context) error

	// Close tears down the transport. Idempotent.
	Close() error
}
