package broker

import "errors"

var (
	// ErrBrokerClosed is returned by Accept once Shutdown has begun.
	ErrBrokerClosed = errors.New("broker: closed")
	// ErrConnectionLimitExceeded is returned by Accept when Config.MaxConnections
	// would be exceeded by admitting another connection.
	ErrConnectionLimitExceeded = errors.New("broker: connection limit exceeded")
	// ErrShutdownTimeout is returned by Shutdown when connections fail to
	// drain within the given timeout.
	ErrShutdownTimeout = errors.New("broker: shutdown timed out waiting for connections to drain")
	// ErrUnexpectedHandshakeMessage is returned when the first message
	// received from a newly accepted transport is not Connect or Connect2.
	ErrUnexpectedHandshakeMessage = errors.New("broker: expected Connect or Connect2 as first message")
)
