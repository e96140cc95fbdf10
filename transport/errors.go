package transport

import "errors"

var (
	// ErrClosed is returned by Send (and Buffered's Flush) once Close has
	// been called, and by a Pipe's Recv once the peer end has closed.
	ErrClosed = errors.New("transport: closed")
	// ErrSendQueueFull is not returned by any transport in this package;
	// Buffered's queue is unbounded.
	ErrSendQueueFull = errors.New("transport: send queue full")
)
