// Package conn is the per-connection state machine: handshake
// negotiation, a bounded outbound send queue decoupling registry fanout
// from transport writes, and the lifecycle a broker.Handle drives a
// connection through.
//
// The state tracking is an atomic state word plus activity timestamp with
// close-once teardown, wrapped around a transport.Transport rather than a
// raw net.Conn so the broker core never depends on TCP/TLS directly.
package conn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/transport"
)

type State int32

const (
	StateHandshaking State = iota
	StateEstablished
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateShuttingDown:
		return "shutting-down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Conn tracks one client connection's lifecycle on top of a
// transport.Transport. It does not itself know about the registry;
// package broker drives it.
type Conn struct {
	ID        connid.ID
	transport transport.Transport
	cfg       Config

	state        atomic.Int32
	lastActivity atomic.Int64

	version proto.Version

	closeOnce sync.Once
	closed    chan struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	mu       sync.Mutex
	outbound []proto.Message
	notify   chan struct{}
	dropped  uint64
}

// Config governs per-connection policy that is not part of the wire
// protocol.
type Config struct {
	// SendQueueCapacity bounds how many outbound messages may be queued
	// for a slow reader before the connection is terminated. This is a
	// broker policy knob, not a protocol requirement.
	SendQueueCapacity int
	// BrokerVersions is the minor-version window this broker offers
	// during handshake negotiation.
	BrokerVersions proto.VersionWindow
	// HandshakeTimeout bounds how long Accept waits for the initial
	// Connect/Connect2 message before abandoning the connection.
	HandshakeTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SendQueueCapacity: 256,
		BrokerVersions:    proto.VersionWindow{Min: proto.MinSupportedMinor, Max: proto.MinorSubscribeAll},
		HandshakeTimeout:  5 * time.Second,
	}
}

func New(id connid.ID, t transport.Transport, cfg Config) *Conn {
	c := &Conn{
		ID:        id,
		transport: t,
		cfg:       cfg,
		closed:     make(chan struct{}),
		notify:     make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}
	c.state.Store(int32(StateHandshaking))
	c.touch()
	return c
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Conn) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Conn) IdleDuration() time.Duration {
	return time.Since(c.LastActivity())
}

func (c *Conn) Version() proto.Version {
	return c.version
}

// Recv reads the next inbound message and touches the activity clock.
func (c *Conn) Recv(ctx context.Context) (proto.Message, error) {
	if c.State() == StateTerminated {
		return nil, ErrClosed
	}
	msg, err := c.transport.Recv(ctx)
	if err != nil {
		return nil, err
	}
	c.touch()
	return msg, nil
}

// Negotiate picks the highest mutually-supported minor version and
// advances to StateEstablished on success.
func (c *Conn) Negotiate(window proto.VersionWindow) (proto.Version, bool) {
	minor, ok := proto.Negotiate(c.cfg.BrokerVersions, window)
	if !ok {
		return proto.Version{}, false
	}
	c.version = proto.Version{Major: 1, Minor: minor}
	c.setState(StateEstablished)
	return c.version, true
}

// Enqueue appends a message to the outbound queue for the writer loop to
// drain. When the queue is already at capacity the message is dropped,
// counted in Dropped, and Enqueue returns false; it never blocks. Closing
// the slow connection is left to the caller (package broker closes it on a
// false return).
func (c *Conn) Enqueue(msg proto.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbound) >= c.cfg.SendQueueCapacity {
		c.dropped++
		return false
	}
	c.outbound = append(c.outbound, msg)
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

// OutboundReady signals each time Enqueue queues work. The writer loop
// selects on it alongside its context; every wake-up must be followed by a
// DrainOutbound, which empties the queue regardless of how many Enqueues
// coalesced into one signal.
func (c *Conn) OutboundReady() <-chan struct{} {
	return c.notify
}

// DrainOutbound removes and returns every currently queued outbound
// message, for the writer loop to flush to the transport.
func (c *Conn) DrainOutbound() []proto.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbound) == 0 {
		return nil
	}
	out := c.outbound
	c.outbound = nil
	return out
}

// Dropped reports how many outbound messages were dropped for queue
// overflow over this connection's lifetime.
func (c *Conn) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Send writes msg to the transport directly, bypassing the outbound
// queue — used for the handshake reply and by the writer loop, never by
// dispatch.
func (c *Conn) Send(ctx context.Context, msg proto.Message, flush bool) error {
	if c.State() == StateTerminated {
		return ErrClosed
	}
	return c.transport.Send(ctx, msg, flush)
}

func (c *Conn) Flush(ctx context.Context) error {
	return c.transport.Flush(ctx)
}

// Shutdown marks the connection as tearing down: no further registry
// operations should be accepted for it, but the transport stays open so
// the writer loop can drain remaining outbound traffic before Close.
func (c *Conn) Shutdown() {
	if c.State() == StateHandshaking || c.State() == StateEstablished {
		c.setState(StateShuttingDown)
	}
	c.shutdownOnce.Do(func() { close(c.shutdownCh) })
}

// ShutdownRequested reports a channel closed once Shutdown has been
// called; the writer loop selects on it to perform its final drain.
func (c *Conn) ShutdownRequested() <-chan struct{} {
	return c.shutdownCh
}

// Closed reports a channel closed once Close has fully torn the
// connection down.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setState(StateTerminated)
		err = c.transport.Close()
		close(c.closed)
	})
	return err
}
