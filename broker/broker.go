// Package broker wires conn, dispatch, registry, hook and stats together
// into the top-level Handle a process embeds: connection admission,
// per-connection read/write pumps, and graceful shutdown.
//
// Connection bookkeeping is a capacity-bounded map plus an atomic
// total-accepted counter, and close-once teardown over
// transport.Transport-backed conn.Conn values.
package broker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennis-hamester/aldrin/conn"
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/dispatch"
	"github.com/dennis-hamester/aldrin/hook"
	"github.com/dennis-hamester/aldrin/pkg/logger"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
	"github.com/dennis-hamester/aldrin/stats"
	"github.com/dennis-hamester/aldrin/store"
	"github.com/dennis-hamester/aldrin/transport"
)

// Config governs broker-wide policy: connection admission limits and
// per-connection defaults.
type Config struct {
	MaxConnections int
	ConnConfig     conn.Config
}

func DefaultConfig() Config {
	return Config{
		MaxConnections: 10000,
		ConnConfig:     conn.DefaultConfig(),
	}
}

// Handle is the broker's externally visible entry point: one per
// process, shared by every accepted connection.
type Handle struct {
	cfg   Config
	reg   *registry.Registry
	disp  *dispatch.Dispatcher
	hooks *hook.Manager
	stats *stats.Counters
	log   *logger.SlogLogger

	mu      sync.Mutex
	conns   map[connid.ID]*conn.Conn
	cancels map[connid.ID]context.CancelFunc
	alloc   connid.Allocator
	total   atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

func New(cfg Config, hooks *hook.Manager, log *logger.SlogLogger) *Handle {
	if hooks == nil {
		hooks = hook.NewManager()
	}
	if log == nil {
		log = logger.NewSlogLogger(slog.LevelInfo, nil)
	}
	reg := registry.New()
	return &Handle{
		cfg:     cfg,
		reg:     reg,
		disp:    dispatch.New(reg),
		hooks:   hooks,
		stats:   stats.New(),
		log:     log,
		conns:   make(map[connid.ID]*conn.Conn),
		cancels: make(map[connid.ID]context.CancelFunc),
		closeCh: make(chan struct{}),
	}
}

func (h *Handle) Stats() *stats.Counters { return h.stats }

// Sample takes a point-in-time statistics snapshot, merging the broker's
// monotonic counters with the live-entity gauges read off the registry.
func (h *Handle) Sample(now time.Time) stats.Snapshot {
	objects, services, channels, busListeners := h.reg.LiveCounts()
	return h.stats.Sample(now, stats.Gauges{
		Objects:      int64(objects),
		Services:     int64(services),
		Channels:     int64(channels),
		BusListeners: int64(busListeners),
	})
}

// NewSampler builds a stats.Sampler persisting this broker's snapshots to
// sink every interval, keeping at most retain entries (retain <= 0 keeps
// everything). The caller runs it: go sampler.Run(ctx).
func (h *Handle) NewSampler(sink store.Store[stats.Snapshot], interval time.Duration, retain int) *stats.Sampler {
	return stats.NewSampler(h.Sample, sink, interval, retain)
}

// Accept admits a newly connected transport: it reads the client's
// initial Connect/Connect2 message, negotiates a protocol version,
// consults the authentication hook, and — on success — replies in the
// client's handshake dialect and spawns the connection's read and write
// pumps. It blocks only for the duration of the handshake (bounded by
// Config.ConnConfig's HandshakeTimeout); the pumps run in background
// goroutines tracked by Handle's WaitGroup so Shutdown can wait for them
// to exit.
func (h *Handle) Accept(ctx context.Context, t transport.Transport) error {
	if h.closed.Load() {
		return ErrBrokerClosed
	}

	h.mu.Lock()
	if len(h.conns) >= h.cfg.MaxConnections {
		h.mu.Unlock()
		return ErrConnectionLimitExceeded
	}
	id := h.alloc.Next()
	c := conn.New(id, t, h.cfg.ConnConfig)
	h.conns[id] = c
	h.mu.Unlock()

	hsCtx, hsCancel := context.WithTimeout(ctx, h.cfg.ConnConfig.HandshakeTimeout)
	clientWindow, userData, legacy, err := readHandshake(hsCtx, c)
	hsCancel()
	if err != nil {
		h.removeConn(id)
		_ = c.Close()
		return err
	}

	info := hook.ConnectInfo{Conn: id, UserData: userData}
	if !h.hooks.OnConnectAuthenticate(info) {
		_ = c.Send(ctx, connectRejected(legacy, proto.VersionWindow{}), true)
		h.removeConn(id)
		return c.Close()
	}

	v, ok := c.Negotiate(clientWindow)
	if !ok {
		// Only Connect2 peers understand the broker-window field; a
		// legacy Connect gets the bare result.
		_ = c.Send(ctx, connectRejected(legacy, h.cfg.ConnConfig.BrokerVersions), true)
		h.removeConn(id)
		return c.Close()
	}
	info.Version = v

	var accepted proto.Message
	if legacy {
		accepted = proto.ConnectReply{Result: proto.ConnectOk}
	} else {
		accepted = proto.ConnectReply2{Result: proto.ConnectOk, NegotiatedMinor: v.Minor}
	}
	if err := c.Send(ctx, accepted, true); err != nil {
		h.removeConn(id)
		return c.Close()
	}

	h.reg.AddClient(id, v)
	h.stats.ConnectionOpened()
	h.total.Add(1)
	h.hooks.OnConnect(info)

	pumpCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancels[id] = cancel
	h.mu.Unlock()

	h.wg.Add(2)
	go h.pump(pumpCtx, cancel, id, c)
	go h.writePump(pumpCtx, c)
	return nil
}

// pump reads inbound messages until the connection, its context, or the
// broker closes, dispatching each through package dispatch and draining
// the resulting Outbound values to their target connections' queues.
func (h *Handle) pump(ctx context.Context, cancel context.CancelFunc, id connid.ID, c *conn.Conn) {
	defer h.wg.Done()
	defer cancel()
	defer h.teardown(id, c)

	for {
		msg, err := c.Recv(ctx)
		if err != nil {
			return
		}
		h.stats.MessageReceived()

		out, err := h.handleMessage(id, c.Version(), msg)
		if err != nil {
			h.log.Warn("protocol violation, closing connection", "conn", id, "error", err)
			return
		}
		h.deliver(out)

		if _, ok := msg.(proto.Shutdown); ok {
			// Graceful close: the Shutdown reply is already queued;
			// teardown signals the writer to drain it before closing.
			return
		}
	}
}

// handleMessage dispatches one inbound message, weaving hook gating and
// statistics around the registry mutation. Hooks fire for operations the
// client issued explicitly; destruction cascaded from connection teardown
// is reported through OnDisconnect alone.
func (h *Handle) handleMessage(id connid.ID, v proto.Version, msg proto.Message) ([]registry.Outbound, error) {
	var destroyedObject proto.ObjectUuid
	var destroyedService proto.ServiceUuid

	switch m := msg.(type) {
	case proto.CallFunction:
		if !h.hooks.OnCallFunction(id, m.ServiceCookie, m.Function) {
			return []registry.Outbound{{To: id, Msg: proto.CallFunctionReply{
				Serial: m.Serial,
				Result: proto.CallFunctionAborted,
			}}}, nil
		}
	case proto.DestroyObject:
		// The uuid is gone from the registry by the time the hook fires.
		destroyedObject, _ = h.reg.ObjectUuidOf(m.Cookie)
	case proto.DestroyService:
		destroyedService, _ = h.reg.ServiceUuidOf(m.Cookie)
	}

	out, err := h.disp.Handle(id, v, msg)
	if err != nil {
		return nil, err
	}

	switch m := msg.(type) {
	case proto.CreateObject:
		if reply, ok := firstReply[proto.CreateObjectReply](out); ok && reply.Result == proto.CreateObjectOk {
			h.hooks.OnObjectCreated(id, reply.Cookie, m.Uuid)
		}
	case proto.DestroyObject:
		if reply, ok := firstReply[proto.DestroyObjectReply](out); ok && reply.Result == proto.DestroyObjectOk {
			h.hooks.OnObjectDestroyed(id, m.Cookie, destroyedObject)
		}
	case proto.CreateService:
		if reply, ok := firstReply[proto.CreateServiceReply](out); ok && reply.Result == proto.CreateServiceOk {
			h.hooks.OnServiceCreated(id, reply.Cookie, m.Uuid)
		}
	case proto.DestroyService:
		if reply, ok := firstReply[proto.DestroyServiceReply](out); ok && reply.Result == proto.DestroyServiceOk {
			h.hooks.OnServiceDestroyed(id, m.Cookie, destroyedService)
		}
	case proto.CallFunctionReply, proto.AbortFunctionCall:
		if len(out) > 0 {
			h.stats.CallCompleted()
		}
	case proto.EmitEvent:
		h.stats.EventEmitted()
		h.hooks.OnEmitEvent(id, m.ServiceCookie, m.Event)
	case proto.SendItem:
		if _, ok := firstReply[proto.ItemReceived](out); ok {
			h.stats.ItemSent()
			h.hooks.OnChannelItem(id, m.Cookie)
		}
	}
	return out, nil
}

// firstReply extracts the direct reply a dispatch step puts first in its
// Outbound slice, if it is of type T.
func firstReply[T proto.Message](out []registry.Outbound) (T, bool) {
	var zero T
	if len(out) == 0 {
		return zero, false
	}
	reply, ok := out[0].Msg.(T)
	return reply, ok
}

// writePump drains the connection's outbound queue to the transport. It
// is the only goroutine that writes to this connection, so per-connection
// FIFO order follows from the queue order — and it owns the final Close,
// so a graceful shutdown's last replies are flushed before the transport
// goes away.
func (h *Handle) writePump(ctx context.Context, c *conn.Conn) {
	defer h.wg.Done()
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			// A cancellation racing a graceful shutdown must not lose
			// the final replies: prefer the drain if one was requested.
			select {
			case <-c.ShutdownRequested():
				h.finalDrain(c)
			default:
			}
			return
		case <-c.Closed():
			return
		case <-c.ShutdownRequested():
			h.finalDrain(c)
			return
		case <-c.OutboundReady():
		}
		if err := h.drainTo(ctx, c); err != nil {
			return
		}
	}
}

// finalDrain flushes whatever teardown queued, on its own bounded context:
// the pump context is about to be (or already is) canceled, and these are
// exactly the messages that must still go out.
func (h *Handle) finalDrain(c *conn.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.drainTo(ctx, c)
}

func (h *Handle) drainTo(ctx context.Context, c *conn.Conn) error {
	for _, msg := range c.DrainOutbound() {
		if err := c.Send(ctx, msg, false); err != nil {
			return err
		}
		h.stats.MessageSent()
	}
	return c.Flush(ctx)
}

func (h *Handle) deliver(out []registry.Outbound) {
	for _, o := range out {
		h.mu.Lock()
		target, ok := h.conns[o.To]
		h.mu.Unlock()
		if !ok {
			continue
		}
		if !target.Enqueue(o.Msg) {
			h.stats.OutboundDropped()
			_ = target.Close()
		}
	}
}

func (h *Handle) teardown(id connid.ID, c *conn.Conn) {
	h.removeConn(id)
	out := h.reg.RemoveClient(id)
	h.deliver(out)
	h.stats.ConnectionClosed()
	h.hooks.OnDisconnect(id, nil)
	// The writer closes the transport once it has drained whatever the
	// teardown above queued.
	c.Shutdown()
}

// readHandshake reads the connection's first message, which must be
// Connect or Connect2, and returns the client-offered version window,
// opaque user data, and whether the client spoke the legacy single-version
// Connect (and so must be answered with ConnectReply, not ConnectReply2).
func readHandshake(ctx context.Context, c *conn.Conn) (proto.VersionWindow, any, bool, error) {
	msg, err := c.Recv(ctx)
	if err != nil {
		return proto.VersionWindow{}, nil, false, err
	}
	switch m := msg.(type) {
	case proto.Connect:
		return proto.VersionWindow{Min: m.Version, Max: m.Version}, m.UserData, true, nil
	case proto.Connect2:
		return m.Version, m.UserData, false, nil
	default:
		return proto.VersionWindow{}, nil, false, ErrUnexpectedHandshakeMessage
	}
}

// connectRejected builds the version-rejection reply matching the
// handshake dialect the client opened with; window is only carried on the
// Connect2 form.
func connectRejected(legacy bool, window proto.VersionWindow) proto.Message {
	if legacy {
		return proto.ConnectReply{Result: proto.ConnectIncompatibleVersion}
	}
	return proto.ConnectReply2{Result: proto.ConnectIncompatibleVersion, Version: window}
}

func (h *Handle) removeConn(id connid.ID) {
	h.mu.Lock()
	delete(h.conns, id)
	delete(h.cancels, id)
	h.mu.Unlock()
}

// ConnectionCount reports the number of currently tracked connections.
func (h *Handle) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown requests every live connection close, then waits up to the
// given timeout for pumps to drain.
func (h *Handle) Shutdown(timeout time.Duration) error {
	var err error
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.closeCh)

		h.mu.Lock()
		targets := make([]*conn.Conn, 0, len(h.conns))
		for _, c := range h.conns {
			targets = append(targets, c)
		}
		cancels := make([]context.CancelFunc, 0, len(h.cancels))
		for _, cancel := range h.cancels {
			cancels = append(cancels, cancel)
		}
		h.mu.Unlock()

		for _, c := range targets {
			_ = c.Enqueue(proto.Shutdown{})
			c.Shutdown()
		}
		// Cancel each pump's context directly: the writer closes its
		// transport after the final drain, but a reader blocked in Recv
		// is only unblocked by its context.
		for _, cancel := range cancels {
			cancel()
		}

		done := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			err = ErrShutdownTimeout
		}
	})
	return err
}
