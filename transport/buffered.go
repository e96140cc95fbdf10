package transport

import (
	"context"
	"sync"

	"github.com/dennis-hamester/aldrin/proto"
)

// Buffered interposes an unbounded in-memory queue in front of a raw
// Transport's Send, so a slow peer's socket never blocks the dispatcher.
// The bounded, drop-on-overflow policy lives one layer up, in package
// conn, which is the layer that actually wants backpressure; this adapter
// exists purely to keep a single flush-driven writer goroutine per
// connection.
type Buffered struct {
	inner Transport

	mu      sync.Mutex
	cond    *sync.Cond
	pending []queued
	closed  bool

	writerDone chan struct{}
	writeErr   error
}

type queued struct {
	msg       proto.Message
	flushOnly bool
}

// NewBuffered starts a background writer goroutine draining into inner.
func NewBuffered(inner Transport) *Buffered {
	b := &Buffered{inner: inner, writerDone: make(chan struct{})}
	b.cond = sync.NewCond(&b.mu)
	go b.writeLoop()
	return b
}

func (b *Buffered) Recv(ctx context.Context) (proto.Message, error) {
	return b.inner.Recv(ctx)
}

// Send never blocks on the peer; it appends to the in-memory queue and
// wakes the writer goroutine.
func (b *Buffered) Send(ctx context.Context, msg proto.Message, flush bool) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.pending = append(b.pending, queued{msg: msg, flushOnly: flush})
	b.cond.Signal()
	b.mu.Unlock()
	return nil
}

func (b *Buffered) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.pending = append(b.pending, queued{flushOnly: true})
	b.cond.Signal()
	b.mu.Unlock()
	return nil
}

func (b *Buffered) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.writerDone
		return b.writeErr
	}
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
	<-b.writerDone
	return b.inner.Close()
}

func (b *Buffered) writeLoop() {
	defer close(b.writerDone)
	ctx := context.Background()
	for {
		b.mu.Lock()
		for len(b.pending) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.pending) == 0 && b.closed {
			b.mu.Unlock()
			return
		}
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()

		for _, q := range batch {
			if q.msg == nil {
				if err := b.inner.Flush(ctx); err != nil {
					b.writeErr = err
				}
				continue
			}
			if err := b.inner.Send(ctx, q.msg, q.flushOnly); err != nil {
				b.writeErr = err
			}
		}
	}
}
