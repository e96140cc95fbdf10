package transport

import (
	"context"
	"sync"

	"github.com/dennis-hamester/aldrin/proto"
)

// Pipe is an in-process, bidirectional Transport used by tests and by
// in-process clients that skip byte framing entirely.
type Pipe struct {
	out chan proto.Message

	mu     sync.Mutex
	closed bool
	in     *Pipe // the peer, set by NewPipePair
}

// NewPipePair returns two ends of a connected in-memory pipe: messages
// Send on a are Recv'd on b and vice versa.
func NewPipePair(capacity int) (a, b *Pipe) {
	if capacity < 0 {
		capacity = 0
	}
	a = &Pipe{out: make(chan proto.Message, capacity)}
	b = &Pipe{out: make(chan proto.Message, capacity)}
	a.in, b.in = b, a
	return a, b
}

func (p *Pipe) Recv(ctx context.Context) (proto.Message, error) {
	select {
	case msg, ok := <-p.in.out:
		if !ok {
			return nil, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipe) Send(ctx context.Context, msg proto.Message, _ bool) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	select {
	case p.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipe) Flush(context.Context) error { return nil }

func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.out)
	return nil
}
