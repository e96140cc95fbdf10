package conn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/transport"
)

func newTestConn(t *testing.T) (*Conn, *transport.Pipe) {
	local, remote := transport.NewPipePair(4)
	t.Cleanup(func() { _ = remote.Close() })
	c := New(connid.ID(1), local, DefaultConfig())
	return c, remote
}

func TestNewConnStartsHandshaking(t *testing.T) {
	c, _ := newTestConn(t)
	assert.Equal(t, StateHandshaking, c.State())
}

func TestNegotiateAdvancesState(t *testing.T) {
	tests := []struct {
		name    string
		client  proto.VersionWindow
		wantOK  bool
		wantMin uint32
	}{
		{"overlapping window", proto.VersionWindow{Min: 14, Max: 18}, true, 18},
		{"narrow client window", proto.VersionWindow{Min: 14, Max: 15}, true, 15},
		{"no overlap", proto.VersionWindow{Min: 99, Max: 100}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestConn(t)
			v, ok := c.Negotiate(tt.client)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantMin, v.Minor)
				assert.Equal(t, StateEstablished, c.State())
			} else {
				assert.Equal(t, StateHandshaking, c.State())
			}
		})
	}
}

func TestEnqueueDrainsInOrder(t *testing.T) {
	c, _ := newTestConn(t)
	_, _ = c.Negotiate(proto.VersionWindow{Min: 14, Max: 18})

	require.True(t, c.Enqueue(proto.Shutdown{}))
	require.True(t, c.Enqueue(proto.Sync{}))

	drained := c.DrainOutbound()
	require.Len(t, drained, 2)
	assert.Equal(t, proto.KindShutdown, drained[0].Kind())
	assert.Equal(t, proto.KindSync, drained[1].Kind())
	assert.Empty(t, c.DrainOutbound())
}

func TestEnqueueDropsOnOverflow(t *testing.T) {
	c, _ := newTestConn(t)
	c.cfg.SendQueueCapacity = 2

	assert.True(t, c.Enqueue(proto.Sync{}))
	assert.True(t, c.Enqueue(proto.Sync{}))
	assert.False(t, c.Enqueue(proto.Sync{}))
	assert.Equal(t, uint64(1), c.Dropped())
}

func TestCloseIsIdempotentAndUnblocksClosed(t *testing.T) {
	c, _ := newTestConn(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateTerminated, c.State())

	select {
	case <-c.Closed():
	default:
		t.Fatal("expected Closed() channel to be closed")
	}

	_, err := c.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEnqueueSignalsOutboundReady(t *testing.T) {
	c, _ := newTestConn(t)
	require.True(t, c.Enqueue(proto.Sync{}))
	select {
	case <-c.OutboundReady():
	default:
		t.Fatal("expected a ready signal after Enqueue")
	}
}

func TestShutdownSignalsRequestedIdempotently(t *testing.T) {
	c, _ := newTestConn(t)
	c.Shutdown()
	c.Shutdown()
	select {
	case <-c.ShutdownRequested():
	default:
		t.Fatal("expected shutdown channel to be closed")
	}
	assert.Equal(t, StateShuttingDown, c.State())
}

func TestShutdownOnlyFromLiveStates(t *testing.T) {
	c, _ := newTestConn(t)
	require.NoError(t, c.Close())
	c.Shutdown()
	assert.Equal(t, StateTerminated, c.State())
}
