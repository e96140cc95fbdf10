package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

// A non-owner's CloseChannelEnd against someone else's claimed end is a
// semantic error, not a protocol violation: Handle must not return an
// error (which broker.Handle.pump would treat as fatal and tear down the
// caller's own connection), only a structured reply.
func TestCloseChannelEndForeignEndIsSemanticErrorNotFatal(t *testing.T) {
	reg := registry.New()
	d := New(reg)
	v := proto.Version{Major: 1, Minor: proto.MinSupportedMinor}

	owner := newDispatchTestClient(t, reg)
	impostor := newDispatchTestClient(t, reg)

	out, err := d.Handle(owner, v, proto.CreateChannel{ClaimedEnd: proto.ChannelEndSender})
	require.NoError(t, err)
	require.Len(t, out, 1)
	c := out[0].Msg.(proto.CreateChannelReply).Cookie

	out, err = d.Handle(impostor, v, proto.CloseChannelEnd{Cookie: c, End: proto.ChannelEndSender})
	require.NoError(t, err, "a foreign channel-end close must not be treated as a protocol violation")
	require.Len(t, out, 1)
	reply, ok := out[0].Msg.(proto.CloseChannelEndReply)
	require.True(t, ok)
	assert.Equal(t, proto.CloseChannelEndSenderClaimed, reply.Result)
}

// Only the creator may close an end nobody has claimed yet.
func TestCloseChannelEndForeignUnclaimedEndIsSemanticErrorNotFatal(t *testing.T) {
	reg := registry.New()
	d := New(reg)
	v := proto.Version{Major: 1, Minor: proto.MinSupportedMinor}

	creator := newDispatchTestClient(t, reg)
	stranger := newDispatchTestClient(t, reg)

	out, err := d.Handle(creator, v, proto.CreateChannel{ClaimedEnd: proto.ChannelEndSender})
	require.NoError(t, err)
	c := out[0].Msg.(proto.CreateChannelReply).Cookie

	out, err = d.Handle(stranger, v, proto.CloseChannelEnd{Cookie: c, End: proto.ChannelEndReceiver})
	require.NoError(t, err)
	require.Len(t, out, 1)
	reply, ok := out[0].Msg.(proto.CloseChannelEndReply)
	require.True(t, ok)
	assert.Equal(t, proto.CloseChannelEndReceiverClaimed, reply.Result)
}
