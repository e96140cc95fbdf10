package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

func newDispatchTestClientAtVersion(t *testing.T, reg *registry.Registry, minor uint32) connid.ID {
	t.Helper()
	id := testIDs.Next()
	reg.AddClient(id, proto.Version{Major: 1, Minor: minor})
	return id
}

// Two requesters that happen to choose the same client-side serial
// against the same owner must each get their own reply, correctly
// routed, end to end through Handle — the collision the broker-minted
// serial exists to prevent.
func TestQueryIntrospectionRepliesRouteCorrectlyOnSerialCollision(t *testing.T) {
	reg := registry.New()
	d := New(reg)
	v := proto.Version{Major: 1, Minor: proto.MinorIntrospection}

	owner := newDispatchTestClientAtVersion(t, reg, proto.MinorIntrospection)
	a := newDispatchTestClientAtVersion(t, reg, proto.MinorIntrospection)
	b := newDispatchTestClientAtVersion(t, reg, proto.MinorIntrospection)

	out, err := d.Handle(owner, v, proto.RegisterIntrospection{Type: proto.TypeId{5}})
	require.NoError(t, err)
	assert.Empty(t, out)

	const sharedSerial = 0
	outA, err := d.Handle(a, v, proto.QueryIntrospection{Serial: sharedSerial, Type: proto.TypeId{5}})
	require.NoError(t, err)
	require.Len(t, outA, 1)
	fwdA := outA[0].Msg.(proto.QueryIntrospection)
	require.Equal(t, owner, outA[0].To)

	outB, err := d.Handle(b, v, proto.QueryIntrospection{Serial: sharedSerial, Type: proto.TypeId{5}})
	require.NoError(t, err)
	require.Len(t, outB, 1)
	fwdB := outB[0].Msg.(proto.QueryIntrospection)
	require.Equal(t, owner, outB[0].To)

	require.NotEqual(t, fwdA.Serial, fwdB.Serial, "broker-side serials forwarded to the owner must differ")

	replyOut, err := d.Handle(owner, v, proto.QueryIntrospectionReply{
		Serial: fwdB.Serial, Result: proto.QueryIntrospectionOk, Value: "for-b",
	})
	require.NoError(t, err)
	require.Len(t, replyOut, 1)
	assert.Equal(t, b, replyOut[0].To)
	reply := replyOut[0].Msg.(proto.QueryIntrospectionReply)
	assert.Equal(t, uint32(sharedSerial), reply.Serial)
	assert.Equal(t, "for-b", reply.Value)

	replyOut, err = d.Handle(owner, v, proto.QueryIntrospectionReply{
		Serial: fwdA.Serial, Result: proto.QueryIntrospectionOk, Value: "for-a",
	})
	require.NoError(t, err)
	require.Len(t, replyOut, 1)
	assert.Equal(t, a, replyOut[0].To)
	reply = replyOut[0].Msg.(proto.QueryIntrospectionReply)
	assert.Equal(t, uint32(sharedSerial), reply.Serial)
	assert.Equal(t, "for-a", reply.Value)
}
