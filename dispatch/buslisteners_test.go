package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

// testIDs is shared by every test helper in the package so that each client
// a test adds gets its own connection id.
var testIDs connid.Allocator

func newDispatchTestClient(t *testing.T, reg *registry.Registry) connid.ID {
	t.Helper()
	id := testIDs.Next()
	reg.AddClient(id, proto.Version{Major: 1, Minor: proto.MinSupportedMinor})
	return id
}

// A non-owner operating on someone else's bus listener gets a structured
// "foreign" reply and stays connected, the same treatment foreign objects
// and foreign services already get.
func TestDestroyBusListenerByNonOwnerIsSemanticErrorNotFatal(t *testing.T) {
	reg := registry.New()
	d := New(reg)
	owner := newDispatchTestClient(t, reg)
	impostor := newDispatchTestClient(t, reg)

	out, err := d.Handle(owner, proto.Version{Major: 1, Minor: proto.MinSupportedMinor}, proto.CreateBusListener{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	c := out[0].Msg.(proto.CreateBusListenerReply).Cookie

	out, err = d.Handle(impostor, proto.Version{Major: 1, Minor: proto.MinSupportedMinor}, proto.DestroyBusListener{Cookie: c})
	require.NoError(t, err, "a foreign-resource attempt must not be treated as a protocol violation")
	require.Len(t, out, 1)
	reply, ok := out[0].Msg.(proto.DestroyBusListenerReply)
	require.True(t, ok)
	assert.Equal(t, proto.DestroyBusListenerForeignBusListener, reply.Result)
}

func TestStartAndStopBusListenerByNonOwnerIsSemanticErrorNotFatal(t *testing.T) {
	reg := registry.New()
	d := New(reg)
	owner := newDispatchTestClient(t, reg)
	impostor := newDispatchTestClient(t, reg)
	v := proto.Version{Major: 1, Minor: proto.MinSupportedMinor}

	out, err := d.Handle(owner, v, proto.CreateBusListener{})
	require.NoError(t, err)
	c := out[0].Msg.(proto.CreateBusListenerReply).Cookie

	out, err = d.Handle(impostor, v, proto.StartBusListener{Cookie: c, Scope: proto.ScopeNewOnly})
	require.NoError(t, err)
	require.Len(t, out, 1)
	startReply, ok := out[0].Msg.(proto.StartBusListenerReply)
	require.True(t, ok)
	assert.Equal(t, proto.StartBusListenerForeignBusListener, startReply.Result)

	out, err = d.Handle(impostor, v, proto.StopBusListener{Cookie: c})
	require.NoError(t, err)
	require.Len(t, out, 1)
	stopReply, ok := out[0].Msg.(proto.StopBusListenerReply)
	require.True(t, ok)
	assert.Equal(t, proto.StopBusListenerForeignBusListener, stopReply.Result)
}

// The filter-mutation messages have no Reply in the protocol; errors from
// them (invalid listener, foreign owner, already started) are silently
// swallowed rather than tearing down the connection.
func TestBusListenerFilterMessagesSwallowErrorsSilently(t *testing.T) {
	reg := registry.New()
	d := New(reg)
	impostor := newDispatchTestClient(t, reg)
	v := proto.Version{Major: 1, Minor: proto.MinSupportedMinor}

	var nonexistent cookie.Cookie
	out, err := d.Handle(impostor, v, proto.AddBusListenerFilter{
		Cookie: nonexistent,
		Filter: proto.BusListenerFilter{Kind: proto.FilterAnyObject},
	})
	require.NoError(t, err, "invalid-listener error on a no-Reply message must not be fatal")
	assert.Empty(t, out)

	out, err = d.Handle(impostor, v, proto.RemoveBusListenerFilter{
		Cookie: nonexistent,
		Filter: proto.BusListenerFilter{Kind: proto.FilterAnyObject},
	})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = d.Handle(impostor, v, proto.ClearBusListenerFilters{Cookie: nonexistent})
	require.NoError(t, err)
	assert.Empty(t, out)
}
