package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis-hamester/aldrin/proto"
)

func TestStartBusListenerSynthesizesCurrentScopeThenFinishes(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	listenerOwner := newTestClient(t, r)

	objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)
	_, _, err = r.CreateService(owner, objCookie, proto.ServiceUuid{2}, proto.ServiceInfo{})
	require.NoError(t, err)

	lc, err := r.CreateBusListener(listenerOwner)
	require.NoError(t, err)
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, lc, proto.BusListenerFilter{Kind: proto.FilterAnyObject}))
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, lc, proto.BusListenerFilter{Kind: proto.FilterAnyServiceOfAnyObject}))

	out, err := r.StartBusListener(listenerOwner, lc, proto.ScopeCurrentOnly)
	require.NoError(t, err)
	require.Len(t, out, 3) // object-created + service-created + finished marker

	last := out[len(out)-1]
	_, ok := last.Msg.(proto.BusListenerCurrentFinished)
	assert.True(t, ok, "current-scope snapshot must end with BusListenerCurrentFinished")
	for _, o := range out {
		assert.Equal(t, listenerOwner, o.To)
	}
}

func TestStartBusListenerRejectsDoubleStart(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)

	lc, err := r.CreateBusListener(owner)
	require.NoError(t, err)
	_, err = r.StartBusListener(owner, lc, proto.ScopeNewOnly)
	require.NoError(t, err)

	_, err = r.StartBusListener(owner, lc, proto.ScopeNewOnly)
	assert.ErrorIs(t, err, ErrBusListenerStarted)
}

func TestAddBusListenerFilterRejectedOnceStarted(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)

	lc, err := r.CreateBusListener(owner)
	require.NoError(t, err)
	_, err = r.StartBusListener(owner, lc, proto.ScopeNewOnly)
	require.NoError(t, err)

	err = r.AddBusListenerFilter(owner, lc, proto.BusListenerFilter{Kind: proto.FilterAnyObject})
	assert.ErrorIs(t, err, ErrBusListenerStarted)
}

func TestNewObjectEventDeliveredOnceDespiteTwoMatchingFilters(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	listenerOwner := newTestClient(t, r)

	lc, err := r.CreateBusListener(listenerOwner)
	require.NoError(t, err)
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, lc, proto.BusListenerFilter{Kind: proto.FilterAnyObject}))
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, lc, proto.BusListenerFilter{
		Kind: proto.FilterSpecificObject, ObjectUuid: proto.ObjectUuid{1},
	}))
	_, err = r.StartBusListener(listenerOwner, lc, proto.ScopeNewOnly)
	require.NoError(t, err)

	_, out, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)
	require.Len(t, out, 1, "one bus event per client even with two matching filters")
}

// Two listeners on the same client, both matching everything, must still
// produce exactly one EmitBusEvent per lifecycle transition.
func TestOneBusEventPerClientAcrossTwoListeners(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	listenerOwner := newTestClient(t, r)

	first, err := r.CreateBusListener(listenerOwner)
	require.NoError(t, err)
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, first, proto.BusListenerFilter{Kind: proto.FilterAnyObject}))
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, first, proto.BusListenerFilter{Kind: proto.FilterAnyServiceOfAnyObject}))
	_, err = r.StartBusListener(listenerOwner, first, proto.ScopeNewOnly)
	require.NoError(t, err)

	second, err := r.CreateBusListener(listenerOwner)
	require.NoError(t, err)
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, second, proto.BusListenerFilter{Kind: proto.FilterAnyObject}))
	require.NoError(t, r.AddBusListenerFilter(listenerOwner, second, proto.BusListenerFilter{Kind: proto.FilterAnyServiceOfAnyObject}))
	_, err = r.StartBusListener(listenerOwner, second, proto.ScopeNewOnly)
	require.NoError(t, err)

	objCookie, out, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)
	assert.Len(t, out, 1, "object-created delivered once despite two matching listeners")

	svcCookie, out, err := r.CreateService(owner, objCookie, proto.ServiceUuid{1}, proto.ServiceInfo{})
	require.NoError(t, err)
	assert.Len(t, out, 1, "service-created delivered once")

	out, err = r.DestroyService(owner, svcCookie)
	require.NoError(t, err)
	assert.Len(t, out, 1, "service-destroyed delivered once")

	out, err = r.DestroyObject(owner, objCookie)
	require.NoError(t, err)
	assert.Len(t, out, 1, "object-destroyed delivered once")
}

func TestDestroyBusListenerRejectsNonOwner(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	impostor := newTestClient(t, r)

	lc, err := r.CreateBusListener(owner)
	require.NoError(t, err)

	err = r.DestroyBusListener(impostor, lc)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestStopBusListenerRequiresStarted(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)

	lc, err := r.CreateBusListener(owner)
	require.NoError(t, err)

	err = r.StopBusListener(owner, lc)
	assert.ErrorIs(t, err, ErrBusListenerNotStarted)
}
