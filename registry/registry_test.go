package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
)

// testIDs is shared by every test helper in the package so that each client
// a test adds gets its own connection id.
var testIDs connid.Allocator

func newTestClient(t *testing.T, r *Registry) connid.ID {
	t.Helper()
	id := testIDs.Next()
	r.AddClient(id, proto.Version{Major: 1, Minor: proto.MinSupportedMinor})
	return id
}

func TestCreateObjectRejectsDuplicateUuid(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	uuid := proto.ObjectUuid{1, 2, 3}

	_, _, err := r.CreateObject(owner, uuid)
	require.NoError(t, err)

	_, _, err = r.CreateObject(owner, uuid)
	assert.ErrorIs(t, err, ErrDuplicateObject)
}

func TestCreateObjectUnknownClient(t *testing.T) {
	r := New()
	_, _, err := r.CreateObject(connid.ID(999), proto.ObjectUuid{1})
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestDestroyObjectRejectsForeignOwner(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	other := newTestClient(t, r)

	objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)

	_, err = r.DestroyObject(other, objCookie)
	assert.ErrorIs(t, err, ErrForeignObject)
}

func TestDestroyObjectCascadesToServices(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)

	objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)

	svcCookie, _, err := r.CreateService(owner, objCookie, proto.ServiceUuid{1}, proto.ServiceInfo{})
	require.NoError(t, err)

	_, err = r.DestroyObject(owner, objCookie)
	require.NoError(t, err)

	_, err = r.QueryServiceInfo(svcCookie)
	assert.ErrorIs(t, err, ErrInvalidService)
}

func TestCreateServiceRejectsDuplicateUuidWithinObject(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)

	uuid := proto.ServiceUuid{9}
	_, _, err = r.CreateService(owner, objCookie, uuid, proto.ServiceInfo{})
	require.NoError(t, err)

	_, _, err = r.CreateService(owner, objCookie, uuid, proto.ServiceInfo{})
	assert.ErrorIs(t, err, ErrDuplicateService)
}

func TestCallFunctionToUnknownServiceRepliesInvalidServiceToCaller(t *testing.T) {
	r := New()
	caller := newTestClient(t, r)

	out, err := r.CallFunction(caller, [16]byte{}, 7, 1, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, caller, out[0].To)
	reply, ok := out[0].Msg.(proto.CallFunctionReply)
	require.True(t, ok)
	assert.Equal(t, uint32(7), reply.Serial)
	assert.Equal(t, proto.CallFunctionInvalidService, reply.Result)
}

func TestCallFunctionForwardsToOwnerAndTranslatesSerial(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	caller := newTestClient(t, r)

	objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)
	svcCookie, _, err := r.CreateService(owner, objCookie, proto.ServiceUuid{1}, proto.ServiceInfo{})
	require.NoError(t, err)

	out, err := r.CallFunction(caller, svcCookie, 42, 5, "payload")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, owner, out[0].To)

	fwd, ok := out[0].Msg.(proto.CallFunction)
	require.True(t, ok)
	assert.Equal(t, svcCookie, fwd.ServiceCookie)
	assert.Equal(t, uint32(5), fwd.Function)
	assert.NotEqual(t, uint32(42), fwd.Serial, "broker serial must not equal caller serial once rewritten")

	replyOut, err := r.CallFunctionReply(owner, fwd.Serial, proto.CallFunctionOk, "result")
	require.NoError(t, err)
	require.Len(t, replyOut, 1)
	assert.Equal(t, caller, replyOut[0].To)
	reply, ok := replyOut[0].Msg.(proto.CallFunctionReply)
	require.True(t, ok)
	assert.Equal(t, uint32(42), reply.Serial)
	assert.Equal(t, proto.CallFunctionOk, reply.Result)
}

func TestCallFunctionReplyForUnknownBrokerSerialIsSilentlyDropped(t *testing.T) {
	r := New()
	callee := newTestClient(t, r)

	out, err := r.CallFunctionReply(callee, 12345, proto.CallFunctionOk, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestAbortFunctionCallNotifiesCallerAndReportsCallee(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	caller := newTestClient(t, r)

	objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)
	svcCookie, _, err := r.CreateService(owner, objCookie, proto.ServiceUuid{1}, proto.ServiceInfo{})
	require.NoError(t, err)

	_, err = r.CallFunction(caller, svcCookie, 1, 1, nil)
	require.NoError(t, err)

	out, fwd, err := r.AbortFunctionCall(caller, 1)
	require.NoError(t, err)
	require.True(t, fwd.OK())
	assert.Equal(t, owner, fwd.Callee)

	require.Len(t, out, 1)
	reply, ok := out[0].Msg.(proto.CallFunctionReply)
	require.True(t, ok)
	assert.Equal(t, proto.CallFunctionAborted, reply.Result)

	// A late CallFunctionReply for the aborted call is dropped.
	replyOut, err := r.CallFunctionReply(owner, fwd.BrokerSerial, proto.CallFunctionOk, nil)
	assert.NoError(t, err)
	assert.Nil(t, replyOut)
}

func TestAbortFunctionCallUnknownSerial(t *testing.T) {
	r := New()
	caller := newTestClient(t, r)
	_, _, err := r.AbortFunctionCall(caller, 999)
	assert.ErrorIs(t, err, ErrNoSuchCall)
}

func TestRemoveClientAbortsOutstandingCallsAndDestroysOwnedObjects(t *testing.T) {
	r := New()
	owner := newTestClient(t, r)
	caller := newTestClient(t, r)

	objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
	require.NoError(t, err)
	svcCookie, _, err := r.CreateService(owner, objCookie, proto.ServiceUuid{1}, proto.ServiceInfo{})
	require.NoError(t, err)

	_, err = r.CallFunction(caller, svcCookie, 1, 1, nil)
	require.NoError(t, err)

	out := r.RemoveClient(owner)
	require.NotEmpty(t, out)

	var sawAbortReply bool
	for _, o := range out {
		if reply, ok := o.Msg.(proto.CallFunctionReply); ok && o.To == caller {
			sawAbortReply = true
			assert.Equal(t, proto.CallFunctionInvalidService, reply.Result)
		}
	}
	assert.True(t, sawAbortReply, "caller should be notified the in-flight call's service died")

	_, err = r.QueryServiceInfo(svcCookie)
	assert.ErrorIs(t, err, ErrInvalidService)
	assert.False(t, r.HasClient(owner))
}

// Removing a caller mid-call tells a 1.16+ callee to stop working on the
// call; a pre-1.16 callee is left to reply into the void.
func TestRemoveClientNotifiesCalleeOfAbortedCalls(t *testing.T) {
	for _, tc := range []struct {
		name        string
		calleeMinor uint32
		wantAbort   bool
	}{
		{"new callee", proto.MinorAbortFunctionCall, true},
		{"old callee", proto.MinorAbortFunctionCall - 1, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			owner := testIDs.Next()
			r.AddClient(owner, proto.Version{Major: 1, Minor: tc.calleeMinor})
			caller := newTestClient(t, r)

			objCookie, _, err := r.CreateObject(owner, proto.ObjectUuid{1})
			require.NoError(t, err)
			svcCookie, _, err := r.CreateService(owner, objCookie, proto.ServiceUuid{1}, proto.ServiceInfo{})
			require.NoError(t, err)

			out, err := r.CallFunction(caller, svcCookie, 1, 1, nil)
			require.NoError(t, err)
			brokerSerial := out[0].Msg.(proto.CallFunction).Serial

			out = r.RemoveClient(caller)
			var sawAbort bool
			for _, o := range out {
				if abort, ok := o.Msg.(proto.AbortFunctionCall); ok {
					sawAbort = true
					assert.Equal(t, owner, o.To)
					assert.Equal(t, brokerSerial, abort.Serial)
				}
			}
			assert.Equal(t, tc.wantAbort, sawAbort)

			// Either way the pending call is gone: a late reply is silent.
			replyOut, err := r.CallFunctionReply(owner, brokerSerial, proto.CallFunctionOk, nil)
			require.NoError(t, err)
			assert.Empty(t, replyOut)
		})
	}
}

func TestClientVersionReportsNegotiatedVersion(t *testing.T) {
	r := New()
	id := newTestClient(t, r)
	v, ok := r.ClientVersion(id)
	require.True(t, ok)
	assert.Equal(t, uint32(proto.MinSupportedMinor), v.Minor)

	_, ok = r.ClientVersion(connid.ID(424242))
	assert.False(t, ok)
}
