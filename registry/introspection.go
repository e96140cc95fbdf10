package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
)

// RegisterIntrospection (protocol >= 1.17) records which connection
// answers for a type id. A later registration from a different connection
// simply replaces the owner — introspection data is advisory, not
// access-controlled.
func (r *Registry) RegisterIntrospection(caller connid.ID, t proto.TypeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.introspectionOwners[t] = caller
}

// nextIntrospectionSerialLocked mints the next broker-side serial for an
// introspection query forwarded to owner, skipping any value still
// pending for that owner — the same wraparound-plus-collision-skip shape
// as Service.nextSerialLocked, scoped per owner connection instead of per
// service. Two different requesters querying the same owner must never be
// handed the same broker serial, or the owner's replies would be
// misrouted or dropped.
func (r *Registry) nextIntrospectionSerialLocked(owner *Client) uint32 {
	for {
		s := owner.nextIntrospectionSerial
		owner.nextIntrospectionSerial++
		if owner.nextIntrospectionSerial == 0 {
			owner.nextIntrospectionSerial = 1
		}
		if _, taken := r.pendingIntrospection[introspectionKey{owner: owner.ID, serial: s}]; !taken && s != 0 {
			return s
		}
	}
}

// QueryIntrospection forwards a type-descriptor request to the
// connection registered for the type id. When the only viable owner
// negotiated below MinorIntrospection (<1.17), the broker answers
// NotSupported itself instead of forwarding a message that connection
// could never have registered a handler for.
func (r *Registry) QueryIntrospection(requester connid.ID, requesterSerial uint32, t proto.TypeId) ([]Outbound, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.introspectionOwners[t]
	if !ok {
		return []Outbound{{To: requester, Msg: proto.QueryIntrospectionReply{
			Serial: requesterSerial, Result: proto.QueryIntrospectionNotSupported,
		}}}, false
	}

	ownerClient, ok := r.client(owner)
	if !ok || !ownerClient.Version.AtLeast(proto.MinorIntrospection) {
		return []Outbound{{To: requester, Msg: proto.QueryIntrospectionReply{
			Serial: requesterSerial, Result: proto.QueryIntrospectionNotSupported,
		}}}, false
	}

	brokerSerial := r.nextIntrospectionSerialLocked(ownerClient)
	r.pendingIntrospection[introspectionKey{owner: owner, serial: brokerSerial}] = introspectionCall{
		requester: requester, requesterSerial: requesterSerial,
	}
	return []Outbound{{To: owner, Msg: proto.QueryIntrospection{Serial: brokerSerial, Type: t}}}, true
}

// QueryIntrospectionReply implements the broker-side half of forwarding an
// owner's introspection answer back to the original requester, rewriting
// the broker serial back to the requester's own serial. owner is the
// connection that sent the reply; brokerSerial is the serial
// QueryIntrospection minted for it.
func (r *Registry) QueryIntrospectionReply(owner connid.ID, brokerSerial uint32, result proto.QueryIntrospectionResult, value any) (connid.ID, uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := introspectionKey{owner: owner, serial: brokerSerial}
	call, ok := r.pendingIntrospection[key]
	if !ok {
		return 0, 0, false
	}
	delete(r.pendingIntrospection, key)
	return call.requester, call.requesterSerial, true
}
