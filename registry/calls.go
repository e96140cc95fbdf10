package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// nextSerialLocked mints the next broker-side call serial for svc,
// skipping any value still in svc.pendingCalls. Wraparound is fine: only
// collision with a live pending call matters.
func (svc *Service) nextSerialLocked() uint32 {
	for {
		s := svc.nextSerial
		svc.nextSerial++
		if svc.nextSerial == 0 {
			svc.nextSerial = 1
		}
		if _, taken := svc.pendingCalls[s]; !taken && s != 0 {
			return s
		}
	}
}

// CallFunction starts a call against a service. On an invalid service it
// replies immediately to the caller; on success it mints a
// broker-side serial, records the translation, and forwards the call to
// the service owner.
func (r *Registry) CallFunction(caller connid.ID, serviceCookie cookie.Cookie, callerSerial uint32, function uint32, value any) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[serviceCookie]
	if !ok {
		return []Outbound{{To: caller, Msg: proto.CallFunctionReply{
			Serial: callerSerial,
			Result: proto.CallFunctionInvalidService,
		}}}, nil
	}

	brokerSerial := svc.nextSerialLocked()
	svc.pendingCalls[brokerSerial] = &PendingCall{
		BrokerSerial:  brokerSerial,
		CallerConn:    caller,
		CallerSerial:  callerSerial,
		ServiceCookie: serviceCookie,
	}
	if callerClient, ok := r.client(caller); ok {
		callerClient.OutboundCalls[callerSerial] = &outboundCall{serviceCookie: serviceCookie, brokerSerial: brokerSerial}
	}

	return []Outbound{{To: svc.Owner, Msg: proto.CallFunction{
		Serial:        brokerSerial,
		ServiceCookie: serviceCookie,
		Function:      function,
		Value:         value,
	}}}, nil
}

// CallFunctionReply resolves a pending call: rewrite the broker serial
// back to the caller's own serial, or drop silently if the call was
// already aborted.
func (r *Registry) CallFunctionReply(callee connid.ID, brokerSerial uint32, result proto.CallFunctionResultKind, value any) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, pc := r.findPendingCallByBrokerSerial(callee, brokerSerial)
	if pc == nil {
		return nil, nil // unknown or already-resolved call: silent
	}
	if pc.Aborted {
		delete(svc.pendingCalls, brokerSerial)
		return nil, nil
	}

	delete(svc.pendingCalls, brokerSerial)
	if callerClient, ok := r.client(pc.CallerConn); ok {
		delete(callerClient.OutboundCalls, pc.CallerSerial)
	}

	return []Outbound{{To: pc.CallerConn, Msg: proto.CallFunctionReply{
		Serial: pc.CallerSerial,
		Result: result,
		Value:  value,
	}}}, nil
}

func (r *Registry) findPendingCallByBrokerSerial(callee connid.ID, brokerSerial uint32) (*Service, *PendingCall) {
	for _, svc := range r.services {
		if svc.Owner != callee {
			continue
		}
		if pc, ok := svc.pendingCalls[brokerSerial]; ok {
			return svc, pc
		}
	}
	return nil, nil
}

// AbortFunctionCall cancels caller's pending call (protocol >= 1.16). The
// returned calleeForward lets the dispatcher decide whether to forward
// AbortFunctionCall to the callee: the caller always gets its aborted
// reply, but an older callee never sees the abort message.
func (r *Registry) AbortFunctionCall(caller connid.ID, callerSerial uint32) ([]Outbound, calleeForward, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	callerClient, ok := r.client(caller)
	if !ok {
		return nil, calleeForward{}, ErrUnknownClient
	}
	oc, ok := callerClient.OutboundCalls[callerSerial]
	if !ok {
		return nil, calleeForward{}, ErrNoSuchCall
	}

	svc, ok := r.services[oc.serviceCookie]
	out := []Outbound{{To: caller, Msg: proto.CallFunctionReply{
		Serial: callerSerial,
		Result: proto.CallFunctionAborted,
	}}}
	delete(callerClient.OutboundCalls, callerSerial)

	if !ok {
		return out, calleeForward{}, nil
	}
	if pc, ok := svc.pendingCalls[oc.brokerSerial]; ok {
		pc.Aborted = true
	}
	return out, calleeForward{Callee: svc.Owner, BrokerSerial: oc.brokerSerial, ok: true}, nil
}

// calleeForward tells the dispatcher whether, and to whom, an
// AbortFunctionCall should be forwarded — version-gating the forward is
// the dispatcher's job, not the registry's; the registry only reports who
// the callee is.
type calleeForward struct {
	Callee       connid.ID
	BrokerSerial uint32
	ok           bool
}

// OK reports whether a callee exists to forward to at all.
func (c calleeForward) OK() bool { return c.ok }
