package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// CreateService registers a new service on an object. The service UUID
// must be unique within its parent object.
func (r *Registry) CreateService(caller connid.ID, objCookie cookie.Cookie, uuid proto.ServiceUuid, info proto.ServiceInfo) (cookie.Cookie, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[objCookie]
	if !ok {
		return cookie.Nil, nil, ErrInvalidObject
	}
	if obj.Owner != caller {
		return cookie.Nil, nil, ErrForeignObject
	}
	for svcCookie := range obj.Services {
		if r.services[svcCookie].Uuid == uuid {
			return cookie.Nil, nil, ErrDuplicateService
		}
	}

	c := r.newCookie()
	svc := &Service{
		Cookie:           c,
		Uuid:             uuid,
		ObjectCookie:     objCookie,
		Owner:            obj.Owner,
		Info:             info,
		EventSubs:        make(map[proto.EventId]map[connid.ID]bool),
		SubscribeAllSubs: make(map[connid.ID]struct{}),
		pendingCalls:     make(map[uint32]*PendingCall),
		nextSerial:       1,
	}
	r.services[c] = svc
	obj.Services[c] = struct{}{}
	if owner, ok := r.client(obj.Owner); ok {
		owner.Services[c] = struct{}{}
	}

	out := r.emitBusEvent(proto.BusEventServiceCreated, obj, svc)
	out = append(out, r.notifyServiceLifecycle(obj, proto.BusEventServiceCreated, svc)...)
	return c, out, nil
}

// DestroyService removes a service, unsubscribing every subscriber and
// aborting every pending call against it.
func (r *Registry) DestroyService(caller connid.ID, c cookie.Cookie) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyService(caller, c, true)
}

func (r *Registry) destroyService(caller connid.ID, c cookie.Cookie, checkOwner bool) ([]Outbound, error) {
	svc, ok := r.services[c]
	if !ok {
		return nil, ErrInvalidService
	}
	if checkOwner && svc.Owner != caller {
		return nil, ErrForeignService
	}

	var out []Outbound

	// Abort every pending call against this service.
	for _, pc := range svc.pendingCalls {
		if pc.Aborted {
			continue
		}
		out = append(out, Outbound{To: pc.CallerConn, Msg: proto.CallFunctionReply{
			Serial: pc.CallerSerial,
			Result: proto.CallFunctionInvalidService,
		}})
		if caller, ok := r.client(pc.CallerConn); ok {
			delete(caller.OutboundCalls, pc.CallerSerial)
		}
	}
	svc.pendingCalls = make(map[uint32]*PendingCall)

	// Notify everyone currently holding an event subscription, then drop it.
	notified := make(map[connid.ID]struct{})
	for _, subs := range svc.EventSubs {
		for client := range subs {
			notified[client] = struct{}{}
		}
	}
	for client := range svc.SubscribeAllSubs {
		notified[client] = struct{}{}
	}
	for client := range notified {
		out = append(out, Outbound{To: client, Msg: proto.ServiceDestroyed{Cookie: c}})
		if cl, ok := r.client(client); ok {
			delete(cl.EventSubs, c)
			delete(cl.SubscribeAll, c)
		}
	}

	obj, hasObj := r.objects[svc.ObjectCookie]
	delete(r.services, c)
	if hasObj {
		delete(obj.Services, c)
		out = append(out, r.notifyServiceLifecycle(obj, proto.BusEventServiceDestroyed, svc)...)
	}
	if owner, ok := r.client(svc.Owner); ok {
		delete(owner.Services, c)
	}

	if hasObj {
		out = append(out, r.emitBusEvent(proto.BusEventServiceDestroyed, obj, svc)...)
	}
	return out, nil
}

// QueryServiceInfo returns the service's ServiceInfo.
func (r *Registry) QueryServiceInfo(c cookie.Cookie) (proto.ServiceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[c]
	if !ok {
		return proto.ServiceInfo{}, ErrInvalidService
	}
	return svc.Info, nil
}

// notifyServiceLifecycle delivers object-scoped service lifecycle
// notifications in the same EmitBusEvent shape a bus listener would see,
// without full listener filter/dedup machinery (each client can hold at
// most one such subscription per object, so dedup is trivial).
func (r *Registry) notifyServiceLifecycle(obj *Object, kind proto.BusEventKind, svc *Service) []Outbound {
	var out []Outbound
	for client := range obj.ServiceLifecycleSubs {
		out = append(out, Outbound{To: client, Msg: proto.EmitBusEvent{
			Kind:          kind,
			ObjectCookie:  obj.Cookie,
			ObjectUuid:    obj.Uuid,
			ServiceCookie: svc.Cookie,
			ServiceUuid:   svc.Uuid,
		}})
	}
	return out
}

// ServiceUuidOf reports the UUID of a currently-live service, for
// lifecycle hooks that fire after the service itself is gone.
func (r *Registry) ServiceUuidOf(c cookie.Cookie) (proto.ServiceUuid, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[c]
	if !ok {
		return proto.ServiceUuid{}, false
	}
	return svc.Uuid, true
}
