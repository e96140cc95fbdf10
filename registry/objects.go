package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// CreateObject registers a new object for owner. The UUID must not
// currently exist among live objects.
func (r *Registry) CreateObject(owner connid.ID, uuid proto.ObjectUuid) (cookie.Cookie, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.client(owner)
	if !ok {
		return cookie.Nil, nil, ErrUnknownClient
	}
	if _, exists := r.objectsByUUID[uuid]; exists {
		return cookie.Nil, nil, ErrDuplicateObject
	}

	c := r.newCookie()
	obj := &Object{
		Cookie:               c,
		Uuid:                 uuid,
		Owner:                owner,
		Services:             make(map[cookie.Cookie]struct{}),
		ServiceLifecycleSubs: make(map[connid.ID]struct{}),
	}
	r.objects[c] = obj
	r.objectsByUUID[uuid] = c
	client.Objects[c] = struct{}{}

	out := r.emitBusEvent(proto.BusEventObjectCreated, obj, nil)
	return c, out, nil
}

// DestroyObject removes an object, cascading to every child service
// before removing the object itself.
func (r *Registry) DestroyObject(caller connid.ID, c cookie.Cookie) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyObject(caller, c, true)
}

// destroyObject must be called with r.mu held. checkOwner is false when
// invoked as part of connection teardown, where every object the
// disconnecting client owns is destroyed regardless of a "caller" concept.
func (r *Registry) destroyObject(caller connid.ID, c cookie.Cookie, checkOwner bool) ([]Outbound, error) {
	obj, ok := r.objects[c]
	if !ok {
		return nil, ErrInvalidObject
	}
	if checkOwner && obj.Owner != caller {
		return nil, ErrForeignObject
	}

	var out []Outbound
	for svcCookie := range obj.Services {
		svcOut, _ := r.destroyService(obj.Owner, svcCookie, false)
		out = append(out, svcOut...)
	}

	delete(r.objectsByUUID, obj.Uuid)
	delete(r.objects, c)
	if owner, ok := r.client(obj.Owner); ok {
		delete(owner.Objects, c)
	}

	out = append(out, r.emitBusEvent(proto.BusEventObjectDestroyed, obj, nil)...)
	return out, nil
}

// ObjectUuidOf reports the UUID of a currently-live object, for lifecycle
// hooks that fire after the object itself is gone.
func (r *Registry) ObjectUuidOf(c cookie.Cookie) (proto.ObjectUuid, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[c]
	if !ok {
		return proto.ObjectUuid{}, false
	}
	return obj.Uuid, true
}
