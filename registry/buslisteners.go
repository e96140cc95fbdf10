package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// emitBusEvent fans a lifecycle event out to every started bus listener
// whose filters match it, deduplicating so a client with several matching
// listeners still sees the event once. Must be called with r.mu held; svc
// is nil for object-level events.
func (r *Registry) emitBusEvent(kind proto.BusEventKind, obj *Object, svc *Service) []Outbound {
	var svcCookie cookie.Cookie
	var svcUuid proto.ServiceUuid
	if svc != nil {
		svcCookie = svc.Cookie
		svcUuid = svc.Uuid
	}

	key := busEventKey{kind: kind, object: obj.Cookie, service: svcCookie}

	var out []Outbound
	for _, l := range r.busListeners {
		if !l.Started {
			continue
		}
		if !l.matches(kind, obj.Uuid, svcUuid) {
			continue
		}
		if r.dedupSeen(l.Owner, key) {
			continue
		}
		r.dedupMark(l.Owner, key)
		out = append(out, Outbound{To: l.Owner, Msg: proto.EmitBusEvent{
			Kind:          kind,
			ObjectCookie:  obj.Cookie,
			ObjectUuid:    obj.Uuid,
			ServiceCookie: svcCookie,
			ServiceUuid:   svcUuid,
		}})
	}
	return out
}

// CreateBusListener mints a new, stopped, filterless listener for caller.
func (r *Registry) CreateBusListener(caller connid.ID) (cookie.Cookie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.client(caller)
	if !ok {
		return cookie.Nil, ErrUnknownClient
	}

	c := r.newCookie()
	r.busListeners[c] = &BusListener{Cookie: c, Owner: caller}
	client.BusListeners[c] = struct{}{}
	return c, nil
}

// DestroyBusListener drops caller's listener.
func (r *Registry) DestroyBusListener(caller connid.ID, c cookie.Cookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyBusListener(caller, c, true)
}

func (r *Registry) destroyBusListener(caller connid.ID, c cookie.Cookie, checkOwner bool) error {
	l, ok := r.busListeners[c]
	if !ok {
		return ErrInvalidBusListener
	}
	if checkOwner && l.Owner != caller {
		return ErrNotOwner
	}
	delete(r.busListeners, c)
	if owner, ok := r.client(l.Owner); ok {
		delete(owner.BusListeners, c)
	}
	// The per-client dedup cache outlives any single listener: it is
	// only cleared on connection teardown (RemoveClient), never here, so
	// a second listener on the same client never re-observes an event
	// the first one already delivered.
	return nil
}

// AddBusListenerFilter adds one filter. Filters may only be changed while
// the listener is stopped.
func (r *Registry) AddBusListenerFilter(caller connid.ID, c cookie.Cookie, f proto.BusListenerFilter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.busListeners[c]
	if !ok {
		return ErrInvalidBusListener
	}
	if l.Owner != caller {
		return ErrNotOwner
	}
	if l.Started {
		return ErrBusListenerStarted
	}
	for _, existing := range l.Filters {
		if existing == f {
			return nil
		}
	}
	l.Filters = append(l.Filters, f)
	return nil
}

// RemoveBusListenerFilter removes one filter from a stopped listener.
func (r *Registry) RemoveBusListenerFilter(caller connid.ID, c cookie.Cookie, f proto.BusListenerFilter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.busListeners[c]
	if !ok {
		return ErrInvalidBusListener
	}
	if l.Owner != caller {
		return ErrNotOwner
	}
	if l.Started {
		return ErrBusListenerStarted
	}
	for i, existing := range l.Filters {
		if existing == f {
			l.Filters = append(l.Filters[:i], l.Filters[i+1:]...)
			return nil
		}
	}
	return nil
}

// ClearBusListenerFilters empties a stopped listener's filter set.
func (r *Registry) ClearBusListenerFilters(caller connid.ID, c cookie.Cookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.busListeners[c]
	if !ok {
		return ErrInvalidBusListener
	}
	if l.Owner != caller {
		return ErrNotOwner
	}
	if l.Started {
		return ErrBusListenerStarted
	}
	l.Filters = nil
	return nil
}

// StartBusListener arms the listener. When the scope includes current
// matches, it synthesizes one EmitBusEvent per already-live object and
// service this listener's filters match, followed by
// BusListenerCurrentFinished, exactly mirroring the dedup-cache semantics
// emitBusEvent uses for live events (same key space, so a live event
// racing the snapshot still counts only once).
func (r *Registry) StartBusListener(caller connid.ID, c cookie.Cookie, scope proto.BusListenerScope) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.busListeners[c]
	if !ok {
		return nil, ErrInvalidBusListener
	}
	if l.Owner != caller {
		return nil, ErrNotOwner
	}
	if l.Started {
		return nil, ErrBusListenerStarted
	}
	l.Scope = scope
	l.Started = true

	var out []Outbound
	if scope.IncludesCurrent() {
		for _, obj := range r.objects {
			if l.matches(proto.BusEventObjectCreated, obj.Uuid, proto.ServiceUuid{}) {
				key := busEventKey{kind: proto.BusEventObjectCreated, object: obj.Cookie}
				if !r.dedupSeen(l.Owner, key) {
					r.dedupMark(l.Owner, key)
					out = append(out, Outbound{To: l.Owner, Msg: proto.EmitBusEvent{
						Kind: proto.BusEventObjectCreated, ObjectCookie: obj.Cookie, ObjectUuid: obj.Uuid,
					}})
				}
			}
			for svcCookie := range obj.Services {
				svc := r.services[svcCookie]
				if l.matches(proto.BusEventServiceCreated, obj.Uuid, svc.Uuid) {
					key := busEventKey{kind: proto.BusEventServiceCreated, object: obj.Cookie, service: svc.Cookie}
					if !r.dedupSeen(l.Owner, key) {
						r.dedupMark(l.Owner, key)
						out = append(out, Outbound{To: l.Owner, Msg: proto.EmitBusEvent{
							Kind: proto.BusEventServiceCreated, ObjectCookie: obj.Cookie, ObjectUuid: obj.Uuid,
							ServiceCookie: svc.Cookie, ServiceUuid: svc.Uuid,
						}})
					}
				}
			}
		}
		out = append(out, Outbound{To: l.Owner, Msg: proto.BusListenerCurrentFinished{Cookie: c}})
	}
	return out, nil
}

// StopBusListener disarms the listener; emissions cease immediately.
func (r *Registry) StopBusListener(caller connid.ID, c cookie.Cookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.busListeners[c]
	if !ok {
		return ErrInvalidBusListener
	}
	if l.Owner != caller {
		return ErrNotOwner
	}
	if !l.Started {
		return ErrBusListenerNotStarted
	}
	l.Started = false
	return nil
}
