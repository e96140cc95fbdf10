package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// RemoveClient releases every resource a disconnecting connection held,
// in dependency order, so each step's cascade sees consistent state.
func (r *Registry) RemoveClient(id connid.ID) []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		return nil
	}

	var out []Outbound

	// Bus listeners first: stop them seeing further events from the
	// teardown that follows.
	for c := range client.BusListeners {
		_ = r.destroyBusListener(id, c, false)
	}

	// Abort every outbound call this client made as a caller. A callee
	// new enough to understand AbortFunctionCall is told to stop working
	// on the call; older callees just have their eventual reply dropped.
	for _, oc := range client.OutboundCalls {
		svc, ok := r.services[oc.serviceCookie]
		if !ok {
			continue
		}
		if _, live := svc.pendingCalls[oc.brokerSerial]; !live {
			continue
		}
		delete(svc.pendingCalls, oc.brokerSerial)
		if owner, ok := r.clients[svc.Owner]; ok && proto.Allowed(proto.KindAbortFunctionCall, owner.Version) {
			out = append(out, Outbound{To: svc.Owner, Msg: proto.AbortFunctionCall{Serial: oc.brokerSerial}})
		}
	}

	// Services this client owns are destroyed, cascading pending-call
	// aborts and subscriber notifications.
	for c := range cloneSet(client.Services) {
		svcOut, _ := r.destroyService(id, c, false)
		out = append(out, svcOut...)
	}

	// Objects this client owns cascade to their remaining services too.
	for c := range cloneSet(client.Objects) {
		objOut, _ := r.destroyObject(id, c, false)
		out = append(out, objOut...)
	}

	// Channel ends this client claimed are closed, notifying any live
	// peer on the other end.
	for c := range cloneSet(client.ChannelEnds) {
		ch, ok := r.channels[c]
		if !ok {
			continue
		}
		for _, end := range [2]proto.ChannelEnd{proto.ChannelEndSender, proto.ChannelEndReceiver} {
			state := ch.end(end)
			if state.Claimed && state.Owner == id && !state.Closed {
				_, closeOut, _ := r.closeChannelEndLocked(id, c, end)
				out = append(out, closeOut...)
			}
		}
	}

	// Event subscriptions this client held are removed, forwarding
	// unsubscribe-event / unsubscribe-all-events to the owner exactly as
	// an explicit Unsubscribe* would if this client's departure makes it
	// the last notifying subscriber.
	for svcCookie, events := range cloneEventSubs(client.EventSubs) {
		for event := range events {
			out = append(out, r.unsubscribeEventLocked(id, svcCookie, event)...)
		}
	}
	for svcCookie := range cloneSet(client.SubscribeAll) {
		out = append(out, r.unsubscribeAllEventsLocked(id, svcCookie)...)
	}
	for objCookie := range client.ServiceLifecycleSubs {
		if obj, ok := r.objects[objCookie]; ok {
			delete(obj.ServiceLifecycleSubs, id)
		}
	}

	for t, owner := range r.introspectionOwners {
		if owner == id {
			delete(r.introspectionOwners, t)
		}
	}
	for key := range r.pendingIntrospection {
		if key.owner == id {
			delete(r.pendingIntrospection, key)
		}
	}

	delete(r.busDedup, id)
	delete(r.clients, id)
	return out
}

func cloneSet(m map[cookie.Cookie]struct{}) map[cookie.Cookie]struct{} {
	out := make(map[cookie.Cookie]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// cloneEventSubs snapshots a client's per-service event-subscription set
// so RemoveClient can iterate it while unsubscribeEventLocked mutates the
// live maps underneath.
func cloneEventSubs(m map[cookie.Cookie]map[proto.EventId]bool) map[cookie.Cookie]map[proto.EventId]bool {
	out := make(map[cookie.Cookie]map[proto.EventId]bool, len(m))
	for svcCookie, events := range m {
		evCopy := make(map[proto.EventId]bool, len(events))
		for ev, notify := range events {
			evCopy[ev] = notify
		}
		out[svcCookie] = evCopy
	}
	return out
}
