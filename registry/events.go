package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// notifyingCount counts how many subscribers in subs asked to have the
// owner notified: the broker forwards SubscribeEvent on the *first* such
// subscriber and UnsubscribeEvent on the *last*.
func notifyingCount(subs map[connid.ID]bool) int {
	n := 0
	for _, notify := range subs {
		if notify {
			n++
		}
	}
	return n
}

// SubscribeEvent records caller as a subscriber of event. The broker
// forwards a SubscribeEvent to the owner only on the first subscriber that
// asked to have the owner notified for this event, and never at all if a
// subscribe-all subscription is already in effect on this service (the
// owner is already being told to emit everything).
func (r *Registry) SubscribeEvent(caller connid.ID, serviceCookie cookie.Cookie, event proto.EventId, notifyOwner bool) (proto.SubscribeEventResult, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[serviceCookie]
	if !ok {
		return proto.SubscribeEventInvalidService, nil, nil
	}

	subs, ok := svc.EventSubs[event]
	if !ok {
		subs = make(map[connid.ID]bool)
		svc.EventSubs[event] = subs
	}
	before := notifyingCount(subs)
	subs[caller] = notifyOwner
	after := notifyingCount(subs)

	client, ok := r.client(caller)
	if !ok {
		return 0, nil, ErrUnknownClient
	}
	perService, ok := client.EventSubs[serviceCookie]
	if !ok {
		perService = make(map[proto.EventId]bool)
		client.EventSubs[serviceCookie] = perService
	}
	perService[event] = notifyOwner

	var out []Outbound
	if before == 0 && after > 0 && svc.Owner != caller && len(svc.SubscribeAllSubs) == 0 {
		out = append(out, Outbound{To: svc.Owner, Msg: proto.SubscribeEvent{
			ServiceCookie: serviceCookie, Event: event, NotifyOwner: true,
		}})
	}
	return proto.SubscribeEventOk, out, nil
}

// UnsubscribeEvent drops caller's subscription of event. The broker
// forwards to the owner only once the last notifying subscriber for this
// event is gone, and never if subscribe-all already suppressed the
// original subscribe-event forward.
func (r *Registry) UnsubscribeEvent(caller connid.ID, serviceCookie cookie.Cookie, event proto.EventId) []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeEventLocked(caller, serviceCookie, event)
}

// unsubscribeEventLocked is UnsubscribeEvent's logic assuming r.mu is
// already held, shared with connection teardown — dropping a held
// subscription during teardown follows the same last-notifier rule.
func (r *Registry) unsubscribeEventLocked(caller connid.ID, serviceCookie cookie.Cookie, event proto.EventId) []Outbound {
	svc, ok := r.services[serviceCookie]
	if !ok {
		return nil
	}

	subs := svc.EventSubs[event]
	before := notifyingCount(subs)
	delete(subs, caller)
	after := notifyingCount(subs)
	if len(subs) == 0 {
		delete(svc.EventSubs, event)
	}

	if client, ok := r.client(caller); ok {
		delete(client.EventSubs[serviceCookie], event)
		if len(client.EventSubs[serviceCookie]) == 0 {
			delete(client.EventSubs, serviceCookie)
		}
	}

	if before > 0 && after == 0 && svc.Owner != caller && len(svc.SubscribeAllSubs) == 0 {
		return []Outbound{{To: svc.Owner, Msg: proto.UnsubscribeEvent{
			ServiceCookie: serviceCookie, Event: event,
		}}}
	}
	return nil
}

// EmitEvent fans the event out to every subscriber of this event id plus
// every subscribe-all subscriber, each exactly once even if subscribed
// both ways.
func (r *Registry) EmitEvent(caller connid.ID, serviceCookie cookie.Cookie, event proto.EventId, value any) []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[serviceCookie]
	if !ok || svc.Owner != caller {
		return nil
	}

	seen := make(map[connid.ID]struct{})
	var out []Outbound
	for client := range svc.EventSubs[event] {
		seen[client] = struct{}{}
		out = append(out, Outbound{To: client, Msg: proto.EmitEvent{
			ServiceCookie: serviceCookie, Event: event, Value: value,
		}})
	}
	for client := range svc.SubscribeAllSubs {
		if _, dup := seen[client]; dup {
			continue
		}
		out = append(out, Outbound{To: client, Msg: proto.EmitEvent{
			ServiceCookie: serviceCookie, Event: event, Value: value,
		}})
	}
	return out
}

// SubscribeAllEvents subscribes caller to every event of the service
// (protocol >= 1.18): the broker forwards SubscribeAllEvents to the owner
// on the first subscriber.
func (r *Registry) SubscribeAllEvents(caller connid.ID, serviceCookie cookie.Cookie) (proto.SubscribeAllEventsResult, []Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[serviceCookie]
	if !ok {
		return proto.SubscribeAllEventsInvalidService, nil
	}
	if !svc.Info.SubscribeAll {
		return proto.SubscribeAllEventsNotSupported, nil
	}

	wasEmpty := len(svc.SubscribeAllSubs) == 0
	svc.SubscribeAllSubs[caller] = struct{}{}
	if client, ok := r.client(caller); ok {
		client.SubscribeAll[serviceCookie] = struct{}{}
	}

	var out []Outbound
	if wasEmpty && svc.Owner != caller {
		out = append(out, Outbound{To: svc.Owner, Msg: proto.SubscribeAllEvents{ServiceCookie: serviceCookie}})
	}
	return proto.SubscribeAllEventsOk, out
}

// UnsubscribeAllEvents drops caller's whole-service subscription: the
// broker forwards UnsubscribeAllEvents to the owner after the last
// subscriber is gone.
func (r *Registry) UnsubscribeAllEvents(caller connid.ID, serviceCookie cookie.Cookie) (proto.UnsubscribeAllEventsResult, []Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[serviceCookie]; !ok {
		return proto.UnsubscribeAllEventsNotSubscribed, nil
	}
	if _, ok := r.services[serviceCookie].SubscribeAllSubs[caller]; !ok {
		return proto.UnsubscribeAllEventsNotSubscribed, nil
	}
	return proto.UnsubscribeAllEventsOk, r.unsubscribeAllEventsLocked(caller, serviceCookie)
}

// unsubscribeAllEventsLocked is UnsubscribeAllEvents's forwarding logic
// assuming r.mu is already held and caller is known to be subscribed,
// shared with connection teardown.
func (r *Registry) unsubscribeAllEventsLocked(caller connid.ID, serviceCookie cookie.Cookie) []Outbound {
	svc, ok := r.services[serviceCookie]
	if !ok {
		return nil
	}
	delete(svc.SubscribeAllSubs, caller)
	if client, ok := r.client(caller); ok {
		delete(client.SubscribeAll, serviceCookie)
	}

	var out []Outbound
	if len(svc.SubscribeAllSubs) == 0 && svc.Owner != caller {
		out = append(out, Outbound{To: svc.Owner, Msg: proto.UnsubscribeAllEvents{ServiceCookie: serviceCookie}})
	}
	return out
}

// SubscribeService subscribes caller to service-lifecycle changes on an
// object (protocol >= 1.18).
func (r *Registry) SubscribeService(caller connid.ID, objCookie cookie.Cookie) proto.SubscribeServiceResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.objects[objCookie]
	if !ok {
		return proto.SubscribeServiceInvalidObject
	}
	obj.ServiceLifecycleSubs[caller] = struct{}{}
	if client, ok := r.client(caller); ok {
		client.ServiceLifecycleSubs[objCookie] = struct{}{}
	}
	return proto.SubscribeServiceOk
}

// UnsubscribeService drops caller's service-lifecycle subscription.
func (r *Registry) UnsubscribeService(caller connid.ID, objCookie cookie.Cookie) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if obj, ok := r.objects[objCookie]; ok {
		delete(obj.ServiceLifecycleSubs, caller)
	}
	if client, ok := r.client(caller); ok {
		delete(client.ServiceLifecycleSubs, objCookie)
	}
}
