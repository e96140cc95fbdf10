// Package registry holds the broker's authoritative in-memory tables:
// objects, services, pending calls, channels, bus listeners, event
// subscriptions. Every operation is atomic with respect to the registry's
// single mutex; this package never blocks inside that lock and never talks
// to a Transport directly — it only produces Outbound values, which package
// dispatch returns and package broker delivers.
//
// There are no owning pointers between entities, only cookies and
// connid.IDs as indices into these maps. Destruction traverses indices, so
// the client → object → service → subscriber → client cycle never needs
// breaking.
package registry

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// Client is the per-connection bookkeeping root: every resource a
// connected peer can reach is indexed from here, so connection teardown
// can release everything in one pass.
type Client struct {
	ID      connid.ID
	Version proto.Version

	Objects      map[cookie.Cookie]struct{}
	Services     map[cookie.Cookie]struct{}
	ChannelEnds  map[cookie.Cookie]struct{} // channels with an end claimed (or created-unclaimed) by this client
	BusListeners map[cookie.Cookie]struct{}

	// OutboundCalls: this client is the caller. caller-serial -> tracking.
	OutboundCalls map[uint32]*outboundCall

	// EventSubs: service cookie -> event id -> wants-owner-notified.
	EventSubs map[cookie.Cookie]map[proto.EventId]bool
	// SubscribeAll: service cookies this client subscribed to at
	// subscribe-all granularity (protocol >= 1.18).
	SubscribeAll map[cookie.Cookie]struct{}
	// ServiceLifecycleSubs: object cookie -> subscribed via
	// SubscribeService (protocol >= 1.18).
	ServiceLifecycleSubs map[cookie.Cookie]struct{}

	// nextIntrospectionSerial mints broker-side serials for
	// QueryIntrospection requests forwarded to this client as owner, the
	// same per-owner counter shape as Service.nextSerial.
	nextIntrospectionSerial uint32
}

type outboundCall struct {
	serviceCookie cookie.Cookie
	brokerSerial  uint32
}

func newClient(id connid.ID, v proto.Version) *Client {
	return &Client{
		ID:                   id,
		Version:              v,
		Objects:              make(map[cookie.Cookie]struct{}),
		Services:             make(map[cookie.Cookie]struct{}),
		ChannelEnds:          make(map[cookie.Cookie]struct{}),
		BusListeners:         make(map[cookie.Cookie]struct{}),
		OutboundCalls:        make(map[uint32]*outboundCall),
		EventSubs:            make(map[cookie.Cookie]map[proto.EventId]bool),
		SubscribeAll:         make(map[cookie.Cookie]struct{}),
		ServiceLifecycleSubs: make(map[cookie.Cookie]struct{}),
	}
}

// Object is owned by exactly one client.
type Object struct {
	Cookie   cookie.Cookie
	Uuid     proto.ObjectUuid
	Owner    connid.ID
	Services map[cookie.Cookie]struct{}

	// ServiceLifecycleSubs: clients subscribed via SubscribeService.
	ServiceLifecycleSubs map[connid.ID]struct{}
}

// Service carries its ServiceInfo plus the broker-side bookkeeping: event
// subscriber sets, the subscribe-all set, and the per-service call-serial
// translation table.
type Service struct {
	Cookie       cookie.Cookie
	Uuid         proto.ServiceUuid
	ObjectCookie cookie.Cookie
	Owner        connid.ID
	Info         proto.ServiceInfo

	// EventSubs: event id -> subscriber client -> wants-owner-notified.
	EventSubs map[proto.EventId]map[connid.ID]bool
	// SubscribeAllSubs: clients subscribed at subscribe-all granularity.
	SubscribeAllSubs map[connid.ID]struct{}

	pendingCalls map[uint32]*PendingCall
	nextSerial   uint32
}

// PendingCall tracks one in-flight function call: broker-minted serial,
// caller client, caller's own serial, and the service the call targets.
type PendingCall struct {
	BrokerSerial  uint32
	CallerConn    connid.ID
	CallerSerial  uint32
	ServiceCookie cookie.Cookie
	Aborted       bool
}

// ChannelEndState is one end of a Channel: unclaimed, claimed by a client
// (with credit capacity on the receiver side), or closed.
type ChannelEndState struct {
	Claimed  bool
	Owner    connid.ID
	Capacity uint32 // meaningful only for the receiver end
	Closed   bool
}

// Channel has two independently-stated ends.
type Channel struct {
	Cookie   cookie.Cookie
	Creator  connid.ID
	Sender   ChannelEndState
	Receiver ChannelEndState
}

func (c *Channel) end(e proto.ChannelEnd) *ChannelEndState {
	if e == proto.ChannelEndSender {
		return &c.Sender
	}
	return &c.Receiver
}

// bothEndsClosed reports whether the channel has no more live ends and can
// be deleted from the registry.
func (c *Channel) bothEndsClosed() bool {
	return c.Sender.Closed && c.Receiver.Closed
}

// BusListener is a per-client filter set plus scope and armed/disarmed
// state.
type BusListener struct {
	Cookie  cookie.Cookie
	Owner   connid.ID
	Filters []proto.BusListenerFilter
	Scope   proto.BusListenerScope
	Started bool
}

func (l *BusListener) matches(kind proto.BusEventKind, objUuid proto.ObjectUuid, svcUuid proto.ServiceUuid) bool {
	isService := kind == proto.BusEventServiceCreated || kind == proto.BusEventServiceDestroyed
	for _, f := range l.Filters {
		switch f.Kind {
		case proto.FilterAnyObject:
			if !isService {
				return true
			}
		case proto.FilterSpecificObject:
			if !isService && f.ObjectUuid == objUuid {
				return true
			}
		case proto.FilterAnyServiceOfAnyObject:
			if isService {
				return true
			}
		case proto.FilterAnyServiceOfSpecificObject:
			if isService && f.ObjectUuid == objUuid {
				return true
			}
		case proto.FilterSpecificServiceOfAnyObject:
			if isService && f.ServiceUuid == svcUuid {
				return true
			}
		case proto.FilterSpecificService:
			if isService && f.ObjectUuid == objUuid && f.ServiceUuid == svcUuid {
				return true
			}
		}
	}
	return false
}

// busEventKey identifies one emitted-bus-event instance for the
// per-client dedup cache: a client must see a given (kind, object,
// service) at most once even when several of its listeners match.
type busEventKey struct {
	kind    proto.BusEventKind
	object  cookie.Cookie
	service cookie.Cookie
}
