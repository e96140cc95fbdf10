// Package dispatch translates wire-level proto.Message values into
// registry operations and back into the Outbound messages a connection's
// writer loop must deliver. It gates every inbound Kind against the
// connection's negotiated version and detects protocol violations; the
// registry consults a client's version only where its own outcome depends
// on it (aborting calls on teardown, capacity overflow, introspection
// forwarding).
package dispatch

import (
	"errors"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

// ErrProtocolViolation is returned when a peer sends a message kind its
// negotiated version does not support. The caller (package broker) treats
// this as fatal: it closes the connection without sending a reply.
var ErrProtocolViolation = errors.New("dispatch: message kind not allowed at negotiated version")

// ErrUnknownKind is returned for a Kind dispatch has no handler for, e.g.
// a reply-only message arriving inbound.
var ErrUnknownKind = errors.New("dispatch: unexpected message kind")

// Dispatcher owns no state of its own; it is a thin, stateless translation
// layer over a shared Registry so that many connections' goroutines can
// call Handle concurrently.
type Dispatcher struct {
	Reg *registry.Registry
}

func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{Reg: reg}
}

// Handle processes one inbound message from connection "from", negotiated
// at version v, and returns the Outbound messages (if any) that must be
// delivered as a consequence — including, where applicable, the direct
// reply to the sender.
func (d *Dispatcher) Handle(from connid.ID, v proto.Version, msg proto.Message) ([]registry.Outbound, error) {
	if !proto.Allowed(msg.Kind(), v) {
		return nil, ErrProtocolViolation
	}

	switch m := msg.(type) {
	case proto.Sync:
		return []registry.Outbound{{To: from, Msg: proto.SyncReply{Serial: m.Serial}}}, nil
	case proto.Shutdown:
		// The Shutdown reply is queued ahead of any teardown
		// notifications so the departing client sees it before its
		// transport closes.
		out := d.Reg.RemoveClient(from)
		return append([]registry.Outbound{{To: from, Msg: proto.Shutdown{}}}, out...), nil

	case proto.CreateObject:
		return d.createObject(from, m)
	case proto.DestroyObject:
		return d.destroyObject(from, m)

	case proto.CreateService:
		return d.createService(from, m)
	case proto.DestroyService:
		return d.destroyService(from, m)
	case proto.QueryServiceInfo:
		return d.queryServiceInfo(from, m)

	case proto.CallFunction:
		out, err := d.Reg.CallFunction(from, m.ServiceCookie, m.Serial, m.Function, m.Value)
		return out, err
	case proto.CallFunctionReply:
		out, err := d.Reg.CallFunctionReply(from, m.Serial, m.Result, m.Value)
		return out, err
	case proto.AbortFunctionCall:
		return d.abortFunctionCall(from, v, m)

	case proto.SubscribeEvent:
		return d.subscribeEvent(from, m)
	case proto.UnsubscribeEvent:
		return d.Reg.UnsubscribeEvent(from, m.ServiceCookie, m.Event), nil
	case proto.EmitEvent:
		return d.Reg.EmitEvent(from, m.ServiceCookie, m.Event, m.Value), nil
	case proto.SubscribeAllEvents:
		result, out := d.Reg.SubscribeAllEvents(from, m.ServiceCookie)
		reply := registry.Outbound{To: from, Msg: proto.SubscribeAllEventsReply{Result: result}}
		return append([]registry.Outbound{reply}, out...), nil
	case proto.UnsubscribeAllEvents:
		result, out := d.Reg.UnsubscribeAllEvents(from, m.ServiceCookie)
		reply := registry.Outbound{To: from, Msg: proto.UnsubscribeAllEventsReply{Result: result}}
		return append([]registry.Outbound{reply}, out...), nil
	case proto.SubscribeService:
		result := d.Reg.SubscribeService(from, m.ObjectCookie)
		return []registry.Outbound{{To: from, Msg: proto.SubscribeServiceReply{Result: result}}}, nil
	case proto.UnsubscribeService:
		d.Reg.UnsubscribeService(from, m.ObjectCookie)
		return nil, nil

	case proto.CreateChannel:
		return d.createChannel(from, m)
	case proto.ClaimChannelEnd:
		return d.claimChannelEnd(from, m)
	case proto.CloseChannelEnd:
		return d.closeChannelEnd(from, m)
	case proto.SendItem:
		return d.Reg.SendItem(from, m.Cookie, m.Value), nil
	case proto.AddChannelCapacity:
		// AddChannelCapacity has no Reply: an invalid cookie
		// or a non-owner caller is a benign race with the receiver end
		// already closing, not a protocol violation, so it's swallowed
		// here rather than torn down like ErrProtocolViolation.
		out, err := d.Reg.AddChannelCapacity(from, m.Cookie, m.Delta)
		if err != nil {
			return nil, nil
		}
		return out, nil

	case proto.CreateBusListener:
		return d.createBusListener(from)
	case proto.DestroyBusListener:
		return d.destroyBusListener(from, m)
	case proto.AddBusListenerFilter:
		// No Reply exists for this message; invalid/foreign/already-started
		// are silently ignored rather than treated as protocol violations.
		_ = d.Reg.AddBusListenerFilter(from, m.Cookie, m.Filter)
		return nil, nil
	case proto.RemoveBusListenerFilter:
		_ = d.Reg.RemoveBusListenerFilter(from, m.Cookie, m.Filter)
		return nil, nil
	case proto.ClearBusListenerFilters:
		_ = d.Reg.ClearBusListenerFilters(from, m.Cookie)
		return nil, nil
	case proto.StartBusListener:
		return d.startBusListener(from, m)
	case proto.StopBusListener:
		return d.stopBusListener(from, m)

	case proto.QueryIntrospection:
		out, _ := d.Reg.QueryIntrospection(from, m.Serial, m.Type)
		return out, nil
	case proto.QueryIntrospectionReply:
		requester, requesterSerial, ok := d.Reg.QueryIntrospectionReply(from, m.Serial, m.Result, m.Value)
		if !ok {
			return nil, nil
		}
		return []registry.Outbound{{To: requester, Msg: proto.QueryIntrospectionReply{
			Serial: requesterSerial, Result: m.Result, Value: m.Value,
		}}}, nil
	case proto.RegisterIntrospection:
		d.Reg.RegisterIntrospection(from, m.Type)
		return nil, nil

	default:
		return nil, ErrUnknownKind
	}
}
