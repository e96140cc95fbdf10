package dispatch

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

// abortFunctionCall cancels a pending call. The caller always gets its
// aborted reply regardless of protocol version, but AbortFunctionCall is
// only forwarded to a callee negotiated at MinorAbortFunctionCall or
// above.
func (d *Dispatcher) abortFunctionCall(from connid.ID, _ proto.Version, m proto.AbortFunctionCall) ([]registry.Outbound, error) {
	out, forward, err := d.Reg.AbortFunctionCall(from, m.Serial)
	if err != nil {
		// ErrNoSuchCall is a benign race (the call already got its reply,
		// or was already aborted) and AbortFunctionCall has no Reply to
		// carry an error back on, so it's swallowed rather than treated
		// as a protocol violation.
		return nil, nil
	}
	if !forward.OK() {
		return out, nil
	}
	calleeVersion, ok := d.Reg.ClientVersion(forward.Callee)
	if ok && proto.Allowed(proto.KindAbortFunctionCall, calleeVersion) {
		out = append(out, registry.Outbound{To: forward.Callee, Msg: proto.AbortFunctionCall{Serial: forward.BrokerSerial}})
	}
	return out, nil
}

func (d *Dispatcher) subscribeEvent(from connid.ID, m proto.SubscribeEvent) ([]registry.Outbound, error) {
	result, out, err := d.Reg.SubscribeEvent(from, m.ServiceCookie, m.Event, m.NotifyOwner)
	if err != nil {
		return nil, err
	}
	return append([]registry.Outbound{{To: from, Msg: proto.SubscribeEventReply{Result: result}}}, out...), nil
}
