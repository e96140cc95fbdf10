package dispatch

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

func (d *Dispatcher) createChannel(from connid.ID, m proto.CreateChannel) ([]registry.Outbound, error) {
	c, err := d.Reg.CreateChannel(from, m.ClaimedEnd, m.Capacity)
	if err != nil {
		return nil, err
	}
	return []registry.Outbound{{To: from, Msg: proto.CreateChannelReply{Cookie: c}}}, nil
}

func (d *Dispatcher) claimChannelEnd(from connid.ID, m proto.ClaimChannelEnd) ([]registry.Outbound, error) {
	result, capacity, out, err := d.Reg.ClaimChannelEnd(from, m.Cookie, m.End, m.Capacity)
	if err != nil {
		return nil, err
	}
	reply := registry.Outbound{To: from, Msg: proto.ClaimChannelEndReply{Result: result, Capacity: capacity}}
	return append([]registry.Outbound{reply}, out...), nil
}

func (d *Dispatcher) closeChannelEnd(from connid.ID, m proto.CloseChannelEnd) ([]registry.Outbound, error) {
	result, out, err := d.Reg.CloseChannelEnd(from, m.Cookie, m.End)
	if err != nil {
		return nil, err
	}
	reply := registry.Outbound{To: from, Msg: proto.CloseChannelEndReply{Result: result}}
	return append([]registry.Outbound{reply}, out...), nil
}
