package dispatch

import (
	"errors"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

func (d *Dispatcher) createBusListener(from connid.ID) ([]registry.Outbound, error) {
	c, err := d.Reg.CreateBusListener(from)
	if err != nil {
		return nil, err
	}
	return []registry.Outbound{{To: from, Msg: proto.CreateBusListenerReply{Cookie: c}}}, nil
}

func (d *Dispatcher) destroyBusListener(from connid.ID, m proto.DestroyBusListener) ([]registry.Outbound, error) {
	err := d.Reg.DestroyBusListener(from, m.Cookie)
	reply := proto.DestroyBusListenerReply{}
	switch {
	case err == nil:
		reply.Result = proto.DestroyBusListenerOk
	case errors.Is(err, registry.ErrInvalidBusListener):
		reply.Result = proto.DestroyBusListenerInvalidBusListener
	case errors.Is(err, registry.ErrNotOwner):
		reply.Result = proto.DestroyBusListenerForeignBusListener
	default:
		return nil, err
	}
	return []registry.Outbound{{To: from, Msg: reply}}, nil
}

func (d *Dispatcher) startBusListener(from connid.ID, m proto.StartBusListener) ([]registry.Outbound, error) {
	out, err := d.Reg.StartBusListener(from, m.Cookie, m.Scope)
	reply := proto.StartBusListenerReply{}
	switch {
	case err == nil:
		reply.Result = proto.StartBusListenerOk
	case errors.Is(err, registry.ErrInvalidBusListener):
		reply.Result = proto.StartBusListenerInvalidBusListener
	case errors.Is(err, registry.ErrBusListenerStarted):
		reply.Result = proto.StartBusListenerAlreadyStarted
	case errors.Is(err, registry.ErrNotOwner):
		reply.Result = proto.StartBusListenerForeignBusListener
	default:
		return nil, err
	}
	return append([]registry.Outbound{{To: from, Msg: reply}}, out...), nil
}

func (d *Dispatcher) stopBusListener(from connid.ID, m proto.StopBusListener) ([]registry.Outbound, error) {
	err := d.Reg.StopBusListener(from, m.Cookie)
	reply := proto.StopBusListenerReply{}
	switch {
	case err == nil:
		reply.Result = proto.StopBusListenerOk
	case errors.Is(err, registry.ErrInvalidBusListener):
		reply.Result = proto.StopBusListenerInvalidBusListener
	case errors.Is(err, registry.ErrBusListenerNotStarted):
		reply.Result = proto.StopBusListenerNotStarted
	case errors.Is(err, registry.ErrNotOwner):
		reply.Result = proto.StopBusListenerForeignBusListener
	default:
		return nil, err
	}
	return []registry.Outbound{{To: from, Msg: reply}}, nil
}
