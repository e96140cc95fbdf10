package dispatch

import (
	"errors"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

func (d *Dispatcher) createService(from connid.ID, m proto.CreateService) ([]registry.Outbound, error) {
	c, out, err := d.Reg.CreateService(from, m.ObjectCookie, m.Uuid, m.Info)
	reply := proto.CreateServiceReply{Cookie: c}
	switch {
	case err == nil:
		reply.Result = proto.CreateServiceOk
	case errors.Is(err, registry.ErrDuplicateService):
		reply.Result = proto.CreateServiceDuplicateService
	case errors.Is(err, registry.ErrInvalidObject):
		reply.Result = proto.CreateServiceInvalidObject
	case errors.Is(err, registry.ErrForeignObject):
		reply.Result = proto.CreateServiceForeignObject
	default:
		return nil, err
	}
	return append([]registry.Outbound{{To: from, Msg: reply}}, out...), nil
}

func (d *Dispatcher) destroyService(from connid.ID, m proto.DestroyService) ([]registry.Outbound, error) {
	out, err := d.Reg.DestroyService(from, m.Cookie)
	reply := proto.DestroyServiceReply{}
	switch {
	case err == nil:
		reply.Result = proto.DestroyServiceOk
	case errors.Is(err, registry.ErrInvalidService):
		reply.Result = proto.DestroyServiceInvalidService
	case errors.Is(err, registry.ErrForeignService):
		reply.Result = proto.DestroyServiceForeignService
	default:
		return nil, err
	}
	return append([]registry.Outbound{{To: from, Msg: reply}}, out...), nil
}

func (d *Dispatcher) queryServiceInfo(from connid.ID, m proto.QueryServiceInfo) ([]registry.Outbound, error) {
	info, err := d.Reg.QueryServiceInfo(m.Cookie)
	reply := proto.QueryServiceInfoReply{Info: info}
	switch {
	case err == nil:
		reply.Result = proto.QueryServiceInfoOk
	case errors.Is(err, registry.ErrInvalidService):
		reply.Result = proto.QueryServiceInfoInvalidService
	default:
		return nil, err
	}
	return []registry.Outbound{{To: from, Msg: reply}}, nil
}
