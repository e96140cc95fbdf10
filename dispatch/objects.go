package dispatch

import (
	"errors"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/proto"
	"github.com/dennis-hamester/aldrin/registry"
)

func (d *Dispatcher) createObject(from connid.ID, m proto.CreateObject) ([]registry.Outbound, error) {
	c, out, err := d.Reg.CreateObject(from, m.Uuid)
	reply := proto.CreateObjectReply{Cookie: c}
	switch {
	case err == nil:
		reply.Result = proto.CreateObjectOk
	case errors.Is(err, registry.ErrDuplicateObject):
		reply.Result = proto.CreateObjectDuplicateObject
	default:
		return nil, err
	}
	return append([]registry.Outbound{{To: from, Msg: reply}}, out...), nil
}

func (d *Dispatcher) destroyObject(from connid.ID, m proto.DestroyObject) ([]registry.Outbound, error) {
	out, err := d.Reg.DestroyObject(from, m.Cookie)
	reply := proto.DestroyObjectReply{}
	switch {
	case err == nil:
		reply.Result = proto.DestroyObjectOk
	case errors.Is(err, registry.ErrInvalidObject):
		reply.Result = proto.DestroyObjectInvalidObject
	case errors.Is(err, registry.ErrForeignObject):
		reply.Result = proto.DestroyObjectForeignObject
	default:
		return nil, err
	}
	return append([]registry.Outbound{{To: from, Msg: reply}}, out...), nil
}
