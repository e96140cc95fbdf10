// Package hook is the broker's extension seam: an ordered, copy-on-write
// list of Hook implementations invoked around connection and resource
// lifecycle events (connect/disconnect, object/service lifecycle,
// function calls, event emission, channel items).
package hook

import (
	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// Event identifies one point in the broker's lifecycle a Hook may
// implement.
type Event byte

const (
	OnConnect Event = iota
	OnConnectAuthenticate
	OnDisconnect
	OnObjectCreated
	OnObjectDestroyed
	OnServiceCreated
	OnServiceDestroyed
	OnCallFunction
	OnEmitEvent
	OnChannelItem
)

func (e Event) String() string {
	names := [...]string{
		"OnConnect",
		"OnConnectAuthenticate",
		"OnDisconnect",
		"OnObjectCreated",
		"OnObjectDestroyed",
		"OnServiceCreated",
		"OnServiceDestroyed",
		"OnCallFunction",
		"OnEmitEvent",
		"OnChannelItem",
	}
	if int(e) < len(names) {
		return names[e]
	}
	return "Unknown"
}

// ConnectInfo is the handshake context available to connect-time hooks.
type ConnectInfo struct {
	Conn     connid.ID
	Version  proto.Version
	UserData any
}

// Hook is the interface every extension implements. Provides gates which
// callbacks the manager actually invokes for a given hook, so a hook that
// only cares about one event doesn't pay for the rest.
type Hook interface {
	ID() string
	Provides(event Event) bool

	// OnConnectAuthenticate gates the handshake; returning false aborts
	// the connection before it is ever added to the registry.
	OnConnectAuthenticate(info ConnectInfo) bool
	OnConnect(info ConnectInfo)
	OnDisconnect(conn connid.ID, err error)

	OnObjectCreated(conn connid.ID, c cookie.Cookie, uuid proto.ObjectUuid)
	OnObjectDestroyed(conn connid.ID, c cookie.Cookie, uuid proto.ObjectUuid)
	OnServiceCreated(conn connid.ID, c cookie.Cookie, uuid proto.ServiceUuid)
	OnServiceDestroyed(conn connid.ID, c cookie.Cookie, uuid proto.ServiceUuid)

	// OnCallFunction gates whether a call-function request is allowed to
	// reach the registry at all, e.g. for rate limiting (see
	// RateLimitHook).
	OnCallFunction(conn connid.ID, service cookie.Cookie, function uint32) bool
	OnEmitEvent(conn connid.ID, service cookie.Cookie, event proto.EventId)
	OnChannelItem(conn connid.ID, channel cookie.Cookie)
}

// Base is embeddable by hooks that only implement a handful of the
// interface's callbacks; everything defaults to a no-op.
type Base struct{}

func (Base) Provides(Event) bool                                            { return false }
func (Base) OnConnectAuthenticate(ConnectInfo) bool                         { return true }
func (Base) OnConnect(ConnectInfo)                                          {}
func (Base) OnDisconnect(connid.ID, error)                                  {}
func (Base) OnObjectCreated(connid.ID, cookie.Cookie, proto.ObjectUuid)     {}
func (Base) OnObjectDestroyed(connid.ID, cookie.Cookie, proto.ObjectUuid)   {}
func (Base) OnServiceCreated(connid.ID, cookie.Cookie, proto.ServiceUuid)   {}
func (Base) OnServiceDestroyed(connid.ID, cookie.Cookie, proto.ServiceUuid) {}
func (Base) OnCallFunction(connid.ID, cookie.Cookie, uint32) bool           { return true }
func (Base) OnEmitEvent(connid.ID, cookie.Cookie, proto.EventId)            {}
func (Base) OnChannelItem(connid.ID, cookie.Cookie)                         {}
