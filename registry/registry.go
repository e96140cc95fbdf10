package registry

import (
	"sync"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// Outbound is one message the dispatcher must deliver to one connection's
// outbound queue as a consequence of a registry mutation. Registry
// operations never send anything themselves — fanout is the dispatcher's
// job; they only return the Outbound values describing what must be sent,
// preserving the illusion of a single-threaded, atomic registry
// transition per operation.
type Outbound struct {
	To  connid.ID
	Msg proto.Message
}

// Registry is the broker's authoritative state. A single mutex serializes
// every operation; every cross-connection effect is expressed as Outbound
// values computed under that lock.
type Registry struct {
	mu sync.Mutex

	alloc cookie.Allocator

	clients map[connid.ID]*Client

	objects       map[cookie.Cookie]*Object
	objectsByUUID map[proto.ObjectUuid]cookie.Cookie

	services map[cookie.Cookie]*Service

	channels map[cookie.Cookie]*Channel

	busListeners map[cookie.Cookie]*BusListener
	// busDedup: client -> set of event instances already delivered to it.
	// A client with several matching listeners still sees each event once.
	busDedup map[connid.ID]map[busEventKey]struct{}

	introspectionOwners  map[proto.TypeId]connid.ID
	pendingIntrospection map[introspectionKey]introspectionCall
}

// introspectionKey scopes a pending serial to the owner connection that
// must answer it, the same way registry.Service scopes call serials to
// one service — two different requesters asking two different owners can
// otherwise mint colliding serials independently.
type introspectionKey struct {
	owner  connid.ID
	serial uint32
}

type introspectionCall struct {
	requester       connid.ID
	requesterSerial uint32
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		clients:              make(map[connid.ID]*Client),
		objects:              make(map[cookie.Cookie]*Object),
		objectsByUUID:        make(map[proto.ObjectUuid]cookie.Cookie),
		services:             make(map[cookie.Cookie]*Service),
		channels:             make(map[cookie.Cookie]*Channel),
		busListeners:         make(map[cookie.Cookie]*BusListener),
		busDedup:             make(map[connid.ID]map[busEventKey]struct{}),
		introspectionOwners:  make(map[proto.TypeId]connid.ID),
		pendingIntrospection: make(map[introspectionKey]introspectionCall),
	}
}

// AddClient registers a newly established connection.
func (r *Registry) AddClient(id connid.ID, v proto.Version) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = newClient(id, v)
}

// HasClient reports whether id is a currently tracked connection.
func (r *Registry) HasClient(id connid.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[id]
	return ok
}

func (r *Registry) client(id connid.ID) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// ClientVersion reports the negotiated version of a tracked connection,
// for dispatch's version-gated forwarding decisions (e.g. withholding
// AbortFunctionCall from a callee too old to understand it).
func (r *Registry) ClientVersion(id connid.ID) (proto.Version, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return proto.Version{}, false
	}
	return c.Version, true
}

// newCookie mints a cookie guaranteed not to collide with any cookie
// currently live across objects, services, channels or bus listeners.
// Must be called with r.mu held.
func (r *Registry) newCookie() cookie.Cookie {
	return r.alloc.New(func(c cookie.Cookie) bool {
		if _, ok := r.objects[c]; ok {
			return true
		}
		if _, ok := r.services[c]; ok {
			return true
		}
		if _, ok := r.channels[c]; ok {
			return true
		}
		if _, ok := r.busListeners[c]; ok {
			return true
		}
		return false
	})
}

func (r *Registry) dedupSeen(client connid.ID, key busEventKey) bool {
	seen, ok := r.busDedup[client]
	if !ok {
		return false
	}
	_, ok = seen[key]
	return ok
}

func (r *Registry) dedupMark(client connid.ID, key busEventKey) {
	seen, ok := r.busDedup[client]
	if !ok {
		seen = make(map[busEventKey]struct{})
		r.busDedup[client] = seen
	}
	seen[key] = struct{}{}
}

// LiveCounts reports how many objects, services, channels and bus
// listeners are currently tracked. It takes the registry lock briefly;
// statistics sampling reads gauges here rather than shadowing them in
// counters that could drift from the authoritative tables.
func (r *Registry) LiveCounts() (objects, services, channels, busListeners int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects), len(r.services), len(r.channels), len(r.busListeners)
}
