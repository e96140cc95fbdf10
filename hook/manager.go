package hook

import (
	"sync"
	"sync/atomic"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// Manager holds an ordered, copy-on-write list of hooks. Reads (the
// invocation path, on every connect/disconnect/object/service/call/event)
// never take a lock; only Add/Remove pay the copy cost — the right trade
// for a read-dominated workload.
type Manager struct {
	mu       sync.Mutex
	hooksPtr atomic.Pointer[[]Hook]
	index    map[string]int
}

func NewManager() *Manager {
	m := &Manager{index: make(map[string]int)}
	hooks := make([]Hook, 0)
	m.hooksPtr.Store(&hooks)
	return m
}

func (m *Manager) Add(h Hook) error {
	if h == nil || h.ID() == "" {
		return ErrEmptyHookID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[h.ID()]; exists {
		return ErrHookAlreadyExists
	}

	old := *m.hooksPtr.Load()
	next := make([]Hook, len(old)+1)
	copy(next, old)
	next[len(old)] = h
	m.index[h.ID()] = len(old)
	m.hooksPtr.Store(&next)
	return nil
}

func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.index[id]
	if !exists {
		return ErrHookNotFound
	}

	old := *m.hooksPtr.Load()
	next := make([]Hook, len(old)-1)
	copy(next[:idx], old[:idx])
	copy(next[idx:], old[idx+1:])
	delete(m.index, id)
	for i := idx; i < len(next); i++ {
		m.index[next[i].ID()] = i
	}
	m.hooksPtr.Store(&next)
	return nil
}

func (m *Manager) List() []Hook {
	old := *m.hooksPtr.Load()
	out := make([]Hook, len(old))
	copy(out, old)
	return out
}

// OnConnectAuthenticate runs every authenticating hook in registration
// order; the first to refuse wins.
func (m *Manager) OnConnectAuthenticate(info ConnectInfo) bool {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnConnectAuthenticate) && !h.OnConnectAuthenticate(info) {
			return false
		}
	}
	return true
}

func (m *Manager) OnConnect(info ConnectInfo) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnConnect) {
			h.OnConnect(info)
		}
	}
}

func (m *Manager) OnDisconnect(conn connid.ID, err error) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnDisconnect) {
			h.OnDisconnect(conn, err)
		}
	}
}

func (m *Manager) OnObjectCreated(conn connid.ID, c cookie.Cookie, uuid proto.ObjectUuid) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnObjectCreated) {
			h.OnObjectCreated(conn, c, uuid)
		}
	}
}

func (m *Manager) OnObjectDestroyed(conn connid.ID, c cookie.Cookie, uuid proto.ObjectUuid) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnObjectDestroyed) {
			h.OnObjectDestroyed(conn, c, uuid)
		}
	}
}

func (m *Manager) OnServiceCreated(conn connid.ID, c cookie.Cookie, uuid proto.ServiceUuid) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnServiceCreated) {
			h.OnServiceCreated(conn, c, uuid)
		}
	}
}

func (m *Manager) OnServiceDestroyed(conn connid.ID, c cookie.Cookie, uuid proto.ServiceUuid) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnServiceDestroyed) {
			h.OnServiceDestroyed(conn, c, uuid)
		}
	}
}

// OnCallFunction gates the call: the first hook to refuse wins, short
// circuiting the rest (used by RateLimitHook).
func (m *Manager) OnCallFunction(conn connid.ID, service cookie.Cookie, function uint32) bool {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnCallFunction) && !h.OnCallFunction(conn, service, function) {
			return false
		}
	}
	return true
}

func (m *Manager) OnEmitEvent(conn connid.ID, service cookie.Cookie, event proto.EventId) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnEmitEvent) {
			h.OnEmitEvent(conn, service, event)
		}
	}
}

func (m *Manager) OnChannelItem(conn connid.ID, channel cookie.Cookie) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnChannelItem) {
			h.OnChannelItem(conn, channel)
		}
	}
}
