// Package stats tracks broker-wide operational counters and periodically
// samples them into immutable Snapshot values. Monotonic counters live
// here and are bumped from connection goroutines with atomic ops;
// live-entity gauges (objects, services, channels, bus listeners) are
// read off the registry at sample time instead, so they can never drift
// from the authoritative tables.
package stats

import (
	"sync/atomic"
	"time"
)

// Counters is the broker's live, concurrently-updated counter set.
type Counters struct {
	connectionsTotal   atomic.Int64
	connectionsCurrent atomic.Int64
	messagesReceived   atomic.Int64
	messagesSent       atomic.Int64
	callsCompleted     atomic.Int64
	eventsEmitted      atomic.Int64
	itemsSent          atomic.Int64
	outboundDropped    atomic.Int64
}

func New() *Counters { return &Counters{} }

func (c *Counters) ConnectionOpened() {
	c.connectionsTotal.Add(1)
	c.connectionsCurrent.Add(1)
}

func (c *Counters) ConnectionClosed() { c.connectionsCurrent.Add(-1) }
func (c *Counters) MessageReceived()  { c.messagesReceived.Add(1) }
func (c *Counters) MessageSent()      { c.messagesSent.Add(1) }
func (c *Counters) CallCompleted()    { c.callsCompleted.Add(1) }
func (c *Counters) EventEmitted()     { c.eventsEmitted.Add(1) }
func (c *Counters) ItemSent()         { c.itemsSent.Add(1) }
func (c *Counters) OutboundDropped()  { c.outboundDropped.Add(1) }

// Gauges is the set of live-entity counts read under the registry's lock
// at sample time.
type Gauges struct {
	Objects      int64
	Services     int64
	Channels     int64
	BusListeners int64
}

// Snapshot is an immutable point-in-time copy of Counters plus Gauges,
// suitable for cbor encoding and persistence via package store.
type Snapshot struct {
	Time               time.Time
	ConnectionsTotal   int64
	ConnectionsCurrent int64
	Objects            int64
	Services           int64
	Channels           int64
	BusListeners       int64
	MessagesReceived   int64
	MessagesSent       int64
	CallsCompleted     int64
	EventsEmitted      int64
	ItemsSent          int64
	OutboundDropped    int64
}

// Sample takes an immediate Snapshot. now is passed in rather than read
// from time.Now() internally so callers (and the sampler loop) control
// the timestamp deterministically.
func (c *Counters) Sample(now time.Time, g Gauges) Snapshot {
	return Snapshot{
		Time:               now,
		ConnectionsTotal:   c.connectionsTotal.Load(),
		ConnectionsCurrent: c.connectionsCurrent.Load(),
		Objects:            g.Objects,
		Services:           g.Services,
		Channels:           g.Channels,
		BusListeners:       g.BusListeners,
		MessagesReceived:   c.messagesReceived.Load(),
		MessagesSent:       c.messagesSent.Load(),
		CallsCompleted:     c.callsCompleted.Load(),
		EventsEmitted:      c.eventsEmitted.Load(),
		ItemsSent:          c.itemsSent.Load(),
		OutboundDropped:    c.outboundDropped.Load(),
	}
}
