package registry

import (
	"math"

	"github.com/dennis-hamester/aldrin/connid"
	"github.com/dennis-hamester/aldrin/cookie"
	"github.com/dennis-hamester/aldrin/proto"
)

// CreateChannel mints a channel whose creator immediately claims one end;
// the other starts out unclaimed.
func (r *Registry) CreateChannel(caller connid.ID, claimed proto.ChannelEnd, capacity uint32) (cookie.Cookie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.client(caller)
	if !ok {
		return cookie.Nil, ErrUnknownClient
	}

	c := r.newCookie()
	ch := &Channel{Cookie: c, Creator: caller}
	claimedState := ch.end(claimed)
	claimedState.Claimed = true
	claimedState.Owner = caller
	if claimed == proto.ChannelEndReceiver {
		claimedState.Capacity = capacity
	}

	r.channels[c] = ch
	client.ChannelEnds[c] = struct{}{}
	return c, nil
}

// ClaimChannelEnd claims an unclaimed end for caller. Returns the
// receiver-side capacity so the claimer's reply can carry the current
// credit budget.
func (r *Registry) ClaimChannelEnd(caller connid.ID, c cookie.Cookie, end proto.ChannelEnd, capacity uint32) (proto.ClaimChannelEndResult, uint32, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[c]
	if !ok {
		return proto.ClaimChannelEndInvalidChannel, 0, nil, nil
	}
	state := ch.end(end)
	if state.Claimed {
		return proto.ClaimChannelEndAlreadyClaimed, 0, nil, nil
	}

	state.Claimed = true
	state.Owner = caller
	if end == proto.ChannelEndReceiver {
		state.Capacity = capacity
	}

	if client, ok := r.client(caller); ok {
		client.ChannelEnds[c] = struct{}{}
	}

	other := ch.end(end.Other())
	var out []Outbound
	if other.Claimed {
		out = append(out, Outbound{To: other.Owner, Msg: proto.ChannelEndClaimed{
			Cookie: c, End: end, Capacity: ch.Receiver.Capacity,
		}})
	}
	return proto.ClaimChannelEndOk, ch.Receiver.Capacity, out, nil
}

// CloseChannelEnd closes one end: a claimed end for its owning client, or
// an unclaimed end for the connection that created the channel. Either way
// the owner of the other end is notified if that end is claimed and still
// open, and the channel is freed once both ends are closed.
func (r *Registry) CloseChannelEnd(caller connid.ID, c cookie.Cookie, end proto.ChannelEnd) (proto.CloseChannelEndResult, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeChannelEndLocked(caller, c, end)
}

// closeChannelEndLocked is CloseChannelEnd's logic assuming r.mu is
// already held, so RemoveClient's teardown cascade can reuse it.
func (r *Registry) closeChannelEndLocked(caller connid.ID, c cookie.Cookie, end proto.ChannelEnd) (proto.CloseChannelEndResult, []Outbound, error) {
	ch, ok := r.channels[c]
	if !ok {
		return proto.CloseChannelEndInvalidChannel, nil, nil
	}

	state := ch.end(end)
	if state.Claimed {
		if state.Owner != caller {
			return foreignCloseResult(end), nil, nil
		}
	} else if ch.Creator != caller {
		// An unclaimed end may only be closed by the channel's creator;
		// anyone else holding the cookie gets the same structured
		// rejection a foreign claimed end would, not a torn down
		// connection.
		return foreignCloseResult(end), nil, nil
	}

	wasClaimed := state.Claimed
	owner := state.Owner
	state.Closed = true
	state.Claimed = false

	var out []Outbound
	if wasClaimed {
		if cl, ok := r.client(owner); ok {
			delete(cl.ChannelEnds, c)
		}
	}
	other := ch.end(end.Other())
	if other.Claimed && !other.Closed {
		out = append(out, Outbound{To: other.Owner, Msg: proto.ChannelEndClosed{Cookie: c, End: end}})
	}

	if ch.bothEndsClosed() {
		delete(r.channels, c)
	}
	return proto.CloseChannelEndOk, out, nil
}

// foreignCloseResult names which end CloseChannelEnd rejected a caller
// from closing: the discriminant identifies the end itself, not the
// reason (claimed-by-another vs. unclaimed-but-not-creator collapse to
// the same "not yours to close" rejection).
func foreignCloseResult(end proto.ChannelEnd) proto.CloseChannelEndResult {
	if end == proto.ChannelEndSender {
		return proto.CloseChannelEndSenderClaimed
	}
	return proto.CloseChannelEndReceiverClaimed
}

// SendItem routes one item from the sender end to the receiver end. If the
// receiver end isn't claimed (or is already closed), both ends are closed
// and the sender alone is told. If the receiver is claimed but out of
// credit, only the sender end closes and the receiver is told. Otherwise
// the item is forwarded and receiver capacity is decremented by one.
func (r *Registry) SendItem(caller connid.ID, c cookie.Cookie, value any) []Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[c]
	if !ok {
		return nil
	}
	if ch.Sender.Owner != caller || !ch.Sender.Claimed {
		return nil
	}

	if !ch.Receiver.Claimed || ch.Receiver.Closed {
		return r.closeBothEndsLocked(ch, proto.ChannelEndReceiver)
	}
	if ch.Receiver.Capacity == 0 {
		return r.closeSingleEndLocked(ch, proto.ChannelEndSender)
	}

	ch.Receiver.Capacity--
	return []Outbound{{To: ch.Receiver.Owner, Msg: proto.ItemReceived{Cookie: c, Value: value}}}
}

// AddChannelCapacity grants more credit; only the receiver owner may do
// so. An overflowing addition closes the receiver end alone on protocol
// >= 1.18 (the sender keeps running, draining whatever credit it already
// held) or the whole channel on older connections. A non-overflowing
// addition is echoed to the sender so it can release its own credit
// counter.
func (r *Registry) AddChannelCapacity(caller connid.ID, c cookie.Cookie, delta uint32) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[c]
	if !ok {
		return nil, ErrInvalidChannel
	}
	if !ch.Receiver.Claimed || ch.Receiver.Owner != caller {
		return nil, ErrNotOwner
	}

	if ch.Receiver.Capacity > math.MaxUint32-delta {
		receiverClient, _ := r.client(caller)
		if receiverClient != nil && receiverClient.Version.AtLeast(proto.MinorSubscribeAll) {
			return r.closeSingleEndLocked(ch, proto.ChannelEndReceiver), nil
		}
		return r.closeBothEndsLocked(ch, proto.ChannelEndReceiver), nil
	}

	ch.Receiver.Capacity += delta
	var out []Outbound
	if ch.Sender.Claimed {
		out = append(out, Outbound{To: ch.Sender.Owner, Msg: proto.AddChannelCapacity{Cookie: c, Delta: delta}})
	}
	return out, nil
}

// closeSingleEndLocked closes end alone, notifying the other end's owner
// (if claimed and not already closed) that end closed, and removes the
// channel once both ends are gone. Must be called with r.mu held.
func (r *Registry) closeSingleEndLocked(ch *Channel, end proto.ChannelEnd) []Outbound {
	state := ch.end(end)
	if state.Claimed {
		if cl, ok := r.client(state.Owner); ok {
			delete(cl.ChannelEnds, ch.Cookie)
		}
	}
	state.Claimed = false
	state.Closed = true

	var out []Outbound
	other := ch.end(end.Other())
	if other.Claimed && !other.Closed {
		out = append(out, Outbound{To: other.Owner, Msg: proto.ChannelEndClosed{Cookie: ch.Cookie, End: end}})
	}
	if ch.bothEndsClosed() {
		delete(r.channels, ch.Cookie)
	}
	return out
}

// closeBothEndsLocked closes both ends of ch and tells the owner of
// causeEnd's opposite end (i.e. the end that is NOT closed-for-cause)
// that the other end closed, then deletes the channel outright. Used when
// the "cause" end (unclaimed/closed receiver, overflowed receiver on an
// old connection) leaves nothing usable on either side. Must be called
// with r.mu held.
func (r *Registry) closeBothEndsLocked(ch *Channel, causeEnd proto.ChannelEnd) []Outbound {
	notifyEnd := causeEnd.Other()
	notifyState := ch.end(notifyEnd)

	var out []Outbound
	if notifyState.Claimed && !notifyState.Closed {
		out = append(out, Outbound{To: notifyState.Owner, Msg: proto.ChannelEndClosed{Cookie: ch.Cookie, End: causeEnd}})
	}

	for _, end := range [...]proto.ChannelEnd{proto.ChannelEndSender, proto.ChannelEndReceiver} {
		state := ch.end(end)
		if state.Claimed {
			if cl, ok := r.client(state.Owner); ok {
				delete(cl.ChannelEnds, ch.Cookie)
			}
		}
		state.Claimed = false
		state.Closed = true
	}
	delete(r.channels, ch.Cookie)
	return out
}
