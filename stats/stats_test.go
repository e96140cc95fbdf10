package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersSampleReflectsUpdates(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.MessageReceived()
	c.MessageReceived()
	c.MessageSent()
	c.CallCompleted()
	c.EventEmitted()
	c.ItemSent()
	c.OutboundDropped()

	now := time.Unix(1700000000, 0)
	snap := c.Sample(now, Gauges{Objects: 3, Services: 2, Channels: 1, BusListeners: 4})

	assert.Equal(t, now, snap.Time)
	assert.EqualValues(t, 2, snap.ConnectionsTotal)
	assert.EqualValues(t, 1, snap.ConnectionsCurrent)
	assert.EqualValues(t, 3, snap.Objects)
	assert.EqualValues(t, 2, snap.Services)
	assert.EqualValues(t, 1, snap.Channels)
	assert.EqualValues(t, 4, snap.BusListeners)
	assert.EqualValues(t, 2, snap.MessagesReceived)
	assert.EqualValues(t, 1, snap.MessagesSent)
	assert.EqualValues(t, 1, snap.CallsCompleted)
	assert.EqualValues(t, 1, snap.EventsEmitted)
	assert.EqualValues(t, 1, snap.ItemsSent)
	assert.EqualValues(t, 1, snap.OutboundDropped)
}

func TestCountersNeverGoNegativeOnBalancedUse(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.ConnectionClosed()
	snap := c.Sample(time.Now(), Gauges{})
	assert.Zero(t, snap.ConnectionsCurrent)
}
