package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pathtrack/internal/planner"
	"github.com/banshee-data/pathtrack/internal/route"
)

func TestHubLatest(t *testing.T) {
	t.Parallel()
	h := NewHub()

	_, ok := h.Latest()
	assert.False(t, ok, "empty hub must report no window")

	h.Publish(planner.Window{Closest: 3})
	h.Publish(planner.Window{Closest: 7})

	got, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, 7, got.Closest, "latest must be the most recent publish")
}

func TestHubSubscribeReceives(t *testing.T) {
	t.Parallel()
	h := NewHub()
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	want := planner.Window{
		Closest:   5,
		StopIndex: planner.NoStop,
		Waypoints: []route.Waypoint{{Speed: 4}},
	}
	h.Publish(want)

	got := <-ch
	assert.Equal(t, want.Closest, got.Closest)
	assert.Len(t, got.Waypoints, 1)
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()
	h := NewHub()
	id, _ := h.Subscribe()
	defer h.Unsubscribe(id)

	// Nobody drains the channel, so publishes past the buffer are dropped
	// rather than blocking.
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(planner.Window{Closest: i})
	}

	assert.Equal(t, uint64(5), h.Dropped())
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	h := NewHub()
	id, ch := h.Subscribe()
	h.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel must be closed")

	// A second unsubscribe of the same ID is a no-op.
	h.Unsubscribe(id)
}
