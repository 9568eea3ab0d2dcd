package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// receive decodes the next frame queued for the client, failing when the
// queue is empty.
func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	default:
		t.Fatal("no frame queued")
		return Event{}
	}
}

func drained(c *Client) bool {
	select {
	case <-c.Send:
		return false
	default:
		return true
	}
}

func TestRegisterLastLoginWins(t *testing.T) {
	h := NewHub(0)

	first := NewClient(h, nil, "alice")
	second := NewClient(h, nil, "alice")

	h.Register(first)
	h.Register(second)

	current, ok := h.Connection("alice")
	require.True(t, ok)
	assert.Same(t, second, current)

	// user-addressed events reach only the connection of record
	h.UnicastUser("alice", Event{Action: "ping"})
	assert.True(t, drained(first))
	assert.Equal(t, "ping", receive(t, second).Action)
}

func TestUnregisterSupersededKeepsCurrentSession(t *testing.T) {
	h := NewHub(0)

	first := NewClient(h, nil, "alice")
	second := NewClient(h, nil, "alice")
	h.Register(first)
	h.Register(second)

	// the stale connection finally drops; presence must survive
	h.Unregister(first)

	current, ok := h.Connection("alice")
	require.True(t, ok)
	assert.Same(t, second, current)

	h.Unregister(second)
	assert.False(t, h.IsOnline("alice"))
}

func TestRoomcastReachesOnlySubscribers(t *testing.T) {
	h := NewHub(0)

	alice := NewClient(h, nil, "alice")
	bob := NewClient(h, nil, "bob")
	carol := NewClient(h, nil, "carol")
	for _, c := range []*Client{alice, bob, carol} {
		h.Register(c)
	}

	h.Join(alice, "room1")
	h.Join(bob, "room1")
	h.Join(carol, "room2")

	h.Roomcast("room1", Event{Action: "new-message"})

	assert.Equal(t, "new-message", receive(t, alice).Action)
	assert.Equal(t, "new-message", receive(t, bob).Action)
	assert.True(t, drained(carol))
}

func TestRoomcastAfterLeave(t *testing.T) {
	h := NewHub(0)

	alice := NewClient(h, nil, "alice")
	bob := NewClient(h, nil, "bob")
	h.Register(alice)
	h.Register(bob)
	h.Join(alice, "room1")
	h.Join(bob, "room1")

	h.Leave(bob, "room1")
	h.Roomcast("room1", Event{Action: "new-message"})

	assert.Equal(t, "new-message", receive(t, alice).Action)
	assert.True(t, drained(bob))
	assert.False(t, bob.IsInRoom("room1"))
}

func TestSubscribeByUsername(t *testing.T) {
	h := NewHub(0)

	bob := NewClient(h, nil, "bob")
	h.Register(bob)

	h.Subscribe("bob", "room1")
	assert.True(t, bob.IsInRoom("room1"))

	h.Unsubscribe("bob", "room1")
	assert.False(t, bob.IsInRoom("room1"))

	// offline users are skipped silently
	h.Subscribe("ghost", "room1")
	h.Unsubscribe("ghost", "room1")
}

func TestFriendcastFiltersOffline(t *testing.T) {
	h := NewHub(0)

	bob := NewClient(h, nil, "bob")
	h.Register(bob)

	h.Friendcast([]string{"bob", "carol"}, Event{Action: "connection-friend"})

	assert.Equal(t, "connection-friend", receive(t, bob).Action)
	assert.True(t, drained(bob))
}

func TestUnicastUserOfflineIsSilent(t *testing.T) {
	h := NewHub(0)
	h.UnicastUser("ghost", Event{Action: "ping"})
}

func TestEmissionDelay(t *testing.T) {
	h := NewHub(20 * time.Millisecond)

	alice := NewClient(h, nil, "alice")
	h.Register(alice)

	h.Unicast(alice, Event{Action: "ping"})
	assert.True(t, drained(alice), "emission must not be synchronous with a delay set")

	select {
	case payload := <-alice.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		assert.Equal(t, "ping", ev.Action)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("delayed emission never arrived")
	}
}

func TestDelayedEmissionAfterUnregister(t *testing.T) {
	h := NewHub(30 * time.Millisecond)

	alice := NewClient(h, nil, "alice")
	h.Register(alice)

	// the emission is pending when the connection tears down; it must be
	// dropped, not delivered to a closed queue
	h.Unicast(alice, Event{Action: "ping"})
	h.Unregister(alice)

	time.Sleep(100 * time.Millisecond)
}

func TestUnregisterDropsRoomSubscriptions(t *testing.T) {
	h := NewHub(0)

	alice := NewClient(h, nil, "alice")
	bob := NewClient(h, nil, "bob")
	h.Register(alice)
	h.Register(bob)
	h.Join(alice, "room1")
	h.Join(bob, "room1")

	h.Unregister(alice)
	h.Roomcast("room1", Event{Action: "new-message"})

	assert.Equal(t, "new-message", receive(t, bob).Action)
}
