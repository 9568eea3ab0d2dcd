package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDelay is the uniform artificial latency applied to every outward
// emission, simulating network jitter. Override to zero in tests.
const DefaultDelay = 350 * time.Millisecond

// Hub is the presence and fan-out engine. It maps identities to their
// single live connection and owns the room channel subscriptions.
type Hub struct {
	mu sync.RWMutex

	// identity -> connection of record; last login wins.
	sessions map[string]*Client

	// room id -> connection id -> client.
	rooms map[string]map[string]*Client

	delay time.Duration
}

func NewHub(delay time.Duration) *Hub {
	return &Hub{
		sessions: make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		delay:    delay,
	}
}

// Register records the client as the connection of record for its user.
// A previous connection for the same identity is superseded but not
// closed; it simply stops receiving user-addressed events.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.sessions[c.Username]; ok && prev != c {
		logrus.WithField("user", c.Username).Info("superseding previous connection")
	}
	h.sessions[c.Username] = c

	logrus.WithFields(logrus.Fields{
		"connection": c.ID,
		"user":       c.Username,
	}).Info("client registered")
}

// Unregister drops the client from every room channel and, when it is
// still the connection of record, clears the presence entry.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, roomID := range c.Rooms() {
		h.removeFromRoom(c, roomID)
	}
	if current, ok := h.sessions[c.Username]; ok && current == c {
		delete(h.sessions, c.Username)
	}
	c.close()

	logrus.WithFields(logrus.Fields{
		"connection": c.ID,
		"user":       c.Username,
	}).Info("client unregistered")
}

// Join subscribes the connection to a room channel.
func (h *Hub) Join(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][c.ID.String()] = c

	c.mu.Lock()
	c.rooms[roomID] = true
	c.mu.Unlock()
}

// Leave unsubscribes the connection from a room channel.
func (h *Hub) Leave(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, roomID)
}

func (h *Hub) removeFromRoom(c *Client, roomID string) {
	if room, ok := h.rooms[roomID]; ok {
		delete(room, c.ID.String())
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

// Subscribe joins the user's live connection to a room channel, if any.
// Used for join-on-add when the affected user is online.
func (h *Hub) Subscribe(username, roomID string) {
	if c, ok := h.Connection(username); ok {
		h.Join(c, roomID)
	}
}

// Unsubscribe drops the user's live connection from a room channel.
// Used for leave-on-remove and whitelist eviction.
func (h *Hub) Unsubscribe(username, roomID string) {
	if c, ok := h.Connection(username); ok {
		h.Leave(c, roomID)
	}
}

// Connection resolves an identity to its live connection.
func (h *Hub) Connection(username string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.sessions[username]
	return c, ok
}

// IsOnline reports whether the identity has a connection of record.
func (h *Hub) IsOnline(username string) bool {
	_, ok := h.Connection(username)
	return ok
}

// Unicast emits an event to a single connection.
func (h *Hub) Unicast(c *Client, ev Event) {
	h.emit(func() {
		if payload, ok := marshal(ev); ok {
			c.enqueue(payload)
		}
	})
}

// UnicastUser emits an event to the identity's live connection, silently
// skipping offline users.
func (h *Hub) UnicastUser(username string, ev Event) {
	h.emit(func() {
		c, ok := h.Connection(username)
		if !ok {
			return
		}
		if payload, ok := marshal(ev); ok {
			c.enqueue(payload)
		}
	})
}

// Roomcast emits an event to every connection subscribed to the room
// channel. The audience is resolved from the channel itself, not from the
// guest list.
func (h *Hub) Roomcast(roomID string, ev Event) {
	h.emit(func() {
		payload, ok := marshal(ev)
		if !ok {
			return
		}
		h.mu.RLock()
		defer h.mu.RUnlock()
		for _, c := range h.rooms[roomID] {
			c.enqueue(payload)
		}
	})
}

// Friendcast enumerates the given friends, resolves each to presence and
// unicasts to the online ones. Friends share no channel, so delivery is
// per-connection by design.
func (h *Hub) Friendcast(friends []string, ev Event) {
	h.emit(func() {
		payload, ok := marshal(ev)
		if !ok {
			return
		}
		h.mu.RLock()
		defer h.mu.RUnlock()
		for _, friend := range friends {
			if c, online := h.sessions[friend]; online {
				c.enqueue(payload)
			}
		}
	})
}

// emit funnels every emission through the uniform artificial delay. The
// audience is resolved after the delay elapses, matching delivery to the
// state of the world at send time.
func (h *Hub) emit(send func()) {
	if h.delay <= 0 {
		send()
		return
	}
	time.AfterFunc(h.delay, send)
}

func marshal(ev Event) ([]byte, bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).WithField("action", ev.Action).Error("cannot marshal event")
		return nil, false
	}
	return payload, true
}
