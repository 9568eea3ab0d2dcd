package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512 * 1024 // 512KB
)

// Client is one live connection. A user has at most one client of record
// at any instant; a newer login supersedes the older pointer.
type Client struct {
	ID       uuid.UUID
	Username string
	Conn     *websocket.Conn
	Send     chan []byte

	hub    *Hub
	rooms  map[string]bool
	closed bool
	mu     sync.RWMutex

	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, username string) *Client {
	return &Client{
		ID:       uuid.New(),
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		hub:      hub,
		rooms:    make(map[string]bool),
	}
}

// WritePump drains the send queue to the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands a frame to the write pump without blocking; a full queue
// drops the frame for this client only. Frames emitted after close are
// dropped too, so a delayed emission cannot hit a torn-down connection.
func (c *Client) enqueue(payload []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
		logrus.WithFields(logrus.Fields{
			"connection": c.ID,
			"user":       c.Username,
		}).Warn("client send queue full, dropping frame")
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.Send)
	})
}

func (c *Client) IsInRoom(roomID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[roomID]
}

func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}
