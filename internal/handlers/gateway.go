package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/parloir/parloir/internal/database"
	"github.com/parloir/parloir/internal/hub"
	"github.com/parloir/parloir/pkg/auth"
)

// DefaultAuthTimeout bounds how long a fresh connection may stay
// unauthenticated before it is dropped.
const DefaultAuthTimeout = 15 * time.Second

const (
	pongWait       = 60 * time.Second
	maxMessageSize = 512 * 1024
)

// GatewayHandler owns the socket session lifecycle: upgrade, credential
// validation, connect/disconnect fan-out and the event read loop.
type GatewayHandler struct {
	db          *database.Database
	hub         *hub.Hub
	jwtManager  *auth.JWTManager
	redis       *redis.Client
	socket      *SocketHandler
	authTimeout time.Duration
	upgrader    websocket.Upgrader
}

func NewGatewayHandler(db *database.Database, h *hub.Hub, jwtMgr *auth.JWTManager, rdb *redis.Client, authTimeout time.Duration) *GatewayHandler {
	if authTimeout <= 0 {
		authTimeout = DefaultAuthTimeout
	}
	return &GatewayHandler{
		db:          db,
		hub:         h,
		jwtManager:  jwtMgr,
		redis:       rdb,
		socket:      NewSocketHandler(db, h),
		authTimeout: authTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection and runs the session.
func (g *GatewayHandler) HandleWebSocket(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	go g.runSession(conn)
}

// runSession authenticates the connection, registers presence, performs
// the connect fan-out and then loops over inbound events until the socket
// drops.
func (g *GatewayHandler) runSession(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)

	username, err := g.authenticate(conn)
	if err != nil {
		frame, _ := json.Marshal(hub.ErrorEvent(hub.ActionAuthenticate, err))
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.WriteMessage(websocket.TextMessage, frame)
		conn.Close()
		return
	}

	client := hub.NewClient(g.hub, conn, username)
	go client.WritePump()
	g.hub.Register(client)

	logrus.WithField("user", username).Info("connected")

	if err := g.onConnect(client); err != nil {
		g.hub.Unicast(client, hub.ErrorEvent(hub.ActionAuthenticate, err))
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env hub.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user", username).Warn("websocket read error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		g.socket.Dispatch(client, &env)
	}

	g.onDisconnect(client)
}

// authenticate requires the first frame to carry a valid bearer token
// within the auth timeout.
func (g *GatewayHandler) authenticate(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(g.authTimeout))

	var env hub.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return "", errors.New("authentication timeout")
	}
	if env.Action != hub.ActionAuthenticate {
		return "", errors.New("not authenticated")
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Token == "" {
		return "", errors.New("invalid parameters")
	}

	exists, err := g.redis.Exists(context.Background(), "blacklist:"+payload.Token).Result()
	if err != nil || exists > 0 {
		return "", errors.New("token is blacklisted")
	}

	claims, err := g.jwtManager.Verify(payload.Token)
	if err != nil || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// onConnect records presence then runs the four connect actions
// concurrently: emit online friends to the caller, subscribe and emit the
// joined-room list, broadcast the new status to friends and to every
// room. Failures are aggregated and reported once; no action blocks the
// others.
func (g *GatewayHandler) onConnect(client *hub.Client) error {
	if err := g.db.UpdateStatus(client.Username, client.ID.String(), database.StatusLogin); err != nil {
		return err
	}

	online := database.Presence{Username: client.Username, Online: true}
	results := make(chan error, 4)

	go func() { results <- g.emitOnlineFriends(client) }()
	go func() { results <- g.joinRooms(client) }()
	go func() { results <- g.broadcastFriends(client.Username, hub.EventConnectionFriend, online) }()
	go func() { results <- g.broadcastRooms(client.Username, hub.EventConnectionGuest, online) }()

	var errs []error
	for i := 0; i < 4; i++ {
		if err := <-results; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// onDisconnect marks the user offline and broadcasts the transition,
// unless this connection was already superseded by a newer login.
func (g *GatewayHandler) onDisconnect(client *hub.Client) {
	current, ok := g.hub.Connection(client.Username)
	superseded := !ok || current != client

	g.hub.Unregister(client)
	if client.Conn != nil {
		client.Conn.Close()
	}

	if superseded {
		return
	}

	offline := database.Presence{Username: client.Username, Online: false}
	if err := g.db.UpdateStatus(client.Username, client.ID.String(), database.StatusLogout); err != nil {
		logrus.WithError(err).WithField("user", client.Username).Error("cannot record logout")
	}
	if err := g.broadcastRooms(client.Username, hub.EventConnectionGuest, offline); err != nil {
		logrus.WithError(err).WithField("user", client.Username).Error("disconnect roomcast failed")
	}
	if err := g.broadcastFriends(client.Username, hub.EventConnectionFriend, offline); err != nil {
		logrus.WithError(err).WithField("user", client.Username).Error("disconnect friendcast failed")
	}

	logrus.WithField("user", client.Username).Info("disconnected")
}

// emitOnlineFriends unicasts the caller's friend list with live statuses.
func (g *GatewayHandler) emitOnlineFriends(client *hub.Client) error {
	friends, err := g.db.Friends(client.Username)
	if err != nil {
		return err
	}

	statuses := make([]database.Presence, 0, len(friends))
	for _, friend := range friends {
		status, err := g.db.IsConnectedUser(friend)
		if err != nil {
			return err
		}
		statuses = append(statuses, status)
	}

	g.hub.Unicast(client, hub.Event{
		Action: hub.EventConnectedFriends,
		Data: map[string]interface{}{
			"success":        true,
			"friends_status": statuses,
		},
	})
	return nil
}

// joinRooms subscribes the connection to each of the user's room channels
// and echoes the joined list back.
func (g *GatewayHandler) joinRooms(client *hub.Client) error {
	roomIDs, err := g.db.UserRooms(client.Username)
	if err != nil {
		return err
	}

	rooms := make([]map[string]interface{}, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		room, err := g.db.GetRoom(client.Username, roomID)
		if err != nil {
			return err
		}
		g.hub.Join(client, roomID)
		rooms = append(rooms, map[string]interface{}{
			"room_id":   room.ID,
			"room_name": room.Name,
			"room_date": room.CreatedAt,
		})
	}

	g.hub.Unicast(client, hub.Event{
		Action: hub.EventJoinedRooms,
		Data: map[string]interface{}{
			"success": true,
			"rooms":   rooms,
		},
	})
	return nil
}

// broadcastRooms roomcasts a presence transition to every room the user
// belongs to.
func (g *GatewayHandler) broadcastRooms(username, action string, status database.Presence) error {
	roomIDs, err := g.db.UserRooms(username)
	if err != nil {
		return err
	}
	for _, roomID := range roomIDs {
		g.hub.Roomcast(roomID, hub.Event{
			Action: action,
			Data: map[string]interface{}{
				"user":    status.Username,
				"online":  status.Online,
				"room_id": roomID,
			},
		})
	}
	return nil
}

// broadcastFriends friendcasts a presence transition to the user's online
// friends.
func (g *GatewayHandler) broadcastFriends(username, action string, status database.Presence) error {
	friends, err := g.db.Friends(username)
	if err != nil {
		return err
	}
	g.hub.Friendcast(friends, hub.Event{
		Action: action,
		Data: map[string]interface{}{
			"user":   status.Username,
			"online": status.Online,
		},
	})
	return nil
}
