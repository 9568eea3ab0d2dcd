package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parloir/parloir/internal/database"
	"github.com/parloir/parloir/internal/hub"
	"github.com/parloir/parloir/internal/middleware"
	"github.com/parloir/parloir/internal/models"
)

// RoomHandler mirrors the room and guest operations over REST for
// non-realtime clients. Mutations drive the same fan-out engine as the
// socket surface.
type RoomHandler struct {
	db  *database.Database
	hub *hub.Hub
}

func NewRoomHandler(db *database.Database, h *hub.Hub) *RoomHandler {
	return &RoomHandler{db: db, hub: h}
}

func performer(c *gin.Context) string {
	return c.MustGet(middleware.UsernameKey).(string)
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondError(c, "room/create", database.ErrInvalid)
		return
	}

	room, err := h.db.CreateRoom(req.Name, performer(c))
	if err != nil {
		respondError(c, "room/create", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"room_id":   room.ID,
		"room_name": room.Name,
		"room_date": room.CreatedAt,
	})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.db.GetRoom(performer(c), c.Param("id"))
	if err != nil {
		respondError(c, "room/get", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "room": roomPayload(room)})
}

func (h *RoomHandler) AddGuest(c *gin.Context) {
	roomID := c.Param("id")

	var req struct {
		AddUser   string `json:"add_user"`
		Privilege string `json:"privilege"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AddUser == "" {
		respondError(c, "room/add-guest", database.ErrInvalid)
		return
	}

	actor := performer(c)
	guests, err := h.db.AddGuest(actor, req.AddUser, roomID, models.Privilege(req.Privilege))
	if err != nil {
		respondError(c, "room/add-guest", err)
		return
	}

	h.hub.Subscribe(req.AddUser, roomID)
	h.hub.Roomcast(roomID, hub.Event{
		Action: hub.EventNewGuest,
		Data: map[string]interface{}{
			"success": true,
			"room_id": roomID,
			"guest":   guestListPayload(guests),
		},
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "guests": guestListPayload(guests)})
}

func (h *RoomHandler) RemoveGuest(c *gin.Context) {
	roomID := c.Param("id")
	target := c.Param("username")

	guests, err := h.db.RemoveGuest(performer(c), target, roomID)
	if err != nil {
		respondError(c, "room/remove-guest", err)
		return
	}

	h.hub.Unsubscribe(target, roomID)
	h.hub.Roomcast(roomID, hub.Event{
		Action: hub.EventLeftGuest,
		Data: map[string]interface{}{
			"success": true,
			"room_id": roomID,
			"guest":   target,
		},
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "guests": guestListPayload(guests)})
}

func (h *RoomHandler) WhitelistGuest(c *gin.Context) {
	roomID := c.Param("id")

	var req struct {
		WlUser string `json:"wl_user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.WlUser == "" {
		respondError(c, "room/whitelist-guest", database.ErrInvalid)
		return
	}

	snapshot, err := h.db.WhitelistGuest(performer(c), req.WlUser, roomID)
	if err != nil {
		respondError(c, "room/whitelist-guest", err)
		return
	}

	h.hub.Unsubscribe(req.WlUser, roomID)
	h.hub.UnicastUser(req.WlUser, hub.Event{
		Action: hub.EventRemovedRoom,
		Data: map[string]interface{}{
			"success": true,
			"room_id": roomID,
		},
	})
	h.hub.Roomcast(roomID, hub.Event{
		Action: hub.EventWhitelistedGuest,
		Data: map[string]interface{}{
			"success": true,
			"room_id": roomID,
			"guest":   req.WlUser,
		},
	})

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"guests":      guestListPayload(snapshot.Guests),
		"whitelisted": snapshot.Whitelisted,
	})
}
