package handlers

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/parloir/parloir/internal/database"
	"github.com/parloir/parloir/internal/hub"
	"github.com/parloir/parloir/internal/models"
)

// SocketHandler dispatches authenticated inbound events. Every rejected
// precondition or store failure becomes a unicast error-manager event to
// the actor; nothing propagates to other recipients or tears down the
// connection.
type SocketHandler struct {
	db  *database.Database
	hub *hub.Hub
}

func NewSocketHandler(db *database.Database, h *hub.Hub) *SocketHandler {
	return &SocketHandler{db: db, hub: h}
}

func (s *SocketHandler) Dispatch(client *hub.Client, env *hub.Envelope) {
	switch env.Action {
	case hub.ActionAuthenticate:
		// already authenticated by the gateway
	case hub.ActionCreateRoom:
		s.createRoom(client, env.Data)
	case hub.ActionGetRoom:
		s.getRoom(client, env.Data)
	case hub.ActionRenameRoom:
		s.renameRoom(client, env.Data)
	case hub.ActionDeleteRoom:
		s.deleteRoom(client, env.Data)
	case hub.ActionCreateThread:
		s.createThread(client, env.Data)
	case hub.ActionGetThread:
		s.getThread(client, env.Data)
	case hub.ActionRenameThread:
		s.renameThread(client, env.Data)
	case hub.ActionDeleteThread:
		s.deleteThread(client, env.Data)
	case hub.ActionGetStream:
		s.getStream(client, env.Data)
	case hub.ActionSendThread:
		s.sendThread(client, env.Data)
	case hub.ActionSendFriendRequest:
		s.sendFriendRequest(client, env.Data)
	case hub.ActionReplyFriendRequest:
		s.replyFriendRequest(client, env.Data)
	case hub.ActionBlockUser:
		s.blockUser(client, env.Data)
	case hub.ActionSearchUser:
		s.searchUser(client, env.Data)
	case hub.ActionAddGuest:
		s.addGuest(client, env.Data)
	case hub.ActionRemoveGuest:
		s.removeGuest(client, env.Data)
	case hub.ActionWhitelistGuest:
		s.whitelistGuest(client, env.Data)
	case hub.ActionJoinRoom:
		s.joinRoom(client, env.Data)
	case hub.ActionLeaveRoom:
		s.leaveRoom(client, env.Data)
	default:
		logrus.WithField("action", env.Action).Warn("unknown action")
	}
}

// fail reports a handler failure back to the actor only.
func (s *SocketHandler) fail(client *hub.Client, path string, err error) {
	if !database.Business(err) {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user": client.Username,
			"path": path,
		}).Error("operation failed")
	}
	s.hub.Unicast(client, hub.ErrorEvent(path, err))
}

func (s *SocketHandler) invalid(client *hub.Client, path string) {
	s.hub.Unicast(client, hub.ErrorEvent(path, database.ErrInvalid))
}

func (s *SocketHandler) ack(client *hub.Client, action string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["success"] = true
	s.hub.Unicast(client, hub.Event{Action: hub.Ack(action), Data: data})
}

func (s *SocketHandler) createRoom(client *hub.Client, raw json.RawMessage) {
	var data struct {
		Name   string   `json:"name"`
		Guests []string `json:"guests"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.Name == "" {
		s.invalid(client, hub.ActionCreateRoom)
		return
	}

	room, err := s.db.CreateRoom(data.Name, client.Username)
	if err != nil {
		s.fail(client, hub.ActionCreateRoom, err)
		return
	}

	payload := map[string]interface{}{
		"room_id":   room.ID,
		"room_name": room.Name,
		"room_date": room.CreatedAt,
	}
	if len(data.Guests) > 0 {
		payload["guests"] = data.Guests
	}
	s.ack(client, hub.ActionCreateRoom, payload)
}

func (s *SocketHandler) getRoom(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" {
		s.invalid(client, hub.ActionGetRoom)
		return
	}

	room, err := s.db.GetRoom(client.Username, data.RoomID)
	if err != nil {
		s.fail(client, hub.ActionGetRoom, err)
		return
	}
	s.ack(client, hub.ActionGetRoom, map[string]interface{}{"room": roomPayload(room)})

	// follow up with each guest's live status
	statuses := make([]map[string]interface{}, 0, len(room.Guests))
	for _, guest := range room.Guests {
		presence, err := s.db.IsConnectedUser(guest.Username)
		if err != nil {
			s.fail(client, hub.ActionGetRoom, err)
			return
		}
		statuses = append(statuses, map[string]interface{}{
			"user":   presence.Username,
			"status": presence.Online,
		})
	}
	s.hub.Unicast(client, hub.Event{
		Action: hub.EventGetGuestsAck,
		Data: map[string]interface{}{
			"success": true,
			"guests":  statuses,
		},
	})
}

func (s *SocketHandler) renameRoom(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID  string `json:"room_id"`
		NewName string `json:"new_name"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.NewName == "" {
		s.invalid(client, hub.ActionRenameRoom)
		return
	}

	name, err := s.db.RenameRoom(client.Username, data.RoomID, data.NewName)
	if err != nil {
		s.fail(client, hub.ActionRenameRoom, err)
		return
	}

	// the ack goes to the whole room channel, every member sees the rename
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.Ack(hub.ActionRenameRoom),
		Data: map[string]interface{}{
			"success":   true,
			"room_id":   data.RoomID,
			"room_name": name,
		},
	})
}

func (s *SocketHandler) deleteRoom(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" {
		s.invalid(client, hub.ActionDeleteRoom)
		return
	}

	guests, err := s.db.DeleteRoom(client.Username, data.RoomID)
	if err != nil {
		s.fail(client, hub.ActionDeleteRoom, err)
		return
	}

	for _, guest := range guests {
		s.hub.Unsubscribe(guest, data.RoomID)
		s.hub.UnicastUser(guest, hub.Event{
			Action: hub.EventRemovedRoom,
			Data: map[string]interface{}{
				"success": true,
				"room_id": data.RoomID,
			},
		})
	}
	s.ack(client, hub.ActionDeleteRoom, map[string]interface{}{"room_id": data.RoomID})
}

func (s *SocketHandler) createThread(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.Title == "" {
		s.invalid(client, hub.ActionCreateThread)
		return
	}

	thread, err := s.db.AddThread(client.Username, data.RoomID, data.Title)
	if err != nil {
		s.fail(client, hub.ActionCreateThread, err)
		return
	}

	s.ack(client, hub.ActionCreateThread, nil)
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventNewThread,
		Data: map[string]interface{}{
			"success":   true,
			"room_id":   data.RoomID,
			"thread_id": thread.ID,
			"title":     thread.Title,
		},
	})
}

func (s *SocketHandler) getThread(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID   string `json:"room_id"`
		ThreadID string `json:"thread_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.ThreadID == "" {
		s.invalid(client, hub.ActionGetThread)
		return
	}

	thread, err := s.db.GetThread(client.Username, data.RoomID, data.ThreadID, true)
	if err != nil {
		s.fail(client, hub.ActionGetThread, err)
		return
	}
	s.ack(client, hub.ActionGetThread, map[string]interface{}{"thread": threadPayload(thread)})
}

func (s *SocketHandler) renameThread(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID   string `json:"room_id"`
		ThreadID string `json:"thread_id"`
		NewName  string `json:"new_name"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.ThreadID == "" || data.NewName == "" {
		s.invalid(client, hub.ActionRenameThread)
		return
	}

	name, err := s.db.RenameThread(client.Username, data.RoomID, data.ThreadID, data.NewName)
	if err != nil {
		s.fail(client, hub.ActionRenameThread, err)
		return
	}

	s.ack(client, hub.ActionRenameThread, nil)
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventThreadRenamed,
		Data: map[string]interface{}{
			"success":     true,
			"room_id":     data.RoomID,
			"thread_id":   data.ThreadID,
			"thread_name": name,
		},
	})
}

func (s *SocketHandler) deleteThread(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID   string `json:"room_id"`
		ThreadID string `json:"thread_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.ThreadID == "" {
		s.invalid(client, hub.ActionDeleteThread)
		return
	}

	if err := s.db.DeleteThread(client.Username, data.RoomID, data.ThreadID); err != nil {
		s.fail(client, hub.ActionDeleteThread, err)
		return
	}

	s.ack(client, hub.ActionDeleteThread, nil)
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventDeletedThread,
		Data: map[string]interface{}{
			"success":   true,
			"room_id":   data.RoomID,
			"thread_id": data.ThreadID,
		},
	})
}

func (s *SocketHandler) getStream(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID   string `json:"room_id"`
		ThreadID string `json:"thread_id"`
		Offset   *int   `json:"offset"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.ThreadID == "" || data.Offset == nil {
		s.invalid(client, hub.ActionGetStream)
		return
	}

	stream, err := s.db.GetStream(client.Username, data.RoomID, data.ThreadID, *data.Offset)
	if err != nil {
		s.fail(client, hub.ActionGetStream, err)
		return
	}

	messages := make([]map[string]interface{}, 0, len(stream))
	for i := range stream {
		messages = append(messages, messagePayload(&stream[i]))
	}
	s.ack(client, hub.ActionGetStream, map[string]interface{}{"stream": messages})
}

func (s *SocketHandler) sendThread(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID   string `json:"room_id"`
		ThreadID string `json:"thread_id"`
		Media    string `json:"media"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(raw, &data); err != nil ||
		data.RoomID == "" || data.ThreadID == "" || data.Media == "" || data.Content == "" {
		s.invalid(client, hub.ActionSendThread)
		return
	}

	message, err := s.db.AddMessage(client.Username, data.RoomID, data.ThreadID, models.Media(data.Media), data.Content)
	if err != nil {
		s.fail(client, hub.ActionSendThread, err)
		return
	}

	s.ack(client, hub.ActionSendThread, nil)
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventNewMessage,
		Data: map[string]interface{}{
			"room_id":   data.RoomID,
			"thread_id": message.ThreadID,
			"message":   messagePayload(message),
		},
	})
}

func (s *SocketHandler) sendFriendRequest(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RequestedUser string `json:"requested_user"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RequestedUser == "" {
		s.invalid(client, hub.ActionSendFriendRequest)
		return
	}

	requested, err := s.db.RequestFriend(client.Username, data.RequestedUser)
	if err != nil {
		s.fail(client, hub.ActionSendFriendRequest, err)
		return
	}

	s.ack(client, hub.ActionSendFriendRequest, map[string]interface{}{
		"requested": data.RequestedUser,
	})
	if !requested {
		// performer is blocked, the ack above does not leak it
		return
	}

	presence, err := s.db.IsConnectedUser(data.RequestedUser)
	if err != nil {
		s.fail(client, hub.ActionSendFriendRequest, err)
		return
	}
	if presence.Online {
		s.hub.UnicastUser(data.RequestedUser, hub.Event{
			Action: hub.EventFriendRequest,
			Data: map[string]interface{}{
				"success":   true,
				"requester": client.Username,
			},
		})
	}
}

func (s *SocketHandler) replyFriendRequest(client *hub.Client, raw json.RawMessage) {
	var data struct {
		Requester string `json:"requester"`
		Action    string `json:"action"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.Requester == "" || data.Action == "" {
		s.invalid(client, hub.ActionReplyFriendRequest)
		return
	}

	if err := s.db.ReplyRequestFriend(client.Username, data.Requester, data.Action); err != nil {
		s.fail(client, hub.ActionReplyFriendRequest, err)
		return
	}

	presence, err := s.db.IsConnectedUser(data.Requester)
	if err != nil {
		s.fail(client, hub.ActionReplyFriendRequest, err)
		return
	}
	if presence.Online {
		s.hub.UnicastUser(data.Requester, hub.Event{
			Action: hub.EventResponseFriendRequest,
			Data: map[string]interface{}{
				"success":  true,
				"user":     client.Username,
				"accepted": data.Action == "accept",
			},
		})
	}
	s.ack(client, hub.ActionReplyFriendRequest, map[string]interface{}{
		"requester": data.Requester,
		"action":    data.Action,
	})
}

func (s *SocketHandler) blockUser(client *hub.Client, raw json.RawMessage) {
	var data struct {
		UserBlock string `json:"user_block"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.UserBlock == "" {
		s.invalid(client, hub.ActionBlockUser)
		return
	}

	if err := s.db.BlockUser(client.Username, data.UserBlock); err != nil {
		s.fail(client, hub.ActionBlockUser, err)
		return
	}

	presence, err := s.db.IsConnectedUser(data.UserBlock)
	if err != nil {
		s.fail(client, hub.ActionBlockUser, err)
		return
	}
	if presence.Online {
		s.hub.UnicastUser(data.UserBlock, hub.Event{
			Action: hub.EventRemoveFriend,
			Data: map[string]interface{}{
				"success":  true,
				"unfriend": client.Username,
			},
		})
	}
	s.ack(client, hub.ActionBlockUser, map[string]interface{}{"blocked": data.UserBlock})
}

func (s *SocketHandler) searchUser(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
		Query  string `json:"query"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.Query == "" {
		s.invalid(client, hub.ActionSearchUser)
		return
	}

	users, err := s.db.SearchUsers(client.Username, data.RoomID, data.Query)
	if err != nil {
		s.fail(client, hub.ActionSearchUser, err)
		return
	}
	s.ack(client, hub.ActionSearchUser, map[string]interface{}{"users": users})
}

func (s *SocketHandler) addGuest(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID    string `json:"room_id"`
		AddUser   string `json:"add_user"`
		Privilege string `json:"privilege"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.AddUser == "" {
		s.invalid(client, hub.ActionAddGuest)
		return
	}

	guests, err := s.db.AddGuest(client.Username, data.AddUser, data.RoomID, models.Privilege(data.Privilege))
	if err != nil {
		s.fail(client, hub.ActionAddGuest, err)
		return
	}

	s.ack(client, hub.ActionAddGuest, nil)
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventNewGuest,
		Data: map[string]interface{}{
			"success": true,
			"room_id": data.RoomID,
			"guest":   guestListPayload(guests),
		},
	})

	presence, err := s.db.IsConnectedUser(data.AddUser)
	if err != nil {
		s.fail(client, hub.ActionAddGuest, err)
		return
	}
	if presence.Online {
		// join-on-add: the new guest's connection follows the room channel
		s.hub.Subscribe(data.AddUser, data.RoomID)

		room, err := s.db.GetRoom(client.Username, data.RoomID)
		if err != nil {
			s.fail(client, hub.ActionAddGuest, err)
			return
		}
		s.hub.UnicastUser(data.AddUser, hub.Event{
			Action: hub.EventAddedRoom,
			Data: map[string]interface{}{
				"success":   true,
				"room_id":   room.ID,
				"room_name": room.Name,
				"room_date": room.CreatedAt,
			},
		})
	}
}

func (s *SocketHandler) removeGuest(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
		RmUser string `json:"rm_user"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.RmUser == "" {
		s.invalid(client, hub.ActionRemoveGuest)
		return
	}

	if _, err := s.db.RemoveGuest(client.Username, data.RmUser, data.RoomID); err != nil {
		s.fail(client, hub.ActionRemoveGuest, err)
		return
	}

	// leave-on-remove: drop the evicted connection before broadcasting
	s.hub.Unsubscribe(data.RmUser, data.RoomID)

	s.ack(client, hub.ActionRemoveGuest, nil)
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventLeftGuest,
		Data: map[string]interface{}{
			"success": true,
			"room_id": data.RoomID,
			"guest":   data.RmUser,
		},
	})
}

func (s *SocketHandler) whitelistGuest(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
		WlUser string `json:"wl_user"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" || data.WlUser == "" {
		s.invalid(client, hub.ActionWhitelistGuest)
		return
	}

	if _, err := s.db.WhitelistGuest(client.Username, data.WlUser, data.RoomID); err != nil {
		s.fail(client, hub.ActionWhitelistGuest, err)
		return
	}

	presence, err := s.db.IsConnectedUser(data.WlUser)
	if err != nil {
		s.fail(client, hub.ActionWhitelistGuest, err)
		return
	}
	if presence.Online {
		s.hub.Unsubscribe(data.WlUser, data.RoomID)
		s.hub.UnicastUser(data.WlUser, hub.Event{
			Action: hub.EventRemovedRoom,
			Data: map[string]interface{}{
				"success": true,
				"room_id": data.RoomID,
			},
		})
	}

	payload := map[string]interface{}{"guest": data.WlUser}
	s.ack(client, hub.ActionWhitelistGuest, payload)
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventWhitelistedGuest,
		Data: map[string]interface{}{
			"success": true,
			"room_id": data.RoomID,
			"guest":   data.WlUser,
		},
	})
}

func (s *SocketHandler) joinRoom(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" {
		s.invalid(client, hub.ActionJoinRoom)
		return
	}

	isGuest, err := s.db.IsGuest(client.Username, data.RoomID)
	if err != nil {
		s.fail(client, hub.ActionJoinRoom, err)
		return
	}
	if !isGuest {
		s.fail(client, hub.ActionJoinRoom, database.ErrForbidden)
		return
	}

	room, err := s.db.GetRoom(client.Username, data.RoomID)
	if err != nil {
		s.fail(client, hub.ActionJoinRoom, err)
		return
	}

	s.hub.Join(client, data.RoomID)
	s.ack(client, hub.ActionJoinRoom, map[string]interface{}{
		"room_id":   room.ID,
		"room_name": room.Name,
	})
}

func (s *SocketHandler) leaveRoom(client *hub.Client, raw json.RawMessage) {
	var data struct {
		RoomID string `json:"room_id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.RoomID == "" {
		s.invalid(client, hub.ActionLeaveRoom)
		return
	}

	// the store decides first; a rejected leave (the owner, say) must not
	// cost the connection its channel subscription
	if err := s.db.LeaveGuest(client.Username, data.RoomID); err != nil {
		s.fail(client, hub.ActionLeaveRoom, err)
		return
	}
	s.hub.Leave(client, data.RoomID)

	s.ack(client, hub.ActionLeaveRoom, map[string]interface{}{"room_id": data.RoomID})
	s.hub.Roomcast(data.RoomID, hub.Event{
		Action: hub.EventLeftGuest,
		Data: map[string]interface{}{
			"success": true,
			"room_id": data.RoomID,
			"guest":   client.Username,
		},
	})
}
