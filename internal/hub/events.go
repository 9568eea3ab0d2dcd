package hub

import (
	"encoding/json"
)

// Inbound actions (client to server).
const (
	ActionAuthenticate       = "authenticate"
	ActionCreateRoom         = "create-room"
	ActionGetRoom            = "get-room"
	ActionRenameRoom         = "rename-room"
	ActionDeleteRoom         = "delete-room"
	ActionCreateThread       = "create-thread"
	ActionGetThread          = "get-thread"
	ActionRenameThread       = "rename-thread"
	ActionDeleteThread       = "delete-thread"
	ActionGetStream          = "get-stream"
	ActionSendThread         = "send-thread"
	ActionSendFriendRequest  = "send-friend-request"
	ActionReplyFriendRequest = "reply-friend-request"
	ActionBlockUser          = "block-user"
	ActionSearchUser         = "search-user"
	ActionAddGuest           = "add-guest"
	ActionRemoveGuest        = "remove-guest"
	ActionWhitelistGuest     = "whitelist-guest"
	ActionJoinRoom           = "join-room"
	ActionLeaveRoom          = "leave-room"
)

// Outbound broadcast actions. Success replies to the actor are the
// inbound action suffixed with "-ack" (see Ack).
const (
	EventErrorManager          = "error-manager"
	EventConnectedFriends      = "connected-friends"
	EventJoinedRooms           = "joined-rooms"
	EventConnectionFriend      = "connection-friend"
	EventConnectionGuest       = "connection-guest"
	EventGetGuestsAck          = "get-guests-ack"
	EventNewGuest              = "new-guest"
	EventAddedRoom             = "added-room"
	EventLeftGuest             = "left-guest"
	EventWhitelistedGuest      = "whitelisted-guest"
	EventRemovedRoom           = "removed-room"
	EventNewMessage            = "new-message"
	EventNewThread             = "new-thread"
	EventThreadRenamed         = "thread-renamed"
	EventDeletedThread         = "deleted-thread"
	EventFriendRequest         = "friend-request"
	EventResponseFriendRequest = "response-friend-request"
	EventRemoveFriend          = "remove-friend"
)

// Ack names the success reply of an inbound action.
func Ack(action string) string {
	return action + "-ack"
}

// Envelope is the inbound wire frame.
type Envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Event is an outbound frame, marshaled once per emission.
type Event struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data,omitempty"`
}

// ErrorPayload is the uniform error-manager body.
type ErrorPayload struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Error   string `json:"error"`
}

// ErrorEvent builds an error-manager event for a failed operation.
func ErrorEvent(path string, err error) Event {
	return Event{
		Action: EventErrorManager,
		Data:   ErrorPayload{Success: false, Path: path, Error: err.Error()},
	}
}
