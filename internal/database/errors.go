package database

import "errors"

// Failure taxonomy surfaced to handlers. Handlers translate these into
// HTTP statuses or error-manager events; anything not in this list is an
// opaque store failure.
var (
	ErrInvalid        = errors.New("invalid parameters")
	ErrUsernameTaken  = errors.New("username already in use")
	ErrEmailTaken     = errors.New("email already in use")
	ErrNoSuchUser     = errors.New("no such user in db")
	ErrRoomNotFound   = errors.New("no such room in db")
	ErrThreadNotFound = errors.New("no such thread in db")

	ErrForbidden = errors.New("you cannot perform this action")
	ErrPrivilege = errors.New("not enough privilege")

	ErrAlreadyFriends   = errors.New("user already in friend list")
	ErrAlreadyRequested = errors.New("friend request already sent to user")
	ErrNoSuchRequest    = errors.New("no user invitation to reply to")
	ErrNotFriends       = errors.New("user not friend in the first place")

	ErrAlreadyGuest       = errors.New("is already guest in this room")
	ErrNotGuest           = errors.New("no such guest in this room")
	ErrWhitelisted        = errors.New("is whitelisted in this room")
	ErrAlreadyWhitelisted = errors.New("user already in whitelist")
	ErrOwnerImmutable     = errors.New("cannot remove or whitelist owner")
)

// Business reports whether err belongs to the taxonomy above, as opposed
// to an underlying store failure.
func Business(err error) bool {
	for _, e := range []error{
		ErrInvalid, ErrUsernameTaken, ErrEmailTaken, ErrNoSuchUser,
		ErrRoomNotFound, ErrThreadNotFound, ErrForbidden, ErrPrivilege,
		ErrAlreadyFriends, ErrAlreadyRequested, ErrNoSuchRequest,
		ErrNotFriends, ErrAlreadyGuest, ErrNotGuest, ErrWhitelisted,
		ErrAlreadyWhitelisted, ErrOwnerImmutable,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
