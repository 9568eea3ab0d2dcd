package database

import (
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/parloir/parloir/internal/models"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
)

// Presence is the live activity snapshot of a user. Absence of the user
// resolves to offline, never to an error.
type Presence struct {
	Username     string `json:"user"`
	Online       bool   `json:"online"`
	ConnectionID string `json:"connection_id,omitempty"`
}

type StatusAction string

const (
	StatusLogin  StatusAction = "login"
	StatusLogout StatusAction = "logout"
)

type RoomsAction string

const (
	RoomsAdd    RoomsAction = "add"
	RoomsRemove RoomsAction = "remove"
)

func (d *Database) IsUser(username string) (bool, error) {
	var count int64
	err := d.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (d *Database) UsernameAvailable(username string) (bool, error) {
	taken, err := d.IsUser(username)
	return !taken, err
}

func (d *Database) EmailAvailable(email string) (bool, error) {
	var count int64
	err := d.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count == 0, err
}

// CreateUser validates, uniqueness-checks and stores a new user with a
// salted hash. The raw credential is never persisted.
func (d *Database) CreateUser(username, email, pseudo, password string) (*models.User, error) {
	if !usernameRegex.MatchString(username) || !usernameRegex.MatchString(pseudo) || !emailRegex.MatchString(email) {
		return nil, ErrInvalid
	}

	available, err := d.UsernameAvailable(username)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrUsernameTaken
	}

	available, err = d.EmailAvailable(email)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		Pseudo:       pseudo,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := d.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (d *Database) ComparePassword(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

func (d *Database) GetUser(username string) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNoSuchUser
		}
		return nil, err
	}
	return &user, nil
}

// Friends returns the user's friend list.
func (d *Database) Friends(username string) ([]string, error) {
	var friends []string
	err := d.db.Model(&models.Friendship{}).
		Where("username = ?", username).
		Pluck("friend", &friends).Error
	return friends, err
}

// UserRooms returns the user's membership list.
func (d *Database) UserRooms(username string) ([]string, error) {
	var rooms []string
	err := d.db.Model(&models.Membership{}).
		Where("username = ?", username).
		Pluck("room_id", &rooms).Error
	return rooms, err
}

func (d *Database) IsFriend(performer, username string) (bool, error) {
	var count int64
	err := d.db.Model(&models.Friendship{}).
		Where("username = ? AND friend = ?", performer, username).
		Count(&count).Error
	return count > 0, err
}

// IsBlocked reports whether username has performer on their block list.
func (d *Database) IsBlocked(performer, username string) (bool, error) {
	var count int64
	err := d.db.Model(&models.Block{}).
		Where("username = ? AND blocked = ?", username, performer).
		Count(&count).Error
	return count > 0, err
}

// IsRequestingFriend reports whether performer has a pending request in
// username's inbox.
func (d *Database) IsRequestingFriend(performer, username string) (bool, error) {
	var count int64
	err := d.db.Model(&models.FriendRequest{}).
		Where("username = ? AND requester = ?", username, performer).
		Count(&count).Error
	return count > 0, err
}

// RequestFriend files a friend request in username's inbox. When performer
// is blocked by username the request is silently dropped (requested=false)
// rather than leaking the block.
func (d *Database) RequestFriend(performer, username string) (bool, error) {
	for _, u := range []string{performer, username} {
		exists, err := d.IsUser(u)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, ErrInvalid
		}
	}

	isFriend, err := d.IsFriend(performer, username)
	if err != nil {
		return false, err
	}
	if isFriend {
		return false, ErrAlreadyFriends
	}

	requesting, err := d.IsRequestingFriend(performer, username)
	if err != nil {
		return false, err
	}
	if requesting {
		return false, ErrAlreadyRequested
	}

	blocked, err := d.IsBlocked(performer, username)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	request := &models.FriendRequest{
		Username:  username,
		Requester: performer,
		CreatedAt: time.Now(),
	}
	if err := d.db.Create(request).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ReplyRequestFriend resolves a pending request from requester. Accept
// mutates both friend lists then clears the request; deny only clears it.
// The two accept writes are sequential with no rollback.
func (d *Database) ReplyRequestFriend(performer, requester, action string) error {
	for _, u := range []string{performer, requester} {
		exists, err := d.IsUser(u)
		if err != nil {
			return err
		}
		if !exists {
			return ErrInvalid
		}
	}

	isFriend, err := d.IsFriend(performer, requester)
	if err != nil {
		return err
	}
	if isFriend {
		return ErrAlreadyFriends
	}

	requesting, err := d.IsRequestingFriend(requester, performer)
	if err != nil {
		return err
	}
	if !requesting {
		return ErrNoSuchRequest
	}

	switch action {
	case "accept":
		if err := d.db.Create(&models.Friendship{Username: performer, Friend: requester}).Error; err != nil {
			return err
		}
		if err := d.db.Create(&models.Friendship{Username: requester, Friend: performer}).Error; err != nil {
			return err
		}
	case "deny":
	default:
		return fmt.Errorf("%w: unknown action", ErrInvalid)
	}

	return d.db.
		Where("username = ? AND requester = ?", performer, requester).
		Delete(&models.FriendRequest{}).Error
}

// UnfriendUser removes the relation from both sides.
func (d *Database) UnfriendUser(performer, username string) error {
	isFriend, err := d.IsFriend(performer, username)
	if err != nil {
		return err
	}
	if !isFriend {
		return ErrNotFriends
	}

	if err := d.db.
		Where("username = ? AND friend = ?", performer, username).
		Delete(&models.Friendship{}).Error; err != nil {
		return err
	}
	return d.db.
		Where("username = ? AND friend = ?", username, performer).
		Delete(&models.Friendship{}).Error
}

// BlockUser unfriends first when needed, then records the block. Blocking
// an already-blocked user is a no-op.
func (d *Database) BlockUser(performer, username string) error {
	for _, u := range []string{performer, username} {
		exists, err := d.IsUser(u)
		if err != nil {
			return err
		}
		if !exists {
			return ErrInvalid
		}
	}

	isFriend, err := d.IsFriend(performer, username)
	if err != nil {
		return err
	}
	if isFriend {
		if err := d.UnfriendUser(performer, username); err != nil {
			return err
		}
	}

	var count int64
	if err := d.db.Model(&models.Block{}).
		Where("username = ? AND blocked = ?", performer, username).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return d.db.Create(&models.Block{Username: performer, Blocked: username}).Error
}

// UpdateRooms maintains the user-side membership list.
func (d *Database) UpdateRooms(username, roomID string, action RoomsAction) error {
	switch action {
	case RoomsAdd:
		return d.db.Create(&models.Membership{Username: username, RoomID: roomID}).Error
	case RoomsRemove:
		return d.db.
			Where("username = ? AND room_id = ?", username, roomID).
			Delete(&models.Membership{}).Error
	default:
		return fmt.Errorf("%w: missing or incorrect action", ErrInvalid)
	}
}

// UpdateStatus is the single writer of the persisted presence pointer.
func (d *Database) UpdateStatus(username, connectionID string, action StatusAction) error {
	var updates map[string]interface{}
	switch action {
	case StatusLogin:
		updates = map[string]interface{}{"online": true, "connection_id": connectionID}
	case StatusLogout:
		updates = map[string]interface{}{"online": false, "connection_id": ""}
	default:
		return fmt.Errorf("%w: missing or incorrect action", ErrInvalid)
	}

	result := d.db.Model(&models.User{}).Where("username = ?", username).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoSuchUser
	}
	return nil
}

// IsConnectedUser never fails on an unknown user: it resolves to offline.
func (d *Database) IsConnectedUser(username string) (Presence, error) {
	var user models.User
	err := d.db.First(&user, "username = ? AND online = ?", username, true).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return Presence{Username: username, Online: false}, nil
		}
		return Presence{}, err
	}
	return Presence{Username: username, Online: true, ConnectionID: user.ConnectionID}, nil
}

// SearchResult is a candidate for invitation into a room.
type SearchResult struct {
	User string `json:"user"`
}

// SearchUsers pattern-matches handles against query, dropping users the
// performer blocked, the room's whitelisted users and its current guests.
// The performer must be a guest of the room.
func (d *Database) SearchUsers(performer, roomID, query string) ([]SearchResult, error) {
	isGuest, err := d.IsGuest(performer, roomID)
	if err != nil {
		return nil, err
	}
	if !isGuest {
		return nil, ErrForbidden
	}

	var candidates []string
	err = d.db.Model(&models.User{}).
		Where("username LIKE ?", "%"+query+"%").
		Pluck("username", &candidates).Error
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == performer {
			continue
		}

		var blocked int64
		if err := d.db.Model(&models.Block{}).
			Where("username = ? AND blocked = ?", performer, candidate).
			Count(&blocked).Error; err != nil {
			return nil, err
		}
		if blocked > 0 {
			continue
		}

		whitelisted, err := d.IsWhitelisted(candidate, roomID)
		if err != nil {
			return nil, err
		}
		if whitelisted {
			continue
		}

		guest, err := d.IsGuest(candidate, roomID)
		if err != nil {
			return nil, err
		}
		if guest {
			continue
		}

		results = append(results, SearchResult{User: candidate})
	}
	return results, nil
}
