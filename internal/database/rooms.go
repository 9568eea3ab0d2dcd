package database

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parloir/parloir/internal/models"
)

var roomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{2,20}$`)

// RoomSnapshot is the guest/whitelist state returned by whitelistGuest.
type RoomSnapshot struct {
	Guests      []models.Guest `json:"guests"`
	Whitelisted []string       `json:"whitelisted"`
}

// CreateRoom registers the owner with the owner privilege, creates the
// main thread and updates the owner's room list. The four writes are
// applied in order with no rollback; a failure mid-sequence leaves the
// steps already taken in place.
func (d *Database) CreateRoom(name, owner string) (*models.Room, error) {
	if !roomNameRegex.MatchString(name) {
		return nil, ErrInvalid
	}

	exists, err := d.IsUser(owner)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoSuchUser
	}

	room := &models.Room{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     owner,
		CreatedAt: time.Now(),
	}
	if err := d.db.Create(room).Error; err != nil {
		return nil, err
	}

	if err := d.db.Create(&models.Guest{
		RoomID:    room.ID,
		Username:  owner,
		Privilege: models.PrivilegeOwner,
		CreatedAt: room.CreatedAt,
	}).Error; err != nil {
		return nil, err
	}

	thread, err := d.CreateThread(room.ID, "Main thread")
	if err != nil {
		return nil, err
	}
	room.MainThreadID = thread.ID
	if err := d.db.Model(room).Update("main_thread_id", thread.ID).Error; err != nil {
		return nil, err
	}

	if err := d.UpdateRooms(owner, room.ID, RoomsAdd); err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom is membership-gated: only current guests may read a room.
func (d *Database) GetRoom(performer, roomID string) (*models.Room, error) {
	isGuest, err := d.IsGuest(performer, roomID)
	if err != nil {
		return nil, err
	}
	if !isGuest {
		return nil, ErrForbidden
	}

	var room models.Room
	err = d.db.
		Preload("Guests").
		Preload("Whitelisted").
		Preload("Threads").
		First(&room, "id = ?", roomID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (d *Database) RenameRoom(performer, roomID, newName string) (string, error) {
	if !roomNameRegex.MatchString(newName) {
		return "", ErrInvalid
	}
	if err := d.requirePrivilege(performer, roomID); err != nil {
		return "", err
	}

	result := d.db.Model(&models.Room{}).Where("id = ?", roomID).Update("name", newName)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", ErrRoomNotFound
	}
	return newName, nil
}

// DeleteRoom cascades over messages, threads, guests, whitelist and
// memberships, then removes the room itself. Only the owner may delete.
// Returns the former guest usernames so callers can notify them.
func (d *Database) DeleteRoom(performer, roomID string) ([]string, error) {
	privilege, err := d.GetPrivilege(performer, roomID)
	if err != nil {
		return nil, err
	}
	if privilege != models.PrivilegeOwner {
		return nil, ErrPrivilege
	}

	var guests []string
	if err := d.db.Model(&models.Guest{}).
		Where("room_id = ?", roomID).
		Pluck("username", &guests).Error; err != nil {
		return nil, err
	}

	steps := []error{
		d.db.Where("room_id = ?", roomID).Delete(&models.Message{}).Error,
		d.db.Where("room_id = ?", roomID).Delete(&models.Thread{}).Error,
		d.db.Where("room_id = ?", roomID).Delete(&models.Guest{}).Error,
		d.db.Where("room_id = ?", roomID).Delete(&models.WhitelistEntry{}).Error,
		d.db.Where("room_id = ?", roomID).Delete(&models.Membership{}).Error,
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}

	if err := d.db.Delete(&models.Room{}, "id = ?", roomID).Error; err != nil {
		return nil, err
	}
	return guests, nil
}

// AddGuest authorization chain, each gate short-circuiting with its own
// failure: performer guest, performer privilege, target not whitelisted,
// target exists, target not already guest.
func (d *Database) AddGuest(performer, username, roomID string, privilege models.Privilege) ([]models.Guest, error) {
	if err := d.requirePrivilege(performer, roomID); err != nil {
		return nil, err
	}

	whitelisted, err := d.IsWhitelisted(username, roomID)
	if err != nil {
		return nil, err
	}
	if whitelisted {
		return nil, ErrWhitelisted
	}

	exists, err := d.IsUser(username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoSuchUser
	}

	isGuest, err := d.IsGuest(username, roomID)
	if err != nil {
		return nil, err
	}
	if isGuest {
		return nil, ErrAlreadyGuest
	}

	if privilege != models.PrivilegeSuper {
		privilege = models.PrivilegeBasic
	}

	if err := d.UpdateRooms(username, roomID, RoomsAdd); err != nil {
		return nil, err
	}
	if err := d.db.Create(&models.Guest{
		RoomID:    roomID,
		Username:  username,
		Privilege: privilege,
		CreatedAt: time.Now(),
	}).Error; err != nil {
		return nil, err
	}
	return d.RoomGuests(roomID)
}

// RemoveGuest tears down both sides of the membership. The owner entry is
// never removable.
func (d *Database) RemoveGuest(performer, username, roomID string) ([]models.Guest, error) {
	if err := d.requirePrivilege(performer, roomID); err != nil {
		return nil, err
	}

	isGuest, err := d.IsGuest(username, roomID)
	if err != nil {
		return nil, err
	}
	if !isGuest {
		return nil, ErrNotGuest
	}

	privilege, err := d.GetPrivilege(username, roomID)
	if err != nil {
		return nil, err
	}
	if privilege == models.PrivilegeOwner {
		return nil, ErrOwnerImmutable
	}

	if err := d.UpdateRooms(username, roomID, RoomsRemove); err != nil {
		return nil, err
	}
	if err := d.db.
		Where("room_id = ? AND username = ?", roomID, username).
		Delete(&models.Guest{}).Error; err != nil {
		return nil, err
	}
	return d.RoomGuests(roomID)
}

// LeaveGuest is the self-service variant used by leave-room. The owner
// cannot leave their own room.
func (d *Database) LeaveGuest(username, roomID string) error {
	privilege, err := d.GetPrivilege(username, roomID)
	if err != nil {
		return err
	}
	if privilege == models.PrivilegeOwner {
		return ErrOwnerImmutable
	}

	if err := d.UpdateRooms(username, roomID, RoomsRemove); err != nil {
		return err
	}
	return d.db.
		Where("room_id = ? AND username = ?", roomID, username).
		Delete(&models.Guest{}).Error
}

// WhitelistGuest adds username to the whitelist; a current guest is
// evicted first (never the owner), both updates applied together.
func (d *Database) WhitelistGuest(performer, username, roomID string) (*RoomSnapshot, error) {
	if err := d.requirePrivilege(performer, roomID); err != nil {
		return nil, err
	}

	whitelisted, err := d.IsWhitelisted(username, roomID)
	if err != nil {
		return nil, err
	}
	if whitelisted {
		return nil, ErrAlreadyWhitelisted
	}

	isGuest, err := d.IsGuest(username, roomID)
	if err != nil {
		return nil, err
	}
	if isGuest {
		privilege, err := d.GetPrivilege(username, roomID)
		if err != nil {
			return nil, err
		}
		if privilege == models.PrivilegeOwner {
			return nil, ErrOwnerImmutable
		}

		if err := d.UpdateRooms(username, roomID, RoomsRemove); err != nil {
			return nil, err
		}
		if err := d.db.
			Where("room_id = ? AND username = ?", roomID, username).
			Delete(&models.Guest{}).Error; err != nil {
			return nil, err
		}
	}

	if err := d.db.Create(&models.WhitelistEntry{RoomID: roomID, Username: username}).Error; err != nil {
		return nil, err
	}

	guests, err := d.RoomGuests(roomID)
	if err != nil {
		return nil, err
	}
	var wl []string
	if err := d.db.Model(&models.WhitelistEntry{}).
		Where("room_id = ?", roomID).
		Pluck("username", &wl).Error; err != nil {
		return nil, err
	}
	return &RoomSnapshot{Guests: guests, Whitelisted: wl}, nil
}

// AddThread creates a thread in the room's index, privilege-gated.
func (d *Database) AddThread(performer, roomID, title string) (*models.Thread, error) {
	if err := d.requirePrivilege(performer, roomID); err != nil {
		return nil, err
	}
	return d.CreateThread(roomID, title)
}

func (d *Database) GetPrivilege(username, roomID string) (models.Privilege, error) {
	var guest models.Guest
	err := d.db.First(&guest, "room_id = ? AND username = ?", roomID, username).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrNotGuest
		}
		return "", err
	}
	return guest.Privilege, nil
}

func (d *Database) IsGuest(username, roomID string) (bool, error) {
	var count int64
	err := d.db.Model(&models.Guest{}).
		Where("room_id = ? AND username = ?", roomID, username).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) IsWhitelisted(username, roomID string) (bool, error) {
	var count int64
	err := d.db.Model(&models.WhitelistEntry{}).
		Where("room_id = ? AND username = ?", roomID, username).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) RoomGuests(roomID string) ([]models.Guest, error) {
	var guests []models.Guest
	err := d.db.
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&guests).Error
	return guests, err
}

// requirePrivilege gates mutating guest operations: performer must be a
// guest and hold more than basic privilege.
func (d *Database) requirePrivilege(performer, roomID string) error {
	isGuest, err := d.IsGuest(performer, roomID)
	if err != nil {
		return err
	}
	if !isGuest {
		return ErrForbidden
	}

	privilege, err := d.GetPrivilege(performer, roomID)
	if err != nil {
		return err
	}
	if privilege == models.PrivilegeBasic {
		return ErrPrivilege
	}
	return nil
}
