package models

import (
	"time"
)

// User is keyed by its immutable handle. Presence lives in the two
// activity columns and is only ever written by Database.UpdateStatus.
type User struct {
	Username     string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Pseudo       string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	Online       bool   `gorm:"default:false"`
	ConnectionID string
	CreatedAt    time.Time
}

// Membership is the user-side room list, written only through
// Database.UpdateRooms. It duplicates the guest list held on the room
// side; the two are kept in sync by the composite operations, not by the
// store.
type Membership struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"uniqueIndex:idx_membership;not null"`
	RoomID   string `gorm:"uniqueIndex:idx_membership;not null"`
}

// Friendship stores one row per direction; accepting a request writes both.
type Friendship struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"uniqueIndex:idx_friendship;not null"`
	Friend   string `gorm:"uniqueIndex:idx_friendship;not null"`
}

// FriendRequest is held on the recipient side, like an inbox.
type FriendRequest struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex:idx_friendrequest;not null"` // recipient
	Requester string `gorm:"uniqueIndex:idx_friendrequest;not null"`
	CreatedAt time.Time
}

type Block struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"uniqueIndex:idx_block;not null"` // who blocks
	Blocked  string `gorm:"uniqueIndex:idx_block;not null"`
}
