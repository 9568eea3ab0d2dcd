package models

import (
	"time"
)

type Privilege string

const (
	PrivilegeOwner Privilege = "owner"
	PrivilegeSuper Privilege = "super"
	PrivilegeBasic Privilege = "basic"
)

type Room struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Owner        string `gorm:"not null"`
	MainThreadID string
	CreatedAt    time.Time

	Guests      []Guest          `gorm:"foreignKey:RoomID"`
	Whitelisted []WhitelistEntry `gorm:"foreignKey:RoomID"`
	Threads     []Thread         `gorm:"foreignKey:RoomID"`
}

// Guest is a room membership entry with its privilege tier. Exactly one
// guest per room carries the owner privilege.
type Guest struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    string    `gorm:"uniqueIndex:idx_guest;not null"`
	Username  string    `gorm:"uniqueIndex:idx_guest;not null"`
	Privilege Privilege `gorm:"default:'basic';not null"`
	CreatedAt time.Time
}

// WhitelistEntry marks a user exempt from re-invitation; also the eviction
// marker used by whitelist-guest.
type WhitelistEntry struct {
	ID       uint   `gorm:"primaryKey"`
	RoomID   string `gorm:"uniqueIndex:idx_whitelist;not null"`
	Username string `gorm:"uniqueIndex:idx_whitelist;not null"`
}
