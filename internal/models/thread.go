package models

import (
	"time"
)

// Thread is an ordered sub-conversation of a room. The room reference is
// immutable after creation; the feed is the set of messages pointing at
// the thread, ordered by creation time.
type Thread struct {
	ID        string `gorm:"primaryKey"`
	RoomID    string `gorm:"index;not null"`
	Title     string `gorm:"not null"`
	CreatedAt time.Time

	Feed []Message `gorm:"foreignKey:ThreadID"`
}
