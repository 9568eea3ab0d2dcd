package models

import (
	"time"
)

type Media string

const (
	MediaText  Media = "text"
	MediaImage Media = "image"
	MediaLink  Media = "link"
)

// Message is immutable after creation; it only ever disappears through a
// thread cascade delete.
type Message struct {
	ID        string `gorm:"primaryKey"`
	ThreadID  string `gorm:"index;not null"`
	RoomID    string `gorm:"index;not null"`
	Author    string `gorm:"not null"`
	Media     Media  `gorm:"not null"`
	Content   string `gorm:"not null"`
	CreatedAt time.Time
}
