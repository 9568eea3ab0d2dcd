package database

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/parloir/parloir/internal/models"
)

// streamPageSize is the fixed page length of getStream.
const streamPageSize = 12

// CreateThread is also called internally by CreateRoom for the main thread.
func (d *Database) CreateThread(roomID, title string) (*models.Thread, error) {
	if title == "" {
		return nil, ErrInvalid
	}
	thread := &models.Thread{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := d.db.Create(thread).Error; err != nil {
		return nil, err
	}
	return thread, nil
}

func (d *Database) IsThreadOfRoom(threadID, roomID string) (bool, error) {
	var count int64
	err := d.db.Model(&models.Thread{}).
		Where("id = ? AND room_id = ?", threadID, roomID).
		Count(&count).Error
	return count > 0, err
}

// AddMessage appends to the thread feed after checking membership and the
// thread-belongs-to-room invariant. Nothing is written when a gate fails.
func (d *Database) AddMessage(performer, roomID, threadID string, media models.Media, content string) (*models.Message, error) {
	switch media {
	case models.MediaText, models.MediaImage, models.MediaLink:
	default:
		return nil, ErrInvalid
	}
	if content == "" {
		return nil, ErrInvalid
	}

	isGuest, err := d.IsGuest(performer, roomID)
	if err != nil {
		return nil, err
	}
	if !isGuest {
		return nil, ErrForbidden
	}

	ok, err := d.IsThreadOfRoom(threadID, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrThreadNotFound
	}

	message := &models.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		RoomID:    roomID,
		Author:    performer,
		Media:     media,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := d.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// GetThread returns the thread, optionally with its feed resolved to full
// message bodies.
func (d *Database) GetThread(performer, roomID, threadID string, withFeed bool) (*models.Thread, error) {
	isGuest, err := d.IsGuest(performer, roomID)
	if err != nil {
		return nil, err
	}
	if !isGuest {
		return nil, ErrForbidden
	}

	query := d.db
	if withFeed {
		query = query.Preload("Feed", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
	}

	var thread models.Thread
	if err := query.First(&thread, "id = ? AND room_id = ?", threadID, roomID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return &thread, nil
}

// GetStream pages the feed newest-first, at most 12 messages per call,
// skipping offset records.
func (d *Database) GetStream(performer, roomID, threadID string, offset int) ([]models.Message, error) {
	isGuest, err := d.IsGuest(performer, roomID)
	if err != nil {
		return nil, err
	}
	if !isGuest {
		return nil, ErrForbidden
	}

	ok, err := d.IsThreadOfRoom(threadID, roomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrThreadNotFound
	}
	if offset < 0 {
		return nil, ErrInvalid
	}

	var messages []models.Message
	err = d.db.
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(streamPageSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *Database) RenameThread(performer, roomID, threadID, newName string) (string, error) {
	if newName == "" {
		return "", ErrInvalid
	}
	if err := d.requirePrivilege(performer, roomID); err != nil {
		return "", err
	}

	ok, err := d.IsThreadOfRoom(threadID, roomID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrThreadNotFound
	}

	err = d.db.Model(&models.Thread{}).
		Where("id = ?", threadID).
		Update("title", newName).Error
	if err != nil {
		return "", err
	}
	return newName, nil
}

// DeleteThread removes every message of the feed concurrently, then the
// thread record once all deletions settled. A single message deletion
// failure aborts before the thread row is touched, so the feed is never
// left orphaned.
func (d *Database) DeleteThread(performer, roomID, threadID string) error {
	if err := d.requirePrivilege(performer, roomID); err != nil {
		return err
	}

	ok, err := d.IsThreadOfRoom(threadID, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrThreadNotFound
	}

	var feed []string
	if err := d.db.Model(&models.Message{}).
		Where("thread_id = ?", threadID).
		Pluck("id", &feed).Error; err != nil {
		return err
	}

	var g errgroup.Group
	for _, messageID := range feed {
		messageID := messageID
		g.Go(func() error {
			return d.db.Delete(&models.Message{}, "id = ?", messageID).Error
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return d.db.Delete(&models.Thread{}, "id = ?", threadID).Error
}
