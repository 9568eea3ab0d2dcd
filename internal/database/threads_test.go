package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parloir/parloir/internal/models"
)

// seedFeed inserts n messages with strictly increasing timestamps so the
// newest-first ordering is deterministic.
func seedFeed(t *testing.T, d *Database, roomID, threadID string, n int) {
	t.Helper()
	base := time.Now().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		require.NoError(t, d.db.Create(&models.Message{
			ID:        uuid.NewString(),
			ThreadID:  threadID,
			RoomID:    roomID,
			Author:    "alice",
			Media:     models.MediaText,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}).Error)
	}
}

func TestAddMessageGates(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	room, err := d.CreateRoom("general", "alice")
	require.NoError(t, err)
	other, err := d.CreateRoom("private", "alice")
	require.NoError(t, err)

	_, err = d.AddMessage("alice", room.ID, room.MainThreadID, "video", "hello")
	assert.ErrorIs(t, err, ErrInvalid, "unknown media kind")

	_, err = d.AddMessage("alice", room.ID, room.MainThreadID, models.MediaText, "")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = d.AddMessage("bob", room.ID, room.MainThreadID, models.MediaText, "hello")
	assert.ErrorIs(t, err, ErrForbidden)

	// a thread of another room is unreachable, and the gate writes nothing
	_, err = d.AddMessage("alice", room.ID, other.MainThreadID, models.MediaText, "hello")
	assert.ErrorIs(t, err, ErrThreadNotFound)
	stream, err := d.GetStream("alice", other.ID, other.MainThreadID, 0)
	require.NoError(t, err)
	assert.Empty(t, stream)

	message, err := d.AddMessage("alice", room.ID, room.MainThreadID, models.MediaText, "hello")
	require.NoError(t, err)
	assert.Equal(t, "alice", message.Author)
	assert.NotEmpty(t, message.ID)
}

func TestGetThreadFeed(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	room, err := d.CreateRoom("general", "alice")
	require.NoError(t, err)
	seedFeed(t, d, room.ID, room.MainThreadID, 3)

	_, err = d.GetThread("bob", room.ID, room.MainThreadID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	thread, err := d.GetThread("alice", room.ID, room.MainThreadID, false)
	require.NoError(t, err)
	assert.Empty(t, thread.Feed)

	thread, err = d.GetThread("alice", room.ID, room.MainThreadID, true)
	require.NoError(t, err)
	require.Len(t, thread.Feed, 3)
	assert.Equal(t, "message 0", thread.Feed[0].Content, "feed reads oldest-first")
}

func TestGetStreamPagination(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")

	room, err := d.CreateRoom("general", "alice")
	require.NoError(t, err)
	seedFeed(t, d, room.ID, room.MainThreadID, 30)

	_, err = d.GetStream("alice", room.ID, room.MainThreadID, -1)
	assert.ErrorIs(t, err, ErrInvalid)

	seen := make(map[string]bool)

	page, err := d.GetStream("alice", room.ID, room.MainThreadID, 0)
	require.NoError(t, err)
	require.Len(t, page, 12)
	assert.Equal(t, "message 29", page[0].Content, "first page starts at the newest message")
	for _, m := range page {
		seen[m.ID] = true
	}

	page, err = d.GetStream("alice", room.ID, room.MainThreadID, 12)
	require.NoError(t, err)
	require.Len(t, page, 12)
	for _, m := range page {
		assert.False(t, seen[m.ID], "pages must not overlap")
		seen[m.ID] = true
	}

	page, err = d.GetStream("alice", room.ID, room.MainThreadID, 24)
	require.NoError(t, err)
	require.Len(t, page, 6)
	assert.Equal(t, "message 0", page[5].Content, "last page ends at the oldest message")

	page, err = d.GetStream("alice", room.ID, room.MainThreadID, 30)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestRenameThread(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	room, err := d.CreateRoom("general", "alice")
	require.NoError(t, err)
	other, err := d.CreateRoom("private", "alice")
	require.NoError(t, err)
	_, err = d.AddGuest("alice", "bob", room.ID, models.PrivilegeBasic)
	require.NoError(t, err)

	_, err = d.RenameThread("alice", room.ID, room.MainThreadID, "")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = d.RenameThread("bob", room.ID, room.MainThreadID, "News")
	assert.ErrorIs(t, err, ErrPrivilege)

	_, err = d.RenameThread("alice", room.ID, other.MainThreadID, "News")
	assert.ErrorIs(t, err, ErrThreadNotFound)

	name, err := d.RenameThread("alice", room.ID, room.MainThreadID, "News")
	require.NoError(t, err)
	assert.Equal(t, "News", name)
}

func TestDeleteThreadCascade(t *testing.T) {
	d := newTestDatabase(t)
	seedUser(t, d, "alice")
	seedUser(t, d, "bob")

	room, err := d.CreateRoom("general", "alice")
	require.NoError(t, err)
	_, err = d.AddGuest("alice", "bob", room.ID, models.PrivilegeBasic)
	require.NoError(t, err)

	thread, err := d.AddThread("alice", room.ID, "side topic")
	require.NoError(t, err)
	seedFeed(t, d, room.ID, thread.ID, 5)

	assert.ErrorIs(t, d.DeleteThread("bob", room.ID, thread.ID), ErrPrivilege)

	require.NoError(t, d.DeleteThread("alice", room.ID, thread.ID))

	ok, err := d.IsThreadOfRoom(thread.ID, room.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	var count int64
	require.NoError(t, d.db.Model(&models.Message{}).Where("thread_id = ?", thread.ID).Count(&count).Error)
	assert.Zero(t, count, "the feed is deleted with the thread")
}
