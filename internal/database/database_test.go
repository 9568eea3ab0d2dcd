package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/parloir/parloir/internal/models"
)

// newTestDatabase opens the database pointed at by TEST_DATABASE_URL and
// wipes every table. Tests are skipped when the variable is unset.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Membership{},
		&models.Friendship{},
		&models.FriendRequest{},
		&models.Block{},
		&models.Room{},
		&models.Guest{},
		&models.WhitelistEntry{},
		&models.Thread{},
		&models.Message{},
	))

	wipe := []interface{}{
		&models.Message{},
		&models.Thread{},
		&models.Guest{},
		&models.WhitelistEntry{},
		&models.Membership{},
		&models.Room{},
		&models.Block{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.User{},
	}
	for _, model := range wipe {
		require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error)
	}

	return NewDatabase(db)
}

func seedUser(t *testing.T, d *Database, username string) {
	t.Helper()
	_, err := d.CreateUser(username, username+"@example.com", username, "password123")
	require.NoError(t, err)
}

// makeFriends runs the full request/accept cycle between two users.
func makeFriends(t *testing.T, d *Database, a, b string) {
	t.Helper()
	requested, err := d.RequestFriend(a, b)
	require.NoError(t, err)
	require.True(t, requested)
	require.NoError(t, d.ReplyRequestFriend(b, a, "accept"))
}
