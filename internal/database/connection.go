package database

import (
	"errors"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/parloir/parloir/internal/models"
)

func (d *Database) Connect() error {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
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
	)
	if err != nil {
		return err
	}

	d.db = db

	return nil
}
