package database

import "gorm.io/gorm"

// Database wraps the document store. One instance is constructed at
// process start and handed by reference to every handler.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}
