package database

import (
	"gorm.io/gorm"

	"github.com/karousn/sftpbridge/internal/errorlog"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&errorlog.ErrorLog{},
	)
}
