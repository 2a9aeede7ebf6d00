package database

import (
	"github.com/vicradon/media-fetcher/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the archive database and migrates the history table.
func Init(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.HistoryEntry{}); err != nil {
		return nil, err
	}

	return db, nil
}

func SaveHistoryEntry(db *gorm.DB, entry *models.HistoryEntry) error {
	return db.Create(entry).Error
}
