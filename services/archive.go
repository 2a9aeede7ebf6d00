package services

import (
	"github.com/vicradon/media-fetcher/database"
	"github.com/vicradon/media-fetcher/models"

	"gorm.io/gorm"
)

// HistoryArchive copies completed history entries into Postgres. The
// in-memory History stays the source of truth; the archive is write-only.
type HistoryArchive struct {
	db *gorm.DB
}

func NewHistoryArchive(db *gorm.DB) *HistoryArchive {
	return &HistoryArchive{db: db}
}

func (a *HistoryArchive) Archive(entry models.HistoryEntry) error {
	return database.SaveHistoryEntry(a.db, &entry)
}
