package database

import (
	"github.com/weiwangfds/filevault/internal/logger"
	"gorm.io/gorm"
)

// Migrate creates the metadata tables and the listing indexes that AutoMigrate
// cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&FileRecord{}, &FileTag{}, &TagRecord{}); err != nil {
		return err
	}

	indexes := []string{
		// public listing, newest first
		"CREATE INDEX IF NOT EXISTS idx_file_records_visibility_created ON file_records(visibility, created_at)",
		// per-user listing
		"CREATE INDEX IF NOT EXISTS idx_file_records_owner_created ON file_records(owner_id, created_at)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Errorf("failed to create index: %s: %v", stmt, err)
			return err
		}
	}
	return nil
}
