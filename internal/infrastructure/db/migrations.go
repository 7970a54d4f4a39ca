package db

import (
	"github.com/agentdock/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.QueueRecord{},
		&domain.UserMemory{},
		&domain.JournalEntry{},
	)
	if err != nil {
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		return err
	}

	return nil
}

func createCustomIndexes(db *gorm.DB) error {
	// Case-insensitive keyword lookup on user names
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_user_memories_user_name_lower
		ON user_memories (lower(user_name))
	`).Error; err != nil {
		return err
	}

	// Journal entries are read per run in insertion order
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_journal_entries_run
		ON journal_entries (run_id, created_at)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return err
	}

	return nil
}
