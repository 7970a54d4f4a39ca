package db

import (
	"context"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type journalRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJournalRepository(db *gorm.DB, log *logger.Logger) ports.JournalRepository {
	return &journalRepository{
		db:  db,
		log: log,
	}
}

func (r *journalRepository) Create(ctx context.Context, entry *domain.JournalEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.log.Errorw("journal_repo_create_failed", "run_id", entry.RunID, "type", entry.Type, "error", err)
		return err
	}
	r.log.Debugw("journal_repo_create_ok", "id", entry.ID, "run_id", entry.RunID, "type", entry.Type)
	return nil
}

func (r *journalRepository) GetByRun(ctx context.Context, runID string) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		r.log.Errorw("journal_repo_get_by_run_failed", "run_id", runID, "error", err)
		return nil, err
	}
	return entries, nil
}

func (r *journalRepository) GetAll(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		r.log.Errorw("journal_repo_list_failed", "error", err)
		return nil, err
	}
	return entries, nil
}

// CleanupOld removes entries older than the specified duration
func (r *journalRepository) CleanupOld(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	if err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.JournalEntry{}).Error; err != nil {
		r.log.Errorw("journal_repo_cleanup_failed", "error", err)
		return err
	}
	r.log.Infow("journal_repo_cleanup_ok")
	return nil
}
