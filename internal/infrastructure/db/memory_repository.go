package db

import (
	"context"
	"strings"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type memoryRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemoryRepository(db *gorm.DB, log *logger.Logger) ports.MemoryRepository {
	return &memoryRepository{db: db, log: log}
}

func (r *memoryRepository) Create(ctx context.Context, memory *domain.UserMemory) error {
	if err := r.db.WithContext(ctx).Create(memory).Error; err != nil {
		r.log.Errorw("memory_repo_create_failed", "user_name", memory.UserName, "error", err)
		return err
	}
	r.log.Infow("memory_repo_create_ok", "id", memory.ID, "user_name", memory.UserName)
	return nil
}

func (r *memoryRepository) SearchByUserName(ctx context.Context, keyword string, limit int) ([]domain.UserMemory, error) {
	if limit <= 0 {
		limit = 50
	}
	var memories []domain.UserMemory
	pattern := "%" + escapeLike(keyword) + "%"
	err := r.db.WithContext(ctx).
		Where("user_name ILIKE ?", pattern).
		Order("created_at desc").
		Limit(limit).
		Find(&memories).Error
	if err != nil {
		r.log.Errorw("memory_repo_search_failed", "keyword", keyword, "error", err)
		return nil, err
	}
	return memories, nil
}

func (r *memoryRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.UserMemory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var memories []domain.UserMemory
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&memories).Error; err != nil {
		r.log.Errorw("memory_repo_get_by_ids_failed", "count", len(ids), "error", err)
		return nil, err
	}
	return memories, nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.UserMemory{}).Error; err != nil {
		r.log.Errorw("memory_repo_delete_failed", "id", id, "error", err)
		return err
	}
	r.log.Infow("memory_repo_delete_ok", "id", id)
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
