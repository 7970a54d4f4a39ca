package db

import (
	"context"
	"errors"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrQueueReceiptMismatch = errors.New("queue: message not found or receipt expired")

type queueRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueueRepository(db *gorm.DB, log *logger.Logger) ports.QueueRepository {
	return &queueRepository{db: db, log: log}
}

func (r *queueRepository) EnsureQueue(ctx context.Context, queue string) error {
	if queue == "" {
		return errors.New("queue: name is required")
	}
	return r.db.WithContext(ctx).Exec("SELECT 1").Error
}

func (r *queueRepository) Push(ctx context.Context, queue, body string) error {
	rec := &domain.QueueRecord{
		Queue:     queue,
		Body:      body,
		VisibleAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		r.log.Errorw("queue_repo_push_failed", "queue", queue, "error", err)
		return err
	}
	return nil
}

// Lease claims up to max visible messages and hides them for visibility.
// Concurrent consumers skip rows another transaction is leasing.
func (r *queueRepository) Lease(ctx context.Context, queue string, max int, visibility time.Duration) ([]domain.QueueRecord, error) {
	if max <= 0 {
		max = 1
	}
	var leased []domain.QueueRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var recs []domain.QueueRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ? AND visible_at <= ?", queue, now).
			Order("id asc").
			Limit(max).
			Find(&recs).Error; err != nil {
			return err
		}
		for i := range recs {
			recs[i].PopReceipt = uuid.NewString()
			recs[i].DequeueCount++
			recs[i].VisibleAt = now.Add(visibility)
			if err := tx.Model(&domain.QueueRecord{}).
				Where("id = ?", recs[i].ID).
				Updates(map[string]interface{}{
					"pop_receipt":   recs[i].PopReceipt,
					"dequeue_count": recs[i].DequeueCount,
					"visible_at":    recs[i].VisibleAt,
				}).Error; err != nil {
				return err
			}
		}
		leased = recs
		return nil
	})
	if err != nil {
		r.log.Errorw("queue_repo_lease_failed", "queue", queue, "error", err)
		return nil, err
	}
	return leased, nil
}

func (r *queueRepository) Delete(ctx context.Context, id uint, popReceipt string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND pop_receipt = ?", id, popReceipt).
		Delete(&domain.QueueRecord{})
	if res.Error != nil {
		r.log.Errorw("queue_repo_delete_failed", "id", id, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQueueReceiptMismatch
	}
	return nil
}
