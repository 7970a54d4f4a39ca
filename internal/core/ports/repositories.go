package ports

import (
	"context"
	"time"

	"github.com/agentdock/backend/internal/domain"
)

type QueueRepository interface {
	Push(ctx context.Context, queue, body string) error
	Lease(ctx context.Context, queue string, max int, visibility time.Duration) ([]domain.QueueRecord, error)
	Delete(ctx context.Context, id uint, popReceipt string) error
	EnsureQueue(ctx context.Context, queue string) error
}

type MemoryRepository interface {
	Create(ctx context.Context, memory *domain.UserMemory) error
	// SearchByUserName is a keyword match and may return other users whose
	// names contain the keyword.
	SearchByUserName(ctx context.Context, keyword string, limit int) ([]domain.UserMemory, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.UserMemory, error)
	Delete(ctx context.Context, id string) error
}

type JournalRepository interface {
	Create(ctx context.Context, entry *domain.JournalEntry) error
	GetByRun(ctx context.Context, runID string) ([]domain.JournalEntry, error)
	GetAll(ctx context.Context, limit int) ([]domain.JournalEntry, error)
	CleanupOld(ctx context.Context, olderThan time.Duration) error
}
