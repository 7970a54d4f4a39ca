package services

import (
	"context"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/infrastructure/logger"
)

// JournalCleaner periodically drops journal entries older than the
// retention window.
type JournalCleaner struct {
	repo      ports.JournalRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewJournalCleaner(repo ports.JournalRepository, retention time.Duration, log *logger.Logger) *JournalCleaner {
	interval := time.Hour
	if retention > 0 && retention < interval {
		interval = retention
	}
	return &JournalCleaner{repo: repo, retention: retention, interval: interval, logger: log}
}

// Run sweeps once immediately and then on every interval until ctx is done.
// A non-positive retention disables cleanup.
func (c *JournalCleaner) Run(ctx context.Context) {
	if c.retention <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		c.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *JournalCleaner) Sweep(ctx context.Context) {
	if err := c.repo.CleanupOld(ctx, c.retention); err != nil {
		c.logger.Warnw("journal_cleanup_failed", "retention", c.retention, "error", err)
		return
	}
	c.logger.Debugw("journal cleaned", "retention", c.retention)
}
