package services

import (
	"context"
	"testing"
	"time"

	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

func TestJournalCleanerSweepsWithRetention(t *testing.T) {
	journal := &memoryJournal{}
	c := NewJournalCleaner(journal, 48*time.Hour, logger.NewNop())

	c.Sweep(context.Background())

	assert.Equal(t, []time.Duration{48 * time.Hour}, journal.cleanups)
}

func TestJournalCleanerDisabled(t *testing.T) {
	journal := &memoryJournal{}
	c := NewJournalCleaner(journal, 0, logger.NewNop())

	// returns immediately without a cancelled context
	c.Run(context.Background())

	assert.Empty(t, journal.cleanups)
}

func TestJournalCleanerRunSweepsBeforeStopping(t *testing.T) {
	journal := &memoryJournal{}
	c := NewJournalCleaner(journal, time.Hour, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx)

	assert.Len(t, journal.cleanups, 1)
}
