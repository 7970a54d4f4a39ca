package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
)

// PostgresQueue is a MessageQueue stored in the queue_messages table.
type PostgresQueue struct {
	name string
	repo ports.QueueRepository
}

func NewPostgresQueue(ctx context.Context, name string, repo ports.QueueRepository) (*PostgresQueue, error) {
	if err := repo.EnsureQueue(ctx, name); err != nil {
		return nil, fmt.Errorf("ensure queue %s: %w", name, err)
	}
	return &PostgresQueue{name: name, repo: repo}, nil
}

func (q *PostgresQueue) Name() string { return q.name }

func (q *PostgresQueue) Send(ctx context.Context, body string) error {
	return q.repo.Push(ctx, q.name, body)
}

func (q *PostgresQueue) Receive(ctx context.Context, max int, visibility time.Duration) ([]ports.QueueMessage, error) {
	records, err := q.repo.Lease(ctx, q.name, max, visibility)
	if err != nil {
		return nil, err
	}
	out := make([]ports.QueueMessage, 0, len(records))
	for _, r := range records {
		out = append(out, ports.QueueMessage{
			ID:           strconv.FormatUint(uint64(r.ID), 10),
			PopReceipt:   r.PopReceipt,
			Body:         r.Body,
			DequeueCount: r.DequeueCount,
		})
	}
	return out, nil
}

func (q *PostgresQueue) Delete(ctx context.Context, msg ports.QueueMessage) error {
	id, err := strconv.ParseUint(msg.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("queue: invalid message id %q: %w", msg.ID, err)
	}
	return q.repo.Delete(ctx, uint(id), msg.PopReceipt)
}
