package queue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/google/uuid"
)

var ErrMessageNotFound = errors.New("queue: message not found or receipt expired")

type memoryMessage struct {
	id           string
	body         string
	visibleAt    time.Time
	popReceipt   string
	dequeueCount int
}

// MemoryQueue is an in-process queue with the same lease semantics as the
// durable backends: received messages are hidden until the visibility
// timeout passes or they are deleted.
type MemoryQueue struct {
	name string
	mu   sync.Mutex
	seq  int
	msgs []*memoryMessage
	now  func() time.Time
}

func NewMemoryQueue(name string) *MemoryQueue {
	return &MemoryQueue{name: name, now: time.Now}
}

func (q *MemoryQueue) Name() string { return q.name }

func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.msgs = append(q.msgs, &memoryMessage{
		id:        strconv.Itoa(q.seq),
		body:      body,
		visibleAt: q.now(),
	})
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context, max int, visibility time.Duration) ([]ports.QueueMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []ports.QueueMessage
	for _, m := range q.msgs {
		if len(out) == max {
			break
		}
		if m.visibleAt.After(now) {
			continue
		}
		m.dequeueCount++
		m.popReceipt = uuid.NewString()
		m.visibleAt = now.Add(visibility)
		out = append(out, ports.QueueMessage{
			ID:           m.id,
			PopReceipt:   m.popReceipt,
			Body:         m.body,
			DequeueCount: m.dequeueCount,
		})
	}
	return out, nil
}

func (q *MemoryQueue) Delete(ctx context.Context, msg ports.QueueMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.msgs {
		if m.id == msg.ID && m.popReceipt == msg.PopReceipt {
			q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
			return nil
		}
	}
	return ErrMessageNotFound
}

// Len reports how many messages are stored, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}
