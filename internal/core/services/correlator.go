package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

// waiter is the completion slot of one pending message id.
type waiter struct {
	ch      chan *domain.ResponseMessage
	claimed bool
}

type queueCorrelator struct {
	commands  ports.MessageQueue
	responses ports.MessageQueue
	cfg       config.QueueConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*waiter

	// one poll at a time, so a lease taken by this process is not
	// invalidated by a sibling waiter before it is deleted
	pollMu sync.Mutex
}

func NewQueueCorrelator(commands, responses ports.MessageQueue, cfg config.QueueConfig, log *logger.Logger, m *metrics.Metrics) ports.QueueCorrelator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 300 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &queueCorrelator{
		commands:  commands,
		responses: responses,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		pending:   make(map[string]*waiter),
	}
}

// Send enqueues command and registers its id as pending.
func (c *queueCorrelator) Send(ctx context.Context, command, projectName string) (string, error) {
	if command == "" {
		return "", ErrEmptyCommand
	}
	id := uuid.NewString()
	body, err := json.Marshal(domain.NewCommandMessage(id, command, projectName))
	if err != nil {
		return "", fmt.Errorf("failed to marshal command: %w", err)
	}

	c.mu.Lock()
	c.pending[id] = &waiter{ch: make(chan *domain.ResponseMessage, 1)}
	c.mu.Unlock()

	if err := c.commands.Send(ctx, string(body)); err != nil {
		c.forget(id)
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	c.logger.Infow("correlator_command_sent", "message_id", id, "project_name", projectName)
	return id, nil
}

// AwaitResponse blocks until the response for messageID arrives or timeout
// elapses. The pending entry is cleared on both paths.
func (c *queueCorrelator) AwaitResponse(ctx context.Context, messageID string, timeout time.Duration) (*domain.ResponseMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.ResponseTimeout
	}

	c.mu.Lock()
	w, ok := c.pending[messageID]
	if !ok {
		// sent by another process or already resolved; wait on a fresh slot
		w = &waiter{ch: make(chan *domain.ResponseMessage, 1)}
		c.pending[messageID] = w
	}
	c.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		c.poll(ctx)

		select {
		case resp := <-w.ch:
			return resp, nil
		default:
		}

		select {
		case resp := <-w.ch:
			return resp, nil
		case <-ticker.C:
		case <-deadline.C:
			// claims and hand-offs happen under pollMu, so after this
			// nothing can still be on its way to w.ch
			c.pollMu.Lock()
			c.forget(messageID)
			c.pollMu.Unlock()
			select {
			case resp := <-w.ch:
				return resp, nil
			default:
			}
			c.metrics.IncTimeout()
			c.logger.Warnw("correlator_response_timeout", "message_id", messageID, "timeout", timeout)
			return nil, fmt.Errorf("%w: message id %s after %s", ErrResponseTimeout, messageID, timeout)
		case <-ctx.Done():
			c.forget(messageID)
			return nil, ctx.Err()
		}
	}
}

// Execute sends command and waits with the configured response timeout.
func (c *queueCorrelator) Execute(ctx context.Context, command, projectName string) (*domain.ResponseMessage, error) {
	id, err := c.Send(ctx, command, projectName)
	if err != nil {
		return nil, err
	}
	return c.AwaitResponse(ctx, id, c.cfg.ResponseTimeout)
}

func (c *queueCorrelator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// poll reads one batch of responses and hands every message that belongs
// to a pending waiter of this process to its owner. Others stay queued.
func (c *queueCorrelator) poll(ctx context.Context) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	msgs, err := c.responses.Receive(ctx, c.cfg.BatchSize, 0)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warnw("correlator_receive_failed", "queue", c.responses.Name(), "error", err)
		}
		return
	}

	for _, msg := range msgs {
		var resp domain.ResponseMessage
		if err := json.Unmarshal([]byte(msg.Body), &resp); err != nil {
			c.logger.Warnw("correlator_malformed_response", "queue_message_id", msg.ID, "error", err)
			continue
		}
		if resp.MessageID == "" {
			c.logger.Warnw("correlator_response_without_id", "queue_message_id", msg.ID)
			continue
		}

		w := c.claim(resp.MessageID)
		if w == nil {
			continue
		}
		if err := c.responses.Delete(ctx, msg); err != nil {
			c.logger.Warnw("correlator_delete_failed", "message_id", resp.MessageID, "error", err)
		}
		w.ch <- &resp
		c.logger.Infow("correlator_response_matched", "message_id", resp.MessageID, "success", resp.Succeeded())
	}
}

// claim removes id from the pending set and returns its waiter, or nil
// when id is not pending or was already claimed.
func (c *queueCorrelator) claim(id string) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.pending[id]
	if !ok || w.claimed {
		return nil
	}
	w.claimed = true
	delete(c.pending, id)
	return w
}

func (c *queueCorrelator) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
