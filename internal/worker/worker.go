// Package worker is the sandbox side of the queue transport: it leases
// command messages, runs them and posts correlated responses.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/cenkalti/backoff/v4"
)

const (
	maxConsecutiveErrors = 5
	errorPause           = 30 * time.Second
	errorBackoffBase     = 5 * time.Second
	errorBackoffMax      = 40 * time.Second
)

type Worker struct {
	commands   ports.MessageQueue
	responses  ports.MessageQueue
	processor  *Processor
	interval   time.Duration
	visibility time.Duration
	logger     *logger.Logger

	consecutiveErrors atomic.Int32
	processed         atomic.Int64
}

func New(commands, responses ports.MessageQueue, processor *Processor, cfg Config, log *logger.Logger) *Worker {
	cfg.SetDefaults()
	return &Worker{
		commands:   commands,
		responses:  responses,
		processor:  processor,
		interval:   cfg.PollInterval,
		visibility: cfg.VisibilityTimeout,
		logger:     log,
	}
}

// Run polls until ctx is cancelled. Poll errors back off exponentially;
// after several in a row the worker pauses longer but never gives up.
func (w *Worker) Run(ctx context.Context) {
	b := newErrorBackoff()
	w.logger.Infow("worker_started", "command_queue", w.commands.Name(), "response_queue", w.responses.Name(), "interval", w.interval)

	for {
		delay := w.interval
		if err := w.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			n := w.consecutiveErrors.Add(1)
			if n >= maxConsecutiveErrors {
				delay = errorPause
				w.logger.Errorw("worker_poll_failing", "consecutive_errors", n, "error", err, "retry_in", delay)
			} else {
				delay = b.NextBackOff()
				w.logger.Warnw("worker_poll_failed", "consecutive_errors", n, "error", err, "retry_in", delay)
			}
		} else {
			w.consecutiveErrors.Store(0)
			b.Reset()
		}

		select {
		case <-ctx.Done():
			w.logger.Infow("worker_stopped", "processed", w.processed.Load())
			return
		case <-time.After(delay):
		}
	}
	w.logger.Infow("worker_stopped", "processed", w.processed.Load())
}

// PollOnce leases at most one command, answers it and deletes it.
func (w *Worker) PollOnce(ctx context.Context) error {
	msgs, err := w.commands.Receive(ctx, 1, w.visibility)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	for _, msg := range msgs {
		if err := w.handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg ports.QueueMessage) error {
	resp, err := w.processor.Handle(ctx, msg.Body)
	switch {
	case errors.Is(err, ErrBadMessage), errors.Is(err, ErrMissingID):
		w.logger.Warnw("worker_message_rejected", "queue_message_id", msg.ID, "error", err)
	case err != nil:
		return err
	default:
		body, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if err := w.responses.Send(ctx, string(body)); err != nil {
			// the command stays leased and is retried after the visibility timeout
			return fmt.Errorf("send response %s: %w", resp.MessageID, err)
		}
		w.processed.Add(1)
		w.logger.Infow("worker_response_sent", "message_id", resp.MessageID, "success", *resp.Success)
	}

	if err := w.commands.Delete(ctx, msg); err != nil {
		return fmt.Errorf("delete command: %w", err)
	}
	return nil
}

// ConsecutiveErrors is reported by /health.
func (w *Worker) ConsecutiveErrors() int {
	return int(w.consecutiveErrors.Load())
}

func (w *Worker) Processed() int64 {
	return w.processed.Load()
}

// newErrorBackoff yields 5s, 10s, 20s, 40s, 40s, ...
func newErrorBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = errorBackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = errorBackoffMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
