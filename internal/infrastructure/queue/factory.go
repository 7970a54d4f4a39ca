package queue

import (
	"context"
	"fmt"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
)

// Channels is the pair of queues the correlator and the sandbox worker share.
type Channels struct {
	Commands  ports.MessageQueue
	Responses ports.MessageQueue
}

// Open builds both channels for the configured backend. repo is only
// needed by the postgres backend.
func Open(ctx context.Context, cfg config.QueueConfig, repo ports.QueueRepository) (*Channels, error) {
	open := func(name string) (ports.MessageQueue, error) {
		switch cfg.Backend {
		case "memory", "":
			return NewMemoryQueue(name), nil
		case "postgres":
			if repo == nil {
				return nil, fmt.Errorf("queue: postgres backend needs a database")
			}
			return NewPostgresQueue(ctx, name, repo)
		case "azure":
			return NewAzureQueue(ctx, cfg.ConnectionString, name)
		}
		return nil, fmt.Errorf("queue: unknown backend %q", cfg.Backend)
	}

	commands, err := open(cfg.CommandQueue)
	if err != nil {
		return nil, err
	}
	responses, err := open(cfg.ResponseQueue)
	if err != nil {
		return nil, err
	}
	return &Channels{Commands: commands, Responses: responses}, nil
}
