package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
)

var (
	ErrBadMessage     = errors.New("worker: message is not valid JSON")
	ErrMissingID      = errors.New("worker: message_id is required")
	ErrMissingCommand = errors.New("worker: command is required")
)

// Processor runs one command message and builds its response.
type Processor struct {
	runner      ports.CommandRunner
	projectsDir string
	logger      *logger.Logger
}

func NewProcessor(runner ports.CommandRunner, projectsDir string, log *logger.Logger) *Processor {
	return &Processor{runner: runner, projectsDir: projectsDir, logger: log}
}

// Handle decodes body and executes it. Messages without an id are
// rejected since no caller could match the response.
func (p *Processor) Handle(ctx context.Context, body string) (*domain.ResponseMessage, error) {
	var msg domain.CommandMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.MessageID == "" {
		return nil, ErrMissingID
	}
	if strings.TrimSpace(msg.Command) == "" {
		return failure(msg.MessageID, ErrMissingCommand.Error(), domain.CommandResult{}), nil
	}

	res := p.Run(ctx, msg.Command, msg.ProjectName)
	if !res.Success {
		return failure(msg.MessageID, res.Error, res), nil
	}
	ok := true
	return &domain.ResponseMessage{
		MessageID: msg.MessageID,
		Success:   &ok,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
	}, nil
}

// Run executes command in the project's directory.
func (p *Processor) Run(ctx context.Context, command, projectName string) domain.CommandResult {
	workdir := domain.ResolveProjectDir(p.projectsDir, projectName)
	p.logger.Infow("worker_execute", "command", command, "workdir", workdir)
	res := p.runner.Run(ctx, command, workdir)
	if !res.Success {
		p.logger.Warnw("worker_execute_failed", "command", command, "error", res.Error, "exit_code", res.ExitCode)
	}
	return res
}

func failure(id, errMsg string, res domain.CommandResult) *domain.ResponseMessage {
	ok := false
	// the shell's own message is more useful than the exit status
	if s := strings.TrimSpace(res.Stderr); s != "" && res.ExitCode > 0 {
		errMsg = s
	}
	return &domain.ResponseMessage{
		MessageID: id,
		Success:   &ok,
		Error:     errMsg,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
	}
}
