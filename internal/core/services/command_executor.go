package services

import (
	"context"
	"fmt"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/metrics"
)

// ExecutorBackends wires the available execution paths. Nil entries are
// unavailable.
type ExecutorBackends struct {
	Local      ports.CommandRunner
	SSH        ports.CommandRunner
	Correlator ports.QueueCorrelator
}

type commandExecutor struct {
	backends    ExecutorBackends
	defaultKind domain.ExecutorBackend
	projectsDir string
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewCommandExecutor(backends ExecutorBackends, defaultKind domain.ExecutorBackend, projectsDir string, log *logger.Logger, m *metrics.Metrics) ports.CommandExecutor {
	return &commandExecutor{
		backends:    backends,
		defaultKind: defaultKind,
		projectsDir: projectsDir,
		logger:      log,
		metrics:     m,
	}
}

// ProjectsDir is the base directory project names resolve against.
func (e *commandExecutor) ProjectsDir() string {
	return domain.ResolveProjectDir(e.projectsDir, "")
}

func (e *commandExecutor) DefaultBackend() domain.ExecutorBackend {
	return e.defaultKind
}

// Execute runs one command on the selected backend. It never returns an
// error; every failure is folded into the result.
func (e *commandExecutor) Execute(ctx context.Context, input ports.ExecuteInput) domain.CommandResult {
	kind := input.Backend
	if kind == "" {
		kind = e.defaultKind
	}

	start := time.Now()
	res := e.run(ctx, kind, input)
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	e.metrics.ObserveCommand(string(kind), res.Success, res.Duration.Seconds())
	if res.Success {
		e.logger.Infow("command executed", "backend", kind, "command", input.Command, "project_name", input.ProjectName, "duration", res.Duration)
	} else {
		e.logger.Warnw("command failed", "backend", kind, "command", input.Command, "project_name", input.ProjectName, "error", res.Error)
	}
	return res
}

func (e *commandExecutor) run(ctx context.Context, kind domain.ExecutorBackend, input ports.ExecuteInput) (res domain.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.FailedResult(fmt.Errorf("executor panic: %v", r))
		}
	}()

	workdir := domain.ResolveProjectDir(e.projectsDir, input.ProjectName)
	switch kind {
	case domain.ExecutorLocal:
		if e.backends.Local == nil {
			return domain.FailedResult(fmt.Errorf("%w: %s", ErrBackendUnavailable, kind))
		}
		return e.backends.Local.Run(ctx, input.Command, workdir)
	case domain.ExecutorSSH:
		if e.backends.SSH == nil {
			return domain.FailedResult(fmt.Errorf("%w: %s", ErrBackendUnavailable, kind))
		}
		return e.backends.SSH.Run(ctx, input.Command, workdir)
	case domain.ExecutorQueue:
		if e.backends.Correlator == nil {
			return domain.FailedResult(fmt.Errorf("%w: %s", ErrBackendUnavailable, kind))
		}
		// the sandbox worker resolves the project directory itself
		resp, err := e.backends.Correlator.Execute(ctx, input.Command, input.ProjectName)
		if err != nil {
			return domain.FailedResult(err)
		}
		return domain.ResultFromResponse(resp)
	}
	return domain.FailedResult(fmt.Errorf("%w: %q", ErrUnknownBackend, kind))
}
