package services

import (
	"context"
	"errors"
	"testing"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandExecutorLocalResolvesWorkdir(t *testing.T) {
	local := &fakeRunner{fn: func(string, string) domain.CommandResult {
		return domain.CommandResult{Success: true, Stdout: "hi\n"}
	}}
	e := NewCommandExecutor(ExecutorBackends{Local: local}, domain.ExecutorLocal, "/projects", logger.NewNop(), nil)

	res := e.Execute(context.Background(), ports.ExecuteInput{Command: "echo hi", ProjectName: "demo"})
	assert.True(t, res.Success)
	assert.Equal(t, "hi\n", res.Stdout)
	require.Len(t, local.Calls(), 1)
	assert.Equal(t, "/projects/demo", local.Calls()[0].Workdir)
}

func TestCommandExecutorQueuePassesProjectName(t *testing.T) {
	ok := true
	corr := &fakeCorrelator{resp: &domain.ResponseMessage{MessageID: "id", Success: &ok, Stdout: "a", Stderr: "b"}}
	e := NewCommandExecutor(ExecutorBackends{Correlator: corr}, domain.ExecutorQueue, "/projects", logger.NewNop(), nil)

	res := e.Execute(context.Background(), ports.ExecuteInput{Command: "ls", ProjectName: "demo"})
	assert.True(t, res.Success)
	assert.Equal(t, "ab", res.Output())
	assert.Equal(t, "demo", corr.project)
}

func TestCommandExecutorNormalizesFailures(t *testing.T) {
	corr := &fakeCorrelator{err: ErrResponseTimeout}
	e := NewCommandExecutor(ExecutorBackends{Correlator: corr}, domain.ExecutorQueue, "", logger.NewNop(), nil)

	res := e.Execute(context.Background(), ports.ExecuteInput{Command: "ls"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")

	res = e.Execute(context.Background(), ports.ExecuteInput{Command: "ls", Backend: domain.ExecutorSSH})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")

	res = e.Execute(context.Background(), ports.ExecuteInput{Command: "ls", Backend: "ftp"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown backend")
}

func TestCommandExecutorRecoversPanics(t *testing.T) {
	local := &fakeRunner{fn: func(string, string) domain.CommandResult { panic(errors.New("boom")) }}
	e := NewCommandExecutor(ExecutorBackends{Local: local}, domain.ExecutorLocal, "", logger.NewNop(), nil)

	res := e.Execute(context.Background(), ports.ExecuteInput{Command: "ls"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")
	assert.Equal(t, domain.ExecutorLocal, e.DefaultBackend())
}

func TestCommandExecutorProjectsDir(t *testing.T) {
	e := NewCommandExecutor(ExecutorBackends{}, domain.ExecutorLocal, "/srv/work", logger.NewNop(), nil)
	assert.Equal(t, "/srv/work", e.ProjectsDir())

	e = NewCommandExecutor(ExecutorBackends{}, domain.ExecutorLocal, "", logger.NewNop(), nil)
	assert.Equal(t, domain.DefaultProjectsDir, e.ProjectsDir())
}
