package services

import (
	"context"
	"testing"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestratorStartsBrowsers(t *testing.T) {
	fanout, _ := newFanOut(&fakeProvider{}, &fakeCollector{})
	o := NewOrchestrator(fanout, nil, logger.NewNop())

	out, err := o.Orchestrate(context.Background(), ports.OrchestratorInput{Task: "learn fiber", BrowserCount: 2})
	require.NoError(t, err)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, "Orchestrator completed successfully", out.Message)
	assert.NotEmpty(t, out.SessionID)
	assert.Len(t, out.Browsers, 2)
	fanout.Wait()
}

func TestOrchestratorReportsFanOutFailure(t *testing.T) {
	fanout, _ := newFanOut(&fakeProvider{failAt: map[int]bool{0: true}}, &fakeCollector{})
	o := NewOrchestrator(fanout, nil, logger.NewNop())

	out, err := o.Orchestrate(context.Background(), ports.OrchestratorInput{Task: "t", BrowserCount: 1})
	require.ErrorIs(t, err, ErrAllBrowsersFailed)
	assert.Equal(t, "error", out.Status)
	assert.Contains(t, out.Message, "Error orchestrating task: ")
	assert.NotNil(t, out.Browsers)
	assert.Empty(t, out.Browsers)
}

func TestOrchestratorPublishesDocumentation(t *testing.T) {
	files := &memoryFiles{}
	o := NewOrchestrator(nil, NewDocPublisher(files, nil, "/projects", logger.NewNop()), logger.NewNop())

	out, err := o.Orchestrate(context.Background(), ports.OrchestratorInput{
		Task:                   "learn fiber",
		Documentation:          "use app.Get",
		PullRequestDescription: "collected docs",
		RepoInfo:               map[string]interface{}{"clone_url": "https://github.com/acme/shop.git"},
	})
	require.NoError(t, err)
	assert.Equal(t, "docs/documentation-for-learn-fiber.md", out.Path)
	assert.Contains(t, files.files["/projects/shop/docs/documentation-for-learn-fiber.md"], "use app.Get")
}

func TestOrchestratorNeedsWork(t *testing.T) {
	o := NewOrchestrator(nil, nil, logger.NewNop())
	out, err := o.Orchestrate(context.Background(), ports.OrchestratorInput{Task: "t"})
	assert.ErrorIs(t, err, ErrNothingToOrchestrate)
	assert.Equal(t, "error", out.Status)
}

func TestProjectFromRepoInfo(t *testing.T) {
	assert.Equal(t, "shop", projectFromRepoInfo(map[string]interface{}{"name": "shop"}))
	assert.Equal(t, "api", projectFromRepoInfo(map[string]interface{}{"html_url": "https://github.com/acme/api"}))
	assert.Equal(t, "", projectFromRepoInfo(nil))
}
