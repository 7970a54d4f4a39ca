package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
)

type orchestrator struct {
	fanout    ports.FanOutManager
	publisher ports.DocumentationPublisher
	logger    *logger.Logger
}

// NewOrchestrator fronts the fan-out manager and the documentation
// publisher behind a single request shape.
func NewOrchestrator(fanout ports.FanOutManager, publisher ports.DocumentationPublisher, log *logger.Logger) ports.Orchestrator {
	return &orchestrator{fanout: fanout, publisher: publisher, logger: log}
}

// Orchestrate starts browser sessions when a browser count is given, or
// publishes supplied documentation. The output is filled in on error too.
func (o *orchestrator) Orchestrate(ctx context.Context, input ports.OrchestratorInput) (*ports.OrchestratorOutput, error) {
	o.logger.Infow("orchestration started", "task", input.Task, "browser_count", input.BrowserCount, "has_documentation", input.Documentation != "")

	switch {
	case input.BrowserCount > 0:
		res, err := o.fanout.StartSessions(ctx, ports.StartSessionsInput{
			Task:         input.Task,
			BrowserCount: input.BrowserCount,
			UserName:     input.UserName,
			Mode:         domain.FanOutAsync,
		})
		if err != nil {
			return o.failed(err), err
		}
		return &ports.OrchestratorOutput{
			Message:   "Orchestrator completed successfully",
			Status:    "success",
			SessionID: res.SessionID,
			Browsers:  res.Browsers,
		}, nil

	case strings.TrimSpace(input.Documentation) != "":
		if o.publisher == nil {
			return o.failed(ErrBackendUnavailable), ErrBackendUnavailable
		}
		title := input.PullRequestMessage
		if title == "" {
			title = "Documentation for " + input.Task
		}
		p, err := o.publisher.Publish(ctx, ports.PublishInput{
			ProjectName: projectFromRepoInfo(input.RepoInfo),
			Title:       title,
			Summary:     input.PullRequestDescription,
			Sections:    map[string]string{"Documentation": input.Documentation},
		})
		if err != nil {
			return o.failed(err), err
		}
		return &ports.OrchestratorOutput{
			Message:  "Documentation published",
			Status:   "success",
			Browsers: map[string]domain.BrowserLink{},
			Path:     p,
		}, nil
	}

	return o.failed(ErrNothingToOrchestrate), ErrNothingToOrchestrate
}

func (o *orchestrator) failed(err error) *ports.OrchestratorOutput {
	o.logger.Errorw("orchestration failed", "error", err)
	return &ports.OrchestratorOutput{
		Message:  fmt.Sprintf("Error orchestrating task: %v", err),
		Status:   "error",
		Browsers: map[string]domain.BrowserLink{},
	}
}

// projectFromRepoInfo reads the project name the way the frontend sends
// repository objects: an explicit name, else one derived from a URL.
func projectFromRepoInfo(info map[string]interface{}) string {
	for _, key := range []string{"project_name", "name"} {
		if s, ok := info[key].(string); ok && s != "" {
			return s
		}
	}
	for _, key := range []string{"clone_url", "html_url", "url", "repo_url"} {
		if s, ok := info[key].(string); ok && s != "" {
			return domain.ProjectNameFromRepo(s)
		}
	}
	return ""
}
