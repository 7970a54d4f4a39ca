package services

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/infrastructure/logger"
	"github.com/agentdock/backend/internal/infrastructure/metrics"
	"github.com/google/uuid"
)

// CompletionSentinel is what the model answers once the task is done.
const CompletionSentinel = "TASK_COMPLETED"

const taskTemperature = 0.1

var promptTemplate = template.Must(template.New("task").Parse(`You are an autonomous software engineer working in a Linux sandbox through a shell.
Your task: {{.TaskName}}

Current directory: {{.CurrentDirectory}}
Commands executed so far: {{.TotalCommands}}
{{range .CommandSequence}}
[{{.Sequence}}] $ {{.Command}}
{{if .Success}}{{.Output}}{{else}}FAILED: {{.Error}}{{end}}
{{end}}{{if .LastCommand}}
The last command was: {{.LastCommand}}
{{end}}
Reply with exactly one shell command to run next, with no explanation and no code fences.
Each command runs in a fresh shell in the current directory.
When the task is complete reply with exactly ` + CompletionSentinel + `.`))

type taskLoopDriver struct {
	executor ports.CommandExecutor
	model    ports.ChatModel
	journal  ports.JournalRepository
	cfg      config.TaskLoopConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewTaskLoopDriver builds the driver. journal may be nil.
func NewTaskLoopDriver(executor ports.CommandExecutor, model ports.ChatModel, journal ports.JournalRepository, cfg config.TaskLoopConfig, log *logger.Logger, m *metrics.Metrics) ports.TaskLoopDriver {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 50
	}
	if cfg.FallbackCommand == "" {
		cfg.FallbackCommand = "pwd"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &taskLoopDriver{
		executor: executor,
		model:    model,
		journal:  journal,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
	}
}

func (d *taskLoopDriver) Clone(ctx context.Context, input ports.CloneInput) domain.CommandResult {
	project := input.ProjectName
	if project == "" {
		project = domain.ProjectNameFromRepo(input.RepoURL)
	}
	dir := domain.ResolveProjectDir(d.executor.ProjectsDir(), project)
	cmd := fmt.Sprintf("git clone %s %s", domain.ShellQuote(input.RepoURL), domain.ShellQuote(dir))
	return d.executor.Execute(ctx, ports.ExecuteInput{Command: cmd, Backend: input.Backend})
}

func (d *taskLoopDriver) Run(ctx context.Context, input ports.TaskInput) (*domain.TaskRunResult, error) {
	return d.RunStream(ctx, input, nil)
}

// RunStream clones the repository and then alternates between asking the
// model for a command and executing it until the model reports completion,
// the retry budget or iteration ceiling is spent, or ctx ends.
func (d *taskLoopDriver) RunStream(ctx context.Context, input ports.TaskInput, emit func(domain.TaskEvent)) (*domain.TaskRunResult, error) {
	if input.TaskName == "" || input.RepoURL == "" {
		return nil, ErrTaskInvalidInput
	}
	if input.ProjectName == "" {
		input.ProjectName = domain.ProjectNameFromRepo(input.RepoURL)
	}
	if emit == nil {
		emit = func(domain.TaskEvent) {}
	}

	state := domain.NewTaskState(input.TaskName, d.cfg.MaxRetries)
	result := &domain.TaskRunResult{RunID: uuid.NewString(), State: state}
	log := d.logger.With("run_id", result.RunID, "project_name", input.ProjectName)
	d.record(ctx, result.RunID, domain.EventTypeRunStarted, domain.EventStatusPending, input.TaskName, "", "", input.RepoURL)

	clone := d.Clone(ctx, ports.CloneInput{RepoURL: input.RepoURL, ProjectName: input.ProjectName, Backend: input.Backend})
	emit(domain.TaskEvent{
		Type:      domain.TaskEventClone,
		Command:   "git clone " + input.RepoURL,
		Output:    clone.Output(),
		Success:   clone.Success,
		Error:     clone.Error,
		Timestamp: time.Now(),
	})
	if !clone.Success {
		log.Errorw("failed to clone repository", "error", clone.Error)
		d.record(ctx, result.RunID, domain.EventTypeRunCloned, domain.EventStatusFailed, input.TaskName, "", clone.Output(), clone.Error)
		return d.finish(result, domain.TaskOutcomeCloneFailed), nil
	}
	state.CurrentDirectory = domain.ResolveProjectDir(d.executor.ProjectsDir(), input.ProjectName)
	d.record(ctx, result.RunID, domain.EventTypeRunCloned, domain.EventStatusSuccess, input.TaskName, "", clone.Output(), "")

	for iteration := 1; iteration <= d.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return d.finish(result, domain.TaskOutcomeCancelled), ctx.Err()
		}

		command := d.nextCommand(ctx, state, log)
		if command == CompletionSentinel {
			log.Infow("task completed", "iterations", iteration-1)
			emit(domain.TaskEvent{Type: domain.TaskEventCompleted, Iteration: iteration, Success: true, Timestamp: time.Now()})
			d.record(ctx, result.RunID, domain.EventTypeRunCompleted, domain.EventStatusSuccess, input.TaskName, "", "", "")
			return d.finish(result, domain.TaskOutcomeCompleted), nil
		}
		if command == "" {
			log.Warnw("model returned an empty command, executing anyway")
		}

		emit(domain.TaskEvent{Type: domain.TaskEventCommand, Iteration: iteration, Command: command, Timestamp: time.Now()})
		res := d.executor.Execute(ctx, ports.ExecuteInput{
			Command:     command,
			ProjectName: state.CurrentDirectory,
			Backend:     input.Backend,
		})

		if !res.Success {
			errMsg := res.Error
			if errMsg == "" {
				errMsg = "Unknown error"
			}
			output := "Error: " + errMsg
			state.AddCommand(command, output, false, errMsg)
			emit(domain.TaskEvent{Type: domain.TaskEventError, Iteration: iteration, Command: command, Output: output, Error: errMsg, Timestamp: time.Now()})
			d.record(ctx, result.RunID, domain.EventTypeRunCommand, domain.EventStatusFailed, input.TaskName, command, output, errMsg)

			if !state.ShouldRetry() {
				log.Errorw("maximum retry attempts reached", "max_retries", state.MaxRetries)
				emit(domain.TaskEvent{Type: domain.TaskEventAborted, Iteration: iteration, Error: "maximum retry attempts reached", Retry: state.RetryCount, Timestamp: time.Now()})
				d.record(ctx, result.RunID, domain.EventTypeRunAborted, domain.EventStatusFailed, input.TaskName, "", "", "maximum retry attempts reached")
				return d.finish(result, domain.TaskOutcomeAborted), nil
			}
			emit(domain.TaskEvent{Type: domain.TaskEventRetry, Iteration: iteration, Retry: state.RetryCount, Timestamp: time.Now()})
			continue
		}

		state.ResetRetryCount()
		output := res.Output()
		state.AddCommand(command, output, true, "")
		emit(domain.TaskEvent{Type: domain.TaskEventOutput, Iteration: iteration, Command: command, Output: output, Success: true, Timestamp: time.Now()})
		d.record(ctx, result.RunID, domain.EventTypeRunCommand, domain.EventStatusSuccess, input.TaskName, command, output, "")
	}

	log.Warnw("iteration limit reached", "max_iterations", d.cfg.MaxIterations)
	emit(domain.TaskEvent{Type: domain.TaskEventAborted, Iteration: d.cfg.MaxIterations, Error: "iteration limit reached", Timestamp: time.Now()})
	d.record(ctx, result.RunID, domain.EventTypeRunAborted, domain.EventStatusFailed, input.TaskName, "", "", "iteration limit reached")
	return d.finish(result, domain.TaskOutcomeIterLimit), nil
}

// nextCommand asks the model for one command; any model failure yields the
// fallback command.
func (d *taskLoopDriver) nextCommand(ctx context.Context, state *domain.TaskState, log *logger.Logger) string {
	var prompt strings.Builder
	if err := promptTemplate.Execute(&prompt, state.PromptData()); err != nil {
		log.Errorw("failed to render prompt", "error", err)
		return d.cfg.FallbackCommand
	}

	reply, err := d.model.Complete(ctx, ports.ChatRequest{
		Model:       d.cfg.Model,
		System:      prompt.String(),
		User:        "Next command:",
		Temperature: taskTemperature,
		MaxTokens:   d.cfg.MaxTokens,
	})
	if err != nil {
		log.Warnw("model call failed, using fallback command", "error", err, "fallback", d.cfg.FallbackCommand)
		return d.cfg.FallbackCommand
	}
	return strings.TrimSpace(reply)
}

func (d *taskLoopDriver) finish(result *domain.TaskRunResult, outcome domain.TaskOutcome) *domain.TaskRunResult {
	result.Outcome = outcome
	result.History = result.State.CommandHistory
	if result.History == nil {
		result.History = []domain.CommandEntry{}
	}
	d.metrics.IncTaskOutcome(string(outcome))
	return result
}

func (d *taskLoopDriver) record(ctx context.Context, runID, eventType string, status domain.EventStatus, task, command, output, message string) {
	if d.journal == nil {
		return
	}
	entry := &domain.JournalEntry{
		RunID:    runID,
		Type:     eventType,
		Status:   status,
		TaskName: task,
		Command:  command,
		Output:   output,
		Message:  message,
	}
	// the journal outlives a cancelled request
	if err := d.journal.Create(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Warnw("failed to journal task loop step", "run_id", runID, "type", eventType, "error", err)
	}
}
