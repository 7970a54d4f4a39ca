package ports

import (
	"context"
	"time"

	"github.com/agentdock/backend/internal/domain"
)

type QueueCorrelator interface {
	Send(ctx context.Context, command, projectName string) (string, error)
	AwaitResponse(ctx context.Context, messageID string, timeout time.Duration) (*domain.ResponseMessage, error)
	Execute(ctx context.Context, command, projectName string) (*domain.ResponseMessage, error)
	Pending() []string
}

type ExecuteInput struct {
	Command     string
	ProjectName string
	Backend     domain.ExecutorBackend
}

type CommandExecutor interface {
	Execute(ctx context.Context, input ExecuteInput) domain.CommandResult
	DefaultBackend() domain.ExecutorBackend
	ProjectsDir() string
}

type TaskInput struct {
	TaskName    string
	RepoURL     string
	ProjectName string
	Backend     domain.ExecutorBackend
}

type CloneInput struct {
	RepoURL     string
	ProjectName string
	Backend     domain.ExecutorBackend
}

type TaskLoopDriver interface {
	Clone(ctx context.Context, input CloneInput) domain.CommandResult
	Run(ctx context.Context, input TaskInput) (*domain.TaskRunResult, error)
	RunStream(ctx context.Context, input TaskInput, emit func(domain.TaskEvent)) (*domain.TaskRunResult, error)
}

type SessionStore interface {
	Create(task, userName string) *domain.SessionRecord
	Get(id string) (*domain.SessionRecord, error)
	Update(id string, fn func(*domain.SessionRecord)) error
	Delete(id string)
	Len() int
}

type StartSessionsInput struct {
	Task         string
	BrowserCount int
	UserName     string
	Mode         domain.FanOutMode
}

type FanOutManager interface {
	StartSessions(ctx context.Context, input StartSessionsInput) (*domain.FanOutResult, error)
	GetSession(id string) (*domain.SessionRecord, error)
	EndAllSessions(ctx context.Context) error
}

type StreamingRelay interface {
	StepPublisher
	Register(sessionID string, l Listener)
	Deregister(sessionID string, l Listener)
	Listening(sessionID string) bool
}

type MemoryService interface {
	FindUser(ctx context.Context, name string) domain.UserLookup
	Query(ctx context.Context, userName, question string, k int) domain.MemoryAnswer
	Insert(ctx context.Context, userName, topic, insights string) (*domain.UserMemory, error)
}

type JobTracker interface {
	Create(jobType string) *domain.Job
	Update(id string, status domain.JobStatus, progress int, msg string) error
	Attach(id, sessionID string) error
	Complete(id string, result interface{}) error
	Fail(id string, errStr string) error
	Get(id string) (*domain.Job, error)
}

type OrchestratorInput struct {
	Task                   string
	BrowserCount           int
	UserName               string
	RepoInfo               map[string]interface{}
	Documentation          string
	PullRequestMessage     string
	PullRequestDescription string
}

type OrchestratorOutput struct {
	Message   string                        `json:"message"`
	Status    string                        `json:"status"`
	SessionID string                        `json:"session_id,omitempty"`
	Browsers  map[string]domain.BrowserLink `json:"browsers"`
	Path      string                        `json:"path,omitempty"`
}

type Orchestrator interface {
	Orchestrate(ctx context.Context, input OrchestratorInput) (*OrchestratorOutput, error)
}

type PublishInput struct {
	ProjectName string
	Title       string
	Summary     string
	Sections    map[string]string
}

type DocumentationPublisher interface {
	Publish(ctx context.Context, input PublishInput) (string, error)
}
