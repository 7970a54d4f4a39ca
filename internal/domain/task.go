package domain

import (
	"path"
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job types tracked for GET /api/task-status.
const (
	JobTypeBrowserTask = "BROWSER_TASK"
	JobTypeTaskLoop    = "TASK_LOOP"
)

// Job is an asynchronous request the caller polls for.
type Job struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Status    JobStatus   `json:"status"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message"`
	Error     string      `json:"error,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CommandEntry is one executed command inside a task loop.
type CommandEntry struct {
	Command   string    `json:"command"`
	Output    string    `json:"output"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskState is the mutable state of one task loop run.
type TaskState struct {
	TaskName         string         `json:"task_name"`
	CurrentDirectory string         `json:"current_directory"`
	CommandHistory   []CommandEntry `json:"command_history"`
	RetryCount       int            `json:"retry_count"`
	MaxRetries       int            `json:"max_retries"`
}

const DefaultProjectsDir = "/projects"

func NewTaskState(taskName string, maxRetries int) *TaskState {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &TaskState{
		TaskName:         taskName,
		CurrentDirectory: DefaultProjectsDir,
		MaxRetries:       maxRetries,
	}
}

// AddCommand appends to the history; failures count toward the retry budget.
func (s *TaskState) AddCommand(command, output string, success bool, errMsg string) CommandEntry {
	entry := CommandEntry{
		Command:   command,
		Output:    output,
		Success:   success,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
	s.CommandHistory = append(s.CommandHistory, entry)
	if !success {
		s.RetryCount++
	}
	return entry
}

func (s *TaskState) ResetRetryCount() {
	s.RetryCount = 0
}

func (s *TaskState) ShouldRetry() bool {
	return s.RetryCount < s.MaxRetries
}

// SequencedCommand is a history entry numbered from 1 for prompt rendering.
type SequencedCommand struct {
	Sequence  int
	Command   string
	Output    string
	Success   bool
	Error     string
	Timestamp string
}

// PromptData is the view of the state handed to the prompt template.
type PromptData struct {
	TaskName         string
	CommandSequence  []SequencedCommand
	LastCommand      string
	LastOutput       string
	TotalCommands    int
	CurrentDirectory string
}

func (s *TaskState) PromptData() PromptData {
	data := PromptData{
		TaskName:         s.TaskName,
		TotalCommands:    len(s.CommandHistory),
		CurrentDirectory: s.CurrentDirectory,
	}
	for i, e := range s.CommandHistory {
		data.CommandSequence = append(data.CommandSequence, SequencedCommand{
			Sequence:  i + 1,
			Command:   e.Command,
			Output:    e.Output,
			Success:   e.Success,
			Error:     e.Error,
			Timestamp: e.Timestamp.Format(time.RFC3339),
		})
	}
	if n := len(s.CommandHistory); n > 0 {
		data.LastCommand = s.CommandHistory[n-1].Command
		data.LastOutput = s.CommandHistory[n-1].Output
	}
	return data
}

// TaskOutcome is how a task loop run ended.
type TaskOutcome string

const (
	TaskOutcomeCompleted   TaskOutcome = "completed"
	TaskOutcomeAborted     TaskOutcome = "aborted"
	TaskOutcomeCloneFailed TaskOutcome = "clone_failed"
	TaskOutcomeIterLimit   TaskOutcome = "iteration_limit"
	TaskOutcomeCancelled   TaskOutcome = "cancelled"
)

// TaskRunResult is returned by the task loop driver.
type TaskRunResult struct {
	RunID   string         `json:"run_id"`
	Outcome TaskOutcome    `json:"status"`
	History []CommandEntry `json:"history"`
	State   *TaskState     `json:"final_state"`
}

// TaskEvent is streamed to /ws/commands listeners while a loop runs.
type TaskEvent struct {
	Type      string    `json:"type"`
	Iteration int       `json:"iteration,omitempty"`
	Command   string    `json:"command,omitempty"`
	Output    string    `json:"output,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Retry     int       `json:"retry,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task event types.
const (
	TaskEventClone     = "clone"
	TaskEventCommand   = "command"
	TaskEventOutput    = "output"
	TaskEventError     = "error"
	TaskEventRetry     = "retry"
	TaskEventCompleted = "completed"
	TaskEventAborted   = "aborted"
)

// ShellQuote single-quotes s for POSIX shells.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ResolveProjectDir maps a project name to its directory. Absolute paths
// are used as-is; an empty name resolves to base itself.
func ResolveProjectDir(base, projectName string) string {
	if base == "" {
		base = DefaultProjectsDir
	}
	switch {
	case projectName == "":
		return base
	case path.IsAbs(projectName):
		return path.Clean(projectName)
	}
	return path.Join(base, projectName)
}

// ProjectNameFromRepo derives a project name from a clone URL, the way
// git names the checkout directory.
func ProjectNameFromRepo(repoURL string) string {
	name := strings.TrimRight(strings.TrimSpace(repoURL), "/")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
