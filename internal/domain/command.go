package domain

import (
	"strings"
	"time"
)

// ExecutorBackend names where a shell command runs.
type ExecutorBackend string

const (
	ExecutorLocal ExecutorBackend = "local"
	ExecutorQueue ExecutorBackend = "queue"
	ExecutorSSH   ExecutorBackend = "ssh"
)

// ParseExecutorBackend accepts the names clients send, including the
// legacy "azure" alias for the queue path.
func ParseExecutorBackend(s string) (ExecutorBackend, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "docker", "sandbox":
		return ExecutorLocal, true
	case "queue", "azure":
		return ExecutorQueue, true
	case "ssh":
		return ExecutorSSH, true
	}
	return "", false
}

// CommandMessage is the body placed on the command channel.
type CommandMessage struct {
	Command     string  `json:"command"`
	ProjectName string  `json:"project_name,omitempty"`
	MessageID   string  `json:"message_id"`
	Timestamp   float64 `json:"timestamp"`
}

// NewCommandMessage stamps a message with the current unix time in seconds.
func NewCommandMessage(id, command, projectName string) CommandMessage {
	return CommandMessage{
		Command:     command,
		ProjectName: projectName,
		MessageID:   id,
		Timestamp:   float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// ResponseMessage is what the sandbox worker posts back. Every field is
// optional on the wire; missing ones decode to zero values.
type ResponseMessage struct {
	MessageID     string `json:"message_id"`
	Success       *bool  `json:"success,omitempty"`
	Status        string `json:"status,omitempty"`
	TaskCompleted bool   `json:"task_completed,omitempty"`
	Stdout        string `json:"stdout,omitempty"`
	Stderr        string `json:"stderr,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (r *ResponseMessage) Succeeded() bool {
	if r.Success != nil {
		return *r.Success
	}
	switch strings.ToLower(r.Status) {
	case "success", "completed", "ok":
		return true
	case "error", "failed", "failure":
		return false
	}
	if r.TaskCompleted {
		return true
	}
	return r.Error == ""
}

// CommandResult is the uniform outcome of running one command on any backend.
type CommandResult struct {
	Success  bool          `json:"success"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Error    string        `json:"error,omitempty"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Output joins stdout and stderr the way the task loop records them.
func (r CommandResult) Output() string {
	return r.Stdout + r.Stderr
}

// FailedResult builds a normalized failure.
func FailedResult(err error) CommandResult {
	return CommandResult{Success: false, Error: err.Error(), ExitCode: -1}
}

// ResultFromResponse maps a correlated queue response onto a CommandResult.
func ResultFromResponse(r *ResponseMessage) CommandResult {
	res := CommandResult{
		Success: r.Succeeded(),
		Stdout:  r.Stdout,
		Stderr:  r.Stderr,
		Error:   r.Error,
	}
	if !res.Success {
		res.ExitCode = -1
		if res.Error == "" {
			res.Error = "command failed"
			if r.Status != "" {
				res.Error = "command failed with status " + r.Status
			}
		}
	}
	return res
}
