package dto

import (
	"fmt"
	"strings"

	"github.com/agentdock/backend/internal/domain"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// ==================== TASK LOOP ====================

type CloneRequest struct {
	RepoURL       string `json:"repo_url"`
	ProjectName   string `json:"project_name"`
	ContainerType string `json:"container_type,omitempty"`
}

func (r *CloneRequest) Validate() []string {
	var errors []string
	if strings.TrimSpace(r.RepoURL) == "" {
		errors = append(errors, "repo_url is required")
	}
	errors = append(errors, validateBackend(r.ContainerType)...)
	return errors
}

type ExecuteRequest struct {
	Task          string `json:"task"`
	RepoURL       string `json:"repo_url"`
	ProjectName   string `json:"project_name"`
	ContainerType string `json:"container_type,omitempty"`
}

func (r *ExecuteRequest) Validate() []string {
	var errors []string
	if strings.TrimSpace(r.Task) == "" {
		errors = append(errors, "task is required")
	}
	if strings.TrimSpace(r.RepoURL) == "" {
		errors = append(errors, "repo_url is required")
	}
	errors = append(errors, validateBackend(r.ContainerType)...)
	return errors
}

// Backend returns the requested backend, or "" for the server default.
func Backend(containerType string) domain.ExecutorBackend {
	b, _ := domain.ParseExecutorBackend(containerType)
	return b
}

func validateBackend(containerType string) []string {
	if containerType == "" {
		return nil
	}
	if _, ok := domain.ParseExecutorBackend(containerType); !ok {
		return []string{"container_type must be one of: local, docker, queue, azure, ssh"}
	}
	return nil
}

type HistoryItem struct {
	Command string `json:"command"`
	Output  string `json:"output"`
}

type ExecuteResponse struct {
	RunID      string             `json:"run_id"`
	Status     domain.TaskOutcome `json:"status"`
	History    []HistoryItem      `json:"history"`
	FinalState *domain.TaskState  `json:"final_state"`
}

func ExecuteToResponse(res *domain.TaskRunResult) ExecuteResponse {
	out := ExecuteResponse{
		RunID:      res.RunID,
		Status:     res.Outcome,
		History:    make([]HistoryItem, 0, len(res.History)),
		FinalState: res.State,
	}
	for _, e := range res.History {
		out.History = append(out.History, HistoryItem{Command: e.Command, Output: e.Output})
	}
	return out
}

// ==================== BROWSER ====================

type BrowserTaskRequest struct {
	UserQuestion string `json:"user_question"`
	UserName     string `json:"user_name,omitempty"`
	BrowserCount int    `json:"browser_count,omitempty"`
}

func (r *BrowserTaskRequest) Validate() []string {
	var errors []string
	if strings.TrimSpace(r.UserQuestion) == "" {
		errors = append(errors, "user_question is required")
	}
	if r.BrowserCount < 0 {
		errors = append(errors, "browser_count must not be negative")
	}
	return errors
}

type BrowserTaskResponse struct {
	LiveViewURL string                        `json:"live_view_url"`
	SessionID   string                        `json:"session_id"`
	Status      string                        `json:"status"`
	Message     string                        `json:"message"`
	Browsers    map[string]domain.BrowserLink `json:"browsers"`
}

// FanOutToResponse reports the first acquired browser's live view as the
// primary one.
func FanOutToResponse(res *domain.FanOutResult) BrowserTaskResponse {
	out := BrowserTaskResponse{
		SessionID: res.SessionID,
		Status:    string(domain.SessionStatusRunning),
		Message:   "Browser session started. Task is running in the background.",
		Browsers:  res.Browsers,
	}
	first := -1
	for key, link := range res.Browsers {
		var idx int
		if _, err := fmt.Sscanf(key, "browser_%d", &idx); err != nil {
			continue
		}
		if first == -1 || idx < first {
			first = idx
			out.LiveViewURL = link.LiveViewURL
		}
	}
	return out
}

type AsyncResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type OrchestratorRequest struct {
	Task                   string                 `json:"task"`
	BrowserCount           int                    `json:"browser_count"`
	UserName               string                 `json:"user_name,omitempty"`
	RepoInfo               map[string]interface{} `json:"repo_info,omitempty"`
	GithubToken            string                 `json:"github_token,omitempty"`
	Documentation          string                 `json:"documentation,omitempty"`
	PullRequestMessage     string                 `json:"pull_request_message,omitempty"`
	PullRequestDescription string                 `json:"pull_request_description,omitempty"`
}

// ==================== MEMORY ====================

type MemoryInsertRequest struct {
	UserName     string `json:"user_name"`
	TopicText    string `json:"topic_text"`
	InsightsText string `json:"insights_text"`
}

func (r *MemoryInsertRequest) Validate() []string {
	var errors []string
	if strings.TrimSpace(r.UserName) == "" {
		errors = append(errors, "user_name is required")
	}
	if strings.TrimSpace(r.TopicText) == "" {
		errors = append(errors, "topic_text is required")
	}
	if strings.TrimSpace(r.InsightsText) == "" {
		errors = append(errors, "insights_text is required")
	}
	return errors
}

type MemoryQueryRequest struct {
	UserName string `json:"user_name"`
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}
