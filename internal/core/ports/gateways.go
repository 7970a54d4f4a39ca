package ports

import (
	"context"
	"time"

	"github.com/agentdock/backend/internal/domain"
)

// QueueMessage is a message leased from a MessageQueue. ID and PopReceipt
// are opaque to callers and only round-trip into Delete.
type QueueMessage struct {
	ID           string
	PopReceipt   string
	Body         string
	DequeueCount int
}

// MessageQueue is one durable channel. Received messages stay on the queue,
// hidden for the visibility timeout, until deleted.
type MessageQueue interface {
	Name() string
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, max int, visibility time.Duration) ([]QueueMessage, error)
	Delete(ctx context.Context, msg QueueMessage) error
}

// CommandRunner executes one shell command in a working directory.
// Failures are reported in the result, never as a panic.
type CommandRunner interface {
	Run(ctx context.Context, command, workdir string) domain.CommandResult
}

type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BrowserProvider acquires and releases remote browser sessions.
type BrowserProvider interface {
	StartSession(ctx context.Context, browserIndex int) (*domain.RemoteBrowser, error)
	EndSession(ctx context.Context, id string) error
	EndAllSessions(ctx context.Context) error
}

// StepPublisher receives per-step agent messages for a session.
type StepPublisher interface {
	Publish(sessionID, message string)
}

type CollectRequest struct {
	SessionID    string
	BrowserIndex int
	Subtask      string
	CDPURL       string
	UserName     string
}

// DocumentationCollector runs a documentation agent against one browser.
type DocumentationCollector interface {
	Collect(ctx context.Context, req CollectRequest, steps StepPublisher) (*domain.Documentation, error)
}

type VectorHit struct {
	ID    string
	Field string
	Score float32
}

// VectorIndex is the semantic side of the memory index.
type VectorIndex interface {
	Add(ctx context.Context, memory domain.UserMemory) error
	Query(ctx context.Context, userName, text string, k int) ([]VectorHit, error)
}

// Listener is a live consumer of relay messages.
type Listener interface {
	Send(message string) error
}

// FileWriter writes a file into the sandbox filesystem.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, content []byte) error
}
