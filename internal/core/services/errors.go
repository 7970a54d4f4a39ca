package services

import "errors"

// Correlator errors
var (
	ErrResponseTimeout = errors.New("correlator: timed out waiting for response")
	ErrEmptyCommand    = errors.New("correlator: command is empty")
)

// Executor errors
var (
	ErrUnknownBackend     = errors.New("executor: unknown backend")
	ErrBackendUnavailable = errors.New("executor: backend not configured")
)

// Task loop errors
var (
	ErrTaskInvalidInput = errors.New("task loop: task_name and repo_url are required")
)

// Session errors
var (
	ErrSessionNotFound     = errors.New("session: not found")
	ErrInvalidBrowserCount = errors.New("session: browser_count must be positive")
	ErrEmptyTask           = errors.New("session: task is required")
	ErrAllBrowsersFailed   = errors.New("session: every browser failed to start")
)

// Job errors
var (
	ErrJobNotFound = errors.New("job: not found")
)

// Memory errors
var (
	ErrEmptyUserName  = errors.New("memory: user name cannot be empty")
	ErrMemoryDisabled = errors.New("memory: index is not configured")
)

// Orchestrator errors
var (
	ErrNothingToOrchestrate = errors.New("orchestrator: browser_count or documentation is required")
)
