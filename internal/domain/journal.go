package domain

// Journal entry types for task loop runs
const (
	EventTypeRunStarted   = "RUN_STARTED"
	EventTypeRunCloned    = "RUN_CLONED"
	EventTypeRunCommand   = "RUN_COMMAND"
	EventTypeRunCompleted = "RUN_COMPLETED"
	EventTypeRunAborted   = "RUN_ABORTED"
)
