package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agentdock/backend/internal/core/ports"
	"github.com/agentdock/backend/internal/domain"
)

// fakeRunner records calls and answers from a function.
type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
	fn    func(command, workdir string) domain.CommandResult
}

type runCall struct {
	Command string
	Workdir string
}

func (f *fakeRunner) Run(_ context.Context, command, workdir string) domain.CommandResult {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{command, workdir})
	f.mu.Unlock()
	if f.fn == nil {
		return domain.CommandResult{Success: true}
	}
	return f.fn(command, workdir)
}

func (f *fakeRunner) Calls() []runCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runCall(nil), f.calls...)
}

type fakeCorrelator struct {
	resp    *domain.ResponseMessage
	err     error
	project string
}

func (f *fakeCorrelator) Send(context.Context, string, string) (string, error) { return "id", nil }
func (f *fakeCorrelator) AwaitResponse(context.Context, string, time.Duration) (*domain.ResponseMessage, error) {
	return f.resp, f.err
}
func (f *fakeCorrelator) Execute(_ context.Context, _ string, projectName string) (*domain.ResponseMessage, error) {
	f.project = projectName
	return f.resp, f.err
}
func (f *fakeCorrelator) Pending() []string { return nil }

// scriptedChat returns replies in order, then errors.
type scriptedChat struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []ports.ChatRequest
}

func (s *scriptedChat) Complete(_ context.Context, req ports.ChatRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

type recordingListener struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (l *recordingListener) Send(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.messages = append(l.messages, message)
	return nil
}

func (l *recordingListener) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

type fakeExecutor struct {
	mu          sync.Mutex
	inputs      []ports.ExecuteInput
	fn          func(ports.ExecuteInput) domain.CommandResult
	projectsDir string
}

func (f *fakeExecutor) Execute(_ context.Context, in ports.ExecuteInput) domain.CommandResult {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.fn == nil {
		return domain.CommandResult{Success: true}
	}
	return f.fn(in)
}

func (f *fakeExecutor) DefaultBackend() domain.ExecutorBackend { return domain.ExecutorLocal }

func (f *fakeExecutor) ProjectsDir() string { return domain.ResolveProjectDir(f.projectsDir, "") }

func (f *fakeExecutor) Inputs() []ports.ExecuteInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.ExecuteInput(nil), f.inputs...)
}

type memoryJournal struct {
	mu       sync.Mutex
	entries  []domain.JournalEntry
	cleanups []time.Duration
}

func (j *memoryJournal) Create(_ context.Context, e *domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *e)
	return nil
}

func (j *memoryJournal) GetByRun(_ context.Context, runID string) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.JournalEntry
	for _, e := range j.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *memoryJournal) GetAll(_ context.Context, limit int) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.JournalEntry(nil), j.entries...), nil
}

func (j *memoryJournal) CleanupOld(_ context.Context, olderThan time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cleanups = append(j.cleanups, olderThan)
	return nil
}
