package services

import (
	"sync"
	"time"

	"github.com/agentdock/backend/internal/domain"
	"github.com/google/uuid"
)

// JobTracker keeps asynchronous request state in memory for polling.
type JobTracker struct {
	jobs map[string]*domain.Job
	mu   sync.RWMutex
}

func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*domain.Job),
	}
}

func (s *JobTracker) Create(jobType string) *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    domain.JobStatusPending,
		Message:   "Job initialized",
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.jobs[job.ID] = job
	jobCopy := *job
	return &jobCopy
}

func (s *JobTracker) Update(id string, status domain.JobStatus, progress int, msg string) error {
	return s.mutate(id, func(job *domain.Job) {
		job.Status = status
		job.Progress = progress
		job.Message = msg
	})
}

// Attach links the job to the fan-out session it started.
func (s *JobTracker) Attach(id, sessionID string) error {
	return s.mutate(id, func(job *domain.Job) {
		job.SessionID = sessionID
	})
}

func (s *JobTracker) Complete(id string, result interface{}) error {
	return s.mutate(id, func(job *domain.Job) {
		job.Status = domain.JobStatusCompleted
		job.Progress = 100
		job.Message = "Job completed"
		job.Result = result
	})
}

func (s *JobTracker) Fail(id string, errStr string) error {
	return s.mutate(id, func(job *domain.Job) {
		job.Status = domain.JobStatusFailed
		job.Error = errStr
		job.Message = "Job failed"
	})
}

func (s *JobTracker) Get(id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}

	jobCopy := *job
	return &jobCopy, nil
}

func (s *JobTracker) mutate(id string, fn func(*domain.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return nil
}
